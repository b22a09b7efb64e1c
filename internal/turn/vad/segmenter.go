package vad

import (
	"time"

	"github.com/google/uuid"

	"github.com/auralabs/aura-core/internal/config"
	"github.com/auralabs/aura-core/pkg/audio"
	"github.com/auralabs/aura-core/pkg/logger"
)

// CloseReason says why an utterance was closed.
type CloseReason string

const (
	CloseSilence     CloseReason = "silence"
	CloseMaxDuration CloseReason = "max-duration"
)

// Segment is one closed utterance. Immutable once emitted.
type Segment struct {
	Speaker  uuid.UUID
	PCM      []byte
	Loudness float64
	Reason   CloseReason
	ClosedAt time.Time
}

func (s *Segment) Duration(audioCfg config.AudioConfig) time.Duration {
	frames := len(s.PCM) / audioCfg.FrameBytes()
	return time.Duration(frames) * audioCfg.FrameDuration()
}

// Segmenter turns one speaker's stream of fixed-size PCM frames into closed
// utterances. The first few seconds calibrate a noise floor; afterwards the
// floor keeps drifting slowly toward observed quiet frames while a
// faster-moving estimate of the speaker's own voice level re-tightens the
// threshold once enough voice has been heard.
type Segmenter struct {
	speaker  uuid.UUID
	audioCfg config.AudioConfig
	cfg      config.VadConfig
	log      *logger.Logger

	// calibration
	calibrated       bool
	calibFrames      int
	calibDbSum       float64
	calibDbCount     int
	backgroundDb     float64
	decibelThreshold float64
	ampThreshold     float64

	// speaker voice estimate
	voiceDb      float64
	voiceSamples int

	// utterance accumulation
	buf           []byte
	silenceRun    int
	hasVoice      bool
	lastEmittedAt time.Time
}

func NewSegmenter(speaker uuid.UUID, audioCfg config.AudioConfig, cfg config.VadConfig, log *logger.Logger) *Segmenter {
	return &Segmenter{
		speaker:  speaker,
		audioCfg: audioCfg,
		cfg:      cfg,
		log:      log,
	}
}

// Push classifies one inbound frame and returns a closed Segment when the
// utterance is judged complete, nil otherwise. Frames of the wrong size are
// clamped to the fixed frame size, never rejected.
func (s *Segmenter) Push(frame []byte, now time.Time) *Segment {
	frame = audio.ClampFrame(frame, s.audioCfg.FrameBytes())

	rms := audio.RMS(frame)
	db := audio.Decibels(rms)
	avgAbs := audio.AvgAbs(frame)

	if !s.calibrated {
		s.calibrate(db)
		return nil
	}

	s.adaptThresholds(db, avgAbs)

	// cooldown after an emitted segment, to avoid re-triggering on echo
	if !s.lastEmittedAt.IsZero() && now.Sub(s.lastEmittedAt) < s.cooldown() {
		return nil
	}

	isVoice := avgAbs > s.ampThreshold && db > s.decibelThreshold
	isWeak := !isVoice && avgAbs > s.cfg.WeakAmplitudeFloor

	switch {
	case isVoice:
		s.buf = append(s.buf, frame...)
		s.silenceRun = 0
		s.hasVoice = true
	case isWeak && s.hasVoice:
		// trailing syllables land here; keep them without extending the
		// silence run
		s.buf = append(s.buf, frame...)
	case s.hasVoice:
		s.buf = append(s.buf, frame...)
		s.silenceRun++
	default:
		// plain silence with no utterance in progress
		return nil
	}

	buffered := s.bufferedDuration()
	if buffered >= s.maxUtterance() {
		return s.close(CloseMaxDuration, now)
	}
	if s.silenceRun > s.cfg.SilenceFrames && buffered >= s.minUtterance() {
		return s.close(CloseSilence, now)
	}
	return nil
}

// Reset discards any in-progress buffer, e.g. when the speaker leaves.
func (s *Segmenter) Reset() {
	s.buf = nil
	s.silenceRun = 0
	s.hasVoice = false
}

// Calibrated reports whether the noise floor has been established.
func (s *Segmenter) Calibrated() bool { return s.calibrated }

// Thresholds exposes the current detection levels, mostly for logging.
func (s *Segmenter) Thresholds() (noiseDb, voiceDb, thresholdDb, thresholdAmp float64) {
	return s.backgroundDb, s.voiceDb, s.decibelThreshold, s.ampThreshold
}

func (s *Segmenter) calibrate(db float64) {
	s.calibFrames++
	if db > s.cfg.CalibrationFloorDb && db < s.cfg.CalibrationCeilDb {
		s.calibDbSum += db
		s.calibDbCount++
	}
	elapsed := time.Duration(s.calibFrames) * s.audioCfg.FrameDuration()
	if elapsed < time.Duration(s.cfg.CalibrationMs)*time.Millisecond {
		return
	}

	if s.calibDbCount > 0 {
		s.backgroundDb = s.calibDbSum / float64(s.calibDbCount)
	} else {
		s.backgroundDb = s.cfg.CalibrationFloorDb / 2
	}
	s.setThreshold(s.backgroundDb + s.cfg.MarginDb)
	s.calibrated = true
	s.log.Debugf("vad calibrated speaker=%s noise=%.1fdB threshold=%.1fdB amp=%.0f",
		s.speaker, s.backgroundDb, s.decibelThreshold, s.ampThreshold)
}

func (s *Segmenter) adaptThresholds(db, avgAbs float64) {
	if db <= s.decibelThreshold {
		// slow drift of the noise floor toward observed quiet frames
		s.backgroundDb += s.cfg.NoiseDriftRate * (db - s.backgroundDb)
		if s.voiceSamples < s.cfg.VoiceSamplesToTune {
			s.setThreshold(s.backgroundDb + s.cfg.MarginDb)
		}
		return
	}

	if avgAbs > s.ampThreshold {
		// faster-moving estimate of how loud this speaker actually talks
		if s.voiceSamples == 0 {
			s.voiceDb = db
		} else {
			s.voiceDb += s.cfg.VoiceLevelRate * (db - s.voiceDb)
		}
		s.voiceSamples++
		if s.voiceSamples >= s.cfg.VoiceSamplesToTune && s.voiceDb > s.backgroundDb {
			// re-tighten to a third of the way between ambient and voice
			s.setThreshold(s.backgroundDb + (s.voiceDb-s.backgroundDb)/3)
		}
	}
}

func (s *Segmenter) setThreshold(db float64) {
	s.decibelThreshold = db
	amp := audio.AmplitudeForDb(db)
	if amp < s.cfg.MinAmplitude {
		amp = s.cfg.MinAmplitude
	}
	if amp > s.cfg.MaxAmplitude {
		amp = s.cfg.MaxAmplitude
	}
	s.ampThreshold = amp
}

func (s *Segmenter) close(reason CloseReason, now time.Time) *Segment {
	pcm := s.buf
	s.Reset()
	s.lastEmittedAt = now

	loudness := audio.Loudness(pcm)
	if loudness < s.decibelThreshold-s.cfg.DiscardMarginDb {
		// the whole buffer averages out to noise; drop it
		s.log.Debugf("vad discarding segment speaker=%s loudness=%.1fdB threshold=%.1fdB",
			s.speaker, loudness, s.decibelThreshold)
		return nil
	}

	return &Segment{
		Speaker:  s.speaker,
		PCM:      pcm,
		Loudness: loudness,
		Reason:   reason,
		ClosedAt: now,
	}
}

func (s *Segmenter) bufferedDuration() time.Duration {
	frames := len(s.buf) / s.audioCfg.FrameBytes()
	return time.Duration(frames) * s.audioCfg.FrameDuration()
}

func (s *Segmenter) minUtterance() time.Duration {
	return time.Duration(s.cfg.MinUtteranceMs) * time.Millisecond
}

func (s *Segmenter) maxUtterance() time.Duration {
	return time.Duration(s.cfg.MaxUtteranceMs) * time.Millisecond
}

func (s *Segmenter) cooldown() time.Duration {
	return time.Duration(s.cfg.SpeakerCooldownMs) * time.Millisecond
}
