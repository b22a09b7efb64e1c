package audio

import (
	"math"
)

// Helpers for 16-bit signed little-endian mono PCM, the frame format the
// whole pipeline speaks.

const (
	BytesPerSample = 2
	maxSample      = 32768.0
	// DbFloor is returned for silent buffers instead of -Inf.
	DbFloor = -120.0
)

// RMS computes the root-mean-square amplitude of a PCM buffer in raw sample
// units (0..32768).
func RMS(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(pcm); i += BytesPerSample {
		s := float64(int16(pcm[i]) | int16(pcm[i+1])<<8)
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// AvgAbs computes the mean absolute amplitude in raw sample units.
func AvgAbs(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(pcm); i += BytesPerSample {
		s := float64(int16(pcm[i]) | int16(pcm[i+1])<<8)
		sum += math.Abs(s)
	}
	return sum / float64(n)
}

// Decibels converts an RMS amplitude to dBFS.
func Decibels(rms float64) float64 {
	if rms <= 0 {
		return DbFloor
	}
	db := 20 * math.Log10(rms/maxSample)
	if db < DbFloor {
		return DbFloor
	}
	return db
}

// Loudness is Decibels(RMS(pcm)).
func Loudness(pcm []byte) float64 {
	return Decibels(RMS(pcm))
}

// AmplitudeForDb is the inverse of Decibels, in raw sample units.
func AmplitudeForDb(db float64) float64 {
	return maxSample * math.Pow(10, db/20)
}

// ClampFrame pads or trims pcm to exactly size bytes. Malformed inbound
// frames are normalized rather than rejected.
func ClampFrame(pcm []byte, size int) []byte {
	if len(pcm) == size {
		return pcm
	}
	out := make([]byte, size)
	copy(out, pcm)
	return out
}

// SplitFrames slices a buffer into fixed-size frames, zero-padding the final
// partial frame.
func SplitFrames(pcm []byte, frameBytes int) [][]byte {
	if frameBytes <= 0 || len(pcm) == 0 {
		return nil
	}
	count := (len(pcm) + frameBytes - 1) / frameBytes
	frames := make([][]byte, 0, count)
	for off := 0; off < len(pcm); off += frameBytes {
		end := off + frameBytes
		if end > len(pcm) {
			frames = append(frames, ClampFrame(pcm[off:], frameBytes))
			break
		}
		frames = append(frames, pcm[off:end])
	}
	return frames
}
