package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// AudioConfig fixes the frame contract shared by ingestion and playback.
type AudioConfig struct {
	SampleRate int `mapstructure:"sample_rate"`
	FrameMs    int `mapstructure:"frame_ms"`
}

// FrameBytes is the size of one PCM frame (16-bit mono).
func (a AudioConfig) FrameBytes() int {
	return a.SampleRate * a.FrameMs / 1000 * 2
}

func (a AudioConfig) FrameDuration() time.Duration {
	return time.Duration(a.FrameMs) * time.Millisecond
}

// VadConfig carries the segmenter tuning knobs. The defaults are product
// tuning, not correctness requirements; deployments override them per room
// acoustics.
type VadConfig struct {
	CalibrationMs      int     `mapstructure:"calibration_ms"`
	MarginDb           float64 `mapstructure:"margin_db"`
	NoiseDriftRate     float64 `mapstructure:"noise_drift_rate"`
	VoiceLevelRate     float64 `mapstructure:"voice_level_rate"`
	VoiceSamplesToTune int     `mapstructure:"voice_samples_to_tune"`
	MinAmplitude       float64 `mapstructure:"min_amplitude"`
	MaxAmplitude       float64 `mapstructure:"max_amplitude"`
	WeakAmplitudeFloor float64 `mapstructure:"weak_amplitude_floor"`
	SilenceFrames      int     `mapstructure:"silence_frames"`
	MinUtteranceMs     int     `mapstructure:"min_utterance_ms"`
	MaxUtteranceMs     int     `mapstructure:"max_utterance_ms"`
	DiscardMarginDb    float64 `mapstructure:"discard_margin_db"`
	SpeakerCooldownMs  int     `mapstructure:"speaker_cooldown_ms"`
	CalibrationFloorDb float64 `mapstructure:"calibration_floor_db"`
	CalibrationCeilDb  float64 `mapstructure:"calibration_ceil_db"`
}

// TurnConfig governs the bot state machine and response pacing.
type TurnConfig struct {
	WakeWord            string   `mapstructure:"wake_word"`
	FollowUpWindowMs    int      `mapstructure:"follow_up_window_ms"`
	InactivityTimeoutMs int      `mapstructure:"inactivity_timeout_ms"`
	InactivityCheckMs   int      `mapstructure:"inactivity_check_ms"`
	AckPhrase           string   `mapstructure:"ack_phrase"`
	FillerPhrases       []string `mapstructure:"filler_phrases"`
	ConnectivePrefix    string   `mapstructure:"connective_prefix"`
	FillerDelayMs       int      `mapstructure:"filler_delay_ms"`
	ResponseCooldownMs  int      `mapstructure:"response_cooldown_ms"`
}

type VoiceConfig struct {
	SttURL string `mapstructure:"stt_url"`
	TtsURL string `mapstructure:"tts_url"`
	Voice  string `mapstructure:"voice"`
}

type AssistantKeysObj struct {
	OpenAiApiKey string `mapstructure:"open_ai_api_key"`
	Model        string `mapstructure:"model"`
}

type OllamaModelSrv struct {
	Url   string `mapstructure:"url"`
	Model string `mapstructure:"model"`
}

type OllamaConfig struct {
	Enabled     bool             `mapstructure:"enabled"`
	Model       string           `mapstructure:"model"`
	LLamaModels []OllamaModelSrv `mapstructure:"llama_models"`
}

type Settings struct {
	Server        ServerConfig     `mapstructure:"server"`
	Audio         AudioConfig      `mapstructure:"audio"`
	Vad           VadConfig        `mapstructure:"vad"`
	Turn          TurnConfig       `mapstructure:"turn"`
	Voice         VoiceConfig      `mapstructure:"voice"`
	AssistantKeys AssistantKeysObj `mapstructure:"assistant_keys"`
	Ollama        OllamaConfig     `mapstructure:"ollama"`
	Env           string           `mapstructure:"env"`
	Debug         bool             `mapstructure:"debug"`
}

// Default returns settings usable without a config file. Tests build on it.
func Default() *Settings {
	return &Settings{
		Server: ServerConfig{Addr: ":8080"},
		Audio:  AudioConfig{SampleRate: 16000, FrameMs: 30},
		Vad: VadConfig{
			CalibrationMs:      3000,
			MarginDb:           8,
			NoiseDriftRate:     0.05,
			VoiceLevelRate:     0.2,
			VoiceSamplesToTune: 12,
			MinAmplitude:       250,
			MaxAmplitude:       8000,
			WeakAmplitudeFloor: 120,
			SilenceFrames:      25,
			MinUtteranceMs:     240,
			MaxUtteranceMs:     6000,
			DiscardMarginDb:    3,
			SpeakerCooldownMs:  500,
			CalibrationFloorDb: -100,
			CalibrationCeilDb:  -25,
		},
		Turn: TurnConfig{
			WakeWord:            "aura",
			FollowUpWindowMs:    8000,
			InactivityTimeoutMs: 30000,
			InactivityCheckMs:   5000,
			AckPhrase:           "Yes? What can I help with?",
			FillerPhrases:       []string{"Let me think about that.", "One moment.", "Hmm, let me see."},
			ConnectivePrefix:    "So,",
			FillerDelayMs:       700,
			ResponseCooldownMs:  1000,
		},
		Voice: VoiceConfig{
			SttURL: "http://localhost:9000",
			TtsURL: "http://localhost:5000",
		},
		AssistantKeys: AssistantKeysObj{Model: "gpt-4o-mini"},
		Env:           "dev",
	}
}

func Load() (*Settings, error) {
	viper.SetConfigName("config_" + genEnv())
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")

	settings := Default()
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return settings, nil
}

func genEnv() string {
	env := viper.GetString("ENV")
	if env == "" {
		return "dev"
	}
	return env
}
