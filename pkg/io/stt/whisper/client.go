package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/auralabs/aura-core/pkg/logger"
)

// TranscriptionResponse is what the Whisper ASR webservice returns.
type TranscriptionResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Client talks to a Whisper ASR webservice over HTTP. It implements the
// recognizer collaborator: raw PCM in, best-effort transcript out.
type Client struct {
	baseURL    string
	sampleRate int
	wakeWord   string
	httpClient *http.Client
	log        *logger.Logger
}

func New(baseURL string, sampleRate int, wakeWord string, log *logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		sampleRate: sampleRate,
		wakeWord:   wakeWord,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// Recognize transcribes a PCM utterance. An empty transcript is not an
// error; the caller just ignores the segment.
func (c *Client) Recognize(ctx context.Context, pcm []byte) (string, error) {
	if len(pcm) == 0 {
		return "", fmt.Errorf("no audio provided")
	}

	wavData := pcmToWAV(pcm, c.sampleRate)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio_file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	// bias the model toward the wake word so it doesn't get transcribed as
	// a soundalike
	initialPrompt := url.QueryEscape("take note of word: " + c.wakeWord)
	requestURL := fmt.Sprintf("%s/asr?encode=true&task=transcribe&language=en&output=json&initial_prompt=%s",
		c.baseURL, initialPrompt)
	req, err := http.NewRequestWithContext(ctx, "POST", requestURL, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper service returned status %d: %s", resp.StatusCode, string(responseBody))
	}

	var transcription TranscriptionResponse
	if err := json.Unmarshal(responseBody, &transcription); err != nil {
		// some deployments answer with plain text
		if len(responseBody) > 0 {
			return string(responseBody), nil
		}
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	c.log.Debugf("whisper transcription: %q (language: %s)", transcription.Text, transcription.Language)
	return transcription.Text, nil
}

// pcmToWAV wraps raw 16-bit mono PCM in a WAV container.
func pcmToWAV(pcm []byte, sampleRate int) []byte {
	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8

	buf := make([]byte, 44+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], 1)
	binary.LittleEndian.PutUint16(buf[22:], numChannels)
	binary.LittleEndian.PutUint32(buf[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:], bitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(len(pcm)))
	copy(buf[44:], pcm)
	return buf
}
