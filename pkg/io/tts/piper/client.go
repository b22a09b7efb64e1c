package piper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Piper is a wyoming-piper HTTP client implementing the synthesizer
// collaborator. The service answers GET /api/text-to-speech with a WAV body;
// Synthesize strips the container and hands back raw PCM.
type Piper struct {
	BaseURL string
	Client  *http.Client
	Voice   string
	Timeout time.Duration
}

const wavHeaderSize = 44

func New(baseURL string) *Piper {
	return &Piper{BaseURL: baseURL}
}

func (p *Piper) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}

	u, err := url.Parse(p.BaseURL + "/api/text-to-speech")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("text", text)
	if p.Voice != "" {
		q.Set("voice", p.Voice)
	}
	u.RawQuery = q.Encode()

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx2, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx2, "GET", u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/wav")

	hc := p.Client
	if hc == nil {
		hc = &http.Client{}
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts http request failed: %w (url=%s)", err, u.String())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tts http %d: %s (url=%s, dur=%s)", resp.StatusCode, string(b), u.String(), time.Since(start))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts read failed: %w", err)
	}
	if len(body) <= wavHeaderSize {
		return nil, fmt.Errorf("tts returned no audio (%d bytes)", len(body))
	}
	return body[wavHeaderSize:], nil
}
