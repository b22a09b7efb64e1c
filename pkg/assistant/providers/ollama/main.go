package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/presbrey/ollamafarm"

	"github.com/auralabs/aura-core/internal/config"
	"github.com/auralabs/aura-core/pkg/logger"
)

// Provider generates responses from a farm of self-hosted Ollama servers.
// It picks the first server that's online per request.
type Provider struct {
	farm  *ollamafarm.Farm
	model string
	log   *logger.Logger
}

func New(cfg config.OllamaConfig, log *logger.Logger) *Provider {
	farm := ollamafarm.New()
	for _, modelSrv := range cfg.LLamaModels {
		if err := farm.RegisterURL(modelSrv.Url, nil); err != nil {
			log.Warnf("ollama server registration failed: %v", err)
		}
	}
	return &Provider{farm: farm, model: cfg.Model, log: log}
}

func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	ollama := p.farm.First(&ollamafarm.Where{Offline: false})
	if ollama == nil {
		return "", fmt.Errorf("no ollama server online for model %s", p.model)
	}

	stream := false
	req := api.ChatRequest{
		Model:  p.model,
		Stream: &stream,
		Messages: []api.Message{
			{Role: "system", Content: "You are Aura, a voice assistant in a live meeting. Answer in one or two short spoken sentences."},
			{Role: "user", Content: prompt},
		},
	}

	var sb strings.Builder
	err := ollama.Client().Chat(ctx, &req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	return sb.String(), nil
}
