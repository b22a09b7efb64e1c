package assistant

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/auralabs/aura-core/internal/config"
)

type openAIGenerator struct {
	client openai.Client
	model  string
}

// NewOpenAI builds the hosted generation provider.
func NewOpenAI(keys config.AssistantKeysObj) Generator {
	model := keys.Model
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	return openAIGenerator{
		client: openai.NewClient(option.WithAPIKey(keys.OpenAiApiKey)),
		model:  model,
	}
}

func (o openAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	chatCompletion, err := o.client.Chat.Completions.New(
		ctx,
		openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemPrompt),
				openai.UserMessage(prompt),
			},
			Model: o.model,
		},
	)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	if len(chatCompletion.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return chatCompletion.Choices[0].Message.Content, nil
}
