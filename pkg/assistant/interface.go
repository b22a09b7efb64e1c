package assistant

import (
	"context"
)

// Generator is the text-generation collaborator. The turn-taking core treats
// it as an opaque, variable-latency call; what to say is entirely its
// business.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const systemPrompt = "You are Aura, a voice assistant in a live meeting. " +
	"Answer in one or two short spoken sentences. No markdown, no lists."
