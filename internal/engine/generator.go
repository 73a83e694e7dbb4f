package engine

import "context"

// Generator turns one rendered prompt into one completion using a fixed
// model and temperature.
type Generator struct {
	engine      Engine
	model       string
	temperature float32
}

// NewGenerator binds e to a model and temperature.
func NewGenerator(e Engine, model string, temperature float32) *Generator {
	return &Generator{engine: e, model: model, temperature: temperature}
}

// Generate sends prompt as a single user message.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.engine.Chat(ctx, g.model, []Message{{Role: RoleUser, Content: prompt}}, Options{Temperature: g.temperature})
}

// GenerateJSON is Generate with a JSON-object reply requested.
func (g *Generator) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return g.engine.Chat(ctx, g.model, []Message{{Role: RoleUser, Content: prompt}}, Options{Temperature: g.temperature, JSON: true})
}

// Converse sends a full message history.
func (g *Generator) Converse(ctx context.Context, messages []Message) (string, error) {
	return g.engine.Chat(ctx, g.model, messages, Options{Temperature: g.temperature})
}

// Model returns the bound model name.
func (g *Generator) Model() string {
	return g.model
}
