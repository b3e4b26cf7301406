package solution

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.0-flash"

// contentGenerator is the slice of *genai.Models the Gemini generator uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini asks a Gemini model for the repair guide.
type Gemini struct {
	models contentGenerator
	model  string
}

// NewGemini creates a Gemini generator backed by the Gemini API.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newGemini(client.Models, model), nil
}

func newGemini(models contentGenerator, model string) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{models: models, model: model}
}

func (g *Gemini) Name() string { return ProviderGemini }

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(geminiSystemPrompt, genai.RoleUser),
	}
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(buildPrompt(req)), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini returned an empty solution")
	}
	return text, nil
}

const geminiSystemPrompt = "You are a patient repair technician. Answer in Markdown with a short " +
	"assessment, a list of required tools, numbered step-by-step instructions, " +
	"preventative maintenance tips and when to call a professional."

func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Help me fix this item.\n\n")
	b.WriteString("Problem description: ")
	b.WriteString(strings.TrimSpace(req.Description))
	b.WriteString("\n")
	if req.ImageURL != "" {
		b.WriteString("Photo of the item: ")
		b.WriteString(req.ImageURL)
		b.WriteString("\n")
	}
	return b.String()
}
