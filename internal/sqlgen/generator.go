// Package sqlgen turns natural-language prompts into SQL statements.
package sqlgen

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"sqltalk/internal/logging"
)

// Generator produces one SQL statement for a prompt against a described
// schema.
type Generator interface {
	GenerateSQL(ctx context.Context, prompt, schema string) (string, error)
}

const systemInstruction = `You are a SQL assistant for a SQLite database.
Given a question and the database schema, respond with exactly one SQL
SELECT statement and nothing else. No explanation, no markdown fences.
Never modify data.`

// GenAIGenerator generates SQL using Google's Gemini API.
type GenAIGenerator struct {
	client *genai.Client
	model  string
}

// NewGenAIGenerator creates a generator. model defaults to a small fast
// Gemini model when empty.
func NewGenAIGenerator(apiKey, model string) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIGenerator{
		client: client,
		model:  model,
	}, nil
}

// GenerateSQL asks the model for a single statement and normalizes the
// response.
func (g *GenAIGenerator) GenerateSQL(ctx context.Context, prompt, schema string) (string, error) {
	t := logging.StartTimer(logging.CategorySQLGen, "generate")
	defer t.Stop()

	result, err := g.client.Models.GenerateContent(ctx,
		g.model,
		genai.Text(BuildPrompt(prompt, schema)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
			Temperature:       genai.Ptr[float32](0.1),
		},
	)
	if err != nil {
		return "", fmt.Errorf("GenAI generation failed: %w", err)
	}

	sqlText := CleanSQL(result.Text())
	if sqlText == "" {
		return "", fmt.Errorf("model returned no SQL")
	}
	logging.Get(logging.CategorySQLGen).Debug("Generated: %s", sqlText)
	return sqlText, nil
}

// BuildPrompt assembles the user-visible part of the generation request.
// Deterministic so it can be asserted in tests without a network call.
func BuildPrompt(prompt, schema string) string {
	var b strings.Builder
	if schema != "" {
		b.WriteString("Database schema:\n")
		b.WriteString(schema)
		b.WriteString("\n\n")
	}
	b.WriteString(prompt)
	return b.String()
}

// CleanSQL strips markdown fencing and surrounding noise from a model
// response, returning the bare statement.
func CleanSQL(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```sql")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ";")
	return strings.TrimSpace(s)
}
