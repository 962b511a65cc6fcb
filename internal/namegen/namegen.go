// Package namegen names generated plan units with an OpenAI chat model. It is
// the default text-generation collaborator of the plan engine and is best
// effort by contract: callers fall back to a deterministic name on any error.
package namegen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/mlahtinen/trainplan/internal/plan"
)

const systemPrompt = `You name strength training sessions. Given the exercises of one session,
respond with a single JSON object, no markdown fences, of the form
{"name": "...", "notes": "..."}.

The name is a short, evocative session title, at most five words.
The notes are one or two sentences of practical coaching guidance for the
session as a whole. Do not reuse any of the words listed as recently used.`

// Namer implements plan.Namer against the OpenAI chat completions API.
type Namer struct {
	client openai.Client
	model  openai.ChatModel
	logger *slog.Logger
}

func New(apiKey string, logger *slog.Logger) *Namer {
	return &Namer{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.ChatModelGPT4o,
		logger: logger,
	}
}

type nameResponse struct {
	Name  string `json:"name"`
	Notes string `json:"notes"`
}

// NameAndNotes asks the model for a session title and coaching notes.
// avoidWords carries recently used name fragments so consecutive sessions do
// not read alike. An empty name from the model is an error, never silently
// accepted.
func (n *Namer) NameAndNotes(ctx context.Context, entries []plan.ExerciseEntry, avoidWords []string) (string, string, error) {
	completion, err := n.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: n.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(entries, avoidWords)),
		},
	})
	if err != nil {
		return "", "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", "", fmt.Errorf("chat completion returned no choices")
	}

	var parsed nameResponse
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if err = json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", "", fmt.Errorf("parse completion %q: %w", truncate(content, 120), err)
	}
	parsed.Name = strings.TrimSpace(parsed.Name)
	if parsed.Name == "" {
		return "", "", fmt.Errorf("completion contained an empty name")
	}

	n.logger.LogAttrs(ctx, slog.LevelDebug, "named session",
		slog.String("name", parsed.Name),
		slog.Int64("total_tokens", completion.Usage.TotalTokens))
	return parsed.Name, strings.TrimSpace(parsed.Notes), nil
}

func buildPrompt(entries []plan.ExerciseEntry, avoidWords []string) string {
	var sb strings.Builder
	sb.WriteString("Exercises in this session:\n")
	for _, entry := range entries {
		fmt.Fprintf(&sb, "- %s (%s, %d sets of %d reps)\n",
			entry.Name, entry.MuscleGroup, entry.Sets, entry.Reps)
	}
	if len(avoidWords) > 0 {
		sb.WriteString("\nRecently used words to avoid in the name: ")
		sb.WriteString(strings.Join(avoidWords, ", "))
		sb.WriteString("\n")
	}
	return sb.String()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
