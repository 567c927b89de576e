// internal/rag/prompt.go
package rag

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"
)

const (
	// HistoryPlaceholder stands in for the conversation history on a first request.
	HistoryPlaceholder = "Début de la conversation."

	// DefaultTask is the instruction used when the user asked no follow-up question.
	DefaultTask = "Fournis une première analyse détaillée. Pour CHAQUE phénomène rapporté, identifie l'entité la plus probable à son origine en te basant sur les extraits du guide, et explique sa motivation probable en une phrase courte. Termine par une synthèse globale sur la nature de l'activité en 2 ou 3 phrases."

	questionTask = "Réponds à la question suivante de l'utilisateur en t'appuyant sur les extraits du guide, l'historique et ses données : \"%s\""

	// OutputFormat is the output directive appended to every prompt.
	OutputFormat = "Rédige ta réponse dans un format HTML simple : un titre <h4> pour chaque partie, des paragraphes <p> et des listes <ul>/<li>. N'utilise jamais de markdown."
)

//go:embed prompts/analysis.tmpl
var promptFS embed.FS

// PromptData is the view passed to the analysis template.
type PromptData struct {
	Context     string
	History     string
	SummaryJSON string
	Task        string
	Format      string
}

// PromptBuilder renders the analysis prompt. Rendering is a pure function of its inputs.
type PromptBuilder struct {
	tmpl *template.Template
}

// NewPromptBuilder parses the template at path, or the embedded default when path is empty.
func NewPromptBuilder(path string) (*PromptBuilder, error) {
	var (
		src []byte
		err error
	)
	if path == "" {
		src, err = promptFS.ReadFile("prompts/analysis.tmpl")
	} else {
		src, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt template: %w", err)
	}

	tmpl, err := template.New("analysis").Option("missingkey=error").Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}
	return &PromptBuilder{tmpl: tmpl}, nil
}

// MustDefaultPromptBuilder returns the builder for the embedded template.
func MustDefaultPromptBuilder() *PromptBuilder {
	b, err := NewPromptBuilder("")
	if err != nil {
		panic(err)
	}
	return b
}

// Build assembles the prompt for the input and an already formatted context block.
func (b *PromptBuilder) Build(in AnalysisInput, contextBlock string) (string, error) {
	summary, err := indentJSON(in.SummaryData)
	if err != nil {
		return "", fmt.Errorf("failed to serialize summary data: %w", err)
	}
	history, err := renderHistory(in.ConversationHistory)
	if err != nil {
		return "", fmt.Errorf("failed to serialize conversation history: %w", err)
	}

	data := PromptData{
		Context:     contextBlock,
		History:     history,
		SummaryJSON: summary,
		Task:        TaskInstruction(in.UserQuestion),
		Format:      OutputFormat,
	}

	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// TaskInstruction embeds the literal question, or returns DefaultTask.
func TaskInstruction(question string) string {
	if q := strings.TrimSpace(question); q != "" {
		return fmt.Sprintf(questionTask, q)
	}
	return DefaultTask
}

func renderHistory(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return HistoryPlaceholder, nil
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		if strings.TrimSpace(text) == "" {
			return HistoryPlaceholder, nil
		}
		return text, nil
	}

	var turns []json.RawMessage
	if err := json.Unmarshal(trimmed, &turns); err == nil && len(turns) == 0 {
		return HistoryPlaceholder, nil
	}
	return indentJSON(json.RawMessage(trimmed))
}

// indentJSON renders v as two-space indented JSON without HTML escaping.
func indentJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
