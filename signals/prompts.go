package signals

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed prompts/*.txt
var promptFS embed.FS

const systemPrompt = "You are an email triage assistant. You detect cues that make a message time-critical, such as blocked work, escalations and imminent deadlines. You never invent signals that the text does not support."

var urgencyPrompt string
var urgencyPromptError error

func init() {
	// Load urgency prompt during package initialization
	promptBytes, err := promptFS.ReadFile("prompts/urgency_prompt.txt")
	if err != nil {
		urgencyPromptError = fmt.Errorf("failed to load urgency prompt: %w", err)
		return
	}
	urgencyPrompt = string(promptBytes)
}

type promptData struct {
	Subject     string
	Body        string
	SignalTypes []string
}

func parsePrompt(text string) (*template.Template, error) {
	if text == "" {
		if urgencyPromptError != nil {
			return nil, urgencyPromptError
		}
		text = urgencyPrompt
	}
	return template.New("prompt").Funcs(template.FuncMap{"join": strings.Join}).Parse(text)
}

func renderPrompt(tmpl *template.Template, data promptData) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return sb.String(), nil
}
