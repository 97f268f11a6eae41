package llm

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

const (
	correctSystemFile = "correct_system.tmpl"
	correctUserFile   = "correct_user.tmpl"
	splitSystemFile   = "split_system.tmpl"
	splitUserFile     = "split_user.tmpl"
)

// Prompts holds the templates for correction and splitting calls.
type Prompts struct {
	tmpl map[string]*template.Template
}

// PromptData is the input of every prompt template.
type PromptData struct {
	Language   string // English language name
	Budget     int
	Unit       string // what Budget counts: characters or tokens
	Audience   string // consumer of split pieces, e.g. "a speech engine"
	Structured bool
	Content    string
	Context    string // trailing text of the previous chunk, may be empty
}

// LoadPrompts parses the built-in templates. Files of the same name in
// overrideDir replace them.
func LoadPrompts(overrideDir string) (*Prompts, error) {
	p := &Prompts{tmpl: make(map[string]*template.Template)}
	for _, name := range []string{correctSystemFile, correctUserFile, splitSystemFile, splitUserFile} {
		src, err := readPrompt(overrideDir, name)
		if err != nil {
			return nil, err
		}
		t, err := template.New(name).Option("missingkey=error").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse prompt %s: %w", name, err)
		}
		p.tmpl[name] = t
	}
	return p, nil
}

func readPrompt(overrideDir, name string) (string, error) {
	if overrideDir != "" {
		data, err := os.ReadFile(filepath.Join(overrideDir, name))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read prompt override: %w", err)
		}
	}
	data, err := promptFS.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("read prompt %s: %w", name, err)
	}
	return string(data), nil
}

func (p *Prompts) render(name string, data PromptData) (string, error) {
	var sb strings.Builder
	if err := p.tmpl[name].Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// Correction renders the system and user prompts of a correction call.
func (p *Prompts) Correction(data PromptData) (system, user string, err error) {
	if system, err = p.render(correctSystemFile, data); err != nil {
		return "", "", err
	}
	if user, err = p.render(correctUserFile, data); err != nil {
		return "", "", err
	}
	return system, user, nil
}

// Split renders the system and user prompts of a split call.
func (p *Prompts) Split(data PromptData) (system, user string, err error) {
	if system, err = p.render(splitSystemFile, data); err != nil {
		return "", "", err
	}
	if user, err = p.render(splitUserFile, data); err != nil {
		return "", "", err
	}
	return system, user, nil
}
