package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultVoice is the prebuilt voice used when a persona names none.
const DefaultVoice = "Orus"

// Persona is the voice and system instruction the session is opened with.
type Persona struct {
	Name         string `yaml:"name"`
	Voice        string `yaml:"voice"`
	LanguageCode string `yaml:"language_code"`
	Instruction  string `yaml:"instruction"`
}

// DefaultPersona is used when no persona file is configured.
func DefaultPersona() *Persona {
	return &Persona{
		Name:  "Companion",
		Voice: DefaultVoice,
		Instruction: "You are a warm, curious voice companion. Speak naturally and " +
			"conversationally, keep answers short enough to be heard rather than read, " +
			"and let the user interrupt you at any time.",
	}
}

// LoadPersona reads the persona at path. An empty path returns the default
// persona.
func LoadPersona(path string) (*Persona, error) {
	if path == "" {
		return DefaultPersona(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("persona: open %q: %w", path, err)
	}
	defer f.Close()

	p, err := LoadPersonaFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("persona: parse %q: %w", path, err)
	}
	return p, nil
}

// LoadPersonaFromReader decodes a YAML persona from r. Unknown keys are
// rejected; a missing voice falls back to DefaultVoice.
func LoadPersonaFromReader(r io.Reader) (*Persona, error) {
	p := &Persona{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("persona: empty document")
		}
		return nil, fmt.Errorf("persona: decode yaml: %w", err)
	}
	if p.Voice == "" {
		p.Voice = DefaultVoice
	}
	if strings.TrimSpace(p.Instruction) == "" {
		return nil, errors.New("persona: instruction must not be empty")
	}
	return p, nil
}
