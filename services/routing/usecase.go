package routing

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// UseCase is a caller-declared intent that selects a provider waterfall
type UseCase string

const (
	UseCaseHealthcare    UseCase = "healthcare"
	UseCaseAccessibility UseCase = "accessibility"
	UseCaseGeneral       UseCase = "general"
	UseCaseCostSensitive UseCase = "cost_sensitive"
)

// ErrUnknownUseCase is returned when a use case name is not recognized
var ErrUnknownUseCase = errors.New("unknown use case")

// AllUseCases lists the closed set of use cases in display order
func AllUseCases() []UseCase {
	return []UseCase{UseCaseHealthcare, UseCaseAccessibility, UseCaseGeneral, UseCaseCostSensitive}
}

// Valid reports whether u is one of the known use cases
func (u UseCase) Valid() bool {
	switch u {
	case UseCaseHealthcare, UseCaseAccessibility, UseCaseGeneral, UseCaseCostSensitive:
		return true
	}
	return false
}

func (u UseCase) String() string {
	return string(u)
}

// ParseUseCase accepts names case-insensitively with '-' or '_' separators,
// so "COST-SENSITIVE" and "cost_sensitive" are the same.
func ParseUseCase(s string) (UseCase, error) {
	u := UseCase(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !u.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownUseCase, s)
	}
	return u, nil
}

var explanations = map[UseCase]string{
	UseCaseHealthcare:    "For healthcare queries, we prioritize accurate and reliable models like Gemini and Groq that can provide detailed medical information.",
	UseCaseAccessibility: "For accessibility needs, we use fast models like Groq and Gemini that provide clear, easy-to-understand responses quickly.",
	UseCaseGeneral:       "For general queries, we balance speed and quality using Groq and Ollama for fast, helpful responses.",
	UseCaseCostSensitive: "For cost-sensitive users, we prioritize free local models like Ollama and free tier services.",
}

const defaultExplanation = "General purpose AI assistance."

// Explanation returns the static rationale for a use case
func Explanation(u UseCase) string {
	if e, ok := explanations[u]; ok {
		return e
	}
	return defaultExplanation
}

// Preferences maps each use case to its ordered provider names. Names need
// not be registered; unregistered ones are skipped at dispatch time.
type Preferences map[UseCase][]string

// DefaultPreferences returns a fresh copy of the built-in table
func DefaultPreferences() Preferences {
	return Preferences{
		UseCaseHealthcare:    {"gemini", "groq", "huggingface"},
		UseCaseAccessibility: {"groq", "gemini", "openrouter"},
		UseCaseGeneral:       {"groq", "ollama", "gemini"},
		UseCaseCostSensitive: {"ollama", "groq", "openrouter"},
	}
}

// For returns a copy of the preference list for u
func (p Preferences) For(u UseCase) []string {
	names := p[u]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Clone returns a deep copy
func (p Preferences) Clone() Preferences {
	out := make(Preferences, len(p))
	for u := range p {
		out[u] = p.For(u)
	}
	return out
}

// Validate checks every use case has a non-empty list of non-empty names
func (p Preferences) Validate() error {
	var errs []error

	keys := make([]string, 0, len(p))
	for u := range p {
		keys = append(keys, string(u))
	}
	sort.Strings(keys)

	for _, k := range keys {
		u := UseCase(k)
		if !u.Valid() {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownUseCase, k))
			continue
		}
		if len(p[u]) == 0 {
			errs = append(errs, fmt.Errorf("use case %q: preference list must not be empty", k))
		}
		for i, name := range p[u] {
			if strings.TrimSpace(name) == "" {
				errs = append(errs, fmt.Errorf("use case %q: entry %d is empty", k, i))
			}
		}
	}
	return errors.Join(errs...)
}

type preferencesFile struct {
	UseCases map[string][]string `yaml:"use_cases"`
}

// LoadPreferences reads a YAML override of the form
//
//	use_cases:
//	  healthcare: [gemini, groq]
//
// and merges it over the defaults. Use cases absent from the file keep
// their default lists.
func LoadPreferences(path string) (Preferences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading preferences file %s: %w", path, err)
	}

	var file preferencesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing preferences file %s: %w", path, err)
	}

	overrides := make(Preferences, len(file.UseCases))
	for name, list := range file.UseCases {
		u, err := ParseUseCase(name)
		if err != nil {
			u = UseCase(name)
		}
		overrides[u] = list
	}
	if err := overrides.Validate(); err != nil {
		return nil, fmt.Errorf("invalid preferences file %s: %w", path, err)
	}

	prefs := DefaultPreferences()
	for u, list := range overrides {
		prefs[u] = list
	}
	return prefs, nil
}
