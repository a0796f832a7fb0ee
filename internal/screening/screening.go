// Package screening flags prompts that try to subvert the model they are
// sent to. It is pattern based and cheap enough to run on every request.
package screening

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Kind classifies a finding
type Kind string

const (
	KindSystemPromptLeak    Kind = "system_prompt_leak"
	KindInstructionOverride Kind = "instruction_override"
	KindRoleManipulation    Kind = "role_manipulation"
	KindJailbreak           Kind = "jailbreak"
	KindDelimiterAttack     Kind = "delimiter_attack"
	KindCodeExecution       Kind = "code_execution"
	KindEncodedPayload      Kind = "encoded_payload"
)

// DefaultThreshold is the confidence at which Guard rejects a prompt
const DefaultThreshold = 0.8

// Finding is one matched span
type Finding struct {
	Kind       Kind    `json:"kind"`
	Confidence float64 `json:"confidence"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
}

type rule struct {
	kind       Kind
	confidence float64
	patterns   []*regexp.Regexp
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// Role play ("pretend to be a pirate") is common in legitimate prompts, so
// it scores below the default threshold on its own.
var rules = []rule{
	{KindSystemPromptLeak, 0.9, compile(
		`(?i)ignore\s+(all\s+)?(the\s+)?(previous|above|prior)\s+(instructions?|prompts?|commands?)`,
		`(?i)(show|reveal|print|repeat)\s+(me\s+)?(your|the)\s+(system|original|initial|hidden|secret)\s+(prompt|instructions?)`,
		`(?i)what\s+(is|are|was|were)\s+(your|the)\s+(system|original|initial)\s+(prompt|instructions?)`,
	)},
	{KindInstructionOverride, 0.9, compile(
		`(?i)disregard\s+(all\s+|any\s+)?(the\s+)?(previous\s+|prior\s+|above\s+)?(instructions?|rules|commands?)`,
		`(?i)override\s+(all|previous|system)\s+(instructions?|rules|settings?)`,
		`(?i)forget\s+(everything|all\s+previous|what\s+you\s+learned)`,
		`(?i)start\s+over\s+with\s+new\s+instructions?`,
	)},
	{KindRoleManipulation, 0.6, compile(
		`(?i)from\s+now\s+on[,]?\s+(you|your)\s+(are|will)`,
		`(?i)assume\s+(the\s+)?(role|identity)\s+of`,
		`(?i)pretend\s+(to\s+)?be\s+(a|an)\b`,
	)},
	{KindJailbreak, 0.95, compile(
		`(?i)\bDAN\s+mode\b`,
		`(?i)\bdeveloper\s+mode\b`,
		`(?i)\bjailbreak`,
		`(?i)without\s+(any|ethical|moral)\s+(restrictions?|limitations?|guidelines?)`,
	)},
	{KindDelimiterAttack, 0.8, compile(
		`\[/?(SYSTEM|USER|ASSISTANT)\]`,
		`<\|(system|user|assistant|end)\|>`,
		`###\s*(SYSTEM|INSTRUCTION)\b`,
	)},
	{KindCodeExecution, 0.85, compile(
		`(?i)(execute|run)\s+(this|the\s+following)\s+(code|script|command)`,
		`(?i)import\s+(os|sys|subprocess|socket)\b`,
		`(?i)send\s+(data|information|content)\s+to\s+https?://`,
	)},
	{KindEncodedPayload, 0.7, compile(
		`(?i)base64\s*[:=]\s*[A-Za-z0-9+/]{20,}={0,2}`,
		`(?:\\x[0-9a-fA-F]{2}){10,}`,
	)},
}

// Scan returns every finding in prompt ordered by position
func Scan(prompt string) []Finding {
	var findings []Finding
	for _, r := range rules {
		for _, p := range r.patterns {
			for _, m := range p.FindAllStringIndex(prompt, -1) {
				findings = append(findings, Finding{Kind: r.kind, Confidence: r.confidence, Start: m[0], End: m[1]})
			}
		}
	}
	sort.SliceStable(findings, func(i, j int) bool { return findings[i].Start < findings[j].Start })
	return findings
}

// RejectedError reports why a prompt was refused
type RejectedError struct {
	Kinds      []Kind
	Confidence float64
}

func (e *RejectedError) Error() string {
	kinds := make([]string, len(e.Kinds))
	for i, k := range e.Kinds {
		kinds[i] = string(k)
	}
	return fmt.Sprintf("flagged as %s (confidence %.2f)", strings.Join(kinds, ", "), e.Confidence)
}

// Guard rejects prompts with a finding at or above its threshold
type Guard struct {
	threshold float64
}

// NewGuard creates a Guard. A threshold outside (0, 1] uses DefaultThreshold.
func NewGuard(threshold float64) *Guard {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Guard{threshold: threshold}
}

// Threshold returns the rejection confidence
func (g *Guard) Threshold() float64 { return g.threshold }

// Check returns a *RejectedError when prompt should not be dispatched
func (g *Guard) Check(prompt string) error {
	var (
		kinds []Kind
		seen  = make(map[Kind]bool)
		top   float64
	)
	for _, f := range Scan(prompt) {
		if f.Confidence < g.threshold {
			continue
		}
		if !seen[f.Kind] {
			seen[f.Kind] = true
			kinds = append(kinds, f.Kind)
		}
		if f.Confidence > top {
			top = f.Confidence
		}
	}
	if len(kinds) == 0 {
		return nil
	}
	return &RejectedError{Kinds: kinds, Confidence: top}
}
