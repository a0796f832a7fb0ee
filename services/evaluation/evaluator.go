package evaluation

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/upb/llm-router/services/providers"
)

// SpeedRating buckets an outcome's latency.
type SpeedRating string

const (
	SpeedVeryFast SpeedRating = "Very Fast"
	SpeedFast     SpeedRating = "Fast"
	SpeedModerate SpeedRating = "Moderate"
	SpeedSlow     SpeedRating = "Slow"
	SpeedVerySlow SpeedRating = "Very Slow"
)

// ErrAllFailed is the report error when no outcome succeeded.
const ErrAllFailed = "All providers failed"

// DegradedNote marks readability computed without a scorer.
const DegradedNote = "basic metrics (scoring unavailable)"

// ReadabilityMetrics describes how hard a text is to read. Degraded
// metrics carry AvgWordLength instead of the two scores.
type ReadabilityMetrics struct {
	FleschReadingEase  *float64 `json:"flesch_reading_ease,omitempty"`
	FleschKincaidGrade *float64 `json:"flesch_kincaid_grade,omitempty"`
	Interpretation     string   `json:"interpretation,omitempty"`
	GradeHint          string   `json:"grade_hint,omitempty"`
	WordCount          int      `json:"word_count"`
	SentenceCount      int      `json:"sentence_count"`
	AvgWordLength      *float64 `json:"avg_word_length,omitempty"`
	Degraded           bool     `json:"degraded,omitempty"`
	Note               string   `json:"note,omitempty"`
}

// Evaluation is the per-outcome record. Failed outcomes fill only
// Model, Success and Error; successful ones always carry a latency, even
// when it rounds to zero.
type Evaluation struct {
	Model          string              `json:"model"`
	Success        bool                `json:"success"`
	Error          string              `json:"error,omitempty"`
	LatencySeconds *float64            `json:"latency,omitempty"`
	SpeedRating    SpeedRating         `json:"speed_rating,omitempty"`
	TokensUsed     *int                `json:"tokens_used,omitempty"`
	Cost           float64             `json:"cost"`
	Readability    *ReadabilityMetrics `json:"readability,omitempty"`
	ResponseLength int                 `json:"response_length,omitempty"`
}

// Fastest names the quickest successful outcome.
type Fastest struct {
	Name           string  `json:"name"`
	LatencySeconds float64 `json:"latency"`
}

// ComparisonReport aggregates evaluations over a named outcome set.
type ComparisonReport struct {
	Order            []string              `json:"order"`
	Evaluations      map[string]Evaluation `json:"evaluations"`
	TotalModels      int                   `json:"total_models"`
	SuccessfulModels int                   `json:"successful_models"`
	Fastest          *Fastest              `json:"fastest,omitempty"`
	MostReadable     string                `json:"most_readable_model,omitempty"`
	Error            string                `json:"error,omitempty"`
}

// SuccessRatio returns successful/total, or 0 for an empty report.
func (r ComparisonReport) SuccessRatio() float64 {
	if r.TotalModels == 0 {
		return 0
	}
	return float64(r.SuccessfulModels) / float64(r.TotalModels)
}

// Evaluator scores outcomes. A nil scorer yields degraded readability.
type Evaluator struct {
	scorer Scorer
}

// NewEvaluator creates a new evaluator
func NewEvaluator(scorer Scorer) *Evaluator {
	return &Evaluator{scorer: scorer}
}

// Readability returns full metrics when the scorer can score text and
// degraded metrics otherwise.
func (e *Evaluator) Readability(text string) ReadabilityMetrics {
	words := strings.Fields(text)

	if e.scorer != nil {
		if ease, grade, ok := e.scorer.Score(text); ok {
			ease, grade = round2(ease), round2(grade)
			label, hint := Interpret(ease)
			return ReadabilityMetrics{
				FleschReadingEase:  &ease,
				FleschKincaidGrade: &grade,
				Interpretation:     label,
				GradeHint:          hint,
				WordCount:          len(words),
				SentenceCount:      countSentences(text),
			}
		}
	}

	letters := 0
	for _, w := range words {
		letters += utf8.RuneCountInString(w)
	}
	avg := round2(float64(letters) / float64(max(len(words), 1)))
	return ReadabilityMetrics{
		WordCount:     len(words),
		SentenceCount: countTerminators(text),
		AvgWordLength: &avg,
		Degraded:      true,
		Note:          DegradedNote,
	}
}

// Interpret maps a reading-ease score to its label and school-grade hint.
func Interpret(ease float64) (label, gradeHint string) {
	switch {
	case ease >= 90:
		return "Very Easy", "5th grade"
	case ease >= 80:
		return "Easy", "6th grade"
	case ease >= 70:
		return "Fairly Easy", "7th grade"
	case ease >= 60:
		return "Standard", "8th-9th grade"
	case ease >= 50:
		return "Fairly Difficult", "10th-12th grade"
	case ease >= 30:
		return "Difficult", "College"
	default:
		return "Very Difficult", "College graduate"
	}
}

// RateSpeed buckets a latency.
func RateSpeed(latency time.Duration) SpeedRating {
	switch {
	case latency < time.Second:
		return SpeedVeryFast
	case latency < 3*time.Second:
		return SpeedFast
	case latency < 5*time.Second:
		return SpeedModerate
	case latency < 10*time.Second:
		return SpeedSlow
	default:
		return SpeedVerySlow
	}
}

// Evaluate builds the evaluation record for one outcome.
func (e *Evaluator) Evaluate(out providers.Outcome) Evaluation {
	if !out.Success() {
		return Evaluation{Model: out.ModelID, Error: out.Error}
	}

	readability := e.Readability(out.Content)
	latency := round2(out.Latency.Seconds())
	return Evaluation{
		Model:          out.ModelID,
		Success:        true,
		LatencySeconds: &latency,
		SpeedRating:    RateSpeed(out.Latency),
		TokensUsed:     out.TokensUsed,
		Cost:           out.EstimatedCost,
		Readability:    &readability,
		ResponseLength: utf8.RuneCountInString(out.Content),
	}
}

// Compare evaluates every outcome and ranks the successful ones. Ties go
// to the name that comes first in names; outcomes absent from names are
// visited afterwards in lexical order.
func (e *Evaluator) Compare(names []string, outcomes map[string]providers.Outcome) ComparisonReport {
	order := iterationOrder(names, outcomes)
	report := ComparisonReport{
		Order:       order,
		Evaluations: make(map[string]Evaluation, len(order)),
		TotalModels: len(order),
	}

	var (
		fastestName    string
		fastestLatency time.Duration
		bestEase       float64
	)
	for _, name := range order {
		out := outcomes[name]
		ev := e.Evaluate(out)
		report.Evaluations[name] = ev
		if !ev.Success {
			continue
		}

		report.SuccessfulModels++
		if fastestName == "" || out.Latency < fastestLatency {
			fastestName, fastestLatency = name, out.Latency
		}
		if score := ev.Readability.FleschReadingEase; score != nil {
			if report.MostReadable == "" || *score > bestEase {
				report.MostReadable, bestEase = name, *score
			}
		}
	}

	if report.SuccessfulModels == 0 {
		report.Error = ErrAllFailed
		return report
	}
	report.Fastest = &Fastest{Name: fastestName, LatencySeconds: round2(fastestLatency.Seconds())}
	return report
}

func iterationOrder(names []string, outcomes map[string]providers.Outcome) []string {
	order := make([]string, 0, len(outcomes))
	seen := make(map[string]bool, len(outcomes))
	for _, n := range names {
		if _, ok := outcomes[n]; ok && !seen[n] {
			seen[n] = true
			order = append(order, n)
		}
	}

	var rest []string
	for n := range outcomes {
		if !seen[n] {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
