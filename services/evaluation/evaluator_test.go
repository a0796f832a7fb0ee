package evaluation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/llm-router/services/providers"
)

// stubScorer scores only the texts it knows.
type stubScorer map[string]float64

func (s stubScorer) Score(text string) (float64, float64, bool) {
	ease, ok := s[text]
	return ease, 8, ok
}

func TestReadability_Degraded(t *testing.T) {
	ev := NewEvaluator(nil)

	m := ev.Readability("Short. Text.")

	assert.Equal(t, 2, m.WordCount)
	assert.Equal(t, 2, m.SentenceCount)
	assert.True(t, m.Degraded)
	assert.Equal(t, DegradedNote, m.Note)
	assert.Nil(t, m.FleschReadingEase)
	assert.Nil(t, m.FleschKincaidGrade)
	require.NotNil(t, m.AvgWordLength)
	assert.Equal(t, 5.5, *m.AvgWordLength)
}

func TestReadability_DegradedClampsSentences(t *testing.T) {
	m := NewEvaluator(nil).Readability("no terminator here")
	assert.Equal(t, 3, m.WordCount)
	assert.Equal(t, 1, m.SentenceCount)

	empty := NewEvaluator(FleschScorer{}).Readability("")
	assert.True(t, empty.Degraded)
	assert.Equal(t, 0, empty.WordCount)
	assert.Equal(t, 1, empty.SentenceCount)
	assert.Equal(t, 0.0, *empty.AvgWordLength)
}

func TestReadability_ScorerDeclines(t *testing.T) {
	m := NewEvaluator(stubScorer{}).Readability("Anything at all.")
	assert.True(t, m.Degraded)
	assert.Nil(t, m.FleschReadingEase)
}

func TestReadability_Flesch(t *testing.T) {
	m := NewEvaluator(FleschScorer{}).Readability("The cat sat on the mat.")

	require.NotNil(t, m.FleschReadingEase)
	require.NotNil(t, m.FleschKincaidGrade)
	assert.InDelta(t, 116.15, *m.FleschReadingEase, 0.011)
	assert.InDelta(t, -1.45, *m.FleschKincaidGrade, 0.011)
	assert.Equal(t, "Very Easy", m.Interpretation)
	assert.Equal(t, "5th grade", m.GradeHint)
	assert.Equal(t, 6, m.WordCount)
	assert.Equal(t, 1, m.SentenceCount)
	assert.False(t, m.Degraded)
	assert.Nil(t, m.AvgWordLength)
}

func TestReadability_HarderTextScoresLower(t *testing.T) {
	ev := NewEvaluator(FleschScorer{})
	easy := ev.Readability("I like dogs. Dogs like me.")
	hard := ev.Readability("Notwithstanding considerable organizational complexity, implementation necessitates comprehensive evaluation.")

	assert.Greater(t, *easy.FleschReadingEase, *hard.FleschReadingEase)
	assert.Equal(t, "Very Difficult", hard.Interpretation)
}

func TestInterpret(t *testing.T) {
	tests := []struct {
		ease      float64
		wantLabel string
		wantHint  string
	}{
		{100, "Very Easy", "5th grade"},
		{90, "Very Easy", "5th grade"},
		{89.99, "Easy", "6th grade"},
		{80, "Easy", "6th grade"},
		{70, "Fairly Easy", "7th grade"},
		{60, "Standard", "8th-9th grade"},
		{50, "Fairly Difficult", "10th-12th grade"},
		{30, "Difficult", "College"},
		{29.99, "Very Difficult", "College graduate"},
		{-40, "Very Difficult", "College graduate"},
	}

	for _, tt := range tests {
		label, hint := Interpret(tt.ease)
		assert.Equal(t, tt.wantLabel, label, "ease %v", tt.ease)
		assert.Equal(t, tt.wantHint, hint, "ease %v", tt.ease)
	}
}

func TestRateSpeed(t *testing.T) {
	tests := []struct {
		latency time.Duration
		want    SpeedRating
	}{
		{0, SpeedVeryFast},
		{999 * time.Millisecond, SpeedVeryFast},
		{time.Second, SpeedFast},
		{2999 * time.Millisecond, SpeedFast},
		{3 * time.Second, SpeedModerate},
		{5 * time.Second, SpeedSlow},
		{9999 * time.Millisecond, SpeedSlow},
		{10 * time.Second, SpeedVerySlow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RateSpeed(tt.latency), tt.latency.String())
	}
}

func TestCountSyllables(t *testing.T) {
	tests := map[string]int{
		"cat":       1,
		"make":      1,
		"the":       1,
		"table":     2,
		"whale":     1,
		"happy":     2,
		"beautiful": 3,
		"free":      1,
		"Don't":     1,
		"2024":      0,
	}
	for word, want := range tests {
		assert.Equal(t, want, countSyllables(word), word)
	}
}

func TestCountSentences(t *testing.T) {
	assert.Equal(t, 1, countSentences(""))
	assert.Equal(t, 1, countSentences("Hello world"))
	assert.Equal(t, 2, countSentences("Wait... what?!"))
	assert.Equal(t, 3, countSentences("One. Two! Three"))
}

func TestEvaluate(t *testing.T) {
	ev := NewEvaluator(FleschScorer{})

	t.Run("failed outcome", func(t *testing.T) {
		got := ev.Evaluate(providers.Outcome{ModelID: "llama3-8b-8192", Error: "Groq API key not provided"})
		assert.Equal(t, Evaluation{Model: "llama3-8b-8192", Error: "Groq API key not provided"}, got)
	})

	t.Run("successful outcome", func(t *testing.T) {
		tokens := 42
		got := ev.Evaluate(providers.Outcome{
			ModelID:       "gemini-pro",
			Content:       "Héllo there.",
			Latency:       1234 * time.Millisecond,
			TokensUsed:    &tokens,
			EstimatedCost: 0.001,
		})

		assert.True(t, got.Success)
		assert.Equal(t, "gemini-pro", got.Model)
		require.NotNil(t, got.LatencySeconds)
		assert.Equal(t, 1.23, *got.LatencySeconds)
		assert.Equal(t, SpeedFast, got.SpeedRating)
		assert.Equal(t, &tokens, got.TokensUsed)
		assert.Equal(t, 0.001, got.Cost)
		assert.Equal(t, 12, got.ResponseLength)
		require.NotNil(t, got.Readability)
		assert.Equal(t, 2, got.Readability.WordCount)
	})
}

func TestEvaluate_SubMillisecondLatencyIsReported(t *testing.T) {
	got := NewEvaluator(FleschScorer{}).Evaluate(providers.Outcome{
		ModelID: "ollama/llama3",
		Content: "Cached answer.",
		Latency: 300 * time.Microsecond,
	})

	data, err := json.Marshal(got)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	latency, ok := fields["latency"]
	require.True(t, ok, "latency missing from %s", data)
	assert.EqualValues(t, 0, latency)
}

func TestCompare(t *testing.T) {
	ev := NewEvaluator(FleschScorer{})

	t.Run("fastest and most readable", func(t *testing.T) {
		outcomes := map[string]providers.Outcome{
			"a": {ModelID: "a-model", Content: "The cat sat on the mat.", Latency: 200 * time.Millisecond},
			"b": {ModelID: "b-model", Error: "B API key not provided"},
			"c": {ModelID: "c-model", Content: "Notwithstanding considerable organizational complexity, implementation necessitates comprehensive evaluation.", Latency: 2 * time.Second},
		}

		report := ev.Compare([]string{"a", "b", "c"}, outcomes)

		assert.Equal(t, []string{"a", "b", "c"}, report.Order)
		assert.Equal(t, 3, report.TotalModels)
		assert.Equal(t, 2, report.SuccessfulModels)
		require.NotNil(t, report.Fastest)
		assert.Equal(t, "a", report.Fastest.Name)
		assert.Equal(t, 0.2, report.Fastest.LatencySeconds)
		assert.Equal(t, "a", report.MostReadable)
		assert.Empty(t, report.Error)
		assert.False(t, report.Evaluations["b"].Success)
		assert.InDelta(t, 2.0/3.0, report.SuccessRatio(), 1e-9)
	})

	t.Run("first minimum wins ties", func(t *testing.T) {
		outcomes := map[string]providers.Outcome{
			"x": {ModelID: "x", Content: "same", Latency: time.Second},
			"y": {ModelID: "y", Content: "same", Latency: time.Second},
		}
		assert.Equal(t, "y", ev.Compare([]string{"y", "x"}, outcomes).Fastest.Name)
		assert.Equal(t, "x", ev.Compare([]string{"x", "y"}, outcomes).Fastest.Name)
	})

	t.Run("degraded outcomes are excluded from most readable", func(t *testing.T) {
		scored := NewEvaluator(stubScorer{"hard text": 10})
		outcomes := map[string]providers.Outcome{
			"unscored": {ModelID: "u", Content: "easy text", Latency: time.Millisecond},
			"scored":   {ModelID: "s", Content: "hard text", Latency: time.Second},
		}

		report := scored.Compare([]string{"unscored", "scored"}, outcomes)

		assert.Equal(t, "scored", report.MostReadable)
		assert.Equal(t, "unscored", report.Fastest.Name)
		assert.True(t, report.Evaluations["unscored"].Readability.Degraded)
	})

	t.Run("no scores means no most readable", func(t *testing.T) {
		report := NewEvaluator(nil).Compare([]string{"a"}, map[string]providers.Outcome{
			"a": {ModelID: "a", Content: "hello"},
		})
		assert.Empty(t, report.MostReadable)
		assert.Equal(t, 1, report.SuccessfulModels)
	})

	t.Run("all failed", func(t *testing.T) {
		report := ev.Compare([]string{"a", "b"}, map[string]providers.Outcome{
			"a": {ModelID: "a", Error: "down"},
			"b": {ModelID: "b", Error: "down"},
		})
		assert.Equal(t, 0, report.SuccessfulModels)
		assert.Equal(t, 2, report.TotalModels)
		assert.Equal(t, ErrAllFailed, report.Error)
		assert.Nil(t, report.Fastest)
		assert.Empty(t, report.MostReadable)
	})

	t.Run("unlisted names follow in lexical order", func(t *testing.T) {
		report := ev.Compare([]string{"b", "ghost"}, map[string]providers.Outcome{
			"d": {ModelID: "d", Content: "x"},
			"b": {ModelID: "b", Content: "x"},
			"a": {ModelID: "a", Content: "x"},
		})
		assert.Equal(t, []string{"b", "a", "d"}, report.Order)
		assert.Equal(t, 3, report.TotalModels)
	})
}

func TestComparisonReport_JSON(t *testing.T) {
	report := NewEvaluator(nil).Compare(nil, map[string]providers.Outcome{
		"a": {ModelID: "a", Error: "down"},
	})

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"order": ["a"],
		"evaluations": {"a": {"model": "a", "success": false, "error": "down", "cost": 0}},
		"total_models": 1,
		"successful_models": 0,
		"error": "All providers failed"
	}`, string(data))
}
