package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/upb/llm-router/services/evaluation"
	"github.com/upb/llm-router/services/inference"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func writeBest(w io.Writer, res *inference.BestResult) error {
	tw := newTable(w)
	provider := res.Provider
	if provider == "" {
		provider = "-"
	}
	fmt.Fprintf(tw, "use case:\t%s\n", res.UseCase)
	fmt.Fprintf(tw, "provider:\t%s\n", provider)
	fmt.Fprintf(tw, "model:\t%s\n", res.Outcome.ModelID)
	fmt.Fprintf(tw, "latency:\t%s\n", formatLatency(res.Outcome.Latency))
	fmt.Fprintf(tw, "tokens:\t%s\n", formatTokens(res.Outcome.TokensUsed))
	if res.Evaluation.SpeedRating != "" {
		fmt.Fprintf(tw, "speed:\t%s\n", res.Evaluation.SpeedRating)
	}
	if r := res.Evaluation.Readability; r != nil {
		fmt.Fprintf(tw, "readability:\t%s\n", formatReadability(r))
	}
	if res.Cached {
		fmt.Fprintf(tw, "cached:\tyes\n")
	}
	if len(res.Attempts) > 1 {
		tried := make([]string, 0, len(res.Attempts))
		for _, a := range res.Attempts {
			tried = append(tried, a.Provider)
		}
		fmt.Fprintf(tw, "attempts:\t%s\n", strings.Join(tried, " -> "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if res.Outcome.Success() {
		_, err := fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(res.Outcome.Content))
		return err
	}
	return nil
}

func writeCompare(w io.Writer, res *inference.CompareResult) error {
	report := res.Report

	tw := newTable(w)
	fmt.Fprintln(tw, "PROVIDER\tMODEL\tSTATUS\tLATENCY\tSPEED\tREADABILITY")
	for _, name := range report.Order {
		out := res.Outcomes[name]
		ev := report.Evaluations[name]

		status := "ok"
		speed, readability := "-", "-"
		if !out.Success() {
			status = "failed"
		} else {
			speed = string(ev.SpeedRating)
			if ev.Readability != nil {
				readability = formatReadability(ev.Readability)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			name, out.ModelID, status, formatLatency(out.Latency), speed, readability)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nsuccessful: %d/%d\n", report.SuccessfulModels, report.TotalModels)
	if report.Fastest != nil {
		fmt.Fprintf(w, "fastest: %s (%.2fs)\n", report.Fastest.Name, report.Fastest.LatencySeconds)
	}
	if report.MostReadable != "" {
		fmt.Fprintf(w, "most readable: %s\n", report.MostReadable)
	}

	for _, name := range report.Order {
		out := res.Outcomes[name]
		if out.Success() {
			fmt.Fprintf(w, "\n--- %s ---\n%s\n", name, strings.TrimSpace(out.Content))
			continue
		}
		fmt.Fprintf(w, "\n--- %s (failed) ---\n%s\n", name, out.Error)
	}
	return nil
}

func writeProviders(w io.Writer, infos []inference.ProviderInfo) error {
	if len(infos) == 0 {
		_, err := fmt.Fprintln(w, "no providers registered")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tMODEL")
	for _, p := range infos {
		fmt.Fprintf(tw, "%s\t%s\n", p.Name, p.ModelID)
	}
	return tw.Flush()
}

// writeUseCase prints the explanation and the waterfall, marking
// preferred providers that are not registered.
func writeUseCase(w io.Writer, info inference.UseCaseInfo, registered []string) error {
	fmt.Fprintf(w, "%s\n\n%s\n\npreference order:\n", info.Name, info.Explanation)

	known := make(map[string]bool, len(registered))
	for _, name := range registered {
		known[name] = true
	}

	tw := newTable(w)
	for i, name := range info.Preferences {
		state := "registered"
		if !known[name] {
			state = "not registered, skipped"
		}
		fmt.Fprintf(tw, "  %d.\t%s\t%s\n", i+1, name, state)
	}
	return tw.Flush()
}

func formatLatency(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func formatTokens(tokens *int) string {
	if tokens == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *tokens)
}

func formatReadability(r *evaluation.ReadabilityMetrics) string {
	if r.FleschReadingEase == nil {
		return fmt.Sprintf("%d words (%s)", r.WordCount, r.Note)
	}
	return fmt.Sprintf("%.1f %s", *r.FleschReadingEase, r.Interpretation)
}
