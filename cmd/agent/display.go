package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fortuna/aurora/internal/service"
	"github.com/fortuna/aurora/internal/store"
)

func printCollect(out io.Writer, date string, teams, today, history int, failed []string) {
	fmt.Fprintf(out, "Collection for %s\n", date)
	fmt.Fprintf(out, "  teams enriched:   %d\n", teams)
	fmt.Fprintf(out, "  today's games:    %d\n", today)
	fmt.Fprintf(out, "  history games:    %d\n", history)
	if len(failed) > 0 {
		fmt.Fprintf(out, "  failed dates:     %s\n", strings.Join(failed, ", "))
	}
}

func printBatch(out io.Writer, result *service.BatchResult) {
	fmt.Fprintf(out, "Predictions for %s: %d new, %d skipped, %d failed\n",
		result.Date, result.Predicted, result.Skipped, result.Failed)
	for _, p := range result.Predictions {
		fmt.Fprintf(out, "  game %d -> team %d (%.3f, %s)\n",
			p.GameID, p.PredictedWinnerID, p.Confidence, service.ConfidenceLevel(p.Confidence))
	}
}

func printEvaluation(out io.Writer, summary *service.EvaluationSummary) {
	fmt.Fprintf(out, "Evaluated %d predictions: %d correct, %d wrong (%.1f%%)",
		summary.Evaluated, summary.Correct, summary.Wrong, summary.Accuracy)
	if summary.Unresolved > 0 {
		fmt.Fprintf(out, ", %d unresolved", summary.Unresolved)
	}
	fmt.Fprintln(out)
}

func printReport(out io.Writer, report *service.ConfidenceReport) {
	if report.Total == 0 {
		fmt.Fprintln(out, "No evaluated predictions yet")
		return
	}
	fmt.Fprintf(out, "Overall: %d/%d correct (%.1f%%)\n", report.Correct, report.Total, report.Accuracy)
	for _, bucket := range report.Buckets {
		fmt.Fprintf(out, "  %-6s %3d/%-3d %5.1f%%\n", bucket.Level, bucket.Correct, bucket.Total, bucket.Accuracy)
	}
}

func printGames(out io.Writer, date string, games []*service.GameSummary) {
	if len(games) == 0 {
		fmt.Fprintf(out, "No games on %s\n", date)
		return
	}
	fmt.Fprintf(out, "Games on %s\n", date)
	for _, g := range games {
		fmt.Fprintf(out, "  %s\n", matchupLine(g))
	}
}

// matchupLine renders "AWY @ HOM" plus score and state
func matchupLine(g *service.GameSummary) string {
	away, home := g.AwayTeam.Abbreviation, g.HomeTeam.Abbreviation
	line := fmt.Sprintf("%s @ %s", away, home)

	if g.Game.HomeScore.Valid && g.Game.AwayScore.Valid {
		line = fmt.Sprintf("%s %d @ %s %d", away, g.Game.AwayScore.Int32, home, g.Game.HomeScore.Int32)
	}

	state := string(g.Game.State)
	if g.Game.State == store.StateFinal && store.WinType(g.Game.WinType.String).Extended() {
		if g.Game.WinType.String == string(store.WinOvertime) {
			state += "/OT"
		} else {
			state += "/SO"
		}
	}
	line += " [" + state + "]"

	if g.Prediction != nil {
		pick := home
		if g.Prediction.PredictedWinnerID == g.Game.AwayTeamID {
			pick = away
		}
		line += fmt.Sprintf(" pick %s (%.3f)", pick, g.Prediction.Confidence)
		if g.Prediction.Correct.Valid {
			if g.Prediction.Correct.Bool {
				line += " ✓"
			} else {
				line += " ✗"
			}
		}
	}
	return line
}
