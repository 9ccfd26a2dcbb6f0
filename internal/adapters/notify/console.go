package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/sgmartin/ltdbot/internal/domain"
	"github.com/sgmartin/ltdbot/internal/ports"
)

// Console implements ports.Notifier on stdout.
type Console struct {
	out   io.Writer
	paper bool
}

// NewConsole creates a notifier that writes to stdout.
func NewConsole(paper bool) *Console {
	return &Console{out: os.Stdout, paper: paper}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer, paper bool) *Console {
	return &Console{out: w, paper: paper}
}

// Heartbeat prints a one-line liveness summary.
func (c *Console) Heartbeat(_ context.Context, hb ports.Heartbeat) error {
	mode := "LIVE"
	if c.paper {
		mode = "PAPER"
	}
	_, err := fmt.Fprintf(c.out, "[%s][%s] tick %d | %d matches | %d in-play | %d assigned\n",
		time.Now().Format("15:04:05"), mode, hb.Tick, hb.Total, hb.InPlay, hb.Assigned)
	return err
}

// PrintArchiveReport renders the archive as a table with a PnL summary.
func (c *Console) PrintArchiveReport(matches []domain.MatchRecord) {
	if len(matches) == 0 {
		fmt.Fprintln(c.out, "\n  Archive is empty. Nothing settled yet.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Kickoff", "Match", "Comp", "FT", "Result", "SP(D)", "Strategy", "E1", "E2", "PnL")

	var total float64
	traded, settled, wins, losses := 0, 0, 0, 0
	for i := range matches {
		m := &matches[i]

		kickoff := "-"
		if m.Kickoff != nil {
			kickoff = m.Kickoff.Format("01-02 15:04")
		}
		table.Append(
			kickoff,
			truncate(m.EventName, 30),
			truncate(m.Comp, 20),
			orDash(m.FTScore),
			resultLabel(m.Result),
			floatLabel(m.DSP),
			orDash(m.Strategy),
			entryLabel(m.Order.Entry1),
			entryLabel(m.Order.Entry2),
			pnlLabel(m.PnL),
		)

		if m.Order.EntriesPlaced() > 0 {
			traded++
		}
		if m.PnL == nil {
			continue
		}
		settled++
		total += *m.PnL
		switch {
		case *m.PnL > 0:
			wins++
		case *m.PnL < 0:
			losses++
		}
	}
	table.Render()

	fmt.Fprintf(c.out, "\n  Archived: %d | traded: %d | settled with PnL: %d | wins: %d | losses: %d\n",
		len(matches), traded, settled, wins, losses)
	fmt.Fprintf(c.out, "  Total PnL: %+.2f\n\n", total)
}

func resultLabel(r *int) string {
	if r == nil {
		return "-"
	}
	if *r == domain.ResultDraw {
		return "DRAW"
	}
	return "DECISIVE"
}

func entryLabel(e *domain.Entry) string {
	if e == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f@%.2f %s", e.Matched, e.Price, truncate(e.Status, 14))
}

func pnlLabel(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%+.2f", *p)
}

func floatLabel(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *f)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
