package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	network "Waternet/internal/calc/network"
	"Waternet/internal/calc/premium/autodesign"
)

var (
	colorWater   = lipgloss.Color("#20B9B4")
	colorBorder  = lipgloss.Color("#16858E")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#2C4A54")
)

var styles = struct {
	Title    lipgloss.Style
	Muted    lipgloss.Style
	Warning  lipgloss.Style
	Critical lipgloss.Style
	Header   lipgloss.Style
	Cell     lipgloss.Style
	Number   lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(colorWater),
	Muted:    lipgloss.NewStyle().Foreground(colorMuted),
	Warning:  lipgloss.NewStyle().Foreground(colorWarning),
	Critical: lipgloss.NewStyle().Bold(true).Foreground(colorError),
	Header:   lipgloss.NewStyle().Bold(true).Foreground(colorWater).Padding(0, 1),
	Cell:     lipgloss.NewStyle().Padding(0, 1),
	Number:   lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right),
}

const (
	iconOK       = "✓"
	iconWarning  = "⚠"
	iconCritical = "✗"
	iconBullet   = "•"
)

// newTable renders the first textCols columns left aligned and the rest as numbers.
func newTable(textCols int, headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styles.Header
			case col < textCols:
				return styles.Cell
			default:
				return styles.Number
			}
		})
}

func f2(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func printResult(out io.Writer, res network.Result) {
	state := styles.Title.Render(iconOK + " " + string(res.Method) + ": converged")
	if !res.Converged {
		state = styles.Critical.Render(iconCritical + " " + string(res.Method) + ": NOT converged")
	}
	fmt.Fprintf(out, "%s %s\n\n", state,
		styles.Muted.Render(fmt.Sprintf("after %d iterations (last change %.3g m)", res.Iterations, res.MaxChange)))

	nodes := newTable(1, "NODE", "ELEV m", "DEMAND L/s", "HGL m", "PRESSURE m")
	for _, n := range res.Nodes {
		id := n.ID
		if n.IsReservoir {
			id += " (R)"
		}
		nodes.Row(id, f2(n.Elevation), f2(n.Demand), f2(n.HGL), f2(n.Pressure))
	}
	fmt.Fprintln(out, nodes.Render())

	pipes := newTable(3, "PIPE", "FROM", "TO", "Q L/s", "v m/s", "hf m")
	for _, p := range res.Pipes {
		pipes.Row(p.ID, p.StartNode, p.EndNode, f2(p.Flow), f2(p.Velocity), strconv.FormatFloat(p.Headloss, 'f', 3, 64))
	}
	fmt.Fprintln(out, pipes.Render())

	printWarnings(out, res.Warnings)
	if len(res.Recommendations) > 0 {
		fmt.Fprintln(out, "\n"+styles.Title.Render("Recommendations"))
		for _, r := range res.Recommendations {
			fmt.Fprintf(out, "%s %s\n", styles.Muted.Render(iconBullet), r.Message)
		}
	}
}

func printWarnings(out io.Writer, warnings []network.Warning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintln(out, "\n"+styles.Title.Render("Warnings"))
	for _, w := range warnings {
		icon, style := iconWarning, styles.Warning
		if w.Severity == network.SeverityCritical {
			icon, style = iconCritical, styles.Critical
		}
		fmt.Fprintf(out, "%s %s\n", style.Render(icon), style.Render(w.Message))
	}
}

func printChanges(out io.Writer, changes []autodesign.Change) {
	t := newTable(1, "PIPE", "ROUND", "FROM mm", "TO mm")
	for _, c := range changes {
		t.Row(c.Pipe, strconv.Itoa(c.Round), strconv.FormatFloat(c.FromMM, 'g', -1, 64), strconv.FormatFloat(c.ToMM, 'g', -1, 64))
	}
	fmt.Fprintln(out, t.Render())
}
