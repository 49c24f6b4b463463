package verifier

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderReport prints the verification results as a table.
func renderReport(out io.Writer, results []Result) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Check", "Tier", "Status", "Details"})

	for _, result := range results {
		tw.AppendRow(table.Row{
			result.Name,
			tierLabel(result.Required),
			statusLabel(result),
			result.Details,
		})
	}

	tw.Render()
}

func tierLabel(required bool) string {
	if required {
		return "required"
	}

	return "optional"
}

// statusLabel colors the outcome: failures of optional checks render as
// warnings, matching the installer's advisory tier.
func statusLabel(result Result) string {
	switch {
	case result.OK:
		return text.FgGreen.Sprint("OK")
	case result.Required:
		return text.FgRed.Sprint("FAIL")
	default:
		return text.FgYellow.Sprint("WARN")
	}
}
