package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kpumuk/langforge/internal/diagnostic"
)

type diagnosticReport struct {
	Severity string `json:"severity"`
	Source   string `json:"source"`
	Code     string `json:"code,omitempty"`
	Offset   int    `json:"offset"`
	Length   int    `json:"length"`
	Message  string `json:"message"`
}

func severityName(s diagnostic.Severity) string {
	if s == diagnostic.SeverityWarning {
		return "warning"
	}
	return "error"
}

func writeDiagnostics(w io.Writer, format reportFormat, diags []diagnostic.Diagnostic) error {
	switch format {
	case reportFormatJSON:
		out := make([]diagnosticReport, 0, len(diags))
		for _, d := range diags {
			out = append(out, diagnosticReport{
				Severity: severityName(d.Severity),
				Source:   string(d.Source),
				Code:     string(d.Code),
				Offset:   int(d.Offset),
				Length:   d.Length,
				Message:  d.Message,
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	default:
		for _, d := range diags {
			if _, err := fmt.Fprintf(w, "%s [%s]: %s (offset %d, length %d)\n",
				severityName(d.Severity), d.Source, d.Message, d.Offset, d.Length); err != nil {
				return err
			}
		}
		return nil
	}
}

func hasError(diags []diagnostic.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == diagnostic.SeverityError {
			return true
		}
	}
	return false
}
