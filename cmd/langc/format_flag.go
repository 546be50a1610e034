package main

import (
	"fmt"

	"github.com/spf13/pflag"
)

// reportFormat is a pflag.Value so --format only accepts the two formats
// langc actually knows how to print, instead of pflag's bare StringVar
// accepting (and silently ignoring) anything.
type reportFormat string

const (
	reportFormatText reportFormat = "text"
	reportFormatJSON reportFormat = "json"
)

var _ pflag.Value = (*reportFormat)(nil)

func (f *reportFormat) String() string { return string(*f) }

func (f *reportFormat) Type() string { return "format" }

func (f *reportFormat) Set(s string) error {
	switch reportFormat(s) {
	case reportFormatText, reportFormatJSON:
		*f = reportFormat(s)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want %q or %q)", s, reportFormatText, reportFormatJSON)
	}
}
