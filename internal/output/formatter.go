package output

import (
	"io"
	"time"

	"github.com/aryankumar/usagemetrics/internal/batch"
	"github.com/aryankumar/usagemetrics/internal/util"
)

// Format represents the output format type
type Format string

const (
	// FormatTable outputs data in a borderless table
	FormatTable Format = "table"
	// FormatJSON outputs data in JSON format
	FormatJSON Format = "json"
	// FormatYAML outputs data in YAML format
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", util.NewValidationError("output", s, "must be table, json or yaml")
	}
}

// Formatter defines the interface for output formatting
type Formatter interface {
	// Format outputs a single data item to the writer
	Format(w io.Writer, data interface{}) error

	// FormatReport outputs the outcome of a batch run
	FormatReport(w io.Writer, report *batch.Report) error
}

// Option is a functional option for configuring formatters
type Option func(*Options)

// Options holds configuration for formatters
type Options struct {
	// NoColor disables color output
	NoColor bool

	// NoHeaders disables table headers
	NoHeaders bool

	// Wide adds a data column to the per-community table
	Wide bool

	// Full renders every community's results instead of only the count
	Full bool
}

// WithNoColor disables color output
func WithNoColor(noColor bool) Option {
	return func(o *Options) {
		o.NoColor = noColor
	}
}

// WithNoHeaders disables table headers
func WithNoHeaders(noHeaders bool) Option {
	return func(o *Options) {
		o.NoHeaders = noHeaders
	}
}

// WithWide enables wide output
func WithWide(wide bool) Option {
	return func(o *Options) {
		o.Wide = wide
	}
}

// WithFull renders the whole aggregation
func WithFull(full bool) Option {
	return func(o *Options) {
		o.Full = full
	}
}

// NewFormatter creates a new formatter based on the specified format
func NewFormatter(format Format, opts ...Option) Formatter {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	switch format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	case FormatTable:
		fallthrough
	default:
		return NewTableFormatter(options)
	}
}

// reportView is the structured rendering shared by JSON and YAML
type reportView struct {
	RunID            string                              `json:"runId" yaml:"runId"`
	Kind             string                              `json:"kind" yaml:"kind"`
	Environment      string                              `json:"environment" yaml:"environment"`
	StartedAt        string                              `json:"startedAt" yaml:"startedAt"`
	Duration         string                              `json:"duration" yaml:"duration"`
	Discovered       int                                 `json:"discovered" yaml:"discovered"`
	Submitted        int                                 `json:"submitted" yaml:"submitted"`
	Succeeded        int                                 `json:"succeeded" yaml:"succeeded"`
	Failed           int                                 `json:"failed" yaml:"failed"`
	FailuresByKind   map[string]int                      `json:"failuresByKind,omitempty" yaml:"failuresByKind,omitempty"`
	SuccessRate      float64                             `json:"successRate" yaml:"successRate"`
	ValidCommunities int                                 `json:"validCommunities" yaml:"validCommunities"`
	Results          map[string][]map[string]interface{} `json:"results,omitempty" yaml:"results,omitempty"`
}

func newReportView(report *batch.Report, full bool) reportView {
	view := reportView{
		RunID:            report.RunID,
		Kind:             string(report.Kind),
		Environment:      string(report.Environment),
		StartedAt:        report.StartedAt.UTC().Format(time.RFC3339),
		Duration:         report.Duration.Round(time.Millisecond).String(),
		Discovered:       report.Discovered,
		Submitted:        report.Submitted,
		Succeeded:        report.Succeeded,
		Failed:           report.Failed,
		SuccessRate:      report.SuccessRate,
		ValidCommunities: report.ValidCommunities(),
	}

	if len(report.FailuresByKind) > 0 {
		view.FailuresByKind = make(map[string]int, len(report.FailuresByKind))
		for kind, n := range report.FailuresByKind {
			view.FailuresByKind[string(kind)] = n
		}
	}

	if full {
		view.Results = make(map[string][]map[string]interface{}, len(report.Results))
		for community, list := range report.Results {
			entries := make([]map[string]interface{}, len(list))
			for i, entry := range list {
				entries[i] = entry
			}
			view.Results[community] = entries
		}
	}

	return view
}
