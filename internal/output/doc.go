// Package output renders batch reports as tables, JSON or YAML.
//
// By default a report prints only the number of communities with at least
// one valid result:
//
//	Communities with valid results: 42
//
// WithFull adds one row per community (entry count and metric names) and a
// run summary. JSON and YAML render the same report structurally and carry
// the per-community results only in full mode.
//
// # Basic Usage
//
//	formatter := output.NewFormatter(
//	    output.FormatTable,
//	    output.WithNoColor(true),
//	    output.WithFull(true),
//	)
//	formatter.FormatReport(os.Stdout, report)
//
// # Color Support
//
// Colors are enabled only for TTY outputs and can be disabled with
// WithNoColor(true).
//
// Color scheme:
//   - Community names: Cyan, Bold
//   - Success counts: Green
//   - Failures: Red, Bold
//   - Empty results: Yellow
//   - Headers: White, Bold
//   - Durations: Blue
package output
