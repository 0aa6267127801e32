package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aryankumar/usagemetrics/internal/aggregate"
	"github.com/aryankumar/usagemetrics/internal/batch"
	"github.com/olekukonko/tablewriter"
)

// ValidCommunitiesLabel prefixes the community count line
const ValidCommunitiesLabel = "Communities with valid results:"

// TableFormatter formats output as a borderless table
type TableFormatter struct {
	options *Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(opts *Options) *TableFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &TableFormatter{
		options: opts,
	}
}

// Format outputs a single data item as a table
func (f *TableFormatter) Format(w io.Writer, data interface{}) error {
	switch v := data.(type) {
	case map[string]interface{}:
		return f.formatMap(f.createTable(w), v)
	case map[string]string:
		m := make(map[string]interface{}, len(v))
		for k, s := range v {
			m[k] = s
		}
		return f.formatMap(f.createTable(w), m)
	default:
		fmt.Fprintln(w, v)
		return nil
	}
}

// FormatReport prints the valid community count and, in full mode, one
// row per community followed by a run summary
func (f *TableFormatter) FormatReport(w io.Writer, report *batch.Report) error {
	colors := NewColorScheme(w, f.options.NoColor)

	if f.options.Full {
		if report.ValidCommunities() == 0 {
			fmt.Fprintln(w, "No results")
		} else {
			f.formatCommunities(w, report, colors)
		}
		f.printSummary(w, report, colors)
	}

	count := strconv.Itoa(report.ValidCommunities())
	if !colors.Disabled {
		count = colors.StatusColorOrWarning(report.ValidCommunities() == 0)(count)
	}
	fmt.Fprintln(w, ValidCommunitiesLabel, count)

	return nil
}

func (f *TableFormatter) formatCommunities(w io.Writer, report *batch.Report, colors *ColorScheme) {
	table := f.createTable(w)

	headers := []string{"COMMUNITY", "ENTRIES", "METRICS"}
	if f.options.Wide {
		headers = append(headers, "DATA")
	}

	if !f.options.NoHeaders {
		if colors.Disabled {
			table.SetHeader(headers)
		} else {
			coloredHeaders := make([]string, len(headers))
			for i, h := range headers {
				coloredHeaders[i] = colors.Header(h)
			}
			table.SetHeader(coloredHeaders)
		}
	}

	for _, community := range report.Communities() {
		table.Append(f.communityRow(community, report.Results[community], colors))
	}

	table.Render()
}

func (f *TableFormatter) communityRow(community string, entries []aggregate.MetricResult, colors *ColorScheme) []string {
	name := community
	if !colors.Disabled {
		name = colors.Community(name)
	}

	var names []string
	for _, entry := range entries {
		if m, ok := entry[aggregate.FieldMetric].(string); ok && m != "" {
			names = append(names, m)
		}
	}
	metrics := "-"
	if len(names) > 0 {
		metrics = strings.Join(names, ",")
	}

	row := []string{name, strconv.Itoa(len(entries)), metrics}

	if f.options.Wide {
		dataStr := ""
		if len(entries) > 0 {
			dataStr = fmt.Sprintf("%v", stripStamps(entries[0]))
			if len(dataStr) > 50 {
				dataStr = dataStr[:47] + "..."
			}
		}
		row = append(row, dataStr)
	}

	return row
}

// stripStamps drops the fields the aggregator adds to every entry
func stripStamps(entry aggregate.MetricResult) map[string]interface{} {
	out := make(map[string]interface{}, len(entry))
	for k, v := range entry {
		if k == aggregate.FieldCommunity || k == aggregate.FieldMetric {
			continue
		}
		out[k] = v
	}
	return out
}

// formatMap formats a map as a two-column table (key-value pairs)
func (f *TableFormatter) formatMap(table *tablewriter.Table, data map[string]interface{}) error {
	if !f.options.NoHeaders {
		table.SetHeader([]string{"KEY", "VALUE"})
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		table.Append([]string{k, fmt.Sprintf("%v", data[k])})
	}

	table.Render()
	return nil
}

// createTable creates a new borderless, tab-padded table
func (f *TableFormatter) createTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)

	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	return table
}

// printSummary prints request counts, failure reasons and timing
func (f *TableFormatter) printSummary(w io.Writer, report *batch.Report, colors *ColorScheme) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Summary: ")

	successText := fmt.Sprintf("%d successful", report.Succeeded)
	if !colors.Disabled {
		successText = colors.Success(successText)
	}

	failedText := fmt.Sprintf("%d failed", report.Failed)
	if reasons := failureReasons(report); reasons != "" {
		failedText += " (" + reasons + ")"
	}
	if !colors.Disabled && report.Failed > 0 {
		failedText = colors.Error(failedText)
	}

	durationText := fmt.Sprintf("avg=%s", report.Summary.AvgDuration.Round(time.Microsecond))
	if !colors.Disabled {
		durationText = colors.Duration(durationText)
	}

	fmt.Fprintf(w, "%s, %s, %s, success=%.1f%%\n", successText, failedText, durationText, report.SuccessRate)
}

func failureReasons(report *batch.Report) string {
	parts := make([]string, 0, len(report.FailuresByKind))
	for kind, n := range report.FailuresByKind {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", kind, n))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
