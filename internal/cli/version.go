package cli

import (
	"fmt"

	"github.com/aryankumar/usagemetrics/internal/output"
	"github.com/aryankumar/usagemetrics/pkg/version"
	"github.com/spf13/cobra"
)

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Display detailed version information for the usagemetrics CLI",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd)
		},
	}

	return cmd
}

func runVersion(cmd *cobra.Command) error {
	info := version.Get()
	outputFormat, _ := cmd.Flags().GetString("output")
	noColor, _ := cmd.Flags().GetBool("no-color")
	w := cmd.OutOrStdout()

	switch outputFormat {
	case "json", "yaml":
		return output.NewFormatter(output.Format(outputFormat)).Format(w, info)
	case "table":
		return output.NewFormatter(output.FormatTable, output.WithNoColor(noColor)).Format(w, info.Map())
	default:
		// Human-readable by default
		fmt.Fprintln(w, info.String())
		return nil
	}
}
