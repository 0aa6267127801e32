package fetch

import (
	"github.com/aryankumar/usagemetrics/internal/batch"
	"github.com/aryankumar/usagemetrics/internal/target"
	"github.com/spf13/cobra"
)

// NewBillingCmd creates the billing command
func NewBillingCmd() *cobra.Command {
	var (
		display     displayOptions
		stableOrder bool
	)

	cmd := &cobra.Command{
		Use:   "billing",
		Short: "Fetch the billing usage record of every community",
		Long: `Fetch the billing usage record of every discovered community.

One GET request is issued per community against the analytics endpoint of
its datacenter. By default only the number of communities with a valid
result is printed.`,
		Example: `  # Count communities with billing data in stage
  usagemetrics billing

  # Show every community, 20 requests at a time
  usagemetrics billing --full -p 20

  # Billing records from prod as JSON
  usagemetrics billing --env prod --full -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}

			req := batch.Request{
				Kind:        target.KindBilling,
				StableOrder: stableOrder,
			}
			return runBatch(cmd, s, req, display)
		},
	}

	cmd.Flags().BoolVar(&display.full, "full", false, "print every community instead of only the count")
	cmd.Flags().BoolVar(&display.wide, "wide", false, "add a data column in table output")
	cmd.Flags().BoolVar(&stableOrder, "stable-order", false, "store results in submission order instead of completion order")

	return cmd
}
