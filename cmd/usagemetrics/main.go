package main

import (
	"fmt"
	"os"

	"github.com/aryankumar/usagemetrics/internal/cli"
	"github.com/aryankumar/usagemetrics/internal/util"
)

func main() {
	// First signal cancels the context; queued requests still settle
	ctx := util.SetupSignalHandler(nil)

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", util.FriendlyError(err))
		os.Exit(1)
	}
}
