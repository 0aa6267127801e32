package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aryankumar/usagemetrics/internal/fixture"
	"github.com/spf13/cobra"
)

// defaultCommunities are served when --community is not given
var defaultCommunities = map[string]string{
	"acme":     "sj",
	"globex":   "ams",
	"initech":  "lon",
	"umbrella": "sj",
}

// fixtureFlags holds the flags of fixture serve
type fixtureFlags struct {
	addr        string
	communities map[string]string
	failures    map[string]int
	malformed   []string
	latency     time.Duration
}

// NewFixtureCmd creates the fixture command
func NewFixtureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Local stand-ins for the discovery service and analytics API",
	}

	cmd.AddCommand(newServeCmd())

	return cmd
}

func newServeCmd() *cobra.Command {
	flags := &fixtureFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a fake discovery service and analytics API",
		Long: `Serve a fake community discovery endpoint and analytics API on one address.

The matching config file is printed on startup; save it and pass it with
--config to run billing or metrics against the fixture.`,
		Example: `  # Serve on :8089 with four sample communities
  usagemetrics fixture serve

  # Slow responses and a failing metric
  usagemetrics fixture serve --latency 200ms --fail globex/visits=500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.addr, "addr", "127.0.0.1:8089", "listen address")
	cmd.Flags().StringToStringVar(&flags.communities, "community", nil, "community=datacenter pairs to discover (default: four samples)")
	cmd.Flags().StringToIntVar(&flags.failures, "fail", nil, "key=status pairs to fail; key is community or community/metric")
	cmd.Flags().StringSliceVar(&flags.malformed, "malformed", nil, "keys answered with a truncated JSON body")
	cmd.Flags().DurationVar(&flags.latency, "latency", 0, "delay added to every analytics response")

	return cmd
}

func runServe(cmd *cobra.Command, flags *fixtureFlags) error {
	ctx := cmd.Context()
	logger := slog.Default()

	communities := flags.communities
	if len(communities) == 0 {
		communities = defaultCommunities
	}

	opts := []fixture.Option{
		fixture.WithLatency(flags.latency),
		fixture.WithLogger(logger),
	}
	for key, status := range flags.failures {
		opts = append(opts, fixture.WithFailure(key, status))
	}
	for _, key := range flags.malformed {
		opts = append(opts, fixture.WithMalformed(key))
	}

	ln, err := net.Listen("tcp", flags.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", flags.addr, err)
	}

	baseURL := "http://" + ln.Addr().String()
	snippet, err := fixture.ConfigYAML(baseURL)
	if err != nil {
		ln.Close()
		return fmt.Errorf("render config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "# usagemetrics config for this fixture\n%s", snippet)

	srv := &http.Server{
		Handler:           fixture.New(communities, opts...).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	logger.Info("fixture serving",
		"addr", ln.Addr().String(),
		"communities", strings.Join(sortedKeys(communities), ","))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("fixture shutdown: %w", err)
	}
	logger.Info("fixture stopped")
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
