package executor_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/aryankumar/usagemetrics/internal/executor"
)

// Example demonstrates fanning out work and collecting results in the
// settle continuation
func Example() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	pool := executor.NewPool(3, logger)

	var mu sync.Mutex
	views := make(map[string]int)

	communities := []string{"acme", "globex", "initech", "umbrella"}
	for i, community := range communities {
		community, count := community, (i+1)*100
		pool.Submit(context.Background(), executor.Task{
			Name: community,
			Execute: func(ctx context.Context) (interface{}, error) {
				time.Sleep(10 * time.Millisecond)
				if community == "umbrella" {
					return nil, fmt.Errorf("status 503")
				}
				return count, nil
			},
			OnSettle: func(r executor.Result) {
				if r.Error != nil {
					return
				}
				mu.Lock()
				views[community] = r.Data.(int)
				mu.Unlock()
			},
		})
	}

	<-pool.Drained()

	names := make([]string, 0, len(views))
	for name := range views {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Printf("%s: %d\n", name, views[name])
	}
	fmt.Printf("failed: %d\n", executor.CountFailed(pool.Results()))
	// Output:
	// acme: 100
	// globex: 200
	// initech: 300
	// failed: 1
}
