// Package batch runs one fan-out over every discovered community: discover,
// build work items, fetch under a concurrency cap, wait for drain, report.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aryankumar/usagemetrics/internal/aggregate"
	"github.com/aryankumar/usagemetrics/internal/analytics"
	"github.com/aryankumar/usagemetrics/internal/executor"
	"github.com/aryankumar/usagemetrics/internal/metrics"
	"github.com/aryankumar/usagemetrics/internal/target"
	"github.com/aryankumar/usagemetrics/internal/util"
	"github.com/google/uuid"
)

// Discoverer returns the community -> datacenter mapping
type Discoverer interface {
	Discover(ctx context.Context, discoveryURL string) (map[target.Community]target.Datacenter, error)
}

// Fetcher performs one analytics request
type Fetcher interface {
	Fetch(ctx context.Context, t target.Target, payload interface{}) (aggregate.MetricResult, error)
}

// Window is the time range requested for metric time series
type Window struct {
	Start time.Time
	End   time.Time
}

// Request describes one batch
type Request struct {
	DiscoveryURL string
	Kind         target.Kind
	Metrics      []string
	Environment  target.Environment
	Window       Window

	// Concurrency caps in-flight requests; <= 0 uses executor.DefaultWorkers
	Concurrency int

	// StableOrder stores results in submission order after the drain
	// instead of completion order
	StableOrder bool
}

// Report is the outcome of a batch
type Report struct {
	RunID          string                              `json:"runId" yaml:"runId"`
	Kind           target.Kind                         `json:"kind" yaml:"kind"`
	Environment    target.Environment                  `json:"environment" yaml:"environment"`
	StartedAt      time.Time                           `json:"startedAt" yaml:"startedAt"`
	Duration       time.Duration                       `json:"duration" yaml:"duration"`
	Discovered     int                                 `json:"discovered" yaml:"discovered"`
	Submitted      int                                 `json:"submitted" yaml:"submitted"`
	Succeeded      int                                 `json:"succeeded" yaml:"succeeded"`
	Failed         int                                 `json:"failed" yaml:"failed"`
	FailuresByKind map[util.ErrorKind]int              `json:"failuresByKind,omitempty" yaml:"failuresByKind,omitempty"`
	SuccessRate    float64                             `json:"successRate" yaml:"successRate"`
	Summary        executor.Summary                    `json:"summary" yaml:"summary"`
	Results        map[string][]aggregate.MetricResult `json:"results" yaml:"results"`
}

// ValidCommunities returns how many communities have at least one result
func (r *Report) ValidCommunities() int {
	return len(r.Results)
}

// Communities returns the sorted community keys of Results
func (r *Report) Communities() []string {
	keys := make([]string, 0, len(r.Results))
	for k := range r.Results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Runner orchestrates batches
type Runner struct {
	discoverer Discoverer
	fetcher    Fetcher
	resolver   *target.Resolver
	logger     *slog.Logger
	recorder   *metrics.Recorder
}

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRecorder records Prometheus metrics for every batch
func WithRecorder(rec *metrics.Recorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// NewRunner creates a runner
func NewRunner(d Discoverer, f Fetcher, resolver *target.Resolver, opts ...Option) *Runner {
	r := &Runner{
		discoverer: d,
		fetcher:    f,
		resolver:   resolver,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// fetched is the task payload: the response together with the item it answers
type fetched struct {
	item   target.WorkItem
	result aggregate.MetricResult
}

// Run executes one batch. Only discovery and work item construction can
// fail it; per-item failures are logged, counted and dropped. No task is
// submitted when discovery fails.
func (r *Runner) Run(ctx context.Context, req Request) (report *Report, err error) {
	defer func() { r.recorder.BatchFinished(err) }()

	if err := validate(req); err != nil {
		return nil, err
	}

	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = executor.DefaultWorkers
	}

	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID, "kind", req.Kind, "environment", req.Environment)
	startedAt := time.Now()

	mapping, err := r.discoverer.Discover(ctx, req.DiscoveryURL)
	if err != nil {
		if !util.IsDiscoveryFailure(err) {
			err = &util.DiscoveryError{URL: req.DiscoveryURL, Err: err}
		}
		logger.Error("community discovery failed, aborting batch", "url", req.DiscoveryURL, "error", err)
		return nil, err
	}
	r.recorder.Discovered(len(mapping))

	items, err := r.resolver.BuildWorkItems(mapping, req.Kind, req.Metrics, req.Environment)
	if err != nil {
		return nil, fmt.Errorf("build work items: %w", err)
	}

	logger.Info("starting batch",
		"communities", len(mapping),
		"work_items", len(items),
		"concurrency", concurrency)

	agg := aggregate.New()
	pool := executor.NewPool(concurrency, logger)

	for _, item := range items {
		item := item
		task := executor.Task{
			Name: item.Name(),
			Execute: func(ctx context.Context) (interface{}, error) {
				r.recorder.TaskStarted()
				res, err := r.fetcher.Fetch(ctx, item.Target, r.payloadFor(item, req.Window))
				if err != nil {
					return nil, util.WrapCommunityError(string(item.Community), item.Metric, err)
				}
				return fetched{item: item, result: res}, nil
			},
			OnSettle: func(res executor.Result) {
				kind := util.Kind(res.Error)
				r.recorder.TaskFinished(string(item.Kind), string(kind), res.Duration)

				if res.Error != nil {
					logger.Warn("fetch failed",
						"community", item.Community,
						"metric", item.Metric,
						"url", item.Target.URL(),
						"status", util.StatusCode(res.Error),
						"error", res.Error)
					return
				}

				// stable order is stored from pool.Results after drain
				if !req.StableOrder {
					f, _ := res.Data.(fetched)
					agg.Add(string(item.Community), item.Metric, f.result)
				}
			},
		}

		if err := pool.Submit(ctx, task); err != nil {
			logger.Error("failed to submit task", "task", task.Name, "error", err)
		}
	}

	// Tasks cannot be aborted; a cancelled ctx only makes them fail fast.
	<-pool.Drained()

	results := pool.Results()

	if req.StableOrder {
		for _, res := range executor.SortBySubmission(results) {
			if f, ok := res.Data.(fetched); ok && res.Error == nil {
				agg.Add(string(f.item.Community), f.item.Metric, f.result)
			}
		}
	}

	failures := make(map[util.ErrorKind]int)
	for _, res := range executor.FilterFailed(results) {
		failures[util.Kind(res.Error)]++
	}

	report = &Report{
		RunID:          runID,
		Kind:           req.Kind,
		Environment:    req.Environment,
		StartedAt:      startedAt,
		Duration:       time.Since(startedAt),
		Discovered:     len(mapping),
		Submitted:      pool.Submitted(),
		Succeeded:      executor.CountSuccessful(results),
		Failed:         executor.CountFailed(results),
		FailuresByKind: failures,
		SuccessRate:    executor.SuccessRate(results),
		Summary:        executor.Summarize(results),
		Results:        agg.Snapshot(),
	}

	logger.Info("batch completed",
		"submitted", report.Submitted,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"valid_communities", report.ValidCommunities(),
		"success_rate", fmt.Sprintf("%.1f%%", report.SuccessRate),
		"peak_in_flight", pool.PeakInFlight(),
		"duration", report.Duration)

	return report, nil
}

func (r *Runner) payloadFor(item target.WorkItem, w Window) interface{} {
	if item.Kind != target.KindMetric {
		return nil
	}
	return analytics.NewMetricPayload(item.Metric, w.Start, w.End)
}

func validate(req Request) error {
	m := &util.MultiError{}

	if req.DiscoveryURL == "" {
		m.Add(util.NewValidationError("discoveryURL", nil, "is required"))
	}
	if _, err := target.ParseKind(string(req.Kind)); err != nil {
		m.Add(util.NewValidationError("kind", req.Kind, err.Error()))
	}
	if _, err := target.ParseEnvironment(string(req.Environment)); err != nil {
		m.Add(util.NewValidationError("environment", req.Environment, err.Error()))
	}
	if req.Kind == target.KindMetric {
		if len(req.Metrics) == 0 {
			m.Add(util.NewValidationError("metrics", nil, "at least one metric is required"))
		}
		if !req.Window.End.After(req.Window.Start) {
			m.Add(util.NewValidationError("window", fmt.Sprintf("%d..%d", req.Window.Start.UnixMilli(), req.Window.End.UnixMilli()), "end must be after start"))
		}
	}

	return m.ErrorOrNil()
}
