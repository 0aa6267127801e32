// Package aggregate accumulates successful fetch results keyed by community.
package aggregate

import (
	"sort"
	"sync"
)

// Field names stamped onto every stored result
const (
	FieldCommunity = "community"
	FieldMetric    = "metric"
)

// MetricResult is one successful response body. Its fields are defined by
// the analytics provider.
type MetricResult map[string]interface{}

// Aggregator maps community -> results in insertion order. Billing batches
// store at most one result per community; metric batches at most one per
// metric. It is safe for concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	results map[string][]MetricResult
	entries int
}

// New returns an empty aggregator
func New() *Aggregator {
	return &Aggregator{results: make(map[string][]MetricResult)}
}

// Add appends result under community. The result is copied and stamped with
// the community, and with metric when it is non-empty.
func (a *Aggregator) Add(community, metric string, result MetricResult) {
	stored := make(MetricResult, len(result)+2)
	for k, v := range result {
		stored[k] = v
	}
	stored[FieldCommunity] = community
	if metric != "" {
		stored[FieldMetric] = metric
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.results[community] = append(a.results[community], stored)
	a.entries++
}

// Len returns the number of communities with at least one result
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results)
}

// Entries returns the total number of stored results
func (a *Aggregator) Entries() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries
}

// Get returns a copy of the results stored for community
func (a *Aggregator) Get(community string) []MetricResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	list := a.results[community]
	if list == nil {
		return nil
	}
	out := make([]MetricResult, len(list))
	copy(out, list)
	return out
}

// Communities returns the sorted community keys
func (a *Aggregator) Communities() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	keys := make([]string, 0, len(a.results))
	for k := range a.results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of the whole map. The per-community slices are
// fresh; the result maps themselves are shared and must not be mutated.
func (a *Aggregator) Snapshot() map[string][]MetricResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string][]MetricResult, len(a.results))
	for k, list := range a.results {
		cp := make([]MetricResult, len(list))
		copy(cp, list)
		out[k] = cp
	}
	return out
}
