package target

import (
	"fmt"
	"net/http"
	"strings"
)

// Community is an opaque tenant identifier
type Community string

// Datacenter is the tag discovery assigns to each community
type Datacenter string

// Environment selects the deployment tier of the analytics service
type Environment string

const (
	// EnvStage is the staging tier
	EnvStage Environment = "stage"
	// EnvProd is the production tier
	EnvProd Environment = "prod"
)

// Kind selects which analytics endpoint a work item calls
type Kind string

const (
	// KindBilling fetches one aggregate billing record per community
	KindBilling Kind = "billing"
	// KindMetric fetches one time series per community and metric
	KindMetric Kind = "metric"
)

// DatacenterSJ is the only datacenter with its own endpoint column; every
// other tag shares the default column.
const DatacenterSJ Datacenter = "sj"

// ParseEnvironment validates an environment name
func ParseEnvironment(s string) (Environment, error) {
	switch env := Environment(strings.ToLower(strings.TrimSpace(s))); env {
	case EnvStage, EnvProd:
		return env, nil
	default:
		return "", fmt.Errorf("unknown environment %q (want stage or prod)", s)
	}
}

// ParseKind validates a fetch mode name
func ParseKind(s string) (Kind, error) {
	switch kind := Kind(strings.ToLower(strings.TrimSpace(s))); kind {
	case KindBilling, KindMetric:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown fetch kind %q (want billing or metric)", s)
	}
}

// Target is a fully resolved request destination
type Target struct {
	Method string
	Scheme string
	Host   string
	Path   string
}

// URL renders the target as an absolute URL string
func (t Target) URL() string {
	// Path is already escaped and may carry a query
	return t.Scheme + "://" + t.Host + t.Path
}

// String implements fmt.Stringer
func (t Target) String() string {
	return t.Method + " " + t.URL()
}

// WorkItem is one fetchable unit: a community, an optional metric and the
// resolved target. It is not mutated after creation.
type WorkItem struct {
	Community Community
	Metric    string
	Kind      Kind
	Target    Target
}

// Name identifies the item in logs and executor results. It is never empty:
// an empty community id is rendered quoted.
func (w WorkItem) Name() string {
	community := string(w.Community)
	if community == "" {
		community = `""`
	}
	if w.Metric == "" {
		return community
	}
	return community + "/" + w.Metric
}

func methodFor(kind Kind) string {
	if kind == KindMetric {
		return http.MethodPost
	}
	return http.MethodGet
}
