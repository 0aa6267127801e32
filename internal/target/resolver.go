package target

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/aryankumar/usagemetrics/internal/util"
)

// Column names of the endpoint policy table
const (
	ColumnSJ      = "sj"
	ColumnDefault = "default"
)

const (
	billingSuffix = "/analytics/billing-metrics-usage"
	metricSuffix  = "/analytics"
)

// Endpoints maps environment -> datacenter column -> base URL
type Endpoints map[Environment]map[string]string

// Resolver turns (community, datacenter, environment, kind) into a Target.
// It performs no I/O.
type Resolver struct {
	bases map[Environment]map[string]*url.URL
}

// NewResolver parses every base URL in the table up front
func NewResolver(endpoints Endpoints) (*Resolver, error) {
	r := &Resolver{bases: make(map[Environment]map[string]*url.URL, len(endpoints))}

	for env, columns := range endpoints {
		for column, raw := range columns {
			if raw == "" {
				continue
			}

			u, err := url.Parse(raw)
			if err != nil {
				return nil, util.NewValidationError(fmt.Sprintf("endpoints.%s.%s", env, column), raw, err.Error())
			}
			if u.Scheme == "" || u.Host == "" {
				return nil, util.NewValidationError(fmt.Sprintf("endpoints.%s.%s", env, column), raw, "must be an absolute URL")
			}

			if r.bases[env] == nil {
				r.bases[env] = make(map[string]*url.URL)
			}
			r.bases[env][column] = u
		}
	}

	return r, nil
}

// ColumnFor maps a datacenter tag onto its endpoint column
func ColumnFor(dc Datacenter) string {
	if strings.EqualFold(string(dc), string(DatacenterSJ)) {
		return ColumnSJ
	}
	return ColumnDefault
}

// Has reports whether env has an endpoint for the given column
func (r *Resolver) Has(env Environment, column string) bool {
	_, ok := r.bases[env][column]
	return ok
}

// Resolve builds the concrete request target for one community
func (r *Resolver) Resolve(community Community, dc Datacenter, env Environment, kind Kind) (Target, error) {
	column := ColumnFor(dc)
	base, ok := r.bases[env][column]
	if !ok {
		return Target{}, fmt.Errorf("%w for datacenter %q (column %s) in environment %s", util.ErrNoEndpoint, dc, column, env)
	}

	suffix := billingSuffix
	if kind == KindMetric {
		suffix = metricSuffix
	}

	path := strings.TrimRight(base.Path, "/") + "/" + url.PathEscape(string(community)) + suffix
	if base.RawQuery != "" {
		path += "?" + base.RawQuery
	}

	return Target{
		Method: methodFor(kind),
		Scheme: base.Scheme,
		Host:   base.Host,
		Path:   path,
	}, nil
}

// BuildWorkItems expands a discovery mapping into work items: one per
// community for billing, one per community and metric otherwise.
// Communities are visited in sorted order so batches are reproducible.
func (r *Resolver) BuildWorkItems(mapping map[Community]Datacenter, kind Kind, metrics []string, env Environment) ([]WorkItem, error) {
	communities := make([]Community, 0, len(mapping))
	for c := range mapping {
		communities = append(communities, c)
	}
	sort.Slice(communities, func(i, j int) bool { return communities[i] < communities[j] })

	perCommunity := 1
	if kind == KindMetric {
		perCommunity = len(metrics)
	}
	items := make([]WorkItem, 0, len(communities)*perCommunity)

	for _, community := range communities {
		t, err := r.Resolve(community, mapping[community], env, kind)
		if err != nil {
			return nil, util.WrapCommunityError(string(community), "", err)
		}

		if kind == KindBilling {
			items = append(items, WorkItem{Community: community, Kind: kind, Target: t})
			continue
		}

		for _, metric := range metrics {
			items = append(items, WorkItem{Community: community, Metric: metric, Kind: kind, Target: t})
		}
	}

	return items, nil
}
