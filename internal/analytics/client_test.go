package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aryankumar/usagemetrics/internal/fixture"
	"github.com/aryankumar/usagemetrics/internal/target"
	"github.com/aryankumar/usagemetrics/internal/util"
)

func newFixture(t *testing.T, communities map[string]string, opts ...fixture.Option) (*fixture.Server, *httptest.Server, *target.Resolver) {
	t.Helper()

	fx := fixture.New(communities, opts...)
	srv := httptest.NewServer(fx.Handler())
	t.Cleanup(srv.Close)

	resolver, err := target.NewResolver(fixture.Endpoints(srv.URL))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return fx, srv, resolver
}

func TestNewMetricPayload(t *testing.T) {
	start := time.UnixMilli(1594512000000)
	end := time.UnixMilli(1596240000000)

	b, err := json.Marshal(NewMetricPayload("visits", start, end))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"startTime":1594512000000,"endTime":1596240000000,"metric":"visits","dimensions":["day"]}`
	if string(b) != want {
		t.Errorf("payload = %s, want %s", b, want)
	}
}

func TestClient_Discover(t *testing.T) {
	_, srv, _ := newFixture(t, map[string]string{"acme": "sj", "globex": "ams"})
	client := NewClient(WithTimeout(5 * time.Second))

	mapping, err := client.Discover(context.Background(), fixture.DiscoveryURL(srv.URL))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(mapping) != 2 || mapping["acme"] != "sj" || mapping["globex"] != "ams" {
		t.Errorf("unexpected mapping %v", mapping)
	}
}

func TestClient_Discover_Failures(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind util.ErrorKind
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantKind: util.KindHTTPStatus,
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, "<html>")
			},
			wantKind: util.KindDecode,
		},
		{
			name: "non-object json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `["acme"]`)
			},
			wantKind: util.KindDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewClient().Discover(context.Background(), srv.URL)
			if !util.IsDiscoveryFailure(err) {
				t.Fatalf("expected discovery failure, got %v", err)
			}

			var discErr *util.DiscoveryError
			errors.As(err, &discErr)
			if got := util.Kind(discErr.Err); got != tt.wantKind {
				t.Errorf("cause kind = %q, want %q", got, tt.wantKind)
			}
		})
	}
}

func TestClient_Discover_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient().Discover(context.Background(), url)

	var netErr *util.NetworkError
	if !util.IsDiscoveryFailure(err) || !errors.As(err, &netErr) {
		t.Fatalf("expected discovery failure wrapping a network error, got %v", err)
	}
}

func TestClient_Fetch(t *testing.T) {
	_, _, resolver := newFixture(t,
		map[string]string{"acme": "sj"},
		fixture.WithFailure("acme/visits", http.StatusServiceUnavailable),
		fixture.WithMalformed("acme/pageviews"),
	)
	client := NewClient()
	ctx := context.Background()

	billing, _ := resolver.Resolve("acme", "sj", target.EnvStage, target.KindBilling)
	metric, _ := resolver.Resolve("acme", "sj", target.EnvStage, target.KindMetric)
	window := func(m string) MetricPayload {
		return NewMetricPayload(m, time.UnixMilli(0), time.UnixMilli(3*24*3600*1000))
	}

	t.Run("billing", func(t *testing.T) {
		res, err := client.Fetch(ctx, billing, nil)
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if _, ok := res["serverRequests"]; !ok {
			t.Errorf("missing provider field in %v", res)
		}
	})

	t.Run("metric", func(t *testing.T) {
		res, err := client.Fetch(ctx, metric, window("billing_page_views"))
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		series, ok := res["series"].([]interface{})
		if !ok || len(series) != 3 {
			t.Errorf("expected 3 daily points, got %v", res["series"])
		}
	})

	t.Run("status error", func(t *testing.T) {
		_, err := client.Fetch(ctx, metric, window("visits"))
		if util.StatusCode(err) != http.StatusServiceUnavailable {
			t.Fatalf("expected 503 status error, got %v", err)
		}

		var statusErr *util.HTTPStatusError
		errors.As(err, &statusErr)
		if statusErr.URL != metric.URL() {
			t.Errorf("status error url = %q, want %q", statusErr.URL, metric.URL())
		}
	})

	t.Run("decode error", func(t *testing.T) {
		_, err := client.Fetch(ctx, metric, window("pageviews"))
		if util.Kind(err) != util.KindDecode {
			t.Fatalf("expected decode error, got %v", err)
		}
	})
}

func TestClient_Fetch_NonObjectBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[1,2,3]`)
	}))
	defer srv.Close()

	resolver, _ := target.NewResolver(target.Endpoints{target.EnvProd: {target.ColumnDefault: srv.URL}})
	tgt, _ := resolver.Resolve("acme", "ams", target.EnvProd, target.KindBilling)

	res, err := NewClient().Fetch(context.Background(), tgt, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if list, ok := res["data"].([]interface{}); !ok || len(list) != 3 {
		t.Errorf("expected array wrapped under data, got %v", res)
	}
}

func TestClient_Fetch_SendsJSONBody(t *testing.T) {
	var gotContentType string
	var gotPayload MetricPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotPayload)
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	resolver, _ := target.NewResolver(target.Endpoints{target.EnvStage: {target.ColumnSJ: srv.URL + "/dev/v2"}})
	tgt, _ := resolver.Resolve("acme", "sj", target.EnvStage, target.KindMetric)

	_, err := NewClient().Fetch(context.Background(), tgt, NewMetricPayload("visits", time.UnixMilli(1), time.UnixMilli(2)))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if gotContentType != "application/json" {
		t.Errorf("content type = %q", gotContentType)
	}
	if gotPayload.Metric != "visits" || gotPayload.StartTime != 1 || gotPayload.EndTime != 2 {
		t.Errorf("unexpected payload %+v", gotPayload)
	}
	if len(gotPayload.Dimensions) != 1 || gotPayload.Dimensions[0] != "day" {
		t.Errorf("unexpected dimensions %v", gotPayload.Dimensions)
	}
}
