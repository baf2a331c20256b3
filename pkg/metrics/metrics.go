// Package metrics defines the Prometheus collectors of the planner: calendar
// sync operations, OAuth sign-ins and HTTP API requests.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "planner"

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Metrics records observability metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	syncOperationsTotal   *prometheus.CounterVec
	syncOperationDuration *prometheus.HistogramVec
	syncAllCreated        prometheus.Counter

	oauthSignInTotal *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		syncOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_sync_operations_total",
			Help:      "Total number of remote calendar operations.",
		}, []string{"operation", "result"}),
		syncOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calendar_sync_operation_duration_seconds",
			Help:      "Remote calendar operation duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		syncAllCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_sync_all_created_total",
			Help:      "Events created by sync passes.",
		}),
		oauthSignInTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oauth_sign_in_total",
			Help:      "Total number of Google sign-in attempts.",
		}, []string{"result"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP API requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP API request duration in seconds.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"method", "route"}),
	}

	for _, c := range []prometheus.Collector{
		m.syncOperationsTotal,
		m.syncOperationDuration,
		m.syncAllCreated,
		m.oauthSignInTotal,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordSyncOperation records one remote calendar call.
func (m *Metrics) RecordSyncOperation(operation, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.syncOperationsTotal.WithLabelValues(operation, result).Inc()
	m.syncOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSyncAll adds the number of events a sync pass created.
func (m *Metrics) RecordSyncAll(created int) {
	if m == nil {
		return
	}
	m.syncAllCreated.Add(float64(created))
}

// RecordSignIn counts an interactive sign-in attempt by result.
func (m *Metrics) RecordSignIn(result string) {
	if m == nil {
		return
	}
	m.oauthSignInTotal.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records an API request. route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
