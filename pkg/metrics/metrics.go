// Package metrics records the outcome of cvmfs-server operations as prometheus metrics.
//
// Every invocation of the CLI is short lived: metrics are kept in a private registry
// and flushed to a node-exporter textfile when the operation completes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of an operation
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeDeclined = "declined"
)

// Metrics of cvmfs-server operations
type Metrics struct {
	registry    *prometheus.Registry
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	textfile    string
	classify    func(error) string
}

// Option defines some options to the metrics initialization
type Option func(*settings)

type settings struct {
	namespace string
	textfile  string
	classify  func(error) string
}

// WithNamespace sets the prefix of metric names. The default is "cvmfs_server".
func WithNamespace(namespace string) Option {
	return func(s *settings) {
		s.namespace = namespace
	}
}

// WithTextfile sets the file receiving the metrics on Flush. Without a textfile, Flush does nothing.
func WithTextfile(path string) Option {
	return func(s *settings) {
		s.textfile = path
	}
}

// WithClassifier decides the outcome of a failed operation
func WithClassifier(classify func(error) string) Option {
	return func(s *settings) {
		if classify != nil {
			s.classify = classify
		}
	}
}

// New set of metrics
func New(opts ...Option) *Metrics {
	s := &settings{
		namespace: "cvmfs_server",
		classify:  func(error) string { return OutcomeFailure },
	}
	for _, apply := range opts {
		apply(s)
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: s.namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of repository operations, by outcome",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~43min
		}, []string{"operation", "outcome"}),
		lastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: s.namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Time of the last successful operation on a repository",
		}, []string{"operation", "repo"}),
		textfile: s.textfile,
		classify: s.classify,
	}
}

// Observe the completion of an operation started at start
func (m *Metrics) Observe(operation, repo string, start time.Time, err error) {
	if m == nil {
		return
	}
	now := time.Now()
	outcome := OutcomeSuccess
	if err != nil {
		outcome = m.classify(err)
	}
	m.duration.WithLabelValues(operation, outcome).Observe(now.Sub(start).Seconds())
	if err == nil && repo != "" {
		m.lastSuccess.WithLabelValues(operation, repo).Set(float64(now.Unix()))
	}
}

// Gatherer exposes the registry
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Flush writes the metrics to the textfile, if any
func (m *Metrics) Flush() error {
	if m == nil || m.textfile == "" {
		return nil
	}
	return prometheus.WriteToTextfile(m.textfile, m.registry)
}
