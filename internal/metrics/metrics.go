// Package metrics records request and compare activity as Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "promptshelf"

// Recorder owns a private registry and the collectors the server updates.
type Recorder struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	compares *prometheus.CounterVec
	writes   *prometheus.CounterVec
}

// NewRecorder creates a Recorder with process and Go runtime collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		compares: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compares_total",
			Help:      "Highlight computations by alignment mode and source.",
		}, []string{"mode", "source"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompt_writes_total",
			Help:      "Prompt mutations by operation.",
		}, []string{"op"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.requests,
		r.duration,
		r.compares,
		r.writes,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveRequest records one completed HTTP request.
func (r *Recorder) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	r.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	r.duration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveCompare records one highlight computation. Source is "version" for
// stored version compares and "adhoc" for caller-supplied texts.
func (r *Recorder) ObserveCompare(mode, source string) {
	r.compares.WithLabelValues(mode, source).Inc()
}

// ObserveWrite records a prompt mutation ("create", "update", "delete").
func (r *Recorder) ObserveWrite(op string) {
	r.writes.WithLabelValues(op).Inc()
}

// Summary is a compact view of the counters for the status endpoint.
type Summary struct {
	Requests     int            `json:"requests"`
	ServerErrors int            `json:"server_errors"`
	ClientErrors int            `json:"client_errors"`
	AvgLatencyMs float64        `json:"avg_latency_ms"`
	Compares     map[string]int `json:"compares"`
	PromptWrites map[string]int `json:"prompt_writes"`
}

// Summary gathers the registry and folds the counters into a Summary.
func (r *Recorder) Summary() (*Summary, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return nil, err
	}

	s := &Summary{
		Compares:     map[string]int{},
		PromptWrites: map[string]int{},
	}
	var latencySum float64
	var latencyCount uint64

	for _, mf := range families {
		switch mf.GetName() {
		case namespace + "_http_requests_total":
			for _, m := range mf.GetMetric() {
				n := int(m.GetCounter().GetValue())
				s.Requests += n
				switch code := label(m, "code"); {
				case code >= "500":
					s.ServerErrors += n
				case code >= "400":
					s.ClientErrors += n
				}
			}
		case namespace + "_http_request_duration_seconds":
			for _, m := range mf.GetMetric() {
				latencySum += m.GetHistogram().GetSampleSum()
				latencyCount += m.GetHistogram().GetSampleCount()
			}
		case namespace + "_compares_total":
			for _, m := range mf.GetMetric() {
				s.Compares[label(m, "mode")] += int(m.GetCounter().GetValue())
			}
		case namespace + "_prompt_writes_total":
			for _, m := range mf.GetMetric() {
				s.PromptWrites[label(m, "op")] += int(m.GetCounter().GetValue())
			}
		}
	}

	if latencyCount > 0 {
		s.AvgLatencyMs = latencySum / float64(latencyCount) * 1000
	}
	return s, nil
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
