// Package metrics holds the prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Submission outcomes.
const (
	OutcomeVerified       = "verified"
	OutcomeAutoRegistered = "auto_registered"
	OutcomeRejected       = "rejected"
	OutcomeDuplicate      = "duplicate"
	OutcomeError          = "error"
)

// Metrics groups the application collectors.
type Metrics struct {
	Submissions     *prometheus.CounterVec
	FaceSimilarity  prometheus.Histogram
	SessionsCreated prometheus.Counter
	RequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollcall",
			Name:      "attendance_submissions_total",
			Help:      "Attendance submissions by outcome.",
		}, []string{"outcome"}),
		FaceSimilarity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rollcall",
			Name:      "face_similarity",
			Help:      "Similarity of the best face match for verified submissions.",
			Buckets:   []float64{50, 60, 70, 80, 85, 90, 95, 98, 99, 100},
		}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rollcall",
			Name:      "sessions_created_total",
			Help:      "Attendance sessions opened.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rollcall",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.Submissions, m.FaceSimilarity, m.SessionsCreated, m.RequestDuration)
	return m
}

// Submission counts one submission outcome.
func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

// Similarity observes the similarity of an accepted match.
func (m *Metrics) Similarity(v float64) {
	if m == nil {
		return
	}
	m.FaceSimilarity.Observe(v)
}

// SessionCreated counts an opened session.
func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

// GinMiddleware observes request latency labelled by the matched route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
