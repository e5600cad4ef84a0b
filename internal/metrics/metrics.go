package metrics

import (
	"context"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "path"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests in flight",
		},
	)

	// Realtime
	WebSocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Number of open hub connections on this instance",
		},
	)
	WebinarViewers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "webinar_viewers",
			Help: "Current viewer count per webinar",
		},
		[]string{"webinar_id"},
	)
	WebinarParticipants = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "webinar_participants",
			Help: "Current participant count per webinar",
		},
		[]string{"webinar_id"},
	)
	RealtimeInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_invocations_total",
			Help: "Client invocations received on the hub",
		},
		[]string{"invocation", "result"},
	)

	// Access and login
	AccessDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webinar_access_decisions_total",
			Help: "Access window evaluations by outcome",
		},
		[]string{"result"},
	)
	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logins_total",
			Help: "Login attempts by kind and outcome",
		},
		[]string{"kind", "result"},
	)
	AuditJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_audit_jobs_total",
			Help: "Access audit jobs by outcome",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

// InitMetrics registers every collector with the default registry. Safe to call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(HTTPRequestsInFlight)

		prometheus.MustRegister(WebSocketConnections)
		prometheus.MustRegister(WebinarViewers)
		prometheus.MustRegister(WebinarParticipants)
		prometheus.MustRegister(RealtimeInvocationsTotal)

		prometheus.MustRegister(AccessDecisionsTotal)
		prometheus.MustRegister(LoginsTotal)
		prometheus.MustRegister(AuditJobsTotal)

		// Go runtime and process
		prometheus.MustRegister(collectors.NewGoCollector())
		prometheus.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// ObserveCounts records presence counts of a webinar. Empty webinars drop their series.
func ObserveCounts(_ context.Context, webinarID int64, viewers, participants int) {
	id := strconv.FormatInt(webinarID, 10)
	if participants == 0 {
		WebinarViewers.DeleteLabelValues(id)
		WebinarParticipants.DeleteLabelValues(id)
		return
	}
	WebinarViewers.WithLabelValues(id).Set(float64(viewers))
	WebinarParticipants.WithLabelValues(id).Set(float64(participants))
}

// Result maps an error to a "ok"/"error" label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the default registry in the Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
