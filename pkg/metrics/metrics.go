package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	PatientsCreatedTotal prometheus.Counter
	AppointmentsTotal    *prometheus.CounterVec
	PrescriptionsIssued  prometheus.Counter

	StorageBackend   *prometheus.GaugeVec
	StorageFallbacks *prometheus.CounterVec

	UploadsTotal      *prometheus.CounterVec
	UploadAttempts    prometheus.Histogram
	PhotoRepathsTotal *prometheus.CounterVec

	AuditEntriesTotal  prometheus.Counter
	AuditBufferDropped prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewCollector registers every metric on reg. Passing a fresh registry keeps
// tests isolated from the process-wide default.
func NewCollector(serviceName string, reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		gatherer: reg,

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		PatientsCreatedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "clinical",
			Name:      "patients_created_total",
			Help:      "Total number of patient records created.",
		}),

		AppointmentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "clinical",
			Name:      "appointments_total",
			Help:      "Appointment writes by resulting status.",
		}, []string{"status"}),

		PrescriptionsIssued: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "clinical",
			Name:      "prescriptions_issued_total",
			Help:      "Total prescriptions issued.",
		}),

		StorageBackend: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "storage",
			Name:      "backend_active",
			Help:      "1 for the storage backend currently serving requests.",
		}, []string{"backend"}),

		StorageFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "storage",
			Name:      "fallback_transitions_total",
			Help:      "Switches from the primary store to memory, by triggering operation. Alert if non-zero.",
		}, []string{"op"}),

		UploadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "uploads",
			Name:      "photos_total",
			Help:      "Photo upload outcomes.",
		}, []string{"outcome"}),

		UploadAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "uploads",
			Name:      "attempts",
			Help:      "Object store attempts per photo upload.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),

		PhotoRepathsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "uploads",
			Name:      "repaths_total",
			Help:      "Photo re-pathing results after patient registration.",
		}, []string{"result"}),

		AuditEntriesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "audit",
			Name:      "entries_total",
			Help:      "Total audit log entries written.",
		}),

		AuditBufferDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "audit",
			Name:      "buffer_dropped_total",
			Help:      "Audit entries dropped due to full buffer. Alert if non-zero.",
		}),
	}
}

// SetStorageBackend marks backend as the active one.
func (c *Collector) SetStorageBackend(backend string) {
	c.StorageBackend.Reset()
	c.StorageBackend.WithLabelValues(backend).Set(1)
}

func (c *Collector) StorageFallback(op string) {
	c.StorageFallbacks.WithLabelValues(op).Inc()
}

func (c *Collector) ObserveUpload(outcome string, attempts int) {
	c.UploadsTotal.WithLabelValues(outcome).Inc()
	if attempts > 0 {
		c.UploadAttempts.Observe(float64(attempts))
	}
}

func (c *Collector) ObserveRepath(result string) {
	c.PhotoRepathsTotal.WithLabelValues(result).Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) PatientCreated() {
	c.PatientsCreatedTotal.Inc()
}

func (c *Collector) AppointmentWritten(status string) {
	c.AppointmentsTotal.WithLabelValues(status).Inc()
}

func (c *Collector) PrescriptionIssued() {
	c.PrescriptionsIssued.Inc()
}

func (c *Collector) AuditWritten() {
	c.AuditEntriesTotal.Inc()
}

func (c *Collector) AuditDropped() {
	c.AuditBufferDropped.Inc()
}
