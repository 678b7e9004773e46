// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exports the translator's counters and gauges to
// Prometheus (supplementing spec.md's administrative protocol, which
// exposes COUNT per-table but nothing process-wide). Grounded on the
// teacher's internal/ebpf/stats.Exporter: a private *prometheus.Registry
// and one *prometheus.CounterVec/GaugeVec per concern, registered once at
// construction and served over /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the translator exports. A Collector owns
// its own Registry rather than using the global default one, so a
// process embedding natcored as a library never collides with its own
// metrics.
type Collector struct {
	registry *prometheus.Registry

	bibEntries     *prometheus.GaugeVec
	sessionEntries *prometheus.GaugeVec
	sessionTotal   *prometheus.CounterVec
	translated     *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	fragmentsOut   prometheus.Counter
	pool4Exhausted prometheus.Counter
	storedPackets  prometheus.Gauge
	tcpProbes      prometheus.Counter
}

// New creates a Collector with every metric registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		bibEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "natcore_bib_entries",
			Help: "Current number of BIB entries, by L4 protocol.",
		}, []string{"proto"}),
		sessionEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "natcore_session_entries",
			Help: "Current number of session entries, by L4 protocol.",
		}, []string{"proto"}),
		sessionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "natcore_sessions_created_total",
			Help: "Total sessions created, by L4 protocol and ingress family.",
		}, []string{"proto", "family"}),
		translated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "natcore_packets_translated_total",
			Help: "Total packets successfully translated, by egress family.",
		}, []string{"family"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "natcore_packets_dropped_total",
			Help: "Total packets dropped, by drop reason (spec.md §7/§8).",
		}, []string{"reason"}),
		fragmentsOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "natcore_fragments_emitted_total",
			Help: "Total IPv6 fragments emitted by post-translation fragmentation (spec.md §4.8).",
		}),
		pool4Exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "natcore_pool4_exhausted_total",
			Help: "Total allocation attempts that failed because the IPv4 pool was exhausted.",
		}),
		storedPackets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "natcore_stored_packets",
			Help: "Current number of packets held in the TCP simultaneous-open store (spec.md §4.5).",
		}),
		tcpProbes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "natcore_tcp_probes_total",
			Help: "Total ESTABLISHED->TRANS keepalive probes raised by the TCP expirer (spec.md §4.4).",
		}),
	}

	c.registry.MustRegister(
		c.bibEntries,
		c.sessionEntries,
		c.sessionTotal,
		c.translated,
		c.dropped,
		c.fragmentsOut,
		c.pool4Exhausted,
		c.storedPackets,
		c.tcpProbes,
	)
	return c
}

// Handler returns the HTTP handler serving this Collector's metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// SetBIBEntries records the current BIB count for proto.
func (c *Collector) SetBIBEntries(proto string, n int) {
	c.bibEntries.WithLabelValues(proto).Set(float64(n))
}

// SetSessionEntries records the current session count for proto.
func (c *Collector) SetSessionEntries(proto string, n int) {
	c.sessionEntries.WithLabelValues(proto).Set(float64(n))
}

// ObserveSessionCreated increments the session-creation counter.
func (c *Collector) ObserveSessionCreated(proto, family string) {
	c.sessionTotal.WithLabelValues(proto, family).Inc()
}

// ObserveTranslated increments the successful-translation counter.
func (c *Collector) ObserveTranslated(family string) {
	c.translated.WithLabelValues(family).Inc()
}

// ObserveDropped increments the drop-reason counter (SPEC_FULL.md's
// per-drop-reason breakdown of spec.md §7's Drop verdict).
func (c *Collector) ObserveDropped(reason string) {
	c.dropped.WithLabelValues(reason).Inc()
}

// ObserveFragmentsEmitted adds n to the fragment-emission counter.
func (c *Collector) ObserveFragmentsEmitted(n int) {
	c.fragmentsOut.Add(float64(n))
}

// ObservePool4Exhausted increments the pool4-exhaustion counter.
func (c *Collector) ObservePool4Exhausted() {
	c.pool4Exhausted.Inc()
}

// SetStoredPackets records the current packet-store occupancy.
func (c *Collector) SetStoredPackets(n int) {
	c.storedPackets.Set(float64(n))
}

// ObserveTCPProbe increments the TCP keepalive-probe counter.
func (c *Collector) ObserveTCPProbe() {
	c.tcpProbes.Inc()
}
