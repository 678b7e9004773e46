// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectorExportsRegisteredMetrics(t *testing.T) {
	c := New()
	c.SetBIBEntries("udp", 3)
	c.SetSessionEntries("tcp", 2)
	c.ObserveSessionCreated("udp", "v6")
	c.ObserveTranslated("v4")
	c.ObserveDropped("no bib match")
	c.ObserveFragmentsEmitted(2)
	c.ObservePool4Exhausted()
	c.SetStoredPackets(5)
	c.ObserveTCPProbe()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"natcore_bib_entries",
		"natcore_session_entries",
		"natcore_sessions_created_total",
		"natcore_packets_translated_total",
		"natcore_packets_dropped_total",
		"natcore_fragments_emitted_total",
		"natcore_pool4_exhausted_total",
		"natcore_stored_packets",
		"natcore_tcp_probes_total",
	} {
		assert.Contains(t, body, want)
	}
}
