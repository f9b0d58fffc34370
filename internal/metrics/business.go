// Package metrics holds the Prometheus business metrics of the service.
// The recording helpers are no-ops until Register has been called, so
// packages can record unconditionally and tests need no registry.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu sync.RWMutex

	orgResolutionsTotal      *prometheus.CounterVec
	orgSwitchesTotal         *prometheus.CounterVec
	profileSyncFailuresTotal *prometheus.CounterVec
	catalogSeedsTotal        *prometheus.CounterVec
	processDeadlines         *prometheus.GaugeVec
)

// Register creates the business metrics and registers them on reg. A nil
// reg is a no-op.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}
	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "licenca_org_resolutions_total",
		Help: "Active-organization resolutions by the source that won.",
	}, []string{"source"})
	switches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "licenca_org_switches_total",
		Help: "Explicit active-organization switches by durable write outcome.",
	}, []string{"persisted"})
	syncFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "licenca_profile_sync_failures_total",
		Help: "Profile reads or writes that failed and degraded to local state.",
	}, []string{"op"})
	seeds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "licenca_catalog_seeds_total",
		Help: "Default process-type catalog seeding attempts by outcome.",
	}, []string{"outcome"})
	deadlines := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "licenca_process_deadlines",
		Help: "Open processes per organization and derived visual status, as of the last deadline scan.",
	}, []string{"organization_id", "visual_status"})

	for _, c := range []prometheus.Collector{resolutions, switches, syncFailures, seeds, deadlines} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	mu.Lock()
	defer mu.Unlock()
	orgResolutionsTotal = resolutions
	orgSwitchesTotal = switches
	profileSyncFailuresTotal = syncFailures
	catalogSeedsTotal = seeds
	processDeadlines = deadlines
	return nil
}

// ObserveResolution counts a resolution by the source that won: "profile",
// "cache", "first", "none" or "signed_out".
func ObserveResolution(source string) {
	mu.RLock()
	defer mu.RUnlock()
	if orgResolutionsTotal != nil {
		orgResolutionsTotal.WithLabelValues(source).Inc()
	}
}

// ObserveSwitch counts an explicit switch.
func ObserveSwitch(persisted bool) {
	mu.RLock()
	defer mu.RUnlock()
	if orgSwitchesTotal != nil {
		label := "false"
		if persisted {
			label = "true"
		}
		orgSwitchesTotal.WithLabelValues(label).Inc()
	}
}

// ObserveProfileSyncFailure counts a failed profile read or write.
func ObserveProfileSyncFailure(op string) {
	mu.RLock()
	defer mu.RUnlock()
	if profileSyncFailuresTotal != nil {
		profileSyncFailuresTotal.WithLabelValues(op).Inc()
	}
}

// ObserveSeed counts a seeding attempt ("seeded", "skipped" or "error").
func ObserveSeed(outcome string) {
	mu.RLock()
	defer mu.RUnlock()
	if catalogSeedsTotal != nil {
		catalogSeedsTotal.WithLabelValues(outcome).Inc()
	}
}

// SetDeadlines publishes the number of processes in visual for orgID.
func SetDeadlines(orgID, visual string, n int) {
	mu.RLock()
	defer mu.RUnlock()
	if processDeadlines != nil {
		processDeadlines.WithLabelValues(orgID, visual).Set(float64(n))
	}
}

// ResetDeadlines drops every deadline series before a new scan publishes.
func ResetDeadlines() {
	mu.RLock()
	defer mu.RUnlock()
	if processDeadlines != nil {
		processDeadlines.Reset()
	}
}
