package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "urlpusher_build_info",
			Help: "Build information",
		},
		[]string{"component", "date", "sha", "version"},
	)

	connectionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "urlpusher_connection_state",
			Help: "Current push connection state (1 for the active state)",
		},
		[]string{"state"},
	)

	dials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlpusher_dials_total",
			Help: "Push transport dial attempts",
		},
		[]string{"outcome"},
	)

	disconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "urlpusher_disconnects_total",
			Help: "Push transport losses that armed a reconnect",
		},
	)

	frames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlpusher_frames_total",
			Help: "Inbound frames by type; malformed and unknown frames are labelled as such",
		},
		[]string{"type"},
	)

	sends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlpusher_sends_total",
			Help: "Outbound frames by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	swaps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlpusher_surface_swaps_total",
			Help: "Completed buffer swaps per media class",
		},
		[]string{"class"},
	)

	loadFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlpusher_surface_load_failures_total",
			Help: "Content loads that failed per media class",
		},
		[]string{"class"},
	)

	staleLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlpusher_surface_stale_loads_total",
			Help: "Load completions ignored because the slot was reassigned",
		},
		[]string{"class"},
	)

	announcements = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "urlpusher_overlay_announcements_total",
			Help: "Overlay texts shown",
		},
	)

	directoryEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "urlpusher_directory_entries",
			Help: "Entries in the last directory listing",
		},
	)
)

// Register registers all collectors with r.
func Register(r prometheus.Registerer) {
	r.MustRegister(buildInfo, connectionState, dials, disconnects, frames, sends, swaps, loadFailures, staleLoads, announcements, directoryEntries)
}

// SetBuildInfo records build metadata for the running component.
func SetBuildInfo(component, version, sha, date string) {
	buildInfo.WithLabelValues(component, date, sha, version).Set(1)
}

// SetConnectionState flags state as the current connection state.
func SetConnectionState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		connectionState.WithLabelValues(s).Set(v)
	}
}

// RecordDial counts a dial attempt.
func RecordDial(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	dials.WithLabelValues(outcome).Inc()
}

// RecordDisconnect counts a transport loss.
func RecordDisconnect() { disconnects.Inc() }

// RecordFrame counts an inbound frame.
func RecordFrame(typ string) { frames.WithLabelValues(typ).Inc() }

// RecordSend counts an outbound frame; sent is false when it was dropped.
func RecordSend(typ string, sent bool) {
	outcome := "sent"
	if !sent {
		outcome = "dropped"
	}
	sends.WithLabelValues(typ, outcome).Inc()
}

// RecordSwap counts a completed swap.
func RecordSwap(class string) { swaps.WithLabelValues(class).Inc() }

// RecordLoadFailure counts a failed content load.
func RecordLoadFailure(class string) { loadFailures.WithLabelValues(class).Inc() }

// RecordStaleLoad counts a load completion that arrived for superseded content.
func RecordStaleLoad(class string) { staleLoads.WithLabelValues(class).Inc() }

// RecordAnnouncement counts an overlay text.
func RecordAnnouncement() { announcements.Inc() }

// SetDirectoryEntries records the size of the directory cache.
func SetDirectoryEntries(n int) { directoryEntries.Set(float64(n)) }
