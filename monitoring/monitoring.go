// Package monitoring exports Prometheus metrics describing the live session
// state: pending request backlogs per kind, the size of the authorization
// registry and the number of managed accounts.
package monitoring

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reef-chain/signerd/session"
)

var started sync.Once

// NewStateCollectors builds the gauge set observing the given session state.
// All gauges are sampled at scrape time, no mutation hooks are needed.
func NewStateCollectors(state *session.State) []prometheus.Collector {
	pendingGauge := func(kind string,
		value func() int) prometheus.GaugeFunc {

		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "signerd",
			Name:        "pending_requests",
			Help:        "Number of pending requests awaiting a user decision.",
			ConstLabels: prometheus.Labels{"kind": kind},
		}, func() float64 {
			return float64(value())
		})
	}

	authPending := func() int {
		auth, _, _ := state.PendingStats()
		return auth
	}
	signPending := func() int {
		_, sign, _ := state.PendingStats()
		return sign
	}
	metaPending := func() int {
		_, _, meta := state.PendingStats()
		return meta
	}

	return []prometheus.Collector{
		pendingGauge("authorize", authPending),
		pendingGauge("signing", signPending),
		pendingGauge("metadata", metaPending),

		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "signerd",
			Name:      "authorized_origins",
			Help:      "Number of origins with a persisted authorization decision.",
		}, func() float64 {
			return float64(len(state.AuthURLs()))
		}),

		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "signerd",
			Name:      "accounts",
			Help:      "Number of visible managed accounts.",
		}, func() float64 {
			return float64(len(state.Accounts()))
		}),

		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "signerd",
			Name:      "known_metadata",
			Help:      "Number of registered chain metadata definitions.",
		}, func() float64 {
			return float64(len(state.KnownMetadata()))
		}),
	}
}

// ExportPrometheusMetrics registers the session state collectors and
// launches the Prometheus exporter on the specified address.
func ExportPrometheusMetrics(listen string, state *session.State) error {
	var err error
	started.Do(func() {
		log.Infof("Prometheus exporter started on %v/metrics", listen)

		for _, collector := range NewStateCollectors(state) {
			if err = prometheus.Register(collector); err != nil {
				return
			}
		}

		http.Handle("/metrics", promhttp.Handler())
		go func() {
			if serveErr := http.ListenAndServe(
				listen, nil,
			); serveErr != nil {
				log.Errorf("Prometheus exporter failed: %v",
					serveErr)
			}
		}()
	})

	return err
}
