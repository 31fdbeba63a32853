// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PosterLookups counts poster resolutions by result: found, not_found, error, cached, disabled
	PosterLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cinemaprompt",
		Name:      "poster_lookups_total",
		Help:      "Poster lookups by result.",
	}, []string{"result"})

	// StoreOperations counts store adapter calls by operation and outcome
	StoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cinemaprompt",
		Name:      "store_operations_total",
		Help:      "Movie store operations by operation and outcome.",
	}, []string{"op", "outcome"})

	// AuthAttempts counts identity operations by operation and outcome
	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cinemaprompt",
		Name:      "auth_attempts_total",
		Help:      "Sign-in and sign-up attempts by outcome.",
	}, []string{"op", "outcome"})

	// LiveFeeds tracks open live feed subscriptions
	LiveFeeds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cinemaprompt",
		Name:      "live_feeds",
		Help:      "Open live feed subscriptions.",
	})

	// ClientSessions tracks registered client sessions
	ClientSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cinemaprompt",
		Name:      "client_sessions",
		Help:      "Registered client sessions.",
	})
)

// Outcome maps an error to an outcome label
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
