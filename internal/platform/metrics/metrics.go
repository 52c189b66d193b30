package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	IdentitiesUpserted    prometheus.Counter
	ChallengesIssued      prometheus.Counter
	VerificationOutcomes  *prometheus.CounterVec
	JoinOutcomes          *prometheus.CounterVec
	ReferralsCredited     prometheus.Counter
	BansTotal             prometheus.Counter
	DrawsTotal            prometheus.Counter
	DrawDuration          prometheus.Histogram
	RequestLatencySeconds *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on a caller-supplied registry. Tests use this
// with a fresh registry per fixture.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IdentitiesUpserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "fairdraw_identities_upserted_total",
			Help: "Total identity upserts (first sight and profile refreshes).",
		}),
		ChallengesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "fairdraw_challenges_issued_total",
			Help: "Total verification challenges issued.",
		}),
		VerificationOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fairdraw_verification_outcomes_total",
			Help: "Verification submissions by outcome.",
		}, []string{"outcome"}),
		JoinOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fairdraw_join_outcomes_total",
			Help: "Campaign join attempts by outcome.",
		}, []string{"outcome"}),
		ReferralsCredited: factory.NewCounter(prometheus.CounterOpts{
			Name: "fairdraw_referrals_credited_total",
			Help: "Referral edges that produced a bonus weight increment.",
		}),
		BansTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "fairdraw_bans_total",
			Help: "Moderator bans applied.",
		}),
		DrawsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "fairdraw_draws_total",
			Help: "Winner draws recorded.",
		}),
		DrawDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fairdraw_draw_duration_seconds",
			Help:    "Wall time of a winner draw including result persistence.",
			Buckets: prometheus.DefBuckets,
		}),
		RequestLatencySeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fairdraw_http_request_duration_seconds",
			Help:    "HTTP handler latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
