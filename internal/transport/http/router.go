package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fairdraw/internal/campaign"
	"fairdraw/internal/entry"
	"fairdraw/internal/fingerprint"
	"fairdraw/internal/gateway"
	"fairdraw/internal/identity"
	"fairdraw/internal/platform/metrics"
	"fairdraw/internal/platform/middleware"
)

// Handler bundles the services the HTTP surface exposes.
type Handler struct {
	gw    *gateway.Service
	ids   *identity.Service
	camps *campaign.Service
	ents  *entry.Service
	fps   *fingerprint.Service
	log   *slog.Logger
}

func NewHandler(gw *gateway.Service, ids *identity.Service, camps *campaign.Service, ents *entry.Service, fps *fingerprint.Service, log *slog.Logger) *Handler {
	return &Handler{gw: gw, ids: ids, camps: camps, ents: ents, fps: fps, log: log}
}

// Router assembles the full route tree. Moderator routes sit behind JWT
// validation; everything else is public.
func Router(h *Handler, validator *middleware.ModeratorValidator, m *metrics.Metrics, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Latency(m))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/identities", h.register)
		r.Post("/identities/{identityID}/challenge", h.issueChallenge)
		r.Post("/identities/{identityID}/verify", h.submitAnswer)

		r.Get("/campaigns", h.listOpenCampaigns)
		r.Get("/campaigns/{campaignID}", h.campaignStats)
		r.Post("/campaigns/{campaignID}/entries", h.join)
		r.Get("/campaigns/{campaignID}/entries/{identityID}/referrals", h.myReferrals)

		r.Route("/mod", func(r chi.Router) {
			r.Use(middleware.RequireModerator(validator, log))

			r.Post("/campaigns", h.createCampaign)
			r.Post("/campaigns/{campaignID}/close", h.closeCampaign)
			r.Post("/campaigns/{campaignID}/draw", h.drawCampaign)
			r.Post("/campaigns/{campaignID}/announcement", h.setAnnouncement)
			r.Delete("/campaigns/{campaignID}/entries/{identityID}", h.removeEntry)

			r.Post("/identities/{identityID}/ban", h.ban)
			r.Post("/identities/{identityID}/unban", h.unban)
			r.Get("/identities/banned", h.listBanned)
			r.Get("/identities/{identityID}/info", h.identityInfo)

			r.Get("/fingerprints/suspicious", h.suspiciousFingerprints)
		})
	})
	return r
}
