package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"fairdraw/internal/campaign"
	"fairdraw/internal/gateway"
	"fairdraw/internal/platform/middleware"
	dErrors "fairdraw/pkg/domain-errors"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var p gateway.RegisterParams
	if err := decode(r, &p); err != nil {
		writeError(w, h.log, err)
		return
	}
	if p.ClientHint == "" {
		p.ClientHint = r.UserAgent()
	}

	id, err := h.gw.Register(r.Context(), p)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func (h *Handler) issueChallenge(w http.ResponseWriter, r *http.Request) {
	c, err := h.gw.RequestChallenge(r.Context(), chi.URLParam(r, "identityID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	// The answer never leaves the server.
	writeJSON(w, http.StatusCreated, map[string]any{
		"identity_id": c.IdentityID,
		"question":    c.Question,
		"issued_at":   c.IssuedAt,
	})
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answer int `json:"answer"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	res, err := h.gw.SubmitAnswer(r.Context(), chi.URLParam(r, "identityID"), req.Answer)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) listOpenCampaigns(w http.ResponseWriter, r *http.Request) {
	list, err := h.camps.ListOpen(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": list})
}

func (h *Handler) campaignStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.gw.Stats(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) join(w http.ResponseWriter, r *http.Request) {
	var p gateway.JoinParams
	if err := decode(r, &p); err != nil {
		writeError(w, h.log, err)
		return
	}
	p.CampaignID = chi.URLParam(r, "campaignID")

	out, err := h.gw.Join(r.Context(), p)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) myReferrals(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	identityID := chi.URLParam(r, "identityID")

	referrals, bonus, err := h.gw.MyStats(r.Context(), campaignID, identityID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"referrals":    referrals,
		"bonus_weight": bonus,
		"share_link":   gateway.DeepLink(campaignID, identityID),
	})
}

func (h *Handler) createCampaign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		WinnerCount int    `json:"winner_count"`
		Duration    string `json:"duration"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	var dur time.Duration
	if req.Duration != "" {
		var err error
		if dur, err = time.ParseDuration(req.Duration); err != nil {
			writeError(w, h.log, dErrors.Wrap(err, dErrors.CodeInvalidInput, "parse duration"))
			return
		}
	}

	c, err := h.camps.Create(r.Context(), campaign.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		WinnerCount: req.WinnerCount,
		Duration:    dur,
		ModeratorID: middleware.GetModeratorID(r.Context()),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) closeCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	if err := h.camps.Close(r.Context(), campaignID, middleware.GetModeratorID(r.Context())); err != nil {
		writeError(w, h.log, err)
		return
	}

	c, err := h.camps.Get(r.Context(), campaignID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) drawCampaign(w http.ResponseWriter, r *http.Request) {
	out, err := h.gw.RunDraw(r.Context(), chi.URLParam(r, "campaignID"), middleware.GetModeratorID(r.Context()))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) setAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ref string `json:"ref"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	if err := h.camps.SetAnnouncementRef(r.Context(), chi.URLParam(r, "campaignID"), req.Ref); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeEntry(w http.ResponseWriter, r *http.Request) {
	err := h.ents.Remove(r.Context(),
		chi.URLParam(r, "campaignID"),
		chi.URLParam(r, "identityID"),
		middleware.GetModeratorID(r.Context()))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ban(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason   string `json:"reason"`
		Duration string `json:"duration"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	var dur time.Duration
	if req.Duration != "" {
		var err error
		if dur, err = time.ParseDuration(req.Duration); err != nil {
			writeError(w, h.log, dErrors.Wrap(err, dErrors.CodeInvalidInput, "parse duration"))
			return
		}
	}

	rec, err := h.gw.Ban(r.Context(), chi.URLParam(r, "identityID"), middleware.GetModeratorID(r.Context()), req.Reason, dur)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) unban(w http.ResponseWriter, r *http.Request) {
	err := h.ids.Unban(r.Context(), chi.URLParam(r, "identityID"), middleware.GetModeratorID(r.Context()))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listBanned(w http.ResponseWriter, r *http.Request) {
	list, err := h.ids.Banned(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"banned": list})
}

func (h *Handler) identityInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.gw.Info(r.Context(), chi.URLParam(r, "identityID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) suspiciousFingerprints(w http.ResponseWriter, r *http.Request) {
	threshold := 2
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, h.log, dErrors.Wrap(err, dErrors.CodeInvalidInput, "parse threshold"))
			return
		}
		threshold = n
	}

	clusters, err := h.fps.Suspicious(r.Context(), threshold)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clusters": clusters})
}
