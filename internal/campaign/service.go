package campaign

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"fairdraw/internal/audit"
	dErrors "fairdraw/pkg/domain-errors"
	"fairdraw/pkg/platform/sentinel"
	"fairdraw/pkg/platform/tx"
)

// Service owns the campaign lifecycle.
type Service struct {
	store   Store
	txr     tx.Runner
	auditor audit.Emitter
}

func NewService(store Store, txr tx.Runner, auditor audit.Emitter) *Service {
	return &Service{store: store, txr: txr, auditor: auditor}
}

// CreateParams describe a new drawing.
type CreateParams struct {
	Title       string
	Description string
	WinnerCount int
	Duration    time.Duration
	ModeratorID string
}

// Create opens a campaign now, closing Duration later (24h default).
func (s *Service) Create(ctx context.Context, p CreateParams) (Campaign, error) {
	if p.Title == "" {
		return Campaign{}, dErrors.New(dErrors.CodeInvalidInput, "title is required")
	}
	if p.WinnerCount < 1 {
		return Campaign{}, dErrors.New(dErrors.CodeInvalidInput, "winner count must be at least 1")
	}
	if p.Duration <= 0 {
		p.Duration = 24 * time.Hour
	}

	now := time.Now()
	c := Campaign{
		ID:          uuid.NewString(),
		Title:       p.Title,
		Description: p.Description,
		WinnerCount: p.WinnerCount,
		OpensAt:     now,
		ClosesAt:    now.Add(p.Duration),
		Status:      StatusOpen,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return Campaign{}, dErrors.Wrap(err, dErrors.CodeInternal, "create campaign")
	}

	_ = s.auditor.Emit(ctx, audit.Event{
		Action:     audit.ActionCampaignCreated,
		CampaignID: c.ID,
		ActorID:    p.ModeratorID,
		Detail:     c.Title,
	})
	return c, nil
}

// Close transitions the campaign to Closed. A second close reports a Conflict
// without corrupting state.
func (s *Service) Close(ctx context.Context, id, moderatorID string) error {
	err := s.txr.RunInTx(ctx, id, func(ctx context.Context) error {
		return s.store.Close(ctx, id, time.Now())
	})
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeConflict, "campaign already closed")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Newf(dErrors.CodeNotFound, "campaign %s not found", id)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "close campaign")
	}

	_ = s.auditor.Emit(ctx, audit.Event{
		Action:     audit.ActionCampaignClosed,
		CampaignID: id,
		ActorID:    moderatorID,
	})
	return nil
}

// Get returns the campaign or a NotFound domain error.
func (s *Service) Get(ctx context.Context, id string) (Campaign, error) {
	c, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Campaign{}, dErrors.Newf(dErrors.CodeNotFound, "campaign %s not found", id)
		}
		return Campaign{}, dErrors.Wrap(err, dErrors.CodeInternal, "find campaign")
	}
	return c, nil
}

// IsJoinable reports whether the campaign currently accepts entries. The
// wall-clock window applies even before an explicit Close.
func (s *Service) IsJoinable(ctx context.Context, id string) bool {
	c, err := s.store.FindByID(ctx, id)
	return err == nil && c.Joinable(time.Now())
}

// ListOpen returns open campaigns, soonest-closing first.
func (s *Service) ListOpen(ctx context.Context) ([]Campaign, error) {
	out, err := s.store.ListOpen(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list open campaigns")
	}
	return out, nil
}

// SetAnnouncementRef records the transport's message reference after the
// campaign announcement is posted.
func (s *Service) SetAnnouncementRef(ctx context.Context, id, ref string) error {
	if err := s.store.SetAnnouncementRef(ctx, id, ref); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "campaign %s not found", id)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "set announcement ref")
	}
	return nil
}
