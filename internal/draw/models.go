package draw

import "time"

// Result is the permanent record of one campaign's draw. Winners are stored
// in selection order; Seed makes the selection reproducible for dispute
// review.
type Result struct {
	CampaignID string    `json:"campaign_id"`
	Winners    []string  `json:"winners"`
	Seed       int64     `json:"seed"`
	EntryCount int       `json:"entry_count"`
	DrawnAt    time.Time `json:"drawn_at"`
	DrawnBy    string    `json:"drawn_by"`
}
