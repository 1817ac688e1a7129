package model

import (
	"strings"
	"time"
)

// Style selects how the summary is written.
type Style string

const (
	StyleShort    Style = "Short"
	StyleDetailed Style = "Detailed"
	StyleBullet   Style = "Bullet"
	StyleCreative Style = "Creative"

	DefaultStyle    = StyleShort
	DefaultLanguage = "English"
)

// Styles lists every accepted style in display order.
var Styles = []Style{StyleShort, StyleDetailed, StyleBullet, StyleCreative}

// ParseStyle matches s case-insensitively against the known styles.
// An empty string yields DefaultStyle.
func ParseStyle(s string) (Style, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultStyle, true
	}
	for _, st := range Styles {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// Summary is one persisted summarization, owned by exactly one user.
//
// The JSON id field is "_id" because the web client was written against a
// document store and reads item._id everywhere.
type Summary struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	Summary   string    `json:"summary"`
	Style     Style     `json:"style"`
	Language  string    `json:"language"`
	ShareID   string    `json:"shareId,omitempty"`
	Favorite  bool      `json:"favorite"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SharedSummary is the public projection served by share links.
// It has no owner reference and no favorite flag.
type SharedSummary struct {
	ID        string    `json:"_id"`
	Text      string    `json:"text"`
	Summary   string    `json:"summary"`
	Style     Style     `json:"style"`
	Language  string    `json:"language"`
	ShareID   string    `json:"shareId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Shared returns the redacted projection of s.
func (s *Summary) Shared() SharedSummary {
	return SharedSummary{
		ID:        s.ID,
		Text:      s.Text,
		Summary:   s.Summary,
		Style:     s.Style,
		Language:  s.Language,
		ShareID:   s.ShareID,
		CreatedAt: s.CreatedAt,
	}
}
