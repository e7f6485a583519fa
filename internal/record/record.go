package record

import "time"

// Quality tiers assigned at extraction time. The merge stage computes its
// own numeric score independently; the two signals are not reconciled.
const (
	TierHigh   = "high"
	TierMedium = "medium"
)

type Author struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	ProfileURL  string `json:"profileUrl,omitempty"`
}

type Media struct {
	Images []string `json:"images"`
	Videos []string `json:"videos,omitempty"`
}

type Engagement struct {
	Likes    int `json:"likes"`
	Reshares int `json:"reshares"`
	Replies  int `json:"replies"`
}

// Record is one accepted content item. ID is handle_timestamp so that
// re-extracting the same item always yields the same key.
type Record struct {
	ID          string     `json:"id"`
	Author      Author     `json:"author"`
	Text        string     `json:"text"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags"`
	Media       Media      `json:"media"`
	Engagement  Engagement `json:"engagement"`
	SourceURL   string     `json:"sourceUrl,omitempty"`
	CreatedAt   string     `json:"createdAt"`
	ExtractedAt time.Time  `json:"extractedAt"`
	QualityTier string     `json:"qualityTier"`
}
