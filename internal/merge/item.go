package merge

import (
	"time"
	"unicode/utf8"

	"github.com/user/xharvest/internal/record"
)

// Item is the export interchange format, the only shape crossing the
// boundary between a harvest session and the merge stage. The legacy
// likes/retweets/quality fields are accepted on input for older batch
// files and folded into the canonical fields during normalization.
type Item struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Content      string   `json:"content"`
	Author       string   `json:"author"`
	AuthorAvatar string   `json:"authorAvatar,omitempty"`
	AuthorURL    string   `json:"authorUrl,omitempty"`
	Category     string   `json:"category"`
	Image        string   `json:"image,omitempty"`
	Images       []string `json:"images"`
	Tags         []string `json:"tags"`
	LikesCount   int      `json:"likesCount"`
	Featured     bool     `json:"featured"`
	SourceURL    string   `json:"sourceUrl,omitempty"`
	ExtractedAt  string   `json:"extractedAt"`

	Likes    int    `json:"likes,omitempty"`
	Retweets int    `json:"retweets,omitempty"`
	Quality  string `json:"quality,omitempty"`
}

// ItemFromRecord projects a session record onto the export shape.
func ItemFromRecord(r *record.Record) Item {
	title := r.Title
	if title == "" {
		title = truncateRunes(r.Text, 50)
	}
	if title == "" {
		title = "Untitled"
	}

	desc := r.Description
	if desc == "" {
		desc = truncateRunes(r.Text, 100)
	}

	author := r.Author.DisplayName
	if author == "" {
		author = r.Author.Handle
	}
	if author == "" {
		author = "Unknown"
	}

	item := Item{
		Title:        title,
		Description:  desc,
		Content:      r.Text,
		Author:       author,
		AuthorAvatar: r.Author.AvatarURL,
		AuthorURL:    r.Author.ProfileURL,
		Category:     r.Category,
		Images:       r.Media.Images,
		Tags:         r.Tags,
		LikesCount:   r.Engagement.Likes,
		SourceURL:    r.SourceURL,
		ExtractedAt:  r.ExtractedAt.UTC().Format(time.RFC3339),
	}
	if len(item.Images) > 0 {
		item.Image = item.Images[0]
	}
	return item
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
