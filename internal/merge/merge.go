// Package merge is the offline batch stage: it folds a newly exported
// harvest batch into the existing corpus, deduplicates across batches
// and scores every record for triage. It never touches live session
// state; its only input surface is the exported file.
package merge

import (
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"
)

// MergedRecord is a normalized Item plus the merge-time identity and
// quality signals. Its id is independent of the session-time id.
type MergedRecord struct {
	ID string `json:"id"`
	Item
	Quality      string `json:"quality"`
	QualityScore int    `json:"qualityScore"`
}

// Report is the outcome summary of one merge invocation.
type Report struct {
	Original          int
	Incoming          int
	DuplicatesRemoved int
	Final             int
	Batch             Histogram
	Corpus            Histogram
}

// Histogram is the tri-level quality breakdown. High/Medium follow the
// tier label; Low independently counts scores under 30, flagging
// entries worth manual review.
type Histogram struct {
	High   int
	Medium int
	Low    int
}

var whitespace = regexp.MustCompile(`\s`)

// Normalize maps a raw batch item onto a MergedRecord, defaulting every
// missing field. Normalization is total: nothing is rejected here.
func Normalize(item Item, now time.Time) MergedRecord {
	score := AssessQuality(item)

	out := MergedRecord{Item: item, QualityScore: score}

	if out.Title == "" {
		out.Title = "Untitled"
	}
	if out.Description == "" {
		out.Description = out.Title
	}
	if out.Author == "" {
		out.Author = "Unknown"
	}
	if out.Category == "" {
		out.Category = "AI Art"
	}
	if out.Image == "" && len(out.Images) > 0 {
		out.Image = out.Images[0]
	}
	if out.Images == nil {
		out.Images = []string{}
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if out.ExtractedAt == "" {
		out.ExtractedAt = now.UTC().Format(time.RFC3339)
	}
	if out.LikesCount == 0 && out.Likes > 0 {
		out.LikesCount = out.Likes
	}

	out.Quality = item.Quality
	if out.Quality == "" {
		if score >= 50 {
			out.Quality = "high"
		} else {
			out.Quality = "medium"
		}
	}

	out.ID = stableID(out.Title, out.ExtractedAt, now)
	return out
}

// AssessQuality is a weighted additive score in [0, 100]: content
// length up to 25, media count up to 25, tags up to 20, engagement up
// to 20, author presence 10.
func AssessQuality(item Item) int {
	score := 0

	contentLen := utf8.RuneCountInString(item.Content)
	switch {
	case contentLen > 150:
		score += 25
	case contentLen > 80:
		score += 15
	case contentLen > 30:
		score += 8
	}

	switch imgCount := len(item.Images); {
	case imgCount >= 2:
		score += 25
	case imgCount == 1:
		score += 15
	}

	switch tagCount := len(item.Tags); {
	case tagCount >= 3:
		score += 20
	case tagCount >= 1:
		score += 10
	}

	likes := item.LikesCount
	if likes == 0 {
		likes = item.Likes
	}
	switch engagement := likes + item.Retweets; {
	case engagement > 100:
		score += 20
	case engagement > 10:
		score += 10
	}

	if item.Author != "" && item.Author != "Unknown" {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}

// stableID derives the merge-corpus id: a truncated whitespace-stripped
// title slug plus the extraction time in milliseconds.
func stableID(title, extractedAt string, now time.Time) string {
	slug := title
	if utf8.RuneCountInString(slug) > 20 {
		slug = string([]rune(slug)[:20])
	}
	slug = whitespace.ReplaceAllString(slug, "-")

	ts, err := time.Parse(time.RFC3339, extractedAt)
	if err != nil {
		ts = now
	}
	return fmt.Sprintf("%s-%d", slug, ts.UnixMilli())
}

// dedupKey is the composite identity across batches: source URL when
// present, else the primary image, else the author-title pair.
func dedupKey(r MergedRecord) string {
	if r.SourceURL != "" {
		return r.SourceURL
	}
	if r.Image != "" {
		return r.Image
	}
	return r.Author + "-" + r.Title
}

// Deduplicate keeps the first occurrence of every composite key.
func Deduplicate(records []MergedRecord) []MergedRecord {
	seen := make(map[string]struct{}, len(records))
	unique := make([]MergedRecord, 0, len(records))
	for _, r := range records {
		key := dedupKey(r)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, r)
	}
	return unique
}

// Merge normalizes the batch, appends it to the existing corpus and
// deduplicates, first occurrence winning. The existing corpus is
// passed through untouched apart from losing later duplicates.
func Merge(existing []MergedRecord, batch []Item, now time.Time) ([]MergedRecord, Report) {
	normalized := make([]MergedRecord, 0, len(batch))
	for _, item := range batch {
		normalized = append(normalized, Normalize(item, now))
	}

	combined := make([]MergedRecord, 0, len(existing)+len(normalized))
	combined = append(combined, existing...)
	combined = append(combined, normalized...)

	unique := Deduplicate(combined)

	report := Report{
		Original:          len(existing),
		Incoming:          len(batch),
		DuplicatesRemoved: len(combined) - len(unique),
		Final:             len(unique),
		Batch:             histogram(normalized),
		Corpus:            histogram(unique),
	}
	return unique, report
}

func histogram(records []MergedRecord) Histogram {
	var h Histogram
	for _, r := range records {
		switch r.Quality {
		case "high":
			h.High++
		case "medium":
			h.Medium++
		}
		if r.QualityScore < 30 {
			h.Low++
		}
	}
	return h
}
