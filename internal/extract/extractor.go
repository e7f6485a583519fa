// Package extract turns a single rendered timeline node into a Record,
// or a typed rejection. Each call is a pure function of the node's
// current state; nothing here touches session state.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/xharvest/internal/filter"
	"github.com/user/xharvest/internal/record"
)

const (
	// MinTextLength is the minimum cleaned body length, in runes.
	MinTextLength = 30
	// titleLimit bounds the derived title/description, in runes.
	titleLimit = 50
	// tier boundary: longer bodies with media are tagged high.
	highTierTextLength = 100

	profileBaseURL = "https://x.com"
)

var (
	urlPattern        = regexp.MustCompile(`https?://\S+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	numberPattern     = regexp.MustCompile(`\d+`)
	sizeSuffixPattern = regexp.MustCompile(`&name=\w+`)
)

type Extractor struct {
	minTextLength int
	now           func() time.Time
}

func New() *Extractor {
	return &Extractor{minTextLength: MinTextLength, now: time.Now}
}

// NewWithMinLength overrides the cleaned-text threshold.
func NewWithMinLength(minLen int) *Extractor {
	e := New()
	if minLen > 0 {
		e.minTextLength = minLen
	}
	return e
}

// Extract parses one timeline item. A failed node returns a
// *record.Rejection, never a panic; the caller decides whether to count
// the reason.
func (e *Extractor) Extract(node *goquery.Selection) (*record.Record, error) {
	author, sourceURL := extractAuthor(node)

	rawText := strings.TrimSpace(node.Find(`[data-testid="tweetText"]`).First().Text())
	if rawText == "" {
		return nil, record.Reject(record.RejectNoText)
	}

	// Relevance runs on the raw text so keyword matches survive
	// formatting; cleaning happens after.
	if !filter.IsRelevant(rawText) {
		return nil, record.Reject(record.RejectNotRelevant)
	}

	text := cleanText(rawText)
	if utf8.RuneCountInString(text) < e.minTextLength {
		return nil, record.Reject(record.RejectTooShort)
	}

	images := extractImages(node)
	if len(images) == 0 {
		// Image presence is a relevance signal the text filter alone
		// cannot guarantee.
		return nil, record.Reject(record.RejectNoMedia)
	}
	videos := extractVideos(node)

	engagement := record.Engagement{
		Likes:    counterFromLabel(node, "like"),
		Reshares: counterFromLabel(node, "retweet"),
		Replies:  counterFromLabel(node, "reply"),
	}

	timestamp, ok := node.Find("time").First().Attr("datetime")
	if !ok || timestamp == "" {
		return nil, record.Reject(record.RejectNoTimestamp)
	}

	handle := author.Handle
	if handle == "" {
		handle = "unknown"
	}

	title := firstLineTruncated(rawText, titleLimit)

	tier := record.TierMedium
	if utf8.RuneCountInString(text) > highTierTextLength && len(images) > 0 {
		tier = record.TierHigh
	}

	return &record.Record{
		ID:          fmt.Sprintf("%s_%s", handle, timestamp),
		Author:      author,
		Text:        text,
		Title:       title,
		Description: title,
		Category:    filter.Category(rawText),
		Tags:        filter.Tags(rawText),
		Media:       record.Media{Images: images, Videos: videos},
		Engagement:  engagement,
		SourceURL:   sourceURL,
		CreatedAt:   timestamp,
		ExtractedAt: e.now(),
		QualityTier: tier,
	}, nil
}

// extractAuthor resolves handle, display name, avatar and URLs. Missing
// author data never rejects the item; downstream tolerates it.
func extractAuthor(node *goquery.Selection) (record.Author, string) {
	var author record.Author
	var sourceURL string

	link := node.Find(`a[role="link"][href^="/"]`).First()
	if href, ok := link.Attr("href"); ok {
		parts := strings.SplitN(strings.TrimPrefix(href, "/"), "/", 2)
		if len(parts) > 0 && parts[0] != "" {
			author.Handle = parts[0]
			author.ProfileURL = profileBaseURL + "/" + author.Handle
		}
		if permalink, ok := node.Find(`a[href*="/status/"]`).First().Attr("href"); ok {
			sourceURL = profileBaseURL + permalink
		}
	}

	name := strings.TrimSpace(node.Find(`[data-testid="User-Name"] span`).First().Text())
	if name != "" {
		author.DisplayName = name
	} else {
		author.DisplayName = "Unknown"
	}

	avatar := node.Find(`[data-testid="Tweet-User-Avatar"] img, a[role="link"][href^="/"] img`).First()
	if src, ok := avatar.Attr("src"); ok && src != "" && !strings.Contains(src, "emoji") {
		author.AvatarURL = sizeSuffixPattern.ReplaceAllString(src, "&name=200x200")
	}

	return author, sourceURL
}

// cleanText strips URLs and collapses whitespace.
func cleanText(text string) string {
	text = urlPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

// extractImages collects post media, excluding profile thumbnails and
// emoji glyphs, normalized to the original-resolution variant.
func extractImages(node *goquery.Selection) []string {
	var images []string
	seen := map[string]struct{}{}
	node.Find(`img[src*="media"]`).Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || src == "" {
			return
		}
		if strings.Contains(src, "profile_images") || strings.Contains(src, "emoji") {
			return
		}
		src = sizeSuffixPattern.ReplaceAllString(src, "&name=orig")
		if _, dup := seen[src]; dup {
			return
		}
		seen[src] = struct{}{}
		images = append(images, src)
	})
	return images
}

func extractVideos(node *goquery.Selection) []string {
	var videos []string
	node.Find("video").Each(func(_ int, v *goquery.Selection) {
		if src, ok := v.Attr("src"); ok && src != "" {
			videos = append(videos, src)
		}
	})
	return videos
}

// counterFromLabel parses an engagement count from the accessible label
// of an action button. Best effort: any parse failure means 0.
func counterFromLabel(node *goquery.Selection, testID string) int {
	label, ok := node.Find(fmt.Sprintf(`[data-testid="%s"]`, testID)).First().Attr("aria-label")
	if !ok {
		return 0
	}
	match := numberPattern.FindString(label)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

func firstLineTruncated(text string, limit int) string {
	line := text
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	runes := []rune(line)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return line
}
