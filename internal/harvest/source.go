package harvest

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// ContentSource abstracts the observed document so sessions can run
// against a live page or a scripted fake.
type ContentSource interface {
	// ListVisibleItems returns the currently rendered content nodes.
	// The returned selections are only valid until the next call.
	ListVisibleItems(ctx context.Context) ([]*goquery.Selection, error)
	// ScrollToEnd moves the view to the bottom so more content loads.
	ScrollToEnd(ctx context.Context) error
	// Mutations signals that the rendered content may have changed.
	Mutations() <-chan struct{}
}
