package record

import "fmt"

// RejectReason identifies why a node did not yield a Record.
type RejectReason string

const (
	RejectNoText      RejectReason = "no-text"
	RejectNotRelevant RejectReason = "not-relevant"
	RejectTooShort    RejectReason = "too-short"
	RejectNoMedia     RejectReason = "no-media"
	RejectNoTimestamp RejectReason = "no-timestamp"
)

// Rejection is the expected per-item outcome for nodes that fail
// extraction. It is an error so a single unparsable node never aborts a
// pass; callers count reasons at most, they never escalate.
type Rejection struct {
	Reason RejectReason
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("rejected: %s", r.Reason)
}

func Reject(reason RejectReason) *Rejection {
	return &Rejection{Reason: reason}
}
