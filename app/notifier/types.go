package notifier

import (
	"context"
)

// Notification is one user-facing alert. StableID identifies the logical
// alert: delivering under an already-used StableID replaces the earlier
// message instead of stacking a second one.
type Notification struct {
	Title    string
	Body     string
	StableID string
	DeepLink string
}

type Notifier interface {
	Deliver(ctx context.Context, n Notification) error
	// Retract removes a previously delivered notification for the stable
	// identifier, if one is still outstanding.
	Retract(ctx context.Context, stableID string) error
}

// MessageRefStore keeps the delivery bookkeeping needed to replace or retract
// an earlier message. The database state repository implements it.
type MessageRefStore interface {
	GetMessageRef(stableID string) (int64, bool, error)
	SetMessageRef(stableID string, messageID int64) error
	DeleteMessageRef(stableID string) error
}
