package ports

import (
	"context"
	"cone-tracker-service/internal/domain"
)

// Port: a boundary for the opt-in mailing list.
type MailingListRepository interface {
	// Add a subscriber unless this IP subscribed inside the cooldown
	// window. Returns false when rate limited.
	Subscribe(ctx context.Context, email, ip string) (bool, error)
}

// Optional extension of MailingListRepository used by bulk tooling.
type MailingListReader interface {
	MailingListRepository
	// Return every parseable entry in file order.
	ListEntries(ctx context.Context) ([]domain.MailingListEntry, error)
}
