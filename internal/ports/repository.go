package ports

import (
	"context"

	"shopify-collector-app/internal/domain"
)

// ShopRecordStore defines the interface for shop record persistence.
// Implementations must be safe for concurrent use across shop domains;
// same-key writes are last-writer-wins.
type ShopRecordStore interface {
	// Get returns the record for a shop, or nil when absent.
	Get(ctx context.Context, shopDomain string) (*domain.ShopRecord, error)
	Insert(ctx context.Context, record *domain.ShopRecord) error
	// Update loads the stored record, applies mutate and persists the result.
	Update(ctx context.Context, shopDomain string, mutate func(*domain.ShopRecord)) error
	Delete(ctx context.Context, shopDomain string) error
}

// SessionStore persists short-lived OAuth state nonces.
type SessionStore interface {
	Save(ctx context.Context, session *domain.OAuthSession) error
	// Consume returns and removes the session for a state nonce, or nil when
	// the state is unknown or expired.
	Consume(ctx context.Context, state string) (*domain.OAuthSession, error)
}
