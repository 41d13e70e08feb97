package application

import (
	"context"
	"time"

	"shopify-collector-app/internal/domain"
	"shopify-collector-app/internal/ports"

	"github.com/rs/zerolog"
)

// AuthService finishes the OAuth flow: it marks the shop active in the
// registry and upserts the shop record. Persistence failure here is
// deliberately non-fatal - the merchant's browser redirect must complete even
// when the store is flaky, so the shop stays active for this process's
// lifetime and the returned outcome reports the degradation.
type AuthService struct {
	store    ports.ShopRecordStore
	registry *ActiveShopRegistry
	logger   zerolog.Logger
}

// NewAuthService creates the post-OAuth lifecycle service.
func NewAuthService(store ports.ShopRecordStore, registry *ActiveShopRegistry, logger zerolog.Logger) *AuthService {
	return &AuthService{
		store:    store,
		registry: registry,
		logger:   logger,
	}
}

// OnAuthCompleted upserts the shop record after a successful token exchange.
// Existing records keep their subscription ids and collector settings; only
// the access token and scope are refreshed. The returned record reflects the
// post-upsert state regardless of the persistence outcome.
func (s *AuthService) OnAuthCompleted(ctx context.Context, shopDomain, accessToken, grantedScope string) (*domain.ShopRecord, domain.PersistOutcome) {
	s.registry.Activate(shopDomain, grantedScope)

	existing, err := s.store.Get(ctx, shopDomain)
	switch {
	case err != nil:
		// fall through to the degraded path below

	case existing != nil:
		err = s.store.Update(ctx, shopDomain, func(r *domain.ShopRecord) {
			r.AccessToken = accessToken
			r.Scope = grantedScope
		})
		if err == nil {
			existing.AccessToken = accessToken
			existing.Scope = grantedScope
			s.logger.Info().Str("shop", shopDomain).Msg("Refreshed access token for existing shop")
			return existing, domain.PersistOK
		}

	default:
		now := time.Now()
		fresh := &domain.ShopRecord{
			ShopDomain:  shopDomain,
			AccessToken: accessToken,
			Scope:       grantedScope,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err = s.store.Insert(ctx, fresh); err == nil {
			s.logger.Info().Str("shop", shopDomain).Msg("Created shop record after first OAuth")
			return fresh, domain.PersistOK
		}
	}

	s.logger.Error().Err(err).Str("shop", shopDomain).
		Msg("Failed to persist shop record after OAuth; shop is active in-process only")

	degraded := &domain.ShopRecord{
		ShopDomain:  shopDomain,
		AccessToken: accessToken,
		Scope:       grantedScope,
	}
	if existing != nil {
		degraded.WebhookID = existing.WebhookID
		degraded.ScriptTagID = existing.ScriptTagID
		degraded.CollectorWriteKey = existing.CollectorWriteKey
		degraded.CollectorURL = existing.CollectorURL
		degraded.CreatedAt = existing.CreatedAt
	}
	return degraded, domain.PersistDegraded
}
