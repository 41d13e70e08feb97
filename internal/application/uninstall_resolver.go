package application

import (
	"context"
	"fmt"

	"shopify-collector-app/internal/domain"
	"shopify-collector-app/internal/ports"

	"github.com/rs/zerolog"
)

// UninstallResolver reconciles the shop record when the platform delivers an
// app/uninstalled notification. The platform has been observed to deliver
// this topic both for genuine uninstalls and, non-deterministically, for
// unrelated or duplicate callbacks while the token is still valid, so the
// notification alone is never trusted: a cheap authenticated probe against
// the platform decides instead.
type UninstallResolver struct {
	store    ports.ShopRecordStore
	client   ports.PlatformClient
	registry *ActiveShopRegistry
	signals  ports.LifecycleSignals
	logger   zerolog.Logger

	// TreatInconclusiveAsAlive keeps the record when the probe fails for a
	// non-auth reason (network fault, timeout). The bias is toward missed
	// deletions over erroneous data loss; GDPR erasure has its own explicit
	// redact route and does not depend on this heuristic.
	TreatInconclusiveAsAlive bool
}

// NewUninstallResolver creates the uninstall reconciliation service.
func NewUninstallResolver(
	store ports.ShopRecordStore,
	client ports.PlatformClient,
	registry *ActiveShopRegistry,
	signals ports.LifecycleSignals,
	logger zerolog.Logger,
) *UninstallResolver {
	return &UninstallResolver{
		store:                    store,
		client:                   client,
		registry:                 registry,
		signals:                  signals,
		logger:                   logger,
		TreatInconclusiveAsAlive: true,
	}
}

// Resolve probes the shop's token and deletes the record only when the
// platform confirms the token is revoked.
func (r *UninstallResolver) Resolve(ctx context.Context, shopDomain string) (domain.UninstallDecision, error) {
	record, err := r.store.Get(ctx, shopDomain)
	if err != nil {
		return domain.UninstallNoop, fmt.Errorf("failed to load shop record: %w", err)
	}
	if !record.Active() {
		// Already reconciled, or never installed.
		r.logger.Info().Str("shop", shopDomain).Msg("Uninstall notification for unknown or tokenless shop")
		return domain.UninstallNoop, nil
	}

	liveness := r.client.ProbeTokenLiveness(ctx, shopDomain, record.AccessToken)
	revoked := liveness == domain.TokenRevoked ||
		(liveness == domain.TokenInconclusive && !r.TreatInconclusiveAsAlive)

	if revoked {
		if err := r.store.Delete(ctx, shopDomain); err != nil {
			return domain.UninstallNoop, fmt.Errorf("failed to delete shop record: %w", err)
		}
		r.registry.Deactivate(shopDomain)
		r.signals.ShopDeleted(shopDomain)
		r.logger.Info().
			Str("shop", shopDomain).
			Str("liveness", liveness.String()).
			Msg("Token confirmed revoked; shop record deleted")
		return domain.UninstallShopDeleted, nil
	}

	r.signals.SpuriousUninstall(shopDomain)
	r.logger.Warn().
		Str("shop", shopDomain).
		Str("liveness", liveness.String()).
		Msg("Spurious uninstall notification; shop record retained")
	return domain.UninstallSpurious, nil
}
