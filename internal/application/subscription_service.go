package application

import (
	"context"
	"fmt"
	"net/url"

	"shopify-collector-app/internal/domain"
	"shopify-collector-app/internal/ports"

	"github.com/rs/zerolog"
)

// UninstallTopic is the one webhook topic this app subscribes to.
const UninstallTopic = "app/uninstalled"

// SubscriptionService creates or updates the uninstall webhook and the
// storefront script tag for a shop, persisting the platform-issued ids on the
// shop record.
type SubscriptionService struct {
	store       ports.ShopRecordStore
	client      ports.PlatformClient
	signals     ports.LifecycleSignals
	logger      zerolog.Logger
	trackerBase string
}

// SubscriptionResult reports the ids a register or update run ended with.
type SubscriptionResult struct {
	WebhookID    uint64 `json:"webhookId"`
	ScriptTagID  uint64 `json:"scriptTagId"`
	ScriptTagSet bool   `json:"scriptTagSet"`
	ScriptURL    string `json:"scriptUrl"`
}

// NewSubscriptionService creates the webhook/script-tag subscription service.
// trackerBase is the host serving the tracking loader script.
func NewSubscriptionService(
	store ports.ShopRecordStore,
	client ports.PlatformClient,
	signals ports.LifecycleSignals,
	logger zerolog.Logger,
	trackerBase string,
) *SubscriptionService {
	return &SubscriptionService{
		store:       store,
		client:      client,
		signals:     signals,
		logger:      logger,
		trackerBase: trackerBase,
	}
}

// Register creates the uninstall webhook and the script tag for a shop and
// persists the returned ids. A duplicate create reported as a conflict by the
// platform is treated as success (the platform dedupes by topic+address), so
// a retried registration is safe to re-issue in full.
func (s *SubscriptionService) Register(ctx context.Context, shopDomain, collectorURL string) (*SubscriptionResult, error) {
	record, err := s.requireToken(ctx, shopDomain)
	if err != nil {
		return nil, err
	}

	src, writeKey, err := s.scriptTagURL(collectorURL)
	if err != nil {
		return nil, err
	}

	webhookID, err := s.createWebhook(ctx, record, collectorURL)
	if err != nil {
		s.signals.SubscriptionOp("register", "failed")
		return nil, &domain.SubscriptionError{Leg: domain.LegWebhook, Err: err}
	}

	scriptTagID, err := s.client.CreateScriptTag(ctx, record.ShopDomain, record.AccessToken, src)
	if err != nil {
		s.signals.SubscriptionOp("register", "failed")
		return nil, &domain.SubscriptionError{Leg: domain.LegScriptTag, Err: err}
	}

	result := &SubscriptionResult{
		WebhookID:    webhookID,
		ScriptTagID:  scriptTagID,
		ScriptTagSet: true,
		ScriptURL:    src,
	}
	if err := s.persistIDs(ctx, shopDomain, result, writeKey, collectorURL); err != nil {
		s.signals.SubscriptionOp("register", "diverged")
		return result, &domain.SubscriptionError{Leg: domain.LegPersist, Err: err}
	}

	s.signals.SubscriptionOp("register", "ok")
	s.logger.Info().
		Str("shop", shopDomain).
		Uint64("webhookId", webhookID).
		Uint64("scriptTagId", scriptTagID).
		Msg("Registered uninstall webhook and script tag")
	return result, nil
}

// Update re-points the previously registered webhook and script tag at a new
// collector endpoint. When no ids were stored, there is nothing to update
// against and it falls back to full registration.
func (s *SubscriptionService) Update(ctx context.Context, shopDomain, collectorURL string) (*SubscriptionResult, error) {
	record, err := s.requireToken(ctx, shopDomain)
	if err != nil {
		return nil, err
	}

	if record.WebhookID == 0 || record.ScriptTagID == 0 {
		s.logger.Info().Str("shop", shopDomain).Msg("No stored subscription ids; falling back to registration")
		return s.Register(ctx, shopDomain, collectorURL)
	}

	src, writeKey, err := s.scriptTagURL(collectorURL)
	if err != nil {
		return nil, err
	}

	webhookID, err := s.client.UpdateWebhook(ctx, record.ShopDomain, record.AccessToken, record.WebhookID, collectorURL)
	if err != nil {
		s.signals.SubscriptionOp("update", "failed")
		return nil, &domain.SubscriptionError{Leg: domain.LegWebhook, Err: err}
	}

	scriptTagID, err := s.client.UpdateScriptTag(ctx, record.ShopDomain, record.AccessToken, record.ScriptTagID, src)
	if err != nil {
		s.signals.SubscriptionOp("update", "failed")
		return nil, &domain.SubscriptionError{Leg: domain.LegScriptTag, Err: err}
	}

	result := &SubscriptionResult{
		WebhookID:    webhookID,
		ScriptTagID:  scriptTagID,
		ScriptTagSet: true,
		ScriptURL:    src,
	}
	if err := s.persistIDs(ctx, shopDomain, result, writeKey, collectorURL); err != nil {
		s.signals.SubscriptionOp("update", "diverged")
		return result, &domain.SubscriptionError{Leg: domain.LegPersist, Err: err}
	}

	s.signals.SubscriptionOp("update", "ok")
	s.logger.Info().
		Str("shop", shopDomain).
		Uint64("webhookId", webhookID).
		Uint64("scriptTagId", scriptTagID).
		Msg("Updated uninstall webhook and script tag")
	return result, nil
}

// FetchCollectorURL returns the collector endpoint currently stored for a
// shop.
func (s *SubscriptionService) FetchCollectorURL(ctx context.Context, shopDomain string) (string, error) {
	record, err := s.store.Get(ctx, shopDomain)
	if err != nil {
		return "", fmt.Errorf("failed to load shop record: %w", err)
	}
	if record == nil {
		return "", fmt.Errorf("shop not found: %s", shopDomain)
	}
	return record.CollectorURL, nil
}

func (s *SubscriptionService) requireToken(ctx context.Context, shopDomain string) (*domain.ShopRecord, error) {
	record, err := s.store.Get(ctx, shopDomain)
	if err != nil {
		return nil, fmt.Errorf("failed to load shop record: %w", err)
	}
	if !record.Active() {
		return nil, domain.ErrNoAccessToken
	}
	return record, nil
}

// scriptTagURL derives the tracking-loader URL from the collector endpoint.
// The write key and the data plane host are extracted once and stored for
// idempotent update comparisons.
func (s *SubscriptionService) scriptTagURL(collectorURL string) (src, writeKey string, err error) {
	parsed, err := url.Parse(collectorURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid collector url %q: %w", collectorURL, err)
	}
	writeKey = parsed.Query().Get("writeKey")
	src = fmt.Sprintf("https://%s/load?writeKey=%s&dataPlaneUrl=%s",
		s.trackerBase, url.QueryEscape(writeKey), url.QueryEscape(parsed.Hostname()))
	return src, writeKey, nil
}

// createWebhook issues the create call, treating the platform's
// duplicate-subscription conflict as success and recovering the existing id
// so it is never fabricated locally.
func (s *SubscriptionService) createWebhook(ctx context.Context, record *domain.ShopRecord, address string) (uint64, error) {
	id, err := s.client.CreateWebhook(ctx, record.ShopDomain, record.AccessToken, UninstallTopic, address)
	if err == nil {
		return id, nil
	}
	if !s.client.IsConflict(err) {
		return 0, err
	}

	existingID, found, listErr := s.client.FindWebhookByTopic(ctx, record.ShopDomain, record.AccessToken, UninstallTopic)
	if listErr == nil && found {
		return existingID, nil
	}
	if record.WebhookID != 0 {
		s.logger.Warn().Err(listErr).Str("shop", record.ShopDomain).
			Msg("Webhook already subscribed; keeping previously stored id")
		return record.WebhookID, nil
	}
	return 0, fmt.Errorf("webhook already subscribed but id could not be recovered: %w", err)
}

func (s *SubscriptionService) persistIDs(ctx context.Context, shopDomain string, result *SubscriptionResult, writeKey, collectorURL string) error {
	return s.store.Update(ctx, shopDomain, func(r *domain.ShopRecord) {
		r.WebhookID = result.WebhookID
		r.ScriptTagID = result.ScriptTagID
		r.CollectorWriteKey = writeKey
		r.CollectorURL = collectorURL
	})
}
