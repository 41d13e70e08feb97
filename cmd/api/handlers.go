package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"shopify-collector-app/internal/application"
	"shopify-collector-app/internal/config"
	"shopify-collector-app/internal/domain"
	"shopify-collector-app/internal/ports"
	shopifyinfra "shopify-collector-app/internal/infrastructure/shopify"

	"github.com/rs/zerolog"
)

// recordStore is the persistence surface the handlers need: the record store
// plus a connection check for the readiness probe.
type recordStore interface {
	ports.ShopRecordStore
	Ping(ctx context.Context) error
}

type server struct {
	cfg           *config.Config
	logger        zerolog.Logger
	verifier      *shopifyinfra.WebhookVerifier
	sessions      ports.SessionStore
	platform      ports.PlatformClient
	registry      *application.ActiveShopRegistry
	auth          *application.AuthService
	subscriptions *application.SubscriptionService
	resolver      *application.UninstallResolver
	store         recordStore
	dbReady       *atomic.Bool
}

// healthHandler reports process liveness only.
func (s *server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyHandler reports readiness to take traffic. It stays negative until the
// database connection has been established and still responds to pings, so a
// load balancer never routes installs at a process that cannot persist them.
func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if !s.dbReady.Load() {
		http.Error(w, "Database connection not established", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Readiness ping failed")
		http.Error(w, "Database connection lost", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// rootHandler is the embedded-app entry point. Unknown shops are bounced into
// the OAuth flow; known shops get the embedded page.
func (s *server) rootHandler(w http.ResponseWriter, r *http.Request) {
	// The platform sometimes calls the app root with a signed request. When a
	// signature is present it must verify; its absence is a plain browser
	// visit and fine.
	if sig := r.Header.Get("X-Shopify-Hmac-SHA256"); sig != "" {
		body, err := io.ReadAll(r.Body)
		if err != nil || !s.verifier.Valid(body, sig) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	shop := r.URL.Query().Get("shop")
	if shop == "" {
		http.Error(w, "shop parameter is required", http.StatusBadRequest)
		return
	}

	host := r.URL.Query().Get("host")
	if !s.registry.IsActive(r.Context(), shop) || host == "" {
		http.Redirect(w, r, "/auth?shop="+url.QueryEscape(shop), http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><body><h1>Collector app installed for %s</h1></body></html>", shop)
}

// oauthInitHandler starts the authorization flow with a fresh CSRF state.
func (s *server) oauthInitHandler(w http.ResponseWriter, r *http.Request) {
	shop := r.URL.Query().Get("shop")
	if shop == "" {
		http.Error(w, "shop parameter is required", http.StatusBadRequest)
		return
	}

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate state")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	state := hex.EncodeToString(stateBytes)

	session := &domain.OAuthSession{
		State:     state,
		Shop:      shop,
		Host:      r.URL.Query().Get("host"),
		CreatedAt: time.Now(),
	}
	if err := s.sessions.Save(r.Context(), session); err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to save oauth session")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, s.platform.AuthorizeURL(shop, state), http.StatusFound)
}

// oauthCallbackHandler completes the authorization flow: signature check,
// state consumption, token exchange, record upsert, redirect back into the
// embedded app.
func (s *server) oauthCallbackHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	shop := r.URL.Query().Get("shop")
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if shop == "" || code == "" || state == "" {
		http.Error(w, "Missing required parameters", http.StatusBadRequest)
		return
	}

	if !s.platform.VerifyAuthorizationCallback(r.URL) {
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	session, err := s.sessions.Consume(ctx, state)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to consume oauth session")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if session == nil || session.Shop != shop {
		http.Error(w, "Invalid session", http.StatusUnauthorized)
		return
	}

	accessToken, grantedScope, err := s.platform.ExchangeToken(ctx, shop, code)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Token exchange failed")
		http.Error(w, "Failed to complete installation", http.StatusInternalServerError)
		return
	}

	_, outcome := s.auth.OnAuthCompleted(ctx, shop, accessToken, grantedScope)
	if outcome == domain.PersistDegraded {
		s.logger.Warn().Str("shop", shop).Msg("Shop installed with degraded persistence")
	}

	host := session.Host
	if h := r.URL.Query().Get("host"); h != "" {
		host = h
	}
	http.Redirect(w, r, "/?shop="+url.QueryEscape(shop)+"&host="+url.QueryEscape(host), http.StatusFound)
}

// uninstallWebhookHandler receives the app/uninstalled topic and hands it to
// the resolver. Both resolver outcomes are a 200; the platform only needs to
// know the delivery was accepted.
func (s *server) uninstallWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	if !s.verifier.Valid(body, r.Header.Get("X-Shopify-Hmac-SHA256")) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	shop := shopFromPayload(body, r)
	if shop == "" {
		http.Error(w, "shop could not be determined", http.StatusBadRequest)
		return
	}

	decision, err := s.resolver.Resolve(r.Context(), shop)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Uninstall resolution failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.logger.Info().Str("shop", shop).Str("decision", decision.String()).Msg("Uninstall notification processed")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// registerHandler creates the uninstall webhook and the script tag.
func (s *server) registerHandler(w http.ResponseWriter, r *http.Request) {
	s.subscribeHandler(w, r, s.subscriptions.Register)
}

// updateHandler re-points an existing subscription at a new collector.
func (s *server) updateHandler(w http.ResponseWriter, r *http.Request) {
	s.subscribeHandler(w, r, s.subscriptions.Update)
}

func (s *server) subscribeHandler(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, shopDomain, collectorURL string) (*application.SubscriptionResult, error),
) {
	shop := r.Header.Get("shop")
	if shop == "" {
		shop = r.URL.Query().Get("shop")
	}
	collectorURL := r.URL.Query().Get("url")
	if shop == "" || collectorURL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "shop and url are required",
		})
		return
	}

	result, err := op(r.Context(), shop, collectorURL)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Subscription operation failed")
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrNoAccessToken) {
			status = http.StatusPreconditionFailed
		}
		writeJSON(w, status, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"result":  result,
	})
}

// fetchCollectorHandler returns the collector endpoint stored for a shop.
func (s *server) fetchCollectorHandler(w http.ResponseWriter, r *http.Request) {
	shop := r.Header.Get("shop")
	if shop == "" {
		shop = r.URL.Query().Get("shop")
	}
	if shop == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "shop is required",
		})
		return
	}

	collectorURL, err := s.subscriptions.FetchCollectorURL(r.Context(), shop)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to fetch collector url")
		writeJSON(w, http.StatusNotFound, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"collectorUrl": collectorURL,
	})
}

// shopRedactHandler is the GDPR shop erasure webhook. Unlike uninstall
// resolution, this one deletes unconditionally.
func (s *server) shopRedactHandler(w http.ResponseWriter, r *http.Request) {
	body, ok := s.requireHmac(w, r)
	if !ok {
		return
	}

	var payload struct {
		ShopDomain string `json:"shop_domain"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.ShopDomain == "" {
		http.Error(w, "shop_domain is required", http.StatusBadRequest)
		return
	}

	if err := s.store.Delete(r.Context(), payload.ShopDomain); err != nil {
		s.logger.Error().Err(err).Str("shop", payload.ShopDomain).Msg("Shop redact failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.registry.Deactivate(payload.ShopDomain)

	s.logger.Info().Str("shop", payload.ShopDomain).Msg("Shop data redacted")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// customerDataRequestHandler acknowledges the GDPR data request webhook. No
// customer PII is retained, so there is nothing to export.
func (s *server) customerDataRequestHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireHmac(w, r); !ok {
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// customerRedactHandler acknowledges the GDPR customer erasure webhook. No
// customer PII is retained, so there is nothing to erase.
func (s *server) customerRedactHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireHmac(w, r); !ok {
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// requireHmac reads the body and enforces the webhook signature, writing the
// error response itself on failure.
func (s *server) requireHmac(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return nil, false
	}
	if !s.verifier.Valid(body, r.Header.Get("X-Shopify-Hmac-SHA256")) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return body, true
}

// shopFromPayload extracts the shop domain from a webhook delivery: payload
// fields first, then the shop-domain header, then the query string.
func shopFromPayload(body []byte, r *http.Request) string {
	var payload struct {
		Domain          string `json:"domain"`
		ShopDomain      string `json:"shop_domain"`
		MyshopifyDomain string `json:"myshopify_domain"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, candidate := range []string{payload.Domain, payload.ShopDomain, payload.MyshopifyDomain} {
			if candidate != "" {
				return candidate
			}
		}
	}
	if shop := r.Header.Get("X-Shopify-Shop-Domain"); shop != "" {
		return shop
	}
	return r.URL.Query().Get("shop")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
