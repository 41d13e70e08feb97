package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shopify-collector-app/internal/domain"
	"shopify-collector-app/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

type client struct {
	apiKey    string
	apiSecret string
	app       goshopify.App
	scopes    string
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewClient creates a Shopify-backed platform client. appURL is the public
// base URL of this app; the OAuth redirect URI is derived from it. timeout
// bounds every outbound call.
func NewClient(apiKey, apiSecret, scopes, appURL string, timeout time.Duration, logger zerolog.Logger) ports.PlatformClient {
	app := goshopify.App{
		ApiKey:      apiKey,
		ApiSecret:   apiSecret,
		RedirectUrl: strings.TrimSuffix(appURL, "/") + "/auth/callback",
		Scope:       scopes,
	}
	return &client{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		app:       app,
		scopes:    scopes,
		timeout:   timeout,
		logger:    logger,
	}
}

// createClient is a helper to create a goshopify client
func (c *client) createClient(shopDomain string, accessToken string) (*goshopify.Client, error) {
	cl, err := goshopify.NewClient(c.app, shopDomain, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return cl, nil
}

// bound detaches the call from the inbound request's cancellation and applies
// the outbound timeout. In-flight mutations run to completion even when the
// client disconnects, so remote and local state cannot be left half-applied.
func (c *client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
}

// Authentication

func (c *client) AuthorizeURL(shop string, state string) string {
	// The go-shopify AuthorizeUrl helper doesn't carry redirect_uri and
	// state, so the URL is constructed manually.
	return fmt.Sprintf(
		"https://%s/admin/oauth/authorize?client_id=%s&scope=%s&redirect_uri=%s&state=%s",
		shop,
		c.apiKey,
		url.QueryEscape(c.scopes),
		url.QueryEscape(c.app.RedirectUrl),
		url.QueryEscape(state),
	)
}

func (c *client) VerifyAuthorizationCallback(u *url.URL) bool {
	ok, err := c.app.VerifyAuthorizationURL(u)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Authorization callback verification failed")
		return false
	}
	return ok
}

func (c *client) ExchangeToken(ctx context.Context, shop string, code string) (string, string, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	// The token endpoint is called directly because the response's granted
	// scope is needed alongside the token and the redirect_uri must match the
	// one used during authorization.
	tokenURL := fmt.Sprintf("https://%s/admin/oauth/access_token", shop)

	values := url.Values{}
	values.Set("client_id", c.apiKey)
	values.Set("client_secret", c.apiSecret)
	values.Set("code", code)
	values.Set("redirect_uri", c.app.RedirectUrl)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(values.Encode()))
	if err != nil {
		return "", "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to exchange token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("failed to exchange token: status %d, body: %s", resp.StatusCode, string(body))
	}

	var tokenResponse struct {
		AccessToken string `json:"access_token"`
		Scope       string `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return "", "", fmt.Errorf("failed to decode token response: %w", err)
	}

	return tokenResponse.AccessToken, tokenResponse.Scope, nil
}

// Webhook API

func (c *client) CreateWebhook(ctx context.Context, shop, accessToken, topic, address string) (uint64, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	cl, err := c.createClient(shop, accessToken)
	if err != nil {
		return 0, err
	}
	created, err := cl.Webhook.Create(ctx, goshopify.Webhook{
		Topic:   topic,
		Address: address,
		Format:  "json",
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create webhook: %w", err)
	}
	return created.Id, nil
}

func (c *client) UpdateWebhook(ctx context.Context, shop, accessToken string, webhookID uint64, address string) (uint64, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	cl, err := c.createClient(shop, accessToken)
	if err != nil {
		return 0, err
	}
	// Get first to preserve the other fields.
	existing, err := cl.Webhook.Get(ctx, webhookID, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get webhook for update: %w", err)
	}
	existing.Address = address
	updated, err := cl.Webhook.Update(ctx, *existing)
	if err != nil {
		return 0, fmt.Errorf("failed to update webhook: %w", err)
	}
	return updated.Id, nil
}

func (c *client) FindWebhookByTopic(ctx context.Context, shop, accessToken, topic string) (uint64, bool, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	cl, err := c.createClient(shop, accessToken)
	if err != nil {
		return 0, false, err
	}
	webhooks, err := cl.Webhook.List(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to list webhooks: %w", err)
	}
	for _, w := range webhooks {
		if w.Topic == topic {
			return w.Id, true, nil
		}
	}
	return 0, false, nil
}

// Script Tag API

func (c *client) CreateScriptTag(ctx context.Context, shop, accessToken, src string) (uint64, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	cl, err := c.createClient(shop, accessToken)
	if err != nil {
		return 0, err
	}
	created, err := cl.ScriptTag.Create(ctx, goshopify.ScriptTag{
		Event: "onload",
		Src:   src,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create script tag: %w", err)
	}
	return created.Id, nil
}

func (c *client) UpdateScriptTag(ctx context.Context, shop, accessToken string, scriptTagID uint64, src string) (uint64, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	cl, err := c.createClient(shop, accessToken)
	if err != nil {
		return 0, err
	}
	updated, err := cl.ScriptTag.Update(ctx, goshopify.ScriptTag{
		Id:    scriptTagID,
		Event: "onload",
		Src:   src,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to update script tag: %w", err)
	}
	return updated.Id, nil
}

// Liveness

// ProbeTokenLiveness issues the cheapest authenticated read available (the
// webhook count) and classifies the result. Auth-denied means the token is
// revoked; success means it is alive; anything else is inconclusive.
func (c *client) ProbeTokenLiveness(ctx context.Context, shop, accessToken string) domain.TokenLiveness {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	cl, err := c.createClient(shop, accessToken)
	if err != nil {
		return domain.TokenInconclusive
	}
	if _, err := cl.Webhook.Count(ctx, nil); err != nil {
		if isAuthDenied(err) {
			return domain.TokenRevoked
		}
		c.logger.Warn().Err(err).Str("shop", shop).Msg("Liveness probe failed for a non-auth reason")
		return domain.TokenInconclusive
	}
	return domain.TokenAlive
}

func (c *client) IsConflict(err error) bool {
	var respErr goshopify.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.GetStatus()
		return status == http.StatusUnprocessableEntity || status == http.StatusConflict
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "already been taken") || strings.Contains(errStr, "422")
}

// isAuthDenied reports whether err is an authorization-denied response. The
// go-shopify library surfaces HTTP failures as ResponseError; the message
// check covers errors wrapped along other call paths.
func isAuthDenied(err error) bool {
	var respErr goshopify.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.GetStatus()
		return status == http.StatusUnauthorized || status == http.StatusForbidden
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "forbidden")
}
