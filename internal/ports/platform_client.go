package ports

import (
	"context"
	"net/url"

	"shopify-collector-app/internal/domain"
)

// PlatformClient defines the platform Admin API surface used by the app.
// Every call is issued on behalf of one shop with that shop's access token.
type PlatformClient interface {
	// OAuth
	AuthorizeURL(shop string, state string) string
	VerifyAuthorizationCallback(u *url.URL) bool
	ExchangeToken(ctx context.Context, shop string, code string) (accessToken string, grantedScope string, err error)

	// Webhook subscriptions
	CreateWebhook(ctx context.Context, shop, accessToken, topic, address string) (uint64, error)
	UpdateWebhook(ctx context.Context, shop, accessToken string, webhookID uint64, address string) (uint64, error)
	// FindWebhookByTopic recovers the id of an existing subscription, used
	// when a create call reports the topic+address pair as already taken.
	FindWebhookByTopic(ctx context.Context, shop, accessToken, topic string) (uint64, bool, error)

	// Script tags
	CreateScriptTag(ctx context.Context, shop, accessToken, src string) (uint64, error)
	UpdateScriptTag(ctx context.Context, shop, accessToken string, scriptTagID uint64, src string) (uint64, error)

	// ProbeTokenLiveness issues a cheap authenticated read and classifies the
	// outcome. It never returns an error: anything that is not a clear
	// success or a clear authorization denial is inconclusive.
	ProbeTokenLiveness(ctx context.Context, shop, accessToken string) domain.TokenLiveness

	// IsConflict reports whether err is the platform's duplicate-subscription
	// response.
	IsConflict(err error) bool
}

// LifecycleSignals receives observability events from the lifecycle
// subsystem.
type LifecycleSignals interface {
	ShopDeleted(shop string)
	SpuriousUninstall(shop string)
	SubscriptionOp(op, status string)
}
