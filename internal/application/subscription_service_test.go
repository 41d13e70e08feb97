package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	"shopify-collector-app/internal/domain"

	"github.com/rs/zerolog"
)

const trackerBase = "shopify-tracker.example.com"

func newSubscriptionFixture() (*SubscriptionService, *fakeStore, *fakePlatform, *recorderSignals) {
	store := newFakeStore()
	platform := newFakePlatform()
	signals := &recorderSignals{}
	svc := NewSubscriptionService(store, platform, signals, zerolog.Nop(), trackerBase)
	return svc, store, platform, signals
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	const shop = "shop1.myshopify.com"
	const collectorURL = "https://collector.example/v1/webhook?writeKey=WK1"

	t.Run("creates webhook and script tag and persists ids", func(t *testing.T) {
		svc, store, _, signals := newSubscriptionFixture()
		store.put(&domain.ShopRecord{ShopDomain: shop, AccessToken: "tok"})

		result, err := svc.Register(ctx, shop, collectorURL)
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		if result.WebhookID == 0 || result.ScriptTagID == 0 {
			t.Fatalf("missing platform ids: %+v", result)
		}
		if !strings.Contains(result.ScriptURL, "writeKey=WK1") {
			t.Errorf("script url missing write key: %s", result.ScriptURL)
		}
		if !strings.Contains(result.ScriptURL, "dataPlaneUrl=collector.example") {
			t.Errorf("script url missing data plane host: %s", result.ScriptURL)
		}
		if !strings.HasPrefix(result.ScriptURL, "https://"+trackerBase+"/load?") {
			t.Errorf("script url not on tracker host: %s", result.ScriptURL)
		}

		stored, _ := store.Get(ctx, shop)
		if stored.WebhookID != result.WebhookID || stored.ScriptTagID != result.ScriptTagID {
			t.Fatalf("ids not persisted: %+v", stored)
		}
		if stored.CollectorWriteKey != "WK1" || stored.CollectorURL != collectorURL {
			t.Fatalf("collector settings not persisted: %+v", stored)
		}
		if len(signals.ops) != 1 || signals.ops[0] != "register/ok" {
			t.Fatalf("ops = %v", signals.ops)
		}
	})

	t.Run("requires a stored access token", func(t *testing.T) {
		svc, _, _, _ := newSubscriptionFixture()

		_, err := svc.Register(ctx, shop, collectorURL)
		if !errors.Is(err, domain.ErrNoAccessToken) {
			t.Fatalf("err = %v, want ErrNoAccessToken", err)
		}
	})

	t.Run("duplicate webhook conflict recovers the existing id", func(t *testing.T) {
		svc, store, platform, _ := newSubscriptionFixture()
		store.put(&domain.ShopRecord{ShopDomain: shop, AccessToken: "tok"})
		platform.conflictOnCreate = true
		platform.existingWebhooks[UninstallTopic] = 777

		result, err := svc.Register(ctx, shop, collectorURL)
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		if result.WebhookID != 777 {
			t.Fatalf("WebhookID = %d, want the recovered 777", result.WebhookID)
		}
	})

	t.Run("conflict with unlistable webhooks falls back to the stored id", func(t *testing.T) {
		svc, store, platform, _ := newSubscriptionFixture()
		store.put(&domain.ShopRecord{ShopDomain: shop, AccessToken: "tok", WebhookID: 555})
		platform.conflictOnCreate = true
		platform.listErr = errors.New("rate limited")

		result, err := svc.Register(ctx, shop, collectorURL)
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		if result.WebhookID != 555 {
			t.Fatalf("WebhookID = %d, want the stored 555", result.WebhookID)
		}
	})

	t.Run("conflict with no recoverable id fails", func(t *testing.T) {
		svc, store, platform, _ := newSubscriptionFixture()
		store.put(&domain.ShopRecord{ShopDomain: shop, AccessToken: "tok"})
		platform.conflictOnCreate = true
		platform.listErr = errors.New("rate limited")

		_, err := svc.Register(ctx, shop, collectorURL)
		var subErr *domain.SubscriptionError
		if !errors.As(err, &subErr) || subErr.Leg != domain.LegWebhook {
			t.Fatalf("err = %v, want webhook-leg subscription error", err)
		}
	})

	t.Run("persist failure reports divergence but returns the ids", func(t *testing.T) {
		svc, store, _, signals := newSubscriptionFixture()
		store.put(&domain.ShopRecord{ShopDomain: shop, AccessToken: "tok"})
		store.updateErr = errors.New("connection reset")

		result, err := svc.Register(ctx, shop, collectorURL)
		var subErr *domain.SubscriptionError
		if !errors.As(err, &subErr) || subErr.Leg != domain.LegPersist {
			t.Fatalf("err = %v, want persist-leg subscription error", err)
		}
		if result == nil || result.WebhookID == 0 {
			t.Fatalf("the remote ids must still be reported: %+v", result)
		}
		if len(signals.ops) != 1 || signals.ops[0] != "register/diverged" {
			t.Fatalf("ops = %v", signals.ops)
		}
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	const shop = "shop1.myshopify.com"

	t.Run("re-points stored subscriptions", func(t *testing.T) {
		svc, store, platform, signals := newSubscriptionFixture()
		store.put(&domain.ShopRecord{
			ShopDomain:        shop,
			AccessToken:       "tok",
			WebhookID:         11,
			ScriptTagID:       22,
			CollectorWriteKey: "WK1",
			CollectorURL:      "https://old.example/?writeKey=WK1",
		})

		result, err := svc.Update(ctx, shop, "https://new.example/v1/webhook?writeKey=WK2")
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if result.WebhookID != 11 || result.ScriptTagID != 22 {
			t.Fatalf("ids changed on update: %+v", result)
		}
		if platform.updatedWebhooks != 1 || platform.updatedScriptTags != 1 {
			t.Fatalf("expected update calls, got %d/%d", platform.updatedWebhooks, platform.updatedScriptTags)
		}
		if platform.createdWebhooks != 0 {
			t.Fatal("update must not create a new webhook")
		}

		stored, _ := store.Get(ctx, shop)
		if stored.CollectorWriteKey != "WK2" {
			t.Fatalf("write key not refreshed: %+v", stored)
		}
		if len(signals.ops) != 1 || signals.ops[0] != "update/ok" {
			t.Fatalf("ops = %v", signals.ops)
		}
	})

	t.Run("falls back to registration when no ids are stored", func(t *testing.T) {
		svc, store, platform, _ := newSubscriptionFixture()
		store.put(&domain.ShopRecord{ShopDomain: shop, AccessToken: "tok"})

		result, err := svc.Update(ctx, shop, "https://collector.example/?writeKey=WK1")
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if platform.createdWebhooks != 1 || platform.createdScriptTags != 1 {
			t.Fatalf("expected create calls, got %d/%d", platform.createdWebhooks, platform.createdScriptTags)
		}
		if result.WebhookID == 0 || result.ScriptTagID == 0 {
			t.Fatalf("missing ids after fallback: %+v", result)
		}
	})

	t.Run("requires a stored access token", func(t *testing.T) {
		svc, _, _, _ := newSubscriptionFixture()

		_, err := svc.Update(ctx, shop, "https://collector.example/?writeKey=WK1")
		if !errors.Is(err, domain.ErrNoAccessToken) {
			t.Fatalf("err = %v, want ErrNoAccessToken", err)
		}
	})
}

func TestFetchCollectorURL(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _ := newSubscriptionFixture()
	store.put(&domain.ShopRecord{
		ShopDomain:   "shop1.myshopify.com",
		AccessToken:  "tok",
		CollectorURL: "https://collector.example/?writeKey=WK1",
	})

	got, err := svc.FetchCollectorURL(ctx, "shop1.myshopify.com")
	if err != nil {
		t.Fatalf("FetchCollectorURL: %v", err)
	}
	if got != "https://collector.example/?writeKey=WK1" {
		t.Fatalf("got %q", got)
	}

	if _, err := svc.FetchCollectorURL(ctx, "unknown.myshopify.com"); err == nil {
		t.Fatal("expected error for unknown shop")
	}
}
