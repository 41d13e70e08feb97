package entity

import (
	"time"

	"shopify-collector-app/internal/domain"
)

// MongoShopDoc is the MongoDB document shape for a shop record.
type MongoShopDoc struct {
	ShopDomain        string    `bson:"shop_domain"`
	AccessToken       string    `bson:"access_token"`
	Scope             string    `bson:"scope"`
	WebhookID         uint64    `bson:"webhook_id,omitempty"`
	ScriptTagID       uint64    `bson:"script_tag_id,omitempty"`
	CollectorWriteKey string    `bson:"collector_write_key,omitempty"`
	CollectorURL      string    `bson:"collector_url,omitempty"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

// ToDomain converts the stored document into the domain record.
func (d *MongoShopDoc) ToDomain() *domain.ShopRecord {
	return &domain.ShopRecord{
		ShopDomain:        d.ShopDomain,
		AccessToken:       d.AccessToken,
		Scope:             d.Scope,
		WebhookID:         d.WebhookID,
		ScriptTagID:       d.ScriptTagID,
		CollectorWriteKey: d.CollectorWriteKey,
		CollectorURL:      d.CollectorURL,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

// MongoShopDocFromDomain converts a domain record into its document shape.
func MongoShopDocFromDomain(r *domain.ShopRecord) *MongoShopDoc {
	return &MongoShopDoc{
		ShopDomain:        r.ShopDomain,
		AccessToken:       r.AccessToken,
		Scope:             r.Scope,
		WebhookID:         r.WebhookID,
		ScriptTagID:       r.ScriptTagID,
		CollectorWriteKey: r.CollectorWriteKey,
		CollectorURL:      r.CollectorURL,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}
