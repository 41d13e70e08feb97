package domain

import "time"

// ShopRecord is the persisted per-shop configuration. ShopDomain is the
// primary key and is immutable once the record is created. WebhookID and
// ScriptTagID are platform-issued identifiers and are only ever values
// returned by the platform; zero means the subscription has not been
// registered yet.
type ShopRecord struct {
	ShopDomain        string    `json:"shop_domain" bson:"shop_domain"`
	AccessToken       string    `json:"access_token" bson:"access_token"`
	Scope             string    `json:"scope" bson:"scope"`
	WebhookID         uint64    `json:"webhook_id,omitempty" bson:"webhook_id,omitempty"`
	ScriptTagID       uint64    `json:"script_tag_id,omitempty" bson:"script_tag_id,omitempty"`
	CollectorWriteKey string    `json:"collector_write_key,omitempty" bson:"collector_write_key,omitempty"`
	CollectorURL      string    `json:"collector_url,omitempty" bson:"collector_url,omitempty"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" bson:"updated_at"`
}

// Active reports whether the record holds a usable credential. A nil record
// is inactive.
func (r *ShopRecord) Active() bool {
	return r != nil && r.AccessToken != ""
}
