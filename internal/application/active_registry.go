package application

import (
	"context"
	"sync"

	"shopify-collector-app/internal/ports"
)

// ActiveShopRegistry is the process-local cache of currently authorized shops
// (shop domain -> granted scope). It is lost on restart, so absence from the
// map is not ground truth: IsActive consults the record store on a miss
// before deciding a shop is inactive, and re-warms the cache from a tokened
// record.
type ActiveShopRegistry struct {
	mu    sync.RWMutex
	shops map[string]string
	store ports.ShopRecordStore
}

// NewActiveShopRegistry creates a registry backed by store for miss lookups.
func NewActiveShopRegistry(store ports.ShopRecordStore) *ActiveShopRegistry {
	return &ActiveShopRegistry{
		shops: make(map[string]string),
		store: store,
	}
}

func (r *ActiveShopRegistry) Activate(shopDomain, scope string) {
	r.mu.Lock()
	r.shops[shopDomain] = scope
	r.mu.Unlock()
}

func (r *ActiveShopRegistry) Deactivate(shopDomain string) {
	r.mu.Lock()
	delete(r.shops, shopDomain)
	r.mu.Unlock()
}

// Scope returns the cached scope for a shop without consulting the store.
func (r *ActiveShopRegistry) Scope(shopDomain string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	scope, ok := r.shops[shopDomain]
	return scope, ok
}

// IsActive reports whether a shop is currently authorized.
func (r *ActiveShopRegistry) IsActive(ctx context.Context, shopDomain string) bool {
	if _, ok := r.Scope(shopDomain); ok {
		return true
	}
	if r.store == nil {
		return false
	}
	record, err := r.store.Get(ctx, shopDomain)
	if err != nil || !record.Active() {
		return false
	}
	r.Activate(shopDomain, record.Scope)
	return true
}
