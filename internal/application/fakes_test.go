package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"shopify-collector-app/internal/domain"
)

// fakeStore is an in-memory ShopRecordStore with per-operation error
// injection.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*domain.ShopRecord

	getErr    error
	insertErr error
	updateErr error
	deleteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*domain.ShopRecord)}
}

func (s *fakeStore) put(record *domain.ShopRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.records[record.ShopDomain] = &copied
}

func (s *fakeStore) Get(ctx context.Context, shopDomain string) (*domain.ShopRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	record, ok := s.records[shopDomain]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (s *fakeStore) Insert(ctx context.Context, record *domain.ShopRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	copied := *record
	s.records[record.ShopDomain] = &copied
	return nil
}

func (s *fakeStore) Update(ctx context.Context, shopDomain string, mutate func(*domain.ShopRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	record, ok := s.records[shopDomain]
	if !ok {
		return fmt.Errorf("shop not found: %s", shopDomain)
	}
	mutate(record)
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, shopDomain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.records, shopDomain)
	return nil
}

// errConflict is what fakePlatform returns when a create is flagged as a
// duplicate; IsConflict recognizes exactly this error.
var errConflict = errors.New("topic has already been taken")

// fakePlatform is a scriptable PlatformClient.
type fakePlatform struct {
	mu sync.Mutex

	nextWebhookID   uint64
	nextScriptTagID uint64

	conflictOnCreate bool
	existingWebhooks map[string]uint64 // topic -> id, consulted by FindWebhookByTopic
	listErr          error

	createWebhookErr   error
	updateWebhookErr   error
	createScriptTagErr error
	updateScriptTagErr error

	liveness domain.TokenLiveness

	createdWebhooks   int
	createdScriptTags int
	updatedWebhooks   int
	updatedScriptTags int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		nextWebhookID:    1000,
		nextScriptTagID:  2000,
		existingWebhooks: make(map[string]uint64),
		liveness:         domain.TokenAlive,
	}
}

func (p *fakePlatform) AuthorizeURL(shop, state string) string {
	return "https://" + shop + "/admin/oauth/authorize?state=" + state
}

func (p *fakePlatform) VerifyAuthorizationCallback(u *url.URL) bool { return true }

func (p *fakePlatform) ExchangeToken(ctx context.Context, shop, code string) (string, string, error) {
	return "token-for-" + code, "read_orders", nil
}

func (p *fakePlatform) CreateWebhook(ctx context.Context, shop, accessToken, topic, address string) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createWebhookErr != nil {
		return 0, p.createWebhookErr
	}
	if p.conflictOnCreate {
		return 0, errConflict
	}
	p.createdWebhooks++
	p.nextWebhookID++
	p.existingWebhooks[topic] = p.nextWebhookID
	return p.nextWebhookID, nil
}

func (p *fakePlatform) UpdateWebhook(ctx context.Context, shop, accessToken string, webhookID uint64, address string) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updateWebhookErr != nil {
		return 0, p.updateWebhookErr
	}
	p.updatedWebhooks++
	return webhookID, nil
}

func (p *fakePlatform) FindWebhookByTopic(ctx context.Context, shop, accessToken, topic string) (uint64, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listErr != nil {
		return 0, false, p.listErr
	}
	id, ok := p.existingWebhooks[topic]
	return id, ok, nil
}

func (p *fakePlatform) CreateScriptTag(ctx context.Context, shop, accessToken, src string) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createScriptTagErr != nil {
		return 0, p.createScriptTagErr
	}
	p.createdScriptTags++
	p.nextScriptTagID++
	return p.nextScriptTagID, nil
}

func (p *fakePlatform) UpdateScriptTag(ctx context.Context, shop, accessToken string, scriptTagID uint64, src string) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updateScriptTagErr != nil {
		return 0, p.updateScriptTagErr
	}
	p.updatedScriptTags++
	return scriptTagID, nil
}

func (p *fakePlatform) ProbeTokenLiveness(ctx context.Context, shop, accessToken string) domain.TokenLiveness {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.liveness
}

func (p *fakePlatform) IsConflict(err error) bool {
	return errors.Is(err, errConflict)
}

// recorderSignals captures lifecycle events for assertions.
type recorderSignals struct {
	mu       sync.Mutex
	deleted  []string
	spurious []string
	ops      []string // "op/status"
}

func (r *recorderSignals) ShopDeleted(shop string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, shop)
}

func (r *recorderSignals) SpuriousUninstall(shop string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spurious = append(r.spurious, shop)
}

func (r *recorderSignals) SubscriptionOp(op, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op+"/"+status)
}
