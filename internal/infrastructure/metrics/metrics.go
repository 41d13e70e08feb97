package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LifecycleMetrics exposes Prometheus counters for shop lifecycle events.
type LifecycleMetrics struct {
	shopDeletions      prometheus.Counter
	spuriousUninstalls prometheus.Counter
	subscriptionOps    *prometheus.CounterVec
}

// NewLifecycleMetrics registers the lifecycle counters on the default
// registry.
func NewLifecycleMetrics() *LifecycleMetrics {
	return &LifecycleMetrics{
		shopDeletions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "shopify_collector",
			Subsystem: "lifecycle",
			Name:      "shop_deletions_total",
			Help:      "Shop records deleted after a confirmed uninstall.",
		}),
		spuriousUninstalls: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "shopify_collector",
			Subsystem: "lifecycle",
			Name:      "spurious_uninstalls_total",
			Help:      "Uninstall notifications retained because the token probe came back alive.",
		}),
		subscriptionOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopify_collector",
			Subsystem: "subscriptions",
			Name:      "operations_total",
			Help:      "Webhook and script tag subscription operations by outcome.",
		}, []string{"op", "status"}),
	}
}

func (m *LifecycleMetrics) ShopDeleted(shop string) {
	m.shopDeletions.Inc()
}

func (m *LifecycleMetrics) SpuriousUninstall(shop string) {
	m.spuriousUninstalls.Inc()
}

func (m *LifecycleMetrics) SubscriptionOp(op, status string) {
	m.subscriptionOps.WithLabelValues(op, status).Inc()
}
