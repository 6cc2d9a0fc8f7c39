package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutTotal counts checkout submissions by payment mode and outcome.
	CheckoutTotal *prometheus.CounterVec
	// PaymentIntentTotal counts payment intent creation attempts.
	PaymentIntentTotal *prometheus.CounterVec
	// PaymentWebhookTotal counts inbound payment webhook processing outcomes.
	PaymentWebhookTotal *prometheus.CounterVec
	// TicketsIssuedTotal counts tickets issued per event.
	TicketsIssuedTotal *prometheus.CounterVec
	// TourBookingsTotal counts tour booking outcomes.
	TourBookingsTotal *prometheus.CounterVec
	// CreditBatchItemsTotal counts auto-credit batch item outcomes.
	CreditBatchItemsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout submissions by payment mode and result.",
		}, []string{"mode", "result"})
		PaymentIntentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_intent_total",
			Help:      "Count of payment intent processing outcomes.",
		}, []string{"provider", "result"})
		PaymentWebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_total",
			Help:      "Count of processed payment webhooks by outcome.",
		}, []string{"provider", "result"})
		TicketsIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_issued_total",
			Help:      "Count of issued tickets per event.",
		}, []string{"event"})
		TourBookingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tour_bookings_total",
			Help:      "Count of tour booking attempts by result.",
		}, []string{"result"})
		CreditBatchItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_batch_items_total",
			Help:      "Count of auto-credit subscription batch items by result.",
		}, []string{"result"})

		for _, c := range []struct {
			collector prometheus.Collector
			reuse     func(prometheus.Collector)
		}{
			{CheckoutTotal, func(e prometheus.Collector) { reuseCounterVec(e, &CheckoutTotal) }},
			{PaymentIntentTotal, func(e prometheus.Collector) { reuseCounterVec(e, &PaymentIntentTotal) }},
			{PaymentWebhookTotal, func(e prometheus.Collector) { reuseCounterVec(e, &PaymentWebhookTotal) }},
			{TicketsIssuedTotal, func(e prometheus.Collector) { reuseCounterVec(e, &TicketsIssuedTotal) }},
			{TourBookingsTotal, func(e prometheus.Collector) { reuseCounterVec(e, &TourBookingsTotal) }},
			{CreditBatchItemsTotal, func(e prometheus.Collector) { reuseCounterVec(e, &CreditBatchItemsTotal) }},
		} {
			mustRegisterCollector(reg, c.collector, c.reuse)
		}
	})
}

func reuseCounterVec(existing prometheus.Collector, target **prometheus.CounterVec) {
	if v, ok := existing.(*prometheus.CounterVec); ok {
		*target = v
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
