package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutTotal counts checkout attempts by outcome.
	CheckoutTotal *prometheus.CounterVec
	// RuleAppliedTotal counts discount rule applications by rule code.
	RuleAppliedTotal *prometheus.CounterVec
	// DiscountAmount observes the discount total per order in øre.
	DiscountAmount prometheus.Histogram
	// PaymentIntentTotal counts payment intent creation attempts.
	PaymentIntentTotal *prometheus.CounterVec
	// PaymentWebhookTotal counts inbound payment webhook outcomes.
	PaymentWebhookTotal *prometheus.CounterVec
	// EmailDeliveryTotal counts transactional email delivery outcomes.
	EmailDeliveryTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers the domain collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout attempts by outcome.",
		}, []string{"org", "result"})
		RuleAppliedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discount_rule_applied_total",
			Help:      "Count of discount rule applications by rule code.",
		}, []string{"org", "rule"})
		DiscountAmount = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_discount_cents",
			Help:      "Discount total per order in øre.",
			Buckets:   []float64{0, 1000, 5000, 10000, 25000, 50000, 100000, 250000},
		})
		PaymentIntentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_intent_total",
			Help:      "Count of payment intent creation outcomes.",
		}, []string{"provider", "result"})
		PaymentWebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_total",
			Help:      "Count of processed payment webhooks by outcome.",
		}, []string{"provider", "result"})
		EmailDeliveryTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_delivery_total",
			Help:      "Count of transactional email delivery outcomes.",
		}, []string{"topic", "result"})

		for _, c := range []prometheus.Collector{
			CheckoutTotal, RuleAppliedTotal, DiscountAmount,
			PaymentIntentTotal, PaymentWebhookTotal, EmailDeliveryTotal,
		} {
			registerDomainCollector(reg, c)
		}
	})
}

func registerDomainCollector(reg prometheus.Registerer, collector prometheus.Collector) {
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
