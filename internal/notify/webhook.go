package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// WebhookOptions configures the HTTP notifier.
type WebhookOptions struct {
	URL       string
	Timeout   time.Duration
	RateLimit float64 // alerts per second; <= 0 disables limiting
}

// WebhookNotifier POSTs alerts as JSON.
type WebhookNotifier struct {
	client  *resty.Client
	url     string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Logger
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(opts WebhookOptions, logger *logrus.Logger) *WebhookNotifier {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &WebhookNotifier{
		client:  client,
		url:     opts.URL,
		limiter: limiter,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "alert-webhook",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Circuit breaker state changed")
			},
		}),
		log: logger,
	}
}

// Notify implements Notifier.
func (w *WebhookNotifier) Notify(ctx context.Context, alert Alert) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit: %w", err)
	}

	_, err := w.breaker.Execute(func() (interface{}, error) {
		resp, err := w.client.R().
			SetContext(ctx).
			SetBody(alert).
			Post(w.url)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("webhook returned %s", resp.Status())
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("sending alert for tick %d: %w", alert.Tick, err)
	}

	w.log.WithFields(logrus.Fields{
		"tick":     alert.Tick,
		"patients": len(alert.Patients),
	}).Info("Alert delivered to webhook")
	return nil
}
