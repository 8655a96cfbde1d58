// Package notify delivers high-risk alerts to the doctors on call.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chronic-risk-monitor/internal/alerting"
	"github.com/chronic-risk-monitor/internal/domain"
)

// AlertPatient is one at-risk patient in an alert.
type AlertPatient struct {
	PatientID        int  `json:"patient_id"`
	Diabetes         bool `json:"diabetes"`
	HypertensionRisk bool `json:"hypertension_risk"`
}

// Alert is sent once per tick whose roster is non-empty.
type Alert struct {
	Tick        uint64         `json:"tick"`
	GeneratedAt time.Time      `json:"generated_at"`
	Message     string         `json:"message"`
	Patients    []AlertPatient `json:"patients"`
	Summary     string         `json:"summary"`
}

// NewAlert builds the alert for a tick from its assessed patients. ok is
// false when nobody is at risk.
func NewAlert(tick uint64, generatedAt time.Time, risks []domain.PatientRisk) (Alert, bool) {
	high := alerting.HighRisk(risks)
	if len(high) == 0 {
		return Alert{}, false
	}

	patients := make([]AlertPatient, len(high))
	for i, r := range high {
		patients[i] = AlertPatient{
			PatientID:        r.PatientID(),
			Diabetes:         r.Prediction.Diabetes,
			HypertensionRisk: r.Prediction.HypertensionRisk,
		}
	}
	return Alert{
		Tick:        tick,
		GeneratedAt: generatedAt,
		Message:     alerting.RosterAtRiskMessage,
		Patients:    patients,
		Summary:     alerting.RosterSummary(tick, risks),
	}, true
}

// Notifier delivers an alert.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// Nop discards alerts.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Alert) error { return nil }

// Multi fans an alert out to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes alerts to the log. It is always part of the chain so an
// alert is visible even without external sinks.
type LogNotifier struct {
	log *logrus.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, alert Alert) error {
	ids := make([]int, len(alert.Patients))
	for i, p := range alert.Patients {
		ids[i] = p.PatientID
	}
	n.log.WithFields(logrus.Fields{
		"tick":      alert.Tick,
		"high_risk": ids,
	}).Warn(alert.Message)
	return nil
}

// FromConfig builds the notifier chain for the configured sinks. The
// returned close function releases sink connections.
func FromConfig(cfg domain.NotifyConfig, logger *logrus.Logger) (Notifier, func(), error) {
	chain := Multi{NewLogNotifier(logger)}
	closers := []func(){}

	if cfg.WebhookURL != "" {
		chain = append(chain, NewWebhookNotifier(WebhookOptions{
			URL:       cfg.WebhookURL,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
		}, logger))
	}

	if cfg.MQTTBroker != "" {
		m, err := NewMQTTNotifier(MQTTOptions{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		chain = append(chain, m)
		closers = append(closers, m.Close)
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return chain, closeAll, nil
}
