package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronic-risk-monitor/internal/domain"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func sampleRisks() []domain.PatientRisk {
	return []domain.PatientRisk{
		{Vector: domain.CompositeFeatureVector{PatientID: 1}, Prediction: domain.RiskPrediction{Diabetes: true}},
		{Vector: domain.CompositeFeatureVector{PatientID: 2}},
		{Vector: domain.CompositeFeatureVector{PatientID: 3}, Prediction: domain.RiskPrediction{HypertensionRisk: true}},
	}
}

func TestNewAlert(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	alert, ok := NewAlert(7, at, sampleRisks())
	require.True(t, ok)
	assert.Equal(t, uint64(7), alert.Tick)
	assert.Equal(t, []AlertPatient{
		{PatientID: 1, Diabetes: true},
		{PatientID: 3, HypertensionRisk: true},
	}, alert.Patients)
	assert.Contains(t, alert.Summary, "Tick 7: 2 of 3 patients at risk")

	_, ok = NewAlert(8, at, sampleRisks()[1:2])
	assert.False(t, ok)
}

func TestWebhookNotifier_PostsAlert(t *testing.T) {
	var received Alert
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	n := NewWebhookNotifier(WebhookOptions{URL: server.URL, Timeout: time.Second}, quietLogger())
	alert, _ := NewAlert(3, time.Now().UTC(), sampleRisks())

	require.NoError(t, n.Notify(context.Background(), alert))
	assert.Equal(t, uint64(3), received.Tick)
	assert.Len(t, received.Patients, 2)
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	n := NewWebhookNotifier(WebhookOptions{URL: server.URL, Timeout: time.Second}, quietLogger())
	err := n.Notify(context.Background(), Alert{Tick: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestWebhookNotifier_RateLimitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(WebhookOptions{URL: server.URL, RateLimit: 0.001}, quietLogger())
	require.NoError(t, n.Notify(context.Background(), Alert{Tick: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, n.Notify(ctx, Alert{Tick: 2}))
}

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakeMQTTClient struct {
	mqtt.Client
	topic   string
	qos     byte
	payload []byte
	err     error
}

func (c *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.topic = topic
	c.qos = qos
	c.payload = payload.([]byte)
	return newFakeToken(c.err)
}

func TestMQTTNotifier_Publishes(t *testing.T) {
	client := &fakeMQTTClient{}
	n := newMQTTNotifier(client, "risk-monitor/alerts", quietLogger())

	alert, _ := NewAlert(9, time.Now().UTC(), sampleRisks())
	require.NoError(t, n.Notify(context.Background(), alert))

	assert.Equal(t, "risk-monitor/alerts", client.topic)
	assert.Equal(t, byte(1), client.qos)

	var decoded Alert
	require.NoError(t, json.Unmarshal(client.payload, &decoded))
	assert.Equal(t, uint64(9), decoded.Tick)

	client.err = errors.New("broker gone")
	assert.Error(t, n.Notify(context.Background(), alert))
}

type recordingNotifier struct {
	alerts []Alert
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, a Alert) error {
	r.alerts = append(r.alerts, a)
	return r.err
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	ok := &recordingNotifier{}
	failing := &recordingNotifier{err: errors.New("sink down")}

	err := Multi{failing, ok, Nop{}}.Notify(context.Background(), Alert{Tick: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")
	assert.Len(t, ok.alerts, 1)
	assert.Len(t, failing.alerts, 1)
}

func TestLogNotifier(t *testing.T) {
	logger, hook := test.NewNullLogger()
	alert, _ := NewAlert(2, time.Now().UTC(), sampleRisks())

	require.NoError(t, NewLogNotifier(logger).Notify(context.Background(), alert))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, []int{1, 3}, hook.LastEntry().Data["high_risk"])
}

func TestFromConfig_LogOnly(t *testing.T) {
	n, closeFn, err := FromConfig(domain.NotifyConfig{}, quietLogger())
	require.NoError(t, err)
	defer closeFn()

	multi, ok := n.(Multi)
	require.True(t, ok)
	assert.Len(t, multi, 1)
}
