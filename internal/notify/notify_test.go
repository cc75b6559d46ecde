package notify

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"yield-monitor-go/internal/models"
	"yield-monitor-go/internal/store"
)

const addr = "0xabcdef0000000000000000000000000000000001"

type recordingSender struct {
	mu       sync.Mutex
	payloads []models.PushPayload
	err      error
}

func (r *recordingSender) Send(_ context.Context, _ models.PushSubscription, p models.PushPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
	return r.err
}

var sub = models.PushSubscription{Endpoint: "https://push.example/x", Keys: models.PushKeys{P256dh: "k", Auth: "a"}}

func subscribed(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	require.NoError(t, s.SaveSubscription(context.Background(), addr, sub, []int{1}))
	return s
}

func TestYieldPayload(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	p := YieldPayload(addr, &models.YieldNotificationData{TotalBalance: "1234.567891", Yield24hPercentage: 0.1234}, at)

	assert.Equal(t, "📈 Daily Yield Update", p.Title)
	assert.Equal(t, "Total: $1234.57 | 24h: +0.12%", p.Body)
	assert.Equal(t, addr, p.Data["address"])
	assert.Equal(t, int64(1700000000123), p.Data["timestamp"])

	p = YieldPayload(addr, &models.YieldNotificationData{TotalBalance: "10", Yield24hPercentage: -1.5}, at)
	assert.Equal(t, "Total: $10.00 | 24h: -1.50%", p.Body)
}

func TestSendYieldUpdatesLastNotified(t *testing.T) {
	st := subscribed(t)
	sender := &recordingSender{}
	svc := NewService(st, sender, zap.NewNop())

	require.NoError(t, svc.SendYield(context.Background(), addr, &models.YieldNotificationData{TotalBalance: "1"}))
	require.Len(t, sender.payloads, 1)

	got, err := st.GetSubscription(context.Background(), addr)
	require.NoError(t, err)
	assert.NotNil(t, got.LastNotified)
}

func TestSendYieldNotSubscribed(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), &recordingSender{}, nil)
	err := svc.SendYield(context.Background(), addr, &models.YieldNotificationData{})
	assert.ErrorIs(t, err, ErrNotSubscribed)
}

func TestGoneSubscriptionIsRemoved(t *testing.T) {
	st := subscribed(t)
	svc := NewService(st, &recordingSender{err: ErrSubscriptionGone}, nil)

	err := svc.Test(context.Background(), addr)
	assert.ErrorIs(t, err, ErrSubscriptionGone)

	_, err = st.GetSubscription(context.Background(), addr)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWelcomePayload(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(store.NewMemoryStore(), sender, nil)

	require.NoError(t, svc.Welcome(context.Background(), addr, sub))
	require.Len(t, sender.payloads, 1)
	assert.Equal(t, "🔔 Notifications Enabled!", sender.payloads[0].Title)
	assert.Equal(t, "welcome", sender.payloads[0].Data["type"])
}

func browserSubscription(t *testing.T, endpoint string) models.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	secret := make([]byte, 16)
	_, err = rand.Read(secret)
	require.NoError(t, err)
	return models.PushSubscription{
		Endpoint: endpoint,
		Keys: models.PushKeys{
			P256dh: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			Auth:   base64.RawURLEncoding.EncodeToString(secret),
		},
	}
}

func TestPusherStatusHandling(t *testing.T) {
	priv, pub, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)

	var status atomic.Int32
	status.Store(http.StatusCreated)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "aes128gcm", r.Header.Get("Content-Encoding"))
		assert.Contains(t, r.Header.Get("Authorization"), "vapid")
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	p := NewPusher(VAPIDConfig{PublicKey: pub, PrivateKey: priv, Subject: "mailto:ops@example.com"}, srv.Client())
	s := browserSubscription(t, srv.URL+"/push/1")
	payload := models.PushPayload{Title: "t", Body: "b"}

	require.NoError(t, p.Send(context.Background(), s, payload))

	status.Store(http.StatusGone)
	assert.ErrorIs(t, p.Send(context.Background(), s, payload), ErrSubscriptionGone)

	status.Store(http.StatusInternalServerError)
	err = p.Send(context.Background(), s, payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")

	assert.Error(t, p.Send(context.Background(), models.PushSubscription{}, payload))
}

func TestEnsureVAPIDKeys(t *testing.T) {
	cfg := VAPIDConfig{}
	require.NoError(t, EnsureVAPIDKeys(&cfg, zap.NewNop()))
	assert.NotEmpty(t, cfg.PublicKey)
	assert.NotEmpty(t, cfg.PrivateKey)

	keep := VAPIDConfig{PublicKey: "pub", PrivateKey: "priv"}
	require.NoError(t, EnsureVAPIDKeys(&keep, zap.NewNop()))
	assert.Equal(t, "pub", keep.PublicKey)
}
