package events

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/taoyao-code/h02-server/internal/config"
)

// webhookServer 校验签名并记录收到的事件，前 failures 次返回 status
type webhookServer struct {
	*httptest.Server
	secret   string
	status   int
	failures int32
	calls    atomic.Int32

	mu       sync.Mutex
	received []Event
	badSig   int
}

func newWebhookServer(t *testing.T, secret string) *webhookServer {
	t.Helper()
	ws := &webhookServer{secret: secret, status: http.StatusInternalServerError}
	ws.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ws.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		ts, _ := strconv.ParseInt(r.Header.Get(HeaderTimestamp), 10, 64)
		want := Sign(ws.secret, Canonical(r.Method, r.URL.Path, ts, r.Header.Get(HeaderNonce), body))

		ws.mu.Lock()
		defer ws.mu.Unlock()
		if r.Header.Get(HeaderSignature) != want {
			ws.badSig++
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if n <= ws.failures {
			w.WriteHeader(ws.status)
			return
		}
		var e Event
		if err := json.Unmarshal(body, &e); err == nil {
			ws.received = append(ws.received, e)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(ws.Close)
	return ws
}

func (ws *webhookServer) events() []Event {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return append([]Event(nil), ws.received...)
}

func newTestWebhook(t *testing.T, url string, mutate func(*config.WebhookConfig)) *WebhookSink {
	cfg := config.WebhookConfig{Enabled: true, URL: url + "/hooks/h02", APIKey: "key", Secret: "secret", Timeout: time.Second, Retries: 2, Workers: 1, QueueSize: 4}
	if mutate != nil {
		mutate(&cfg)
	}
	s := NewWebhookSink(cfg, nil, zaptest.NewLogger(t))
	s.backoff = []time.Duration{time.Millisecond}
	return s
}

func TestWebhookSend(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		failures  int32
		wantErr   bool
		wantCalls int32
	}{
		{name: "首次成功", failures: 0, wantCalls: 1},
		{name: "5xx后重试成功", status: http.StatusBadGateway, failures: 2, wantCalls: 3},
		{name: "5xx重试耗尽", status: http.StatusServiceUnavailable, failures: 10, wantErr: true, wantCalls: 3},
		{name: "4xx不重试", status: http.StatusBadRequest, failures: 10, wantErr: true, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := newWebhookServer(t, "secret")
			if tt.status != 0 {
				ws.status = tt.status
			}
			ws.failures = tt.failures
			s := newTestWebhook(t, ws.URL, nil)

			e := New(KindConnect)
			e.DeviceID = "4210000001"
			_, err := s.Send(context.Background(), e)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				got := ws.events()
				require.Len(t, got, 1)
				assert.Equal(t, e.ID, got[0].ID)
			}
			assert.Equal(t, tt.wantCalls, ws.calls.Load())
			assert.Zero(t, ws.badSig, "签名应可被服务端校验")
		})
	}
}

func TestWebhookWorkers(t *testing.T) {
	ws := newWebhookServer(t, "secret")
	s := newTestWebhook(t, ws.URL, func(c *config.WebhookConfig) { c.Kinds = []string{"position"} })

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	require.NoError(t, s.Publish(ctx, New(KindConnect)), "未订阅的类型静默忽略")
	pos := New(KindPosition)
	pos.DeviceID = "4210000001"
	require.NoError(t, s.Publish(ctx, pos))

	require.Eventually(t, func() bool { return len(ws.events()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, KindPosition, ws.events()[0].Kind)

	cancel()
	s.Wait()
}

func TestWebhookQueueFull(t *testing.T) {
	s := newTestWebhook(t, "http://127.0.0.1:1", func(c *config.WebhookConfig) { c.QueueSize = 1 })

	require.NoError(t, s.Publish(context.Background(), New(KindConnect)))
	assert.ErrorIs(t, s.Publish(context.Background(), New(KindConnect)), ErrWebhookQueueFull)
}

func TestSign(t *testing.T) {
	got := Sign("secret", Canonical("post", "/hooks", 1700000000, "nonce", []byte(`{}`)))
	assert.Len(t, got, 64)
	assert.Equal(t, got, Sign("secret", Canonical("POST", "/hooks", 1700000000, "nonce", []byte(`{}`))))
	assert.NotEqual(t, got, Sign("other", Canonical("POST", "/hooks", 1700000000, "nonce", []byte(`{}`))))
}
