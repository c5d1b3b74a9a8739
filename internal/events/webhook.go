package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/h02-server/internal/config"
)

// ErrWebhookQueueFull 推送队列已满，事件被丢弃
var ErrWebhookQueueFull = errors.New("events: webhook queue full")

// Webhook 请求头
const (
	HeaderAPIKey    = "X-Api-Key"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
)

// WebhookSink 事件异步推送到 HTTP 端点。Publish 只入队，由 worker 发送并对 5xx/网络错误重试
type WebhookSink struct {
	cfg     config.WebhookConfig
	client  *http.Client
	kinds   map[Kind]struct{}
	queue   chan *Event
	backoff []time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewWebhookSink client 为 nil 时按 cfg.Timeout 创建
func NewWebhookSink(cfg config.WebhookConfig, client *http.Client, logger *zap.Logger) *WebhookSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	s := &WebhookSink{
		cfg:     cfg,
		client:  client,
		queue:   make(chan *Event, cfg.QueueSize),
		backoff: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 500 * time.Millisecond, time.Second, 2 * time.Second},
		logger:  logger,
	}
	if len(cfg.Kinds) > 0 {
		s.kinds = make(map[Kind]struct{}, len(cfg.Kinds))
		for _, k := range cfg.Kinds {
			s.kinds[Kind(k)] = struct{}{}
		}
	}
	return s
}

// Start 启动 worker，ctx 取消后退出，Wait 等待全部退出
func (s *WebhookSink) Start(ctx context.Context) {
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i+1)
	}
	s.logger.Info("webhook workers started",
		zap.Int("workers", s.cfg.Workers),
		zap.String("url", s.cfg.URL))
}

// Wait 等待 worker 退出
func (s *WebhookSink) Wait() { s.wg.Wait() }

// Publish 实现 Sink，不在订阅范围内的事件直接忽略
func (s *WebhookSink) Publish(_ context.Context, e *Event) error {
	if s.kinds != nil {
		if _, ok := s.kinds[e.Kind]; !ok {
			return nil
		}
	}
	select {
	case s.queue <- e:
		return nil
	default:
		return ErrWebhookQueueFull
	}
}

func (s *WebhookSink) worker(ctx context.Context, id int) {
	defer s.wg.Done()
	logger := s.logger.With(zap.Int("worker_id", id))
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.queue:
			code, err := s.Send(ctx, e)
			if err != nil {
				logger.Warn("webhook delivery failed",
					zap.String("event_id", e.ID),
					zap.String("kind", string(e.Kind)),
					zap.Int("status", code),
					zap.Error(err))
			}
		}
	}
}

// Send 同步发送一个事件。4xx 不重试并作为错误返回
func (s *WebhookSink) Send(ctx context.Context, e *Event) (int, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return 0, fmt.Errorf("parse webhook url: %w", err)
	}
	body, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}

	ts := time.Now().Unix()
	nonce := uuid.NewString()
	sig := Sign(s.cfg.Secret, Canonical(http.MethodPost, u.Path, ts, nonce, body))

	var (
		code    int
		lastErr error
	)
	for attempt := 0; attempt <= s.cfg.Retries; attempt++ {
		code, lastErr = s.post(ctx, body, sig, ts, nonce)
		if lastErr == nil && code < 300 {
			return code, nil
		}
		if lastErr == nil && code < 500 {
			return code, fmt.Errorf("webhook http %d", code)
		}
		if attempt == s.cfg.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(s.backoff[min(attempt, len(s.backoff)-1)]):
		}
	}
	if lastErr != nil {
		return 0, lastErr
	}
	return code, fmt.Errorf("webhook http %d", code)
}

func (s *WebhookSink) post(ctx context.Context, body []byte, sig string, ts int64, nonce string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set(HeaderAPIKey, s.cfg.APIKey)
	}
	req.Header.Set(HeaderSignature, sig)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderNonce, nonce)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

// Canonical 签名原文: METHOD\npath\ntimestamp\nnonce\nsha256(body)
func Canonical(method, path string, ts int64, nonce string, body []byte) string {
	sum := sha256.Sum256(body)
	return fmt.Sprintf("%s\n%s\n%d\n%s\n%s", strings.ToUpper(method), path, ts, nonce, hex.EncodeToString(sum[:]))
}

// Sign HMAC-SHA256，hex 小写
func Sign(secret, canonical string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}
