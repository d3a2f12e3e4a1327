// Package webhook delivers change notifications to the URLs registered on a
// data set. Deliveries are fire-and-forget through a bounded worker queue so
// they never hold open a write transaction.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lsurma/data-manager/internal/domain"
)

const (
	headerEvent     = "X-DataManager-Event"
	headerSignature = "X-DataManager-Signature"
)

// Event is the payload delivered to registered URLs.
type Event struct {
	Type      string    `json:"type"`
	DataSetID string    `json:"dataSetId"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Delivery is one queued outbound notification.
type Delivery struct {
	URL     string
	Event   string
	Payload []byte
	Secret  string
}

// Config holds notifier configuration.
type Config struct {
	Workers int
	Timeout time.Duration
}

// DefaultConfig returns default notifier configuration.
func DefaultConfig() Config {
	return Config{
		Workers: 3,
		Timeout: 10 * time.Second,
	}
}

// Notifier fans change events out to data-set webhook URLs.
type Notifier struct {
	client  *http.Client
	logger  *zap.Logger
	queue   chan Delivery
	workers int
	wg      sync.WaitGroup
	done    chan struct{}
	mu      sync.RWMutex
	running bool
}

// NewNotifier creates a webhook notifier.
func NewNotifier(logger *zap.Logger, cfg Config) *Notifier {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Notifier{
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		queue:   make(chan Delivery, 100),
		workers: cfg.Workers,
		done:    make(chan struct{}),
	}
}

// Start starts the delivery workers.
func (n *Notifier) Start(ctx context.Context) {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return
	}
	n.running = true
	n.mu.Unlock()

	n.logger.Info("starting webhook notifier", zap.Int("workers", n.workers))
	for i := 0; i < n.workers; i++ {
		n.wg.Add(1)
		go n.worker(ctx, i)
	}
}

// Stop stops the notifier and waits for in-flight deliveries.
func (n *Notifier) Stop() {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return
	}
	n.running = false
	n.mu.Unlock()

	close(n.done)
	n.wg.Wait()
	n.logger.Info("webhook notifier stopped")
}

func (n *Notifier) worker(ctx context.Context, id int) {
	defer n.wg.Done()

	for {
		select {
		case <-n.done:
			return
		case <-ctx.Done():
			return
		case delivery := <-n.queue:
			n.deliver(ctx, delivery)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, d Delivery) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(d.Payload))
	if err != nil {
		n.logger.Error("failed to build webhook request", zap.String("url", d.URL), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerEvent, d.Event)
	if d.Secret != "" {
		req.Header.Set(headerSignature, GenerateSignature(d.Payload, d.Secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("webhook delivery failed", zap.String("url", d.URL), zap.Error(err))
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		n.logger.Warn("webhook delivery rejected",
			zap.String("url", d.URL),
			zap.Int("status", resp.StatusCode))
		return
	}
	n.logger.Debug("webhook delivered", zap.String("url", d.URL), zap.String("event", d.Event))
}

// NotifyDataSet queues one event per webhook URL registered on the data set.
// A full queue drops the delivery with a warning rather than blocking the
// caller.
func (n *Notifier) NotifyDataSet(ds domain.DataSet, eventType string, data any) {
	n.mu.RLock()
	running := n.running
	n.mu.RUnlock()
	if !running || len(ds.WebhookURLs) == 0 {
		return
	}

	payload, err := json.Marshal(Event{
		Type:      eventType,
		DataSetID: ds.ID.String(),
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		n.logger.Error("failed to marshal webhook event", zap.Error(err))
		return
	}

	secret := ""
	if ds.SecretKey != nil {
		secret = *ds.SecretKey
	}

	for _, url := range ds.WebhookURLs {
		select {
		case n.queue <- Delivery{URL: url, Event: eventType, Payload: payload, Secret: secret}:
		default:
			n.logger.Warn("webhook queue full, dropping delivery", zap.String("url", url))
		}
	}
}

// GenerateSignature generates an HMAC-SHA256 signature for the payload.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature verifies an HMAC-SHA256 signature.
func VerifySignature(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(signature), []byte(GenerateSignature(payload, secret)))
}
