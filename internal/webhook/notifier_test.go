package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsurma/data-manager/internal/domain"
)

func TestSignatureRoundTrip(t *testing.T) {
	payload := []byte(`{"type":"translations.changed"}`)
	sig := GenerateSignature(payload, "secret")
	assert.True(t, VerifySignature(payload, sig, "secret"))
	assert.False(t, VerifySignature(payload, sig, "other"))
	assert.False(t, VerifySignature([]byte("tampered"), sig, "secret"))
}

func TestNotifyDataSetDeliversSignedEvent(t *testing.T) {
	received := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- body
		received <- r
	}))
	defer srv.Close()

	secret := "hook-secret"
	ds := domain.DataSet{
		ID:          uuid.New(),
		Name:        "frontend",
		SecretKey:   &secret,
		WebhookURLs: []string{srv.URL},
	}

	n := NewNotifier(nil, Config{Workers: 1})
	n.Start(context.Background())
	defer n.Stop()

	n.NotifyDataSet(ds, "translations.changed", map[string]int{"touched": 3})

	select {
	case req := <-received:
		body := <-bodies
		assert.Equal(t, "translations.changed", req.Header.Get("X-DataManager-Event"))
		sig := req.Header.Get("X-DataManager-Signature")
		require.NotEmpty(t, sig)
		assert.True(t, VerifySignature(body, sig, secret))
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}

func TestNotifyDataSetNoopWhenStopped(t *testing.T) {
	n := NewNotifier(nil, DefaultConfig())
	ds := domain.DataSet{ID: uuid.New(), WebhookURLs: []string{"http://localhost:0"}}
	// Not started: must not queue or panic.
	n.NotifyDataSet(ds, "translations.changed", nil)
	assert.Empty(t, n.queue)
}
