package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/lojasmm/relay/internal/bot"
	"github.com/lojasmm/relay/internal/line"
)

const testSecret = "channel-secret"

type stubAsker struct{ err error }

func (s stubAsker) Ask(ctx context.Context, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "answer to " + prompt, nil
}

type recordingSender struct {
	mu    sync.Mutex
	texts map[string]string
}

func (r *recordingSender) ReplyText(ctx context.Context, token, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts[token] = text
	return nil
}

func (r *recordingSender) get(token string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.texts[token]
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.texts)
}

func newTestServer(t *testing.T, asker stubAsker) (*httptest.Server, *recordingSender, *atomic.Int32) {
	t.Helper()
	sender := &recordingSender{texts: map[string]string{}}
	d := bot.NewDispatcher(asker, sender, nil, zaptest.NewLogger(t))

	batches := new(atomic.Int32)
	onBatch := func(ctx context.Context, events []line.Event) {
		batches.Add(1)
		d.HandleBatch(ctx, events)
	}
	srv := httptest.NewServer(newRouter(testSecret, onBatch, zaptest.NewLogger(t)))
	t.Cleanup(srv.Close)
	return srv, sender, batches
}

func post(t *testing.T, url, body, signature string) (*http.Response, string) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, url+"/webhook", bytes.NewBufferString(body))
	if signature != "" {
		req.Header.Set(line.SignatureHeader, signature)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	return resp, buf.String()
}

func TestWebhook_EndToEnd(t *testing.T) {
	srv, sender, _ := newTestServer(t, stubAsker{})
	body := `{"events":[
		{"type":"message","replyToken":"r1","message":{"type":"text","text":"hi"}},
		{"type":"follow","replyToken":"r2"},
		{"type":"unfollow"}
	]}`

	resp, text := post(t, srv.URL, body, line.Sign(testSecret, []byte(body)))
	if resp.StatusCode != http.StatusOK || text != "OK" {
		t.Fatalf("expected 200 OK, got %d %q", resp.StatusCode, text)
	}
	if sender.get("r1") != "answer to hi" {
		t.Errorf("unexpected answer %q", sender.get("r1"))
	}
	if sender.get("r2") != "Event type follow not supported." {
		t.Errorf("unexpected follow reply %q", sender.get("r2"))
	}
	if sender.count() != 2 {
		t.Errorf("expected exactly two replies, got %d", sender.count())
	}
}

func TestWebhook_ProviderFailureStill200(t *testing.T) {
	srv, sender, _ := newTestServer(t, stubAsker{err: errors.New("down")})
	body := `{"events":[{"type":"message","replyToken":"r1","message":{"type":"text","text":"hi"}}]}`

	resp, text := post(t, srv.URL, body, line.Sign(testSecret, []byte(body)))
	if resp.StatusCode != http.StatusOK || text != "OK" {
		t.Fatalf("expected 200 OK, got %d %q", resp.StatusCode, text)
	}
	if sender.get("r1") != bot.AIErrorText {
		t.Errorf("expected fallback reply, got %q", sender.get("r1"))
	}
}

func TestWebhook_BadSignatureNeverDispatches(t *testing.T) {
	srv, sender, batches := newTestServer(t, stubAsker{})
	body := `{"events":[{"type":"follow","replyToken":"r1"}]}`

	resp, text := post(t, srv.URL, body, line.Sign("wrong-secret", []byte(body)))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if text != line.Sign("wrong-secret", []byte(body)) {
		t.Errorf("expected raw signature as body, got %q", text)
	}
	if batches.Load() != 0 || sender.count() != 0 {
		t.Error("dispatcher must not run for unauthenticated requests")
	}

	resp, _ = post(t, srv.URL, body, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without signature, got %d", resp.StatusCode)
	}
}

func TestWebhook_InvalidFormat(t *testing.T) {
	srv, sender, batches := newTestServer(t, stubAsker{})
	body := `{"events":"nope"}`

	resp, text := post(t, srv.URL, body, line.Sign(testSecret, []byte(body)))
	if resp.StatusCode != http.StatusBadRequest || text != "Invalid format" {
		t.Fatalf("expected 400 Invalid format, got %d %q", resp.StatusCode, text)
	}
	if batches.Load() != 0 || sender.count() != 0 {
		t.Error("no outbound call expected for malformed batches")
	}
}

func TestWebhook_InvalidJSON(t *testing.T) {
	srv, _, _ := newTestServer(t, stubAsker{})
	body := `{"events":[`

	resp, text := post(t, srv.URL, body, line.Sign(testSecret, []byte(body)))
	if resp.StatusCode != http.StatusBadRequest || text != body {
		t.Fatalf("expected 400 with raw payload, got %d %q", resp.StatusCode, text)
	}
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, stubAsker{})
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestSignCmd(t *testing.T) {
	cmd := signCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetIn(strings.NewReader(`{"events":[]}`))
	cmd.SetArgs([]string{"--secret", testSecret})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := line.Sign(testSecret, []byte(`{"events":[]}`))
	if strings.TrimSpace(out.String()) != want {
		t.Errorf("expected %q, got %q", want, out.String())
	}
}

func TestWriteTimeoutCoversAIAndReply(t *testing.T) {
	for _, ai := range []time.Duration{time.Second, 5 * time.Second, 30 * time.Second} {
		if got := writeTimeout(ai); got <= ai+line.ReplyTimeout {
			t.Errorf("AI timeout %s: write timeout %s leaves no room for the reply", ai, got)
		}
	}
}
