package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

const channelPreviewHTML = `<!DOCTYPE html>
<html>
<head>
  <meta property="og:title" content="Example Channel">
</head>
<body>
  <div class="tgme_widget_message" data-post="examplechannel/10">
    <div class="tgme_widget_message_text">First post<br>second line</div>
    <a class="tgme_widget_message_date" href="https://t.me/examplechannel/10?single"><time datetime="2026-01-02T10:00:00+00:00"></time></a>
  </div>
  <div class="tgme_widget_message" data-post="examplechannel/11">
    <div class="tgme_widget_message_photo"></div>
    <a class="tgme_widget_message_date" href="https://t.me/examplechannel/11"><time datetime="2026-01-02T11:00:00+00:00"></time></a>
  </div>
  <div class="tgme_widget_message" data-post="examplechannel/12">
    <div class="tgme_widget_message_caption">Photo caption</div>
    <a class="tgme_widget_message_date" href="https://t.me/examplechannel/12"><time datetime="2026-01-02T12:00:00+00:00"></time></a>
  </div>
</body>
</html>`

func TestTelegramMessageCanonicalURL(t *testing.T) {
	raw := "https://t.me/example/123?single=1"
	got := TelegramMessageCanonicalURL(raw)
	want := "https://t.me/example/123"
	if got != want {
		t.Fatalf("canonicalized URL mismatch: got %q want %q", got, want)
	}
}

func TestTelegramMessageCanonicalURLInvalid(t *testing.T) {
	raw := "::not a url::"
	if got := TelegramMessageCanonicalURL(raw); got != raw {
		t.Fatalf("expected invalid URLs to be returned verbatim, got %q", got)
	}
}

func TestTelegramMessageCanonicalURLTrimsWhitespace(t *testing.T) {
	raw := "  https://t.me/example/123  "
	got := TelegramMessageCanonicalURL(raw)
	want := "https://t.me/example/123"
	if got != want {
		t.Fatalf("expected trimmed URL, got %q", got)
	}
}

func TestTelegramLink(t *testing.T) {
	tests := []struct {
		raw        string
		wantSlug   string
		wantPostID string
		wantOK     bool
	}{
		{raw: "https://t.me/examplechannel", wantSlug: "examplechannel", wantOK: true},
		{raw: "https://t.me/s/examplechannel", wantSlug: "examplechannel", wantOK: true},
		{raw: "https://t.me/examplechannel/42", wantSlug: "examplechannel", wantPostID: "42", wantOK: true},
		{raw: "https://telegram.me/s/examplechannel/42/", wantSlug: "examplechannel", wantPostID: "42", wantOK: true},
		{raw: "https://t.me/abc", wantOK: false},
		{raw: "https://t.me/examplechannel/photo", wantOK: false},
		{raw: "https://t.me/", wantOK: false},
		{raw: "https://example.com/examplechannel", wantOK: false},
	}

	for _, tt := range tests {
		slug, postID, ok := telegramLink(tt.raw)
		if ok != tt.wantOK || slug != tt.wantSlug || postID != tt.wantPostID {
			t.Fatalf("telegramLink(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.raw, slug, postID, ok, tt.wantSlug, tt.wantPostID, tt.wantOK)
		}
	}
}

type requestLog struct {
	mu    sync.Mutex
	paths []string
}

func (l *requestLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.paths...)
}

func newTelegramFetcher(t *testing.T) (*Fetcher, *requestLog) {
	t.Helper()

	requests := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.mu.Lock()
		requests.paths = append(requests.paths, r.URL.Path)
		requests.mu.Unlock()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(channelPreviewHTML))
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher(5*time.Second, 0, discardLogger())
	f.telegramBaseURL = srv.URL

	return f, requests
}

func TestFetchURLTelegramChannel(t *testing.T) {
	f, requests := newTelegramFetcher(t)

	source, err := f.FetchURL(context.Background(), "https://t.me/examplechannel")
	if err != nil {
		t.Fatalf("FetchURL() error = %v", err)
	}

	if source.Title != "Example Channel" {
		t.Fatalf("unexpected title: %q", source.Title)
	}
	if want := "First post\nsecond line\n\nPhoto caption"; source.Text != want {
		t.Fatalf("unexpected text: got %q want %q", source.Text, want)
	}
	if paths := requests.get(); len(paths) != 1 || paths[0] != "/s/examplechannel" {
		t.Fatalf("unexpected preview requests: %v", paths)
	}
}

func TestFetchURLTelegramPost(t *testing.T) {
	f, requests := newTelegramFetcher(t)

	source, err := f.FetchURL(context.Background(), "https://t.me/examplechannel/12")
	if err != nil {
		t.Fatalf("FetchURL() error = %v", err)
	}

	if source.Text != "Photo caption" || source.URL != "https://t.me/examplechannel/12" {
		t.Fatalf("unexpected source: %+v", source)
	}
	if paths := requests.get(); len(paths) != 1 || paths[0] != "/s/examplechannel/12" {
		t.Fatalf("unexpected preview requests: %v", paths)
	}
}

func TestFetchURLTelegramPostWithoutText(t *testing.T) {
	f, _ := newTelegramFetcher(t)

	_, err := f.FetchURL(context.Background(), "https://t.me/examplechannel/11")
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
}
