package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"mvdan.cc/xurls/v2"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

	DefaultFetchTimeout = 20 * time.Second
	DefaultMaxBytes     = 20 << 20
)

var ErrTooLarge = errors.New("content is too large")

// Source is text fetched from a URL.
type Source struct {
	URL   string
	Title string
	Text  string
}

type Fetcher struct {
	client          *http.Client
	feedParser      *gofeed.Parser
	maxBytes        int64
	telegramBaseURL string
	log             *slog.Logger
}

func NewFetcher(timeout time.Duration, maxBytes int64, log *slog.Logger) *Fetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	return &Fetcher{
		client:          &http.Client{Timeout: timeout},
		feedParser:      gofeed.NewParser(),
		maxBytes:        maxBytes,
		telegramBaseURL: telegramBaseURL,
		log:             log,
	}
}

// Download reads the body of rawURL, failing when it exceeds the size limit.
func (f *Fetcher) Download(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(rawURL), nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", withoutURL(err))
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req) //nolint:gosec // URLs come from allowed users
	if err != nil {
		return nil, "", fmt.Errorf("do request: %w", withoutURL(err))
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			f.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"operation", "Download")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}

	if int64(len(body)) > f.maxBytes {
		return nil, "", fmt.Errorf("read body: %w (limit = %d bytes)", ErrTooLarge, f.maxBytes)
	}

	return body, resp.Header.Get("Content-Type"), nil
}

// withoutURL drops the request URL from transport errors. Telegram file
// links carry the bot token in their path.
func withoutURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}

	return err
}

// FetchURL returns the readable text behind rawURL. Feeds contribute their
// newest item, public Telegram channels their posts, documents are extracted
// by content type, and HTML pages contribute their article text.
func (f *Fetcher) FetchURL(ctx context.Context, rawURL string) (*Source, error) {
	if slug, postID, ok := telegramLink(rawURL); ok {
		return f.fetchTelegram(ctx, rawURL, slug, postID)
	}

	body, contentType, err := f.Download(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if feed, parseErr := f.feedParser.Parse(bytes.NewReader(body)); parseErr == nil {
		source, feedErr := newestItemSource(feed)
		if feedErr == nil {
			source.URL = rawURL
			return source, nil
		}

		f.log.DebugContext(ctx, "Feed has no usable items",
			"error", feedErr,
			"url", rawURL,
			"itemCount", len(feed.Items))
	}

	format := DetectFormat(urlPath(rawURL), contentType)
	if format == FormatUnknown || (format == FormatPlainText && looksLikeHTML(body)) {
		format = FormatHTML
	}

	title := ""
	if format == FormatHTML {
		title = htmlTitle(body)
	}

	text, err := FromBytes(format, body)
	if err != nil {
		return nil, err
	}

	return &Source{URL: rawURL, Title: title, Text: text}, nil
}

func newestItemSource(feed *gofeed.Feed) (*Source, error) {
	var (
		newest     *gofeed.Item
		newestTime time.Time
	)

	for _, item := range feed.Items {
		if item == nil {
			continue
		}

		published := time.Time{}
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}

		if newest == nil || published.After(newestTime) {
			newest = item
			newestTime = published
		}
	}

	if newest == nil {
		return nil, ErrNoText
	}

	content := strings.TrimSpace(newest.Content)
	if content == "" {
		content = strings.TrimSpace(newest.Description)
	}

	text, err := htmlText(strings.NewReader(content))
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(newest.Title)
	if title != "" {
		text = title + "\n\n" + text
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoText
	}

	return &Source{Title: title, Text: text}, nil
}

// htmlText returns the readable text of an HTML document, one block per line.
func htmlText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript, template, nav, header, footer, aside").Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	if root.Length() == 0 {
		root = doc.Selection
	}

	root.Find("p, div, li, br, h1, h2, h3, h4, h5, h6, tr, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	lines := strings.Split(root.Text(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}

	return strings.Join(kept, "\n"), nil
}

func htmlTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	return strings.TrimSpace(doc.Find("title").First().Text())
}

func urlPath(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}

	return u.Path
}

func looksLikeHTML(body []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(body[:min(len(body), 512)]))

	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

// FindURL reports the URL when the whole message is a single http(s) link.
func FindURL(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	re, err := xurls.StrictMatchingScheme(`https?://`)
	if err != nil {
		return "", false
	}

	match := re.FindString(text)
	if match == "" || match != text {
		return "", false
	}

	return match, true
}
