package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const telegramBaseURL = "https://t.me"

var (
	telegramSlugRe   = regexp.MustCompile(`^\w{5,32}$`)
	telegramPostIDRe = regexp.MustCompile(`^\d+$`)
)

type channelPost struct {
	URL  string
	Text string
}

// telegramLink recognizes public channel links such as t.me/slug,
// t.me/s/slug and t.me/slug/123.
func telegramLink(rawURL string) (string, string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", "", false
	}

	switch strings.ToLower(u.Host) {
	case "t.me", "telegram.me":
	default:
		return "", "", false
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) > 0 && parts[0] == "s" {
		parts = parts[1:]
	}

	if len(parts) == 0 || len(parts) > 2 || !telegramSlugRe.MatchString(parts[0]) {
		return "", "", false
	}

	postID := ""
	if len(parts) == 2 {
		if !telegramPostIDRe.MatchString(parts[1]) {
			return "", "", false
		}
		postID = parts[1]
	}

	return parts[0], postID, true
}

// TelegramMessageCanonicalURL drops the query and fragment of a post link.
func TelegramMessageCanonicalURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}

	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}

// fetchTelegram reads the public web preview of a channel. A post link
// yields that post, a channel link yields the recent posts.
func (f *Fetcher) fetchTelegram(ctx context.Context, rawURL, slug, postID string) (*Source, error) {
	previewURL := f.telegramBaseURL + "/s/" + slug
	if postID != "" {
		previewURL += "/" + postID
	}

	body, _, err := f.Download(ctx, previewURL)
	if err != nil {
		return nil, fmt.Errorf("download channel preview: %w", err)
	}

	posts, title, err := channelPosts(body)
	if err != nil {
		return nil, err
	}

	f.log.DebugContext(ctx, "Channel preview is parsed",
		"slug", slug,
		"postID", postID,
		"postCount", len(posts))

	if postID != "" {
		for _, post := range posts {
			if path.Base(post.URL) == postID && strings.Contains(post.URL, "/"+slug+"/") {
				return &Source{URL: rawURL, Title: title, Text: post.Text}, nil
			}
		}

		return nil, fmt.Errorf("post %s/%s: %w", slug, postID, ErrNoText)
	}

	texts := make([]string, 0, len(posts))
	for _, post := range posts {
		texts = append(texts, post.Text)
	}

	if len(texts) == 0 {
		return nil, fmt.Errorf("channel %s: %w", slug, ErrNoText)
	}

	return &Source{URL: rawURL, Title: title, Text: strings.Join(texts, "\n\n")}, nil
}

// channelPosts returns the posts with text of a t.me/s preview page and the
// channel title.
func channelPosts(body []byte) ([]channelPost, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("create document from reader: %w", err)
	}

	var posts []channelPost

	doc.Find("a.tgme_widget_message_date").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}

		text := postText(s.ParentsFiltered(".tgme_widget_message").First())
		if text == "" {
			return
		}

		posts = append(posts, channelPost{URL: TelegramMessageCanonicalURL(href), Text: text})
	})

	var title string

	if content, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		title = strings.TrimSpace(content)
	}

	if title == "" {
		title = strings.TrimSpace(doc.Find(".tgme_channel_info_header_title").Text())
	}

	return posts, title, nil
}

func postText(message *goquery.Selection) string {
	var b strings.Builder

	message.Find(".tgme_widget_message_text, .tgme_widget_message_caption").Each(
		func(_ int, inner *goquery.Selection) {
			inner.Find("br").Each(func(_ int, br *goquery.Selection) {
				br.ReplaceWithHtml("\n")
			})

			fragment := strings.TrimSpace(inner.Text())
			if fragment == "" {
				return
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(fragment)
		},
	)

	return strings.TrimSpace(b.String())
}
