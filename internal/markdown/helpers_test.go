package markdown_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"textdigest/internal/markdown"
)

func TestEscapeV2(t *testing.T) {
	tests := map[string]string{
		"plain text":           "plain text",
		"1.5 (approx)":         `1\.5 \(approx\)`,
		"a_b*c[d]~e`f>g#h+i-j": "a\\_b\\*c\\[d\\]\\~e\\`f\\>g\\#h\\+i\\-j",
		"x=y|z{}!":             `x\=y\|z\{\}\!`,
		`back\slash`:           `back\\slash`,
		"привет, мир!":         `привет, мир\!`,
	}

	for input, want := range tests {
		if got := markdown.EscapeV2(input); got != want {
			t.Errorf("EscapeV2(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSplitShortText(t *testing.T) {
	parts := markdown.Split("short", 10)
	if len(parts) != 1 || parts[0] != "short" {
		t.Fatalf("unexpected parts: %q", parts)
	}

	if parts = markdown.Split("", 10); len(parts) != 0 {
		t.Fatalf("expected no parts for empty text, got %q", parts)
	}
}

func TestSplitPrefersLineBreaks(t *testing.T) {
	text := "first line\nsecond line\nthird"

	parts := markdown.Split(text, 15)

	if strings.Join(parts, "") != text {
		t.Fatalf("expected parts to reproduce text, got %q", parts)
	}
	if parts[0] != "first line\n" {
		t.Fatalf("expected cut after the line break, got %q", parts[0])
	}
	for _, part := range parts {
		if utf8.RuneCountInString(part) > 15 {
			t.Fatalf("part exceeds limit: %q", part)
		}
	}
}

func TestSplitCountsRunes(t *testing.T) {
	text := strings.Repeat("ж", 25)

	parts := markdown.Split(text, 10)

	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d: %q", len(parts), parts)
	}
	for _, part := range parts {
		if !utf8.ValidString(part) {
			t.Fatalf("part is not valid UTF-8: %q", part)
		}
	}
	if strings.Join(parts, "") != text {
		t.Fatalf("expected parts to reproduce text")
	}
}

func TestSplitKeepsEscapesTogether(t *testing.T) {
	text := "abcd\\.efgh"

	parts := markdown.Split(text, 5)

	if parts[0] != "abcd" {
		t.Fatalf("expected cut before the escape, got %q", parts)
	}
	if strings.Join(parts, "") != text {
		t.Fatalf("expected parts to reproduce text, got %q", parts)
	}
}
