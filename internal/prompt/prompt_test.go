package prompt

import (
	"strings"
	"testing"
	"textdigest/internal/domain"
)

func TestBuildCoversEveryStyle(t *testing.T) {
	for _, style := range domain.Styles() {
		if _, ok := templates[style]; !ok {
			t.Fatalf("style %q has no template", style)
		}
	}
}

func TestBuildEmbedsTextAndInstructions(t *testing.T) {
	got := Build("The quick brown fox.", domain.StyleExecutive, "  Focus on numbers.  ")

	for _, want := range []string{
		"Create an executive summary",
		"Text to summarize:\nThe quick brown fox.\n\n",
		"Focus on numbers.\n\n",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt is missing %q:\n%s", want, got)
		}
	}

	if !strings.HasSuffix(got, "Executive Summary:") {
		t.Fatalf("prompt must end with answer label, got:\n%s", got)
	}
}

func TestBuildSkipsEmptyInstructions(t *testing.T) {
	got := Build("text", domain.StyleBulletPoints, "   ")
	want := templates[domain.StyleBulletPoints].instruction +
		"\n\nText to summarize:\ntext\n\nKey Points:\n•"

	if got != want {
		t.Fatalf("unexpected prompt:\n%q\nwant:\n%q", got, want)
	}
}

func TestBuildUnknownStyleFallsBackToGeneral(t *testing.T) {
	got := Build("text", domain.Style("sonnet"), "")
	want := Build("text", domain.StyleGeneral, "")

	if got != want {
		t.Fatalf("expected general template fallback")
	}
}

func TestWordLimit(t *testing.T) {
	tests := []struct {
		name     string
		maxWords int
		minWords int
		want     string
	}{
		{"no budget", 0, 0, ""},
		{"max only", 150, 0, "Please keep the summary to approximately 150 words."},
		{"max and min", 150, 50, "Please keep the summary to approximately 150 words. Use at least 50 words."},
		{"inverted min ignored", 10, 16, "Please keep the summary to approximately 10 words."},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := WordLimit(test.maxWords, test.minWords); got != test.want {
				t.Errorf("got %q, want %q", got, test.want)
			}
		})
	}
}

func TestInstructions(t *testing.T) {
	got := Instructions(domain.StyleTimeline, "Keep it short.")
	want := "Extract and organize the chronological events or processes mentioned in the text.\n\nKeep it short."

	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestJoinInstructions(t *testing.T) {
	if got := JoinInstructions(" a ", "", "b"); got != "a\n\nb" {
		t.Fatalf("unexpected join: %q", got)
	}
}
