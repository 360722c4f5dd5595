package stats

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const reportTimeLayout = "2006-01-02 15:04:05"

type Stats struct {
	OriginalChars int
	SummaryChars  int
	OriginalWords int
	SummaryWords  int
	// CompressionRatio is summary characters over original characters, in percent.
	CompressionRatio float64
	// WordCompressionRatio is summary words over original words, in percent.
	WordCompressionRatio float64
	ProcessingTime       time.Duration
}

func Compute(original, summary string, elapsed time.Duration) Stats {
	s := Stats{
		OriginalChars:  utf8.RuneCountInString(original),
		SummaryChars:   utf8.RuneCountInString(summary),
		OriginalWords:  len(strings.Fields(original)),
		SummaryWords:   len(strings.Fields(summary)),
		ProcessingTime: elapsed,
	}

	s.CompressionRatio = percent(s.SummaryChars, s.OriginalChars)
	s.WordCompressionRatio = percent(s.SummaryWords, s.OriginalWords)

	return s
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}

	return float64(part) / float64(whole) * 100
}

type ReportInput struct {
	Original    string
	Summary     string
	Model       string
	StyleTitle  string
	GeneratedAt time.Time
	Stats       Stats
}

// Report renders a downloadable Markdown document for one summary.
func Report(in ReportInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Summary (%s)\n", in.StyleTitle)
	fmt.Fprintf(&b, "Generated on: %s\n", in.GeneratedAt.Format(reportTimeLayout))
	fmt.Fprintf(&b, "Model: %s\n\n", in.Model)

	fmt.Fprintf(&b, "## Original Text (%s characters)\n", FormatCount(in.Stats.OriginalChars))
	b.WriteString(in.Original)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "## Summary (%s characters)\n", FormatCount(in.Stats.SummaryChars))
	b.WriteString(in.Summary)
	b.WriteString("\n\n")

	b.WriteString("## Statistics\n")
	fmt.Fprintf(&b, "- Compression Ratio: %.1f%%\n", in.Stats.CompressionRatio)
	fmt.Fprintf(&b, "- Processing Time: %.1fs\n", in.Stats.ProcessingTime.Seconds())
	fmt.Fprintf(&b, "- Word Count: %s → %s\n",
		FormatCount(in.Stats.OriginalWords),
		FormatCount(in.Stats.SummaryWords))

	return b.String()
}

func ReportFileName(t time.Time) string {
	return "summary_" + t.Format("20060102_150405") + ".md"
}

// FormatCount renders n with comma thousands separators.
func FormatCount(n int) string {
	if n < 0 {
		return "-" + FormatCount(-n)
	}

	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}

	return b.String()
}
