package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"textdigest/internal/database"
	"textdigest/internal/domain"
	"textdigest/internal/extract"
	"textdigest/internal/markdown"
	"textdigest/internal/service"
	"textdigest/internal/stats"
	"textdigest/internal/summarizer"
)

const historyTimeLayout = "2006-01-02 15:04"

const failedText = "❌ Failed\\."

func formatSummaryMessage(title string, res *service.Result) string {
	var b strings.Builder

	if title = strings.TrimSpace(title); title != "" {
		fmt.Fprintf(&b, "🔗 *%s*\n\n", markdown.EscapeV2(title))
	}

	model := res.Backend.String()
	if res.Model != "" {
		model += "/" + res.Model
	}

	fmt.Fprintf(&b, "📝 *Summary* \\(%s · %s\\)\n\n",
		markdown.EscapeV2(res.Style.Title()),
		markdown.EscapeV2(model))

	b.WriteString(markdown.EscapeV2(res.Summary))
	b.WriteString("\n\n")
	b.WriteString(formatStats(res.Stats, res.Chunks, res.Cached))

	return b.String()
}

func formatStats(s stats.Stats, chunks int, cached bool) string {
	var b strings.Builder

	b.WriteString("📊 *Statistics*\n")
	fmt.Fprintf(&b, "– Characters: %s → %s\n",
		markdown.EscapeV2(stats.FormatCount(s.OriginalChars)),
		markdown.EscapeV2(stats.FormatCount(s.SummaryChars)))
	fmt.Fprintf(&b, "– Words: %s → %s\n",
		markdown.EscapeV2(stats.FormatCount(s.OriginalWords)),
		markdown.EscapeV2(stats.FormatCount(s.SummaryWords)))
	fmt.Fprintf(&b, "– Compression: %s\n", markdown.EscapeV2(fmt.Sprintf("%.1f%%", s.CompressionRatio)))
	fmt.Fprintf(&b, "– Chunks: %d\n", chunks)
	fmt.Fprintf(&b, "– Processing time: %s", markdown.EscapeV2(formatDuration(s.ProcessingTime)))

	if cached {
		b.WriteString("\n– Cached: yes")
	}

	return b.String()
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatSettings(settings *domain.ChatSettings) string {
	model := settings.Model
	if model == "" {
		model = "default"
	}

	instructions := settings.Instructions
	if instructions == "" {
		instructions = "none"
	}

	stream := "off"
	if settings.Stream {
		stream = "on"
	}

	return fmt.Sprintf(settingsText,
		markdown.EscapeV2(settings.Backend.String()),
		markdown.EscapeV2(model),
		markdown.EscapeV2(settings.Style.Title()),
		settings.MinWords,
		settings.MaxWords,
		stream,
		markdown.EscapeV2(instructions))
}

func formatHistory(entries []domain.HistoryEntry) string {
	if len(entries) == 0 {
		return "🗂 History is empty\\."
	}

	var b strings.Builder

	fmt.Fprintf(&b, "🗂 *History* \\(%d\\)\n", len(entries))

	for i, entry := range entries {
		fmt.Fprintf(&b, "\n*%d\\.* %s · %s · %s\n",
			i+1,
			markdown.EscapeV2(entry.CreatedAt.UTC().Format(historyTimeLayout)),
			markdown.EscapeV2(entry.Style.Title()),
			markdown.EscapeV2(entry.Backend.String()))
		b.WriteString(markdown.EscapeV2(domain.Preview(entry.Summary)))
		b.WriteString("\n")
	}

	return b.String()
}

// userErrorText is the reply for err. Known errors caused by the input are
// reported as handled.
func userErrorText(err error) (string, bool) {
	switch {
	case errors.Is(err, service.ErrEmptyText):
		return "✖️ The text is empty\\.", true
	case errors.Is(err, service.ErrTextTooShort):
		return "✖️ The text is too short to summarize\\.", true
	case errors.Is(err, service.ErrInvalidBudget):
		return "✖️ The maximum summary length must be positive\\. Use /length to change it\\.", true
	case errors.Is(err, service.ErrBackendNotConfigured):
		return "✖️ This backend is not configured\\. Choose another one in /settings\\.", true
	case errors.Is(err, extract.ErrTooLarge):
		return "✖️ The file is too large\\.", true
	case errors.Is(err, extract.ErrNotText), errors.Is(err, extract.ErrNoText):
		return "✖️ No readable text is found\\.", true
	case errors.Is(err, database.ErrNotFound):
		return "✖️ The summary is not in the history anymore\\.", true
	case errors.Is(err, summarizer.ErrMalformedOutput):
		return "❌ The backend returned an unreadable answer\\. Please try again\\.", false
	case errors.Is(err, summarizer.ErrBackendUnavailable):
		return "❌ The summarization backend is unavailable\\. Please try again later\\.", false
	default:
		return failedText, false
	}
}
