package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const previewMaxRunes = 200

// BackendKind is the closed set of summarization backends.
type BackendKind int

const (
	BackendOllama BackendKind = iota
	BackendOpenAI
)

// BackendKinds lists every backend kind in display order.
func BackendKinds() []BackendKind {
	return []BackendKind{BackendOllama, BackendOpenAI}
}

func (k BackendKind) String() string {
	switch k {
	case BackendOllama:
		return "ollama"
	case BackendOpenAI:
		return "openai"
	default:
		return fmt.Sprintf("backend(%d)", int(k))
	}
}

func ParseBackendKind(s string) (BackendKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ollama":
		return BackendOllama, nil
	case "openai":
		return BackendOpenAI, nil
	default:
		return 0, fmt.Errorf("unknown backend %q", s)
	}
}

func (k *BackendKind) UnmarshalText(text []byte) error {
	kind, err := ParseBackendKind(string(text))
	if err != nil {
		return err
	}

	*k = kind

	return nil
}

// Style selects one of the fixed summary prompt templates.
type Style string

const (
	StyleGeneral      Style = "general"
	StyleBulletPoints Style = "bullet_points"
	StyleExecutive    Style = "executive"
	StyleAcademic     Style = "academic"
	StyleTimeline     Style = "timeline"
	StyleQuestions    Style = "questions"
)

func Styles() []Style {
	return []Style{
		StyleGeneral,
		StyleBulletPoints,
		StyleExecutive,
		StyleAcademic,
		StyleTimeline,
		StyleQuestions,
	}
}

func ParseStyle(s string) (Style, error) {
	style := Style(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Styles() {
		if style == known {
			return style, nil
		}
	}

	return "", fmt.Errorf("unknown style %q", s)
}

// Title is the human-readable style name.
func (s Style) Title() string {
	switch s {
	case StyleGeneral:
		return "General"
	case StyleBulletPoints:
		return "Bullet points"
	case StyleExecutive:
		return "Executive"
	case StyleAcademic:
		return "Academic"
	case StyleTimeline:
		return "Timeline"
	case StyleQuestions:
		return "Q&A"
	default:
		return string(s)
	}
}

type ChatSettings struct {
	ChatID       int64
	Backend      BackendKind
	Model        string
	Style        Style
	MaxWords     int
	MinWords     int
	Stream       bool
	Instructions string
}

type HistoryEntry struct {
	ID             int64
	ChatID         int64
	CreatedAt      time.Time
	OriginalText   string
	Summary        string
	Backend        BackendKind
	Model          string
	Style          Style
	ChunkCount     int
	ProcessingTime time.Duration
}

// Preview returns the first 200 runes of text, marked with an ellipsis when cut.
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= previewMaxRunes {
		return text
	}

	runes := []rune(text)

	return string(runes[:previewMaxRunes]) + "..."
}
