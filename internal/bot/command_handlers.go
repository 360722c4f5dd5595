package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"textdigest/internal/domain"
	"textdigest/internal/markdown"
)

const welcomeText = `🤖 *Welcome to TextDigest\!*

I summarize long texts for you\. Send me:

– Any text of at least a hundred characters
– A link to an article or a feed
– A \.txt, \.md, \.pdf, \.docx or \.html document

Long texts are split into parts that are summarized one by one\.
Use /settings to choose the backend, model, style and length\.`

const helpText = `❔ *Help*

/settings – current settings
/backend \[name\] – choose the summarization backend
/model \[name\] – choose the model
/style \[name\] – choose the summary style
/length \<max\> \<min\> – summary length in words
/instructions \[text\] – extra instructions, empty to reset
/stream – toggle streaming responses
/history – recent summaries
/clear – clear history
/sample \[name\] – summarize a sample text`

const settingsText = `*⚙️ Settings*

Backend: %s
Model: %s
Style: %s
Length: %d–%d words
Streaming: %s
Instructions: %s

You can choose different settings below:`

const (
	maxInstructionsLength = 500
)

func (b *Bot) handleStartCommand(ctx context.Context, chatID int64) error {
	return b.sendMessageWithKeyboard(ctx, chatID, welcomeText, b.menuKeyboard)
}

func (b *Bot) handleHelpCommand(ctx context.Context, chatID int64) error {
	return b.sendMessageWithKeyboard(ctx, chatID, helpText, b.returnKeyboard)
}

func (b *Bot) handleMenuCommand(ctx context.Context, chatID int64) error {
	return b.sendMessageWithKeyboard(ctx, chatID, "❔ *Choose an option:*", b.menuKeyboard)
}

func (b *Bot) handleSettingsCommand(ctx context.Context, chatID int64) error {
	settings, err := b.svc.Settings(ctx, chatID)
	if err != nil {
		return b.sendFailure(ctx, chatID, failedText, fmt.Errorf("get settings: %w", err))
	}

	if err = b.sendMessageWithKeyboard(
		ctx,
		chatID,
		formatSettings(settings),
		getSettingsKeyboard(settings),
	); err != nil {
		return fmt.Errorf("send message with keyboard: %w", err)
	}

	return nil
}

func (b *Bot) handleStyleCommand(ctx context.Context, chatID int64, args string) error {
	if args == "" {
		settings, err := b.svc.Settings(ctx, chatID)
		if err != nil {
			return b.sendFailure(ctx, chatID, failedText, fmt.Errorf("get settings: %w", err))
		}

		return b.sendMessageWithKeyboard(ctx, chatID, "🎨 *Choose a summary style:*", getStyleKeyboard(settings.Style))
	}

	style, err := domain.ParseStyle(args)
	if err != nil {
		return b.sendMessageWithKeyboard(ctx, chatID, unknownValueText("style", args, styleNames()), b.returnKeyboard)
	}

	return b.updateSettings(ctx, chatID, func(s *domain.ChatSettings) {
		s.Style = style
	})
}

func (b *Bot) handleBackendCommand(ctx context.Context, chatID int64, args string) error {
	if args == "" {
		settings, err := b.svc.Settings(ctx, chatID)
		if err != nil {
			return b.sendFailure(ctx, chatID, failedText, fmt.Errorf("get settings: %w", err))
		}

		return b.sendMessageWithKeyboard(
			ctx,
			chatID,
			"🧠 *Choose a backend:*",
			getBackendKeyboard(settings.Backend, b.svc.BackendConfigured),
		)
	}

	kind, err := domain.ParseBackendKind(args)
	if err != nil {
		return b.sendMessageWithKeyboard(ctx, chatID, unknownValueText("backend", args, backendNames()), b.returnKeyboard)
	}

	return b.selectBackend(ctx, chatID, kind)
}

func (b *Bot) selectBackend(ctx context.Context, chatID int64, kind domain.BackendKind) error {
	if !b.svc.BackendConfigured(kind) {
		return b.sendMessageWithKeyboard(
			ctx,
			chatID,
			fmt.Sprintf("✖️ Backend %s is not configured\\.", markdown.EscapeV2(kind.String())),
			b.returnKeyboard,
		)
	}

	return b.updateSettings(ctx, chatID, setBackend(kind))
}

// setBackend switches the backend. The model is reset when the backend
// changes since model names are backend specific.
func setBackend(kind domain.BackendKind) func(*domain.ChatSettings) {
	return func(s *domain.ChatSettings) {
		if s.Backend != kind {
			s.Model = ""
		}
		s.Backend = kind
	}
}

func (b *Bot) handleModelCommand(ctx context.Context, chatID int64, args string) error {
	settings, err := b.svc.Settings(ctx, chatID)
	if err != nil {
		return b.sendFailure(ctx, chatID, failedText, fmt.Errorf("get settings: %w", err))
	}

	if args == "" {
		if settings.Backend != domain.BackendOllama {
			return b.sendMessageWithKeyboard(
				ctx,
				chatID,
				"🤖 Send /model \\<name\\> to choose a model of this backend, or /model default\\.",
				b.returnKeyboard,
			)
		}

		return b.sendMessageWithKeyboard(
			ctx,
			chatID,
			"🤖 *Choose a model:*",
			getModelKeyboard(b.svc.Models(ctx), settings.Model),
		)
	}

	model := args
	if strings.EqualFold(model, "default") {
		model = ""
	}

	return b.updateSettings(ctx, chatID, func(s *domain.ChatSettings) {
		s.Model = model
	})
}

func (b *Bot) handleLengthCommand(ctx context.Context, chatID int64, args string) error {
	maxWords, minWords, err := parseLengthArgs(args)
	if err != nil {
		return b.sendMessageWithKeyboard(
			ctx,
			chatID,
			"✖️ Usage: /length \\<max\\> \\<min\\>, for example /length 150 50\\.",
			b.returnKeyboard,
		)
	}

	return b.updateSettings(ctx, chatID, func(s *domain.ChatSettings) {
		s.MaxWords = maxWords
		s.MinWords = minWords
	})
}

func (b *Bot) handleInstructionsCommand(ctx context.Context, chatID int64, args string) error {
	if len([]rune(args)) > maxInstructionsLength {
		return b.sendMessageWithKeyboard(
			ctx,
			chatID,
			fmt.Sprintf("✖️ Instructions must be at most %d characters\\.", maxInstructionsLength),
			b.returnKeyboard,
		)
	}

	return b.updateSettings(ctx, chatID, func(s *domain.ChatSettings) {
		s.Instructions = args
	})
}

func (b *Bot) handleStreamCommand(ctx context.Context, chatID int64) error {
	return b.updateSettings(ctx, chatID, func(s *domain.ChatSettings) {
		s.Stream = !s.Stream
	})
}

func (b *Bot) handleHistoryCommand(ctx context.Context, chatID int64) error {
	entries, err := b.svc.History(ctx, chatID)
	if err != nil {
		return b.sendFailure(ctx, chatID, failedText, fmt.Errorf("get history: %w", err))
	}

	if err = b.sendMessageWithKeyboard(
		ctx,
		chatID,
		formatHistory(entries),
		getHistoryKeyboard(entries),
	); err != nil {
		return fmt.Errorf("send message with keyboard: %w", err)
	}

	return nil
}

func (b *Bot) handleClearCommand(ctx context.Context, chatID int64) error {
	removed, err := b.svc.ClearHistory(ctx, chatID)
	if err != nil {
		return b.sendFailure(ctx, chatID, failedText, fmt.Errorf("clear history: %w", err))
	}

	return b.sendMessageWithKeyboard(
		ctx,
		chatID,
		fmt.Sprintf("✅ History is cleared \\(%d removed\\)\\.", removed),
		b.returnKeyboard,
	)
}

// updateSettings applies fn to the stored settings and shows the result.
func (b *Bot) updateSettings(ctx context.Context, chatID int64, fn func(*domain.ChatSettings)) error {
	settings, err := b.applySettings(ctx, chatID, fn)
	if err != nil {
		text, _ := userErrorText(err)

		return b.sendFailure(ctx, chatID, text, err)
	}

	if err = b.sendMessageWithKeyboard(
		ctx,
		chatID,
		"✅ Settings are updated\\.\n\n"+formatSettings(settings),
		getSettingsKeyboard(settings),
	); err != nil {
		return fmt.Errorf("send message with keyboard: %w", err)
	}

	return nil
}

func (b *Bot) applySettings(
	ctx context.Context,
	chatID int64,
	fn func(*domain.ChatSettings),
) (*domain.ChatSettings, error) {
	settings, err := b.svc.Settings(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	fn(settings)

	if err = b.svc.SaveSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}

	return settings, nil
}

// parseCommand splits "/cmd@bot args" into the lowercased command and its
// trimmed arguments.
func parseCommand(text string) (string, string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}

	command, args, _ := strings.Cut(text[1:], " ")
	command, _, _ = strings.Cut(command, "@")

	if command == "" {
		return "", "", false
	}

	return strings.ToLower(command), strings.TrimSpace(args), true
}

func parseLengthArgs(args string) (int, int, error) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("expected 2 arguments, got %d", len(fields))
	}

	maxWords, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parse max: %w", err)
	}

	minWords, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parse min: %w", err)
	}

	if maxWords <= 0 || minWords < 0 {
		return 0, 0, errors.New("lengths must be positive")
	}

	return maxWords, minWords, nil
}

func unknownValueText(what, value string, known []string) string {
	return fmt.Sprintf("✖️ Unknown %s %s\\. Known values: %s\\.",
		what,
		markdown.EscapeV2(strconv.Quote(value)),
		markdown.EscapeV2(strings.Join(known, ", ")))
}

func styleNames() []string {
	names := make([]string, 0, len(domain.Styles()))
	for _, style := range domain.Styles() {
		names = append(names, string(style))
	}

	return names
}

func backendNames() []string {
	names := make([]string, 0, len(domain.BackendKinds()))
	for _, kind := range domain.BackendKinds() {
		names = append(names, kind.String())
	}

	return names
}
