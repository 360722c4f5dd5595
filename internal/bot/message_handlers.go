package bot

import (
	"context"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"textdigest/internal/extract"
	"textdigest/internal/service"
)

const noInputText = "✖️ Send me a text, a link or a document\\."

func (b *Bot) handleMessage(ctx context.Context, message *models.Message) error {
	chatID := message.Chat.ID

	return b.withSpinner(ctx, chatID, func() error {
		text := strings.TrimSpace(message.Text)

		if command, args, ok := parseCommand(text); ok {
			return b.handleCommand(ctx, chatID, command, args)
		}

		if message.Document != nil {
			return b.handleDocument(ctx, chatID, message.Document)
		}

		if text == "" {
			return b.sendMessageWithKeyboard(ctx, chatID, noInputText, b.menuKeyboard)
		}

		if rawURL, ok := extract.FindURL(text); ok {
			return b.handleURL(ctx, chatID, rawURL)
		}

		return b.summarizeAndReply(ctx, chatID, text, "")
	})
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, command, args string) error {
	switch command {
	case "start":
		return b.handleStartCommand(ctx, chatID)
	case "help":
		return b.handleHelpCommand(ctx, chatID)
	case "menu":
		return b.handleMenuCommand(ctx, chatID)
	case "settings":
		return b.handleSettingsCommand(ctx, chatID)
	case "style":
		return b.handleStyleCommand(ctx, chatID, args)
	case "backend":
		return b.handleBackendCommand(ctx, chatID, args)
	case "model":
		return b.handleModelCommand(ctx, chatID, args)
	case "length":
		return b.handleLengthCommand(ctx, chatID, args)
	case "instructions":
		return b.handleInstructionsCommand(ctx, chatID, args)
	case "stream":
		return b.handleStreamCommand(ctx, chatID)
	case "history":
		return b.handleHistoryCommand(ctx, chatID)
	case "clear":
		return b.handleClearCommand(ctx, chatID)
	case "sample":
		return b.handleSampleCommand(ctx, chatID, args)
	default:
		return b.sendMessageWithKeyboard(ctx, chatID, "✖️ Unknown command\\. See /help\\.", b.menuKeyboard)
	}
}

func (b *Bot) handleURL(ctx context.Context, chatID int64, rawURL string) error {
	source, err := b.fetcher.FetchURL(ctx, rawURL)
	if err != nil {
		return b.replyError(ctx, chatID, fmt.Errorf("fetch %s: %w", rawURL, err))
	}

	title := source.Title
	if title == "" {
		title = source.URL
	}

	return b.summarizeAndReply(ctx, chatID, source.Text, title)
}

func (b *Bot) handleDocument(ctx context.Context, chatID int64, doc *models.Document) error {
	if doc.FileSize > b.maxUploadBytes {
		return b.replyError(ctx, chatID, fmt.Errorf("document %q of %d bytes: %w",
			doc.FileName, doc.FileSize, extract.ErrTooLarge))
	}

	file, err := b.api.GetFile(ctx, &tgbot.GetFileParams{FileID: doc.FileID})
	if err != nil {
		return b.replyError(ctx, chatID, fmt.Errorf("get file: %w", err))
	}

	data, contentType, err := b.fetcher.Download(ctx, b.api.FileDownloadLink(file))
	if err != nil {
		return b.replyError(ctx, chatID, fmt.Errorf("download document: %w", err))
	}

	format := extract.DetectFormat(doc.FileName, doc.MimeType)
	if format == extract.FormatUnknown {
		format = extract.DetectFormat("", contentType)
	}

	b.log.DebugContext(ctx, "Document is downloaded",
		"chatID", chatID,
		"fileName", doc.FileName,
		"format", format,
		"size", len(data))

	text, err := extract.FromBytes(format, data)
	if err != nil {
		return b.replyError(ctx, chatID, fmt.Errorf("extract document: %w", err))
	}

	return b.summarizeAndReply(ctx, chatID, text, doc.FileName)
}

func (b *Bot) summarizeAndReply(ctx context.Context, chatID int64, text, title string) error {
	settings, err := b.svc.Settings(ctx, chatID)
	if err != nil {
		return b.sendFailure(ctx, chatID, failedText, fmt.Errorf("get settings: %w", err))
	}

	res, err := b.svc.Summarize(ctx, service.Request{
		ChatID:   chatID,
		Text:     text,
		Settings: *settings,
	})
	if err != nil {
		return b.replyError(ctx, chatID, fmt.Errorf("summarize: %w", err))
	}

	if err = b.sendMessageWithKeyboard(
		ctx,
		chatID,
		formatSummaryMessage(title, res),
		getSummaryKeyboard(res.EntryID),
	); err != nil {
		return fmt.Errorf("send message with keyboard: %w", err)
	}

	return nil
}

// replyError tells the user what went wrong. Errors caused by the input are
// not returned to the caller.
func (b *Bot) replyError(ctx context.Context, chatID int64, err error) error {
	text, handled := userErrorText(err)
	if !handled {
		return b.sendFailure(ctx, chatID, text, err)
	}

	b.log.InfoContext(ctx, "Request is rejected",
		"reason", err,
		"chatID", chatID)

	if sendErr := b.sendMessageWithKeyboard(ctx, chatID, text, b.returnKeyboard); sendErr != nil {
		return fmt.Errorf("send message with keyboard: %w", sendErr)
	}

	return nil
}
