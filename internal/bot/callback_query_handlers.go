package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"textdigest/internal/domain"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *models.CallbackQuery) error {
	chatID := callbackChatID(callback)
	if chatID == 0 {
		return b.answerCallback(ctx, callback, "✖️ This message is too old.")
	}

	return b.withSpinner(ctx, chatID, func() error {
		data := strings.TrimSpace(callback.Data)

		switch data {
		case callbackMenu:
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleMenuCommand(ctx, chatID)
			})
		case callbackMenuSettings:
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleSettingsCommand(ctx, chatID)
			})
		case callbackMenuHistory:
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleHistoryCommand(ctx, chatID)
			})
		case callbackMenuHelp:
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleHelpCommand(ctx, chatID)
			})
		case callbackMenuSamples:
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleSampleCommand(ctx, chatID, "")
			})
		case callbackSettingsBackend:
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleBackendCommand(ctx, chatID, "")
			})
		case callbackSettingsModel:
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleModelCommand(ctx, chatID, "")
			})
		case callbackSettingsStyle:
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleStyleCommand(ctx, chatID, "")
			})
		case callbackSettingsStream:
			return b.handleSettingsQuery(ctx, callback, chatID, func(s *domain.ChatSettings) {
				s.Stream = !s.Stream
			})
		case callbackHistoryClear:
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleClearCommand(ctx, chatID)
			})
		}

		if value, ok := strings.CutPrefix(data, callbackBackendPrefix); ok {
			return b.handleBackendQuery(ctx, callback, chatID, value)
		}

		if value, ok := strings.CutPrefix(data, callbackStylePrefix); ok {
			style, err := domain.ParseStyle(value)
			if err != nil {
				return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("parse style: %w", err))
			}

			return b.handleSettingsQuery(ctx, callback, chatID, func(s *domain.ChatSettings) {
				s.Style = style
			})
		}

		if value, ok := strings.CutPrefix(data, callbackModelPrefix); ok {
			return b.handleSettingsQuery(ctx, callback, chatID, func(s *domain.ChatSettings) {
				s.Model = value
			})
		}

		if value, ok := strings.CutPrefix(data, callbackSamplePrefix); ok {
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleSampleCommand(ctx, chatID, value)
			})
		}

		if value, ok := strings.CutPrefix(data, callbackExportPrefix); ok {
			return b.handleExportQuery(ctx, callback, chatID, value)
		}

		b.log.WarnContext(ctx, "Unknown callback data",
			"data", data,
			"chatID", chatID)

		return b.answerCallback(ctx, callback, "")
	})
}

func (b *Bot) handleBackendQuery(
	ctx context.Context,
	callback *models.CallbackQuery,
	chatID int64,
	value string,
) error {
	kind, err := domain.ParseBackendKind(value)
	if err != nil {
		return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("parse backend: %w", err))
	}

	if !b.svc.BackendConfigured(kind) {
		return b.answerCallback(ctx, callback, "✖️ This backend is not configured.")
	}

	return b.handleSettingsQuery(ctx, callback, chatID, setBackend(kind))
}

// handleSettingsQuery saves the change and shows the updated settings in
// place of the message with the pressed button.
func (b *Bot) handleSettingsQuery(
	ctx context.Context,
	callback *models.CallbackQuery,
	chatID int64,
	fn func(*domain.ChatSettings),
) error {
	settings, err := b.applySettings(ctx, chatID, fn)
	if err != nil {
		return b.errorCallbackAnswer(ctx, callback, err)
	}

	if err = b.answerCallback(ctx, callback, "✅ Settings are updated."); err != nil {
		return err
	}

	return b.editSettingsMessage(ctx, chatID, callbackMessageID(callback), settings)
}

func (b *Bot) editSettingsMessage(
	ctx context.Context,
	chatID int64,
	messageID int,
	settings *domain.ChatSettings,
) error {
	_, err := b.rateLimiter.EditMessageText(ctx, &tgbot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        formatSettings(settings),
		ParseMode:   models.ParseModeMarkdown,
		ReplyMarkup: getSettingsKeyboard(settings),
	})
	if err == nil {
		return nil
	}

	if strings.Contains(err.Error(), "message is not modified") {
		return nil
	}

	b.log.WarnContext(ctx, "Failed to edit settings message, sending a new one",
		"error", err,
		"chatID", chatID,
		"messageID", messageID)

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

func (b *Bot) handleExportQuery(
	ctx context.Context,
	callback *models.CallbackQuery,
	chatID int64,
	value string,
) error {
	entryID, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("parse entry ID: %w", err))
	}

	fileName, content, err := b.svc.Export(ctx, chatID, entryID)
	if err != nil {
		text, handled := userErrorText(err)
		if handled {
			return errors.Join(
				b.answerCallback(ctx, callback, ""),
				b.sendMessageWithKeyboard(ctx, chatID, text, b.returnKeyboard),
			)
		}

		return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("export entry %d: %w", entryID, err))
	}

	return b.withEmptyCallbackAnswer(ctx, callback, func() error {
		if err := b.sendDocument(ctx, chatID, fileName, content, "📝 Summary report"); err != nil {
			return fmt.Errorf("send document: %w", err)
		}

		return nil
	})
}

func (b *Bot) answerCallback(ctx context.Context, callback *models.CallbackQuery, text string) error {
	if _, err := b.api.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
		Text:            text,
	}); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}

	return nil
}

func (b *Bot) withEmptyCallbackAnswer(
	ctx context.Context,
	callback *models.CallbackQuery,
	fn func() error,
) error {
	var errs []error

	if err := b.answerCallback(ctx, callback, ""); err != nil {
		errs = append(errs, err)
	}

	err := fn()
	if err != nil {
		errs = append(errs, fmt.Errorf("call fn: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) errorCallbackAnswer(
	ctx context.Context,
	callback *models.CallbackQuery,
	err error,
) error {
	if sendErr := b.answerCallback(ctx, callback, "❌ Failed."); sendErr != nil {
		return errors.Join(err, sendErr)
	}

	return err
}
