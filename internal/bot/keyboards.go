package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"textdigest/internal/domain"
	"textdigest/internal/markdown"
)

const (
	callbackMenu            = "menu"
	callbackMenuSettings    = "menu_settings"
	callbackMenuHistory     = "menu_history"
	callbackMenuHelp        = "menu_help"
	callbackMenuSamples     = "menu_samples"
	callbackSettingsBackend = "settings_backend"
	callbackSettingsModel   = "settings_model"
	callbackSettingsStyle   = "settings_style"
	callbackSettingsStream  = "settings_stream"
	callbackHistoryClear    = "history_clear"

	callbackBackendPrefix = "backend_"
	callbackModelPrefix   = "model_"
	callbackStylePrefix   = "style_"
	callbackExportPrefix  = "export_"
	callbackSamplePrefix  = "sample_"

	// Telegram limits callback data to 64 bytes.
	maxCallbackDataBytes   = 64
	keyboardRowSize        = 2
	historyKeyboardRowSize = 5
)

func (b *Bot) sendMessageWithKeyboard(
	ctx context.Context,
	chatID int64,
	text string,
	keyboard *models.InlineKeyboardMarkup,
) error {
	normalizedText := strings.ToValidUTF8(text, "?")
	if normalizedText != text {
		b.log.WarnContext(ctx, "Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalizedText))
	}

	parts := markdown.Split(normalizedText, markdown.MessageMaxLength)

	for i, part := range parts {
		params := &tgbot.SendMessageParams{
			ChatID: chatID,
			Text:   part,
			// See https://core.telegram.org/bots/api#markdownv2-style.
			ParseMode:          models.ParseModeMarkdown,
			LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: tgbot.True()},
		}

		if i == len(parts)-1 && keyboard != nil {
			params.ReplyMarkup = keyboard
		}

		if _, err := b.rateLimiter.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("send part %d of %d: %w", i+1, len(parts), err)
		}
	}

	return nil
}

func (b *Bot) sendDocument(
	ctx context.Context,
	chatID int64,
	fileName string,
	content []byte,
	caption string,
) error {
	_, err := b.rateLimiter.SendDocument(ctx, &tgbot.SendDocumentParams{
		ChatID: chatID,
		Document: &models.InputFileUpload{
			Filename: fileName,
			Data:     bytes.NewReader(content),
		},
		Caption:   caption,
		ParseMode: models.ParseModeMarkdown,
	})

	return err
}

// sendFailure reports a failed operation to the chat and joins the send
// error, if any, to err.
func (b *Bot) sendFailure(ctx context.Context, chatID int64, text string, err error) error {
	if sendErr := b.sendMessageWithKeyboard(ctx, chatID, text, b.returnKeyboard); sendErr != nil {
		return errors.Join(err, fmt.Errorf("send message with keyboard: %w", sendErr))
	}

	return err
}

func inlineKeyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func button(text, data string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: data}
}

func returnRow() []models.InlineKeyboardButton {
	return []models.InlineKeyboardButton{button("⬅️ Return to menu", callbackMenu)}
}

func getReturnKeyboard() *models.InlineKeyboardMarkup {
	return inlineKeyboard(returnRow())
}

func getMenuKeyboard() *models.InlineKeyboardMarkup {
	return inlineKeyboard(
		[]models.InlineKeyboardButton{
			button("⚙️ Settings", callbackMenuSettings),
			button("🗂 History", callbackMenuHistory),
		},
		[]models.InlineKeyboardButton{
			button("📄 Samples", callbackMenuSamples),
			button("❔ Help", callbackMenuHelp),
		},
	)
}

func getSettingsKeyboard(settings *domain.ChatSettings) *models.InlineKeyboardMarkup {
	stream := "🌊 Streaming: off"
	if settings.Stream {
		stream = "🌊 Streaming: on"
	}

	return inlineKeyboard(
		[]models.InlineKeyboardButton{
			button("🧠 Backend", callbackSettingsBackend),
			button("🤖 Model", callbackSettingsModel),
		},
		[]models.InlineKeyboardButton{
			button("🎨 Style", callbackSettingsStyle),
			button(stream, callbackSettingsStream),
		},
		returnRow(),
	)
}

func getBackendKeyboard(current domain.BackendKind, configured func(domain.BackendKind) bool) *models.InlineKeyboardMarkup {
	var row []models.InlineKeyboardButton

	for _, kind := range domain.BackendKinds() {
		if !configured(kind) {
			continue
		}

		row = append(row, button(markSelected(kind.String(), kind == current), callbackBackendPrefix+kind.String()))
	}

	return inlineKeyboard(row, returnRow())
}

func getStyleKeyboard(current domain.Style) *models.InlineKeyboardMarkup {
	buttons := make([]models.InlineKeyboardButton, 0, len(domain.Styles()))

	for _, style := range domain.Styles() {
		buttons = append(buttons, button(markSelected(style.Title(), style == current), callbackStylePrefix+string(style)))
	}

	return inlineKeyboard(append(chunkButtons(buttons, keyboardRowSize), returnRow())...)
}

// getModelKeyboard lists models whose names fit into callback data.
func getModelKeyboard(modelNames []string, current string) *models.InlineKeyboardMarkup {
	buttons := make([]models.InlineKeyboardButton, 0, len(modelNames))

	for _, name := range modelNames {
		data := callbackModelPrefix + name
		if len(data) > maxCallbackDataBytes {
			continue
		}

		buttons = append(buttons, button(markSelected(name, name == current), data))
	}

	return inlineKeyboard(append(chunkButtons(buttons, keyboardRowSize), returnRow())...)
}

func getSummaryKeyboard(entryID int64) *models.InlineKeyboardMarkup {
	if entryID == 0 {
		return getReturnKeyboard()
	}

	return inlineKeyboard(
		[]models.InlineKeyboardButton{
			button("⬇️ Export", callbackExportPrefix+strconv.FormatInt(entryID, 10)),
			button("⚙️ Settings", callbackMenuSettings),
		},
		returnRow(),
	)
}

func getHistoryKeyboard(entries []domain.HistoryEntry) *models.InlineKeyboardMarkup {
	buttons := make([]models.InlineKeyboardButton, 0, len(entries))

	for i, entry := range entries {
		buttons = append(buttons, button(
			fmt.Sprintf("⬇️ %d", i+1),
			callbackExportPrefix+strconv.FormatInt(entry.ID, 10),
		))
	}

	rows := chunkButtons(buttons, historyKeyboardRowSize)
	if len(entries) > 0 {
		rows = append(rows, []models.InlineKeyboardButton{button("🗑 Clear history", callbackHistoryClear)})
	}

	return inlineKeyboard(append(rows, returnRow())...)
}

func chunkButtons(buttons []models.InlineKeyboardButton, size int) [][]models.InlineKeyboardButton {
	var rows [][]models.InlineKeyboardButton

	for i := 0; i < len(buttons); i += size {
		rows = append(rows, buttons[i:min(i+size, len(buttons))])
	}

	return rows
}

func markSelected(text string, selected bool) string {
	if selected {
		return "✅ " + text
	}

	return text
}

func botCommands() []models.BotCommand {
	return []models.BotCommand{
		{Command: "start", Description: "Welcome message"},
		{Command: "help", Description: "How to use the bot"},
		{Command: "menu", Description: "Main menu"},
		{Command: "settings", Description: "Current settings"},
		{Command: "style", Description: "Choose summary style"},
		{Command: "backend", Description: "Choose summarization backend"},
		{Command: "model", Description: "Choose model"},
		{Command: "length", Description: "Set summary length: /length <max> <min>"},
		{Command: "instructions", Description: "Set extra instructions"},
		{Command: "stream", Description: "Toggle streaming responses"},
		{Command: "history", Description: "Recent summaries"},
		{Command: "clear", Description: "Clear history"},
		{Command: "sample", Description: "Summarize a sample text"},
	}
}
