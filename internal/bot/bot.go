package bot

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"textdigest/internal/domain"
	"textdigest/internal/extract"
	"textdigest/internal/ratelimiter"
	"textdigest/internal/service"
)

const defaultUpdateProcessingTimeout = 10 * time.Minute

// Service is the summarization service used by the bot.
type Service interface {
	Summarize(ctx context.Context, req service.Request) (*service.Result, error)
	BackendConfigured(kind domain.BackendKind) bool
	Models(ctx context.Context) []string
	Settings(ctx context.Context, chatID int64) (*domain.ChatSettings, error)
	SaveSettings(ctx context.Context, settings *domain.ChatSettings) error
	History(ctx context.Context, chatID int64) ([]domain.HistoryEntry, error)
	ClearHistory(ctx context.Context, chatID int64) (int64, error)
	Export(ctx context.Context, chatID int64, entryID int64) (string, []byte, error)
}

// Fetcher downloads files and pages.
type Fetcher interface {
	Download(ctx context.Context, rawURL string) ([]byte, string, error)
	FetchURL(ctx context.Context, rawURL string) (*extract.Source, error)
}

type Config struct {
	Token        string
	AllowedUsers []int64
	// MaxUploadBytes limits uploaded documents.
	MaxUploadBytes int64
	// UpdateTimeout bounds the handling of a single update.
	UpdateTimeout time.Duration
}

type Bot struct {
	api            *tgbot.Bot
	rateLimiter    *ratelimiter.RateLimiter
	svc            Service
	fetcher        Fetcher
	allowedUsers   []int64
	maxUploadBytes int64
	updateTimeout  time.Duration
	returnKeyboard *models.InlineKeyboardMarkup
	menuKeyboard   *models.InlineKeyboardMarkup
	log            *slog.Logger
}

func New(
	cfg Config,
	svc Service,
	fetcher Fetcher,
	log *slog.Logger,
	opts ...tgbot.Option,
) (*Bot, error) {
	b := &Bot{
		svc:            svc,
		fetcher:        fetcher,
		allowedUsers:   cfg.AllowedUsers,
		maxUploadBytes: cfg.MaxUploadBytes,
		updateTimeout:  cfg.UpdateTimeout,
		returnKeyboard: getReturnKeyboard(),
		menuKeyboard:   getMenuKeyboard(),
		log:            log,
	}

	if b.maxUploadBytes <= 0 {
		b.maxUploadBytes = extract.DefaultMaxBytes
	}
	if b.updateTimeout <= 0 {
		b.updateTimeout = defaultUpdateProcessingTimeout
	}

	opts = append([]tgbot.Option{
		tgbot.WithDefaultHandler(b.handleUpdate),
		tgbot.WithErrorsHandler(func(err error) {
			b.log.Error("Telegram API error",
				"error", err)
		}),
	}, opts...)

	api, err := tgbot.New(strings.TrimSpace(cfg.Token), opts...)
	if err != nil {
		return nil, err
	}

	b.api = api
	b.rateLimiter = ratelimiter.New(api, log)

	return b, nil
}

// Start polls updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	if _, err := b.api.SetMyCommands(ctx, &tgbot.SetMyCommandsParams{Commands: botCommands()}); err != nil {
		b.log.WarnContext(ctx, "Failed to set bot commands",
			"error", err)
	}

	b.api.Start(ctx)

	b.log.InfoContext(ctx, "Bot context is done",
		"error", ctx.Err())
}

func (b *Bot) Stop() {
	if b.rateLimiter != nil {
		b.rateLimiter.Stop()
	}
}

func (b *Bot) handleUpdate(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, b.updateTimeout)
	defer cancel()

	switch {
	case update.Message != nil:
		message := update.Message
		chatID, chatType := chatContext(message.Chat)

		if message.From == nil || !b.userAllowed(message.From.ID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", senderID(message),
				"chatID", chatID,
				"chatType", chatType)

			return
		}

		if err := b.handleMessage(updateCtx, message); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle message",
				"error", err,
				"chatID", chatID,
				"userID", message.From.ID,
				"chatType", chatType,
				"messageID", message.ID)
		}

	case update.CallbackQuery != nil:
		callback := update.CallbackQuery
		chatID := callbackChatID(callback)

		if !b.userAllowed(callback.From.ID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", callback.From.ID,
				"chatID", chatID,
				"username", callback.From.Username,
				"data", callback.Data)

			return
		}

		if err := b.handleCallbackQuery(updateCtx, callback); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle callback query",
				"error", err,
				"chatID", chatID,
				"userID", callback.From.ID,
				"data", callback.Data,
				"messageID", callbackMessageID(callback))
		}
	}
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}

func chatContext(chat models.Chat) (int64, string) {
	return chat.ID, string(chat.Type)
}

func senderID(message *models.Message) int64 {
	if message.From == nil {
		return 0
	}

	return message.From.ID
}

func callbackChatID(cb *models.CallbackQuery) int64 {
	if cb != nil && cb.Message.Message != nil {
		return cb.Message.Message.Chat.ID
	}

	return 0
}

func callbackMessageID(cb *models.CallbackQuery) int {
	if cb != nil && cb.Message.Message != nil {
		return cb.Message.Message.ID
	}

	return 0
}
