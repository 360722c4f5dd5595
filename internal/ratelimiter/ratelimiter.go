package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	privateChatRate = time.Second
	groupChatRate   = 3 * time.Second
	queueSize       = 1000
	chatQueueSize   = 100
)

var ErrStopped = errors.New("rate limiter is stopped")

// Sender is the part of the Telegram API that is rate limited.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
}

type request struct {
	ctx      context.Context
	params   any
	response chan response
}

type response struct {
	message *models.Message
	err     error
}

// RateLimiter spaces sends per chat. Every chat has its own worker, so a
// delayed group chat does not hold back other chats.
type RateLimiter struct {
	api         Sender
	queue       chan request
	chats       map[int64]chan request
	workers     sync.WaitGroup
	lastSent    map[int64]time.Time
	mu          sync.Mutex
	privateRate time.Duration
	groupRate   time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	log         *slog.Logger
}

func New(api Sender, log *slog.Logger) *RateLimiter {
	return newRateLimiter(api, privateChatRate, groupChatRate, log)
}

func newRateLimiter(api Sender, privateRate, groupRate time.Duration, log *slog.Logger) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())

	rl := &RateLimiter{
		api:         api,
		queue:       make(chan request, queueSize),
		chats:       make(map[int64]chan request),
		lastSent:    make(map[int64]time.Time),
		privateRate: privateRate,
		groupRate:   groupRate,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		log:         log,
	}

	go rl.processQueue()

	return rl
}

func (rl *RateLimiter) SendMessage(
	ctx context.Context,
	params *bot.SendMessageParams,
) (*models.Message, error) {
	return rl.enqueue(ctx, params)
}

func (rl *RateLimiter) SendDocument(
	ctx context.Context,
	params *bot.SendDocumentParams,
) (*models.Message, error) {
	return rl.enqueue(ctx, params)
}

func (rl *RateLimiter) EditMessageText(
	ctx context.Context,
	params *bot.EditMessageTextParams,
) (*models.Message, error) {
	return rl.enqueue(ctx, params)
}

// Stop rejects queued and future sends with ErrStopped.
func (rl *RateLimiter) Stop() {
	rl.cancel()
	<-rl.done
}

func (rl *RateLimiter) enqueue(ctx context.Context, params any) (*models.Message, error) {
	req := request{
		ctx:      ctx,
		params:   params,
		response: make(chan response, 1),
	}

	select {
	case rl.queue <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-rl.done:
		return nil, ErrStopped
	}

	select {
	case resp := <-req.response:
		return resp.message, resp.err
	case <-rl.done:
		return nil, ErrStopped
	}
}

func (rl *RateLimiter) processQueue() {
	defer close(rl.done)

	for {
		select {
		case req := <-rl.queue:
			rl.dispatch(req)
		case <-rl.ctx.Done():
			rejectAll(rl.queue)
			rl.workers.Wait()

			return
		}
	}
}

// dispatch hands req to the worker of its chat, starting one if needed.
func (rl *RateLimiter) dispatch(req request) {
	chatID := getChatID(req.params)

	chat, ok := rl.chats[chatID]
	if !ok {
		chat = make(chan request, chatQueueSize)
		rl.chats[chatID] = chat

		rl.workers.Add(1)
		go rl.processChat(chatID, chat)
	}

	select {
	case chat <- req:
	case <-rl.ctx.Done():
		req.response <- response{err: ErrStopped}
	}
}

func (rl *RateLimiter) processChat(chatID int64, chat chan request) {
	defer rl.workers.Done()

	for {
		select {
		case req := <-chat:
			rl.handleRequest(chatID, req, len(chat))
		case <-rl.ctx.Done():
			rejectAll(chat)

			return
		}
	}
}

func rejectAll(queue chan request) {
	for {
		select {
		case req := <-queue:
			req.response <- response{err: ErrStopped}
		default:
			return
		}
	}
}

func (rl *RateLimiter) handleRequest(chatID int64, req request, pending int) {
	rl.mu.Lock()
	lastSent, exists := rl.lastSent[chatID]
	rl.mu.Unlock()

	if exists {
		delay := rl.getDelay(chatID, lastSent)

		if delay > 0 {
			rl.log.DebugContext(req.ctx, "Rate limiting message",
				"chatID", chatID,
				"delay", delay,
				"paramsType", fmt.Sprintf("%T", req.params),
				"chatQueueLen", pending)

			select {
			case <-time.After(delay):
			case <-req.ctx.Done():
				req.response <- response{err: req.ctx.Err()}

				return
			case <-rl.ctx.Done():
				req.response <- response{err: ErrStopped}

				return
			}
		}
	}

	message, err := rl.send(req.ctx, req.params)

	rl.mu.Lock()
	rl.lastSent[chatID] = time.Now()
	rl.mu.Unlock()

	req.response <- response{
		message: message,
		err:     err,
	}
}

func (rl *RateLimiter) send(ctx context.Context, params any) (*models.Message, error) {
	switch p := params.(type) {
	case *bot.SendMessageParams:
		return rl.api.SendMessage(ctx, p)
	case *bot.SendDocumentParams:
		return rl.api.SendDocument(ctx, p)
	case *bot.EditMessageTextParams:
		return rl.api.EditMessageText(ctx, p)
	default:
		return nil, fmt.Errorf("unsupported params type %T", params)
	}
}

func getChatID(params any) int64 {
	switch p := params.(type) {
	case *bot.SendMessageParams:
		return chatIDValue(p.ChatID)
	case *bot.SendDocumentParams:
		return chatIDValue(p.ChatID)
	case *bot.EditMessageTextParams:
		return chatIDValue(p.ChatID)
	default:
		return 0
	}
}

func chatIDValue(chatID any) int64 {
	switch id := chatID.(type) {
	case int64:
		return id
	case int:
		return int64(id)
	case string:
		v, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return 0
		}
		return v
	default:
		return 0
	}
}

func (rl *RateLimiter) getDelay(
	chatID int64,
	lastSent time.Time,
) time.Duration {
	elapsed := time.Since(lastSent)
	rate := rl.getRate(chatID)

	return max(rate-elapsed, 0)
}

func (rl *RateLimiter) getRate(chatID int64) time.Duration {
	if chatID < 0 {
		return rl.groupRate
	}
	return rl.privateRate
}
