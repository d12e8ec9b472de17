// Package telegram is a reference types.ChatAdapter backend, bridging the
// host's per-user delivery surface to Telegram, grounded on the teacher's
// internal/telegram/adapter.go long-polling bot loop.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/agenthost/agenthost/internal/types"
)

const maxTelegramMessage = 4096

// InboundHandler processes one inbound text message from a user, returning
// the reply body to send back. It is the host's entry point into the
// Session/Task Manager pipeline; the adapter itself only bridges transport.
type InboundHandler func(ctx context.Context, userID types.UserID, text string) (string, error)

// Adapter bridges Telegram to the host, implementing types.ChatAdapter.
// It is meant to be wrapped in chatadapter.QueuedAdapter for per-user FIFO
// ordering before being handed to the rest of the host.
type Adapter struct {
	bot     *tgbotapi.BotAPI
	handler InboundHandler
	logger  *slog.Logger

	mu      sync.RWMutex
	chatIDs map[types.UserID]int64
}

// New creates a Telegram adapter. handler is invoked for every inbound
// text message once Start is running.
func New(token string, handler InboundHandler, logger *slog.Logger) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		bot:     bot,
		handler: handler,
		logger:  logger,
		chatIDs: make(map[types.UserID]int64),
	}, nil
}

// RegisterChat binds a user to the Telegram chat that should receive its
// outbound effects. Called from the inbound loop for every message a user
// sends, since the host's UserID and Telegram's chat id are otherwise
// unrelated identifiers.
func (a *Adapter) RegisterChat(userID types.UserID, chatID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chatIDs[userID] = chatID
}

func (a *Adapter) chatIDFor(userID types.UserID) (int64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	chatID, ok := a.chatIDs[userID]
	if !ok {
		return 0, fmt.Errorf("telegram: no chat registered for user %d", int64(userID))
	}
	return chatID, nil
}

// Start begins long-polling for Telegram updates. Blocks until ctx is
// cancelled.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := types.UserID(msg.From.ID)
	a.RegisterChat(userID, msg.Chat.ID)

	if a.handler == nil {
		return
	}
	reply, err := a.handler(ctx, userID, msg.Text)
	if err != nil {
		a.logger.Error("telegram: inbound handler error", "user_id", userID, "error", err)
		return
	}
	if reply != "" {
		if err := a.Send(ctx, userID, reply); err != nil {
			a.logger.Error("telegram: send reply failed", "user_id", userID, "error", err)
		}
	}
}

// Send implements types.ChatAdapter.
func (a *Adapter) Send(ctx context.Context, userID types.UserID, body string) error {
	chatID, err := a.chatIDFor(userID)
	if err != nil {
		return err
	}
	for _, part := range splitMessage(body) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.bot.Send(msg); err != nil {
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				return fmt.Errorf("send message: %w", err)
			}
		}
	}
	return nil
}

// SendFiles implements types.ChatAdapter.
func (a *Adapter) SendFiles(ctx context.Context, userID types.UserID, paths []string) error {
	chatID, err := a.chatIDFor(userID)
	if err != nil {
		return err
	}
	for _, path := range paths {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
		if _, err := a.bot.Send(doc); err != nil {
			return fmt.Errorf("send file %s: %w", path, err)
		}
	}
	return nil
}

// React implements types.ChatAdapter. The bot API's message-reaction
// endpoint is not exposed by this library version, so a reaction is
// delivered as a short reply carrying the emoji.
func (a *Adapter) React(ctx context.Context, userID types.UserID, messageRef, emoji string) error {
	return a.Send(ctx, userID, emoji)
}

// SetTyping implements types.ChatAdapter.
func (a *Adapter) SetTyping(ctx context.Context, userID types.UserID) error {
	chatID, err := a.chatIDFor(userID)
	if err != nil {
		return err
	}
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	_, err = a.bot.Request(action)
	return err
}

// NotifyMenuCommandSet implements types.ChatAdapter, registering the bot's
// slash-command menu for the chat.
func (a *Adapter) NotifyMenuCommandSet(ctx context.Context, userID types.UserID, commands []string) error {
	botCommands := make([]tgbotapi.BotCommand, len(commands))
	for i, c := range commands {
		botCommands[i] = tgbotapi.BotCommand{Command: c, Description: c}
	}
	_, err := a.bot.Request(tgbotapi.NewSetMyCommands(botCommands...))
	return err
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

var _ types.ChatAdapter = (*Adapter)(nil)
