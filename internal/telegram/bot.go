package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"clipper/internal/config"
	"clipper/internal/conversation"
	"clipper/internal/logging"
)

// Handler consumes conversation inputs.
type Handler interface {
	Handle(ctx context.Context, in conversation.Input) (conversation.Outcome, error)
}

// Bot receives updates from Telegram and feeds them to a Handler.
type Bot struct {
	bot     *tele.Bot
	handler Handler
	logger  *slog.Logger
	base    context.Context
}

// NewBot creates the telebot client for cfg. The handler may be attached
// afterwards with SetHandler, since the conversation needs the bot's transport.
func NewBot(cfg config.Telegram, logger *slog.Logger) (*Bot, error) {
	logger = logging.NewComponentLogger(logger, "telegram")
	poller, err := newPoller(cfg)
	if err != nil {
		return nil, err
	}
	b := &Bot{logger: logger, base: context.Background()}
	settings := tele.Settings{
		Token:  cfg.Token,
		URL:    strings.TrimSpace(cfg.APIURL),
		Poller: poller,
		OnError: func(err error, c tele.Context) {
			attrs := []logging.Attr{logging.Error(err)}
			if c != nil && c.Chat() != nil {
				attrs = append(attrs, logging.Int64(logging.FieldChatID, c.Chat().ID))
			}
			logging.WarnWithContext(b.logger, "telegram handler error", "telegram_handler_error",
				append(attrs, logging.String(logging.FieldImpact, "update may be unanswered"))...)
		},
	}
	bot, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	b.bot = bot
	return b, nil
}

// API exposes the telebot client as a Sender.
func (b *Bot) API() Sender {
	return b.bot
}

// Username returns the bot's @name as reported by getMe.
func (b *Bot) Username() string {
	if b.bot == nil || b.bot.Me == nil {
		return ""
	}
	return b.bot.Me.Username
}

// SetHandler attaches the conversation handler.
func (b *Bot) SetHandler(h Handler) {
	b.handler = h
}

// Run registers handlers and processes updates until ctx ends.
func (b *Bot) Run(ctx context.Context) error {
	if b.handler == nil {
		return errors.New("telegram: no handler attached")
	}
	b.base = ctx
	b.bot.Handle(tele.OnText, b.onText)
	b.bot.Handle("/start", b.onText)
	b.bot.Handle("/cancel", b.onText)
	b.bot.Handle(tele.OnCallback, b.onCallback)

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.bot.Start()
	}()
	b.logger.Info("telegram bot started",
		logging.String("username", b.Username()),
		logging.String(logging.FieldEventType, "telegram_started"),
	)

	select {
	case <-ctx.Done():
	case <-done:
		return errors.New("telegram poller stopped")
	}
	b.bot.Stop()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		b.logger.Warn("telegram poller did not stop in time")
	}
	return nil
}

func (b *Bot) onText(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	in := inputFromText(chat.ID, c.Text())
	return b.dispatch(c, in)
}

func (b *Bot) onCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil || c.Chat() == nil {
		return nil
	}
	// Acknowledge first so the client stops its spinner.
	if err := c.Respond(); err != nil {
		b.logger.Debug("callback ack failed", logging.Error(err))
	}
	in, ok := inputFromCallback(c.Chat().ID, cb.Data)
	if !ok {
		b.logger.Debug("unknown callback payload", logging.String("data", cb.Data))
		return nil
	}
	return b.dispatch(c, in)
}

func (b *Bot) dispatch(c tele.Context, in conversation.Input) error {
	in.RequestID = uuid.NewString()
	ctx := b.base
	if ctx.Err() != nil {
		return nil
	}
	if _, err := b.handler.Handle(ctx, in); err != nil {
		logging.ErrorWithContext(b.logger, "conversation step failed", "conversation_failed",
			logging.Int64(logging.FieldChatID, in.ChatID),
			logging.String(logging.FieldCorrelationID, in.RequestID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check session store"),
		)
		return err
	}
	return nil
}

func newPoller(cfg config.Telegram) (tele.Poller, error) {
	switch cfg.Mode {
	case config.ModeWebhook:
		if strings.TrimSpace(cfg.WebhookURL) == "" {
			return nil, errors.New("telegram: webhook mode requires webhook_url")
		}
		return &tele.Webhook{
			Listen:      cfg.Listen,
			Endpoint:    &tele.WebhookEndpoint{PublicURL: cfg.WebhookURL},
			DropUpdates: true,
		}, nil
	default:
		timeout := time.Duration(cfg.PollTimeout) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		return &tele.LongPoller{Timeout: timeout}, nil
	}
}
