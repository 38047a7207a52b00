package telegram

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	tele "gopkg.in/telebot.v4"

	"clipper/internal/conversation"
	"clipper/internal/delivery"
	"clipper/internal/logging"
	"clipper/internal/messages"
	"clipper/internal/session"
)

// Sender is the part of *tele.Bot the transport uses.
type Sender interface {
	Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error)
}

// Transport sends notices, text, and media to chats. It implements
// delivery.Transport and conversation.Notifier.
type Transport struct {
	sender   Sender
	renderer *messages.Renderer
	logger   *slog.Logger
}

// NewTransport wraps sender.
func NewTransport(sender Sender, renderer *messages.Renderer, logger *slog.Logger) *Transport {
	return &Transport{
		sender:   sender,
		renderer: renderer,
		logger:   logging.NewComponentLogger(logger, "telegram"),
	}
}

// Notify renders n with its keyboard, if any.
func (t *Transport) Notify(ctx context.Context, chatID int64, n conversation.Notice) error {
	text := t.renderer.Text(n)
	if markup := keyboardFor(n, t.renderer); markup != nil {
		return t.send(ctx, chatID, text, markup)
	}
	return t.send(ctx, chatID, text)
}

// SendText sends plain text.
func (t *Transport) SendText(ctx context.Context, chatID int64, text string) error {
	return t.send(ctx, chatID, text)
}

// SendMedia uploads one part as audio, video, or document depending on its
// kind and container.
func (t *Transport) SendMedia(ctx context.Context, chatID int64, media delivery.Media) error {
	file := tele.FromDisk(media.Path)
	name := media.FileName
	if name == "" {
		name = filepath.Base(media.Path)
	}
	var what any
	switch {
	case media.Kind == session.ModeAudio:
		what = &tele.Audio{File: file, FileName: name, Caption: media.Caption}
	case strings.EqualFold(filepath.Ext(media.Path), ".mp4"):
		what = &tele.Video{File: file, FileName: name, Caption: media.Caption, Streaming: true}
	default:
		what = &tele.Document{File: file, FileName: name, Caption: media.Caption}
	}
	logging.WithContext(ctx, t.logger).Debug("uploading part",
		logging.Int("ordinal", media.Ordinal),
		logging.Int("total", media.Total),
		logging.Int64("size_bytes", media.Size),
	)
	return t.send(ctx, chatID, what)
}

func (t *Transport) send(ctx context.Context, chatID int64, what any, opts ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.sender.Send(tele.ChatID(chatID), what, opts...); err != nil {
		return classify(err)
	}
	return nil
}

// classify converts a Bot API failure into a *delivery.SendError.
func classify(err error) error {
	if err == nil {
		return nil
	}
	kind := delivery.Other
	var apiErr *tele.Error
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Code == http.StatusRequestEntityTooLarge || sizeRejection(apiErr.Description) {
			kind = delivery.SizeRejected
		}
	case sizeRejection(err.Error()):
		kind = delivery.SizeRejected
	}
	return &delivery.SendError{Kind: kind, Err: err}
}

// sizeRejection matches the Bot API's upload-limit descriptions. Request URLs
// embed the token, so bare status digits are never matched.
func sizeRejection(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "request entity too large") || strings.Contains(lower, "file is too big")
}
