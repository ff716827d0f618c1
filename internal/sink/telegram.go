package sink

import (
	"context"
	"errors"
	"net/http"
	"strings"

	tele "gopkg.in/telebot.v4"

	"steamwatch/internal/apperr"
	"steamwatch/pkg/logx"
)

// TelegramTextLimit is Telegram's per-message text limit.
const TelegramTextLimit = 4096

type TelegramConfig struct {
	Token    string
	ChatID   int64
	ThreadID int // forum topic, 0 if none
	// APIURL overrides the Bot API endpoint (tests, local bot server).
	APIURL string
}

// Telegram sends chunks as plain-text bot messages with link previews off.
type Telegram struct {
	bot      *tele.Bot
	chat     *tele.Chat
	threadID int
	log      logx.Logger
}

func NewTelegram(cfg TelegramConfig, hc *http.Client, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("sink.telegram.token is required for telegram sink")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("sink.telegram.chat_id is required for telegram sink")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	// Offline: no getMe round-trip; this bot only sends.
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     strings.TrimRight(cfg.APIURL, "/"),
		Client:  hc,
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &Telegram{
		bot:      b,
		chat:     &tele.Chat{ID: cfg.ChatID},
		threadID: cfg.ThreadID,
		log:      log.With(logx.String("comp", "sink"), logx.String("kind", "telegram"), logx.Int64("chat_id", cfg.ChatID)),
	}, nil
}

func (t *Telegram) Post(ctx context.Context, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opt := &tele.SendOptions{
		DisableWebPagePreview: true,
		ThreadID:              t.threadID,
	}
	msg, err := t.bot.Send(t.chat, content, opt)
	if err != nil {
		return &apperr.TransportError{Op: "telegram send", Err: err}
	}
	t.log.Debug("chunk posted", logx.Int("message_id", msg.ID), logx.Int("len", len(content)))
	return nil
}
