// Package telegram adapts the Telegram Bot API to the bot's event and
// messenger interfaces and moves document bytes in both directions.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dmitrijs2005/ezfile/internal/bot"
	"github.com/dmitrijs2005/ezfile/internal/common"
	"github.com/dmitrijs2005/ezfile/internal/logging"
	"github.com/dmitrijs2005/ezfile/internal/netx"
	"github.com/dmitrijs2005/ezfile/internal/server/models"
)

type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

var newBotAPI = func(token string) (botAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return api, nil
}

// Options configure the client.
type Options struct {
	PollTimeout time.Duration
	MaxFileSize int64
	HTTPClient  *http.Client
}

// Client is both the bot.Messenger and the services.Transfer for Telegram.
type Client struct {
	api    botAPI
	opts   Options
	logger logging.Logger
}

// New authenticates against the Bot API with token.
func New(token string, opts Options, logger logging.Logger) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	logger = logging.OrNop(logger).With("module", "telegram")
	_ = tgbotapi.SetLogger(botLogger{logger: logger})

	api, err := newBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return newClient(api, opts, logger), nil
}

func newClient(api botAPI, opts Options, logger logging.Logger) *Client {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 60 * time.Second
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = common.DefaultMaxFileSize
	}
	return &Client{api: api, opts: opts, logger: logging.OrNop(logger)}
}

// Events long-polls for updates and delivers the ones the bot understands.
// The channel is closed when ctx is cancelled.
func (c *Client) Events(ctx context.Context) <-chan bot.Event {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(c.opts.PollTimeout.Seconds())
	updates := c.api.GetUpdatesChan(u)

	out := make(chan bot.Event)
	go func() {
		defer close(out)
		defer c.api.StopReceivingUpdates()

		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				ev, ok := toEvent(upd)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func toEvent(upd tgbotapi.Update) (bot.Event, bool) {
	switch {
	case upd.CallbackQuery != nil:
		q := upd.CallbackQuery
		if q.From == nil {
			return bot.Event{}, false
		}
		ev := userEvent(q.From)
		ev.Callback = &bot.Callback{ID: q.ID, Data: q.Data}
		if q.Message != nil {
			ev.Callback.MessageID = q.Message.MessageID
			if q.Message.Chat != nil {
				ev.ChatID = q.Message.Chat.ID
			}
		}
		return ev, true

	case upd.Message != nil:
		m := upd.Message
		if m.From == nil {
			return bot.Event{}, false
		}
		ev := userEvent(m.From)
		if m.Chat != nil {
			ev.ChatID = m.Chat.ID
		}
		switch {
		case m.Document != nil:
			ev.Document = &models.IncomingFile{
				ID:   m.Document.FileID,
				Name: m.Document.FileName,
				Size: int64(m.Document.FileSize),
				MIME: m.Document.MimeType,
			}
		case m.IsCommand():
			ev.Command = m.Command()
		default:
			ev.Text = m.Text
		}
		return ev, true
	}
	return bot.Event{}, false
}

func userEvent(u *tgbotapi.User) bot.Event {
	return bot.Event{
		UserID:    models.UserID(u.ID),
		ChatID:    u.ID,
		FirstName: u.FirstName,
		FullName:  strings.TrimSpace(u.FirstName + " " + u.LastName),
	}
}

// SendText sends an HTML message, optionally with an inline keyboard.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, kb bot.Keyboard) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if len(kb) > 0 {
		msg.ReplyMarkup = inlineKeyboard(kb)
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditText replaces the text of a sent message.
func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	_, err := c.api.Request(edit)
	return err
}

// DeleteMessage removes a message from the chat.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

// AnswerCallback acknowledges a button press.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.api.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}

// Fetch downloads an announced document. More than MaxFileSize bytes is
// reported as common.ErrSizeExceeded.
func (c *Client) Fetch(ctx context.Context, file models.IncomingFile, w io.Writer) error {
	url, err := c.api.GetFileDirectURL(file.ID)
	if err != nil {
		return fmt.Errorf("resolve file url: %w", err)
	}
	if _, err := netx.DownloadTo(ctx, c.opts.HTTPClient, url, w, c.opts.MaxFileSize); err != nil {
		if errors.Is(err, netx.ErrTooLarge) {
			return fmt.Errorf("%w: %w", common.ErrSizeExceeded, err)
		}
		return err
	}
	return nil
}

// Send uploads a stored file to the chat the triggering event came from, or
// to the user's private chat when the context carries none.
func (c *Client) Send(ctx context.Context, userID models.UserID, name string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID := int64(userID)
	if id, ok := bot.ChatIDFrom(ctx); ok {
		chatID = id
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileReader{Name: name, Reader: r})
	_, err := c.api.Send(doc)
	return err
}

func inlineKeyboard(kb bot.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// botLogger routes the library's own log lines into the structured logger.
type botLogger struct {
	logger logging.Logger
}

func (l botLogger) Println(v ...any) {
	l.logger.Debug(context.Background(), strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l botLogger) Printf(format string, v ...any) {
	l.logger.Debug(context.Background(), fmt.Sprintf(format, v...))
}
