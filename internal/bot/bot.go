// Package bot is the conversational front-end: it turns chat events into
// storage operations, gates uploads behind the menu action and renders the
// results back as messages and inline keyboards.
package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dmitrijs2005/ezfile/internal/gate"
	"github.com/dmitrijs2005/ezfile/internal/logging"
	"github.com/dmitrijs2005/ezfile/internal/server/models"
	"github.com/dmitrijs2005/ezfile/internal/server/services"
)

const (
	defaultProgressInterval = time.Second
	notifyTimeout           = 10 * time.Second
	sessionTableSize        = 4096
)

// Options tune presentation details.
type Options struct {
	Limits           services.Limits
	ProgressInterval time.Duration
	AliasTableSize   int
	// SessionTableSize bounds the remembered conversations. An evicted user
	// is asked to /start again.
	SessionTableSize int
}

// session is the per-user conversation state. Handle holds mu for the whole
// event.
type session struct {
	mu          sync.Mutex
	initialized atomic.Bool
	chatID      atomic.Int64
}

// Bot dispatches events. Different users are handled concurrently.
type Bot struct {
	files     FileStore
	gate      *gate.Gate
	messenger Messenger
	observer  GateObserver
	aliases   *aliases
	logger    logging.Logger
	opts      Options

	sessions *lru.Cache[models.UserID, *session]

	queueMu sync.Mutex
	queues  map[models.UserID]*mailbox
	wg      sync.WaitGroup
}

// New wires the bot and registers the upload window expiry notification.
func New(files FileStore, g *gate.Gate, m Messenger, opts Options, logger logging.Logger) (*Bot, error) {
	if files == nil || g == nil || m == nil {
		return nil, fmt.Errorf("bot requires a file store, a gate and a messenger")
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = defaultProgressInterval
	}
	if opts.Limits.MaxFileSize <= 0 || opts.Limits.MaxUserStorage <= 0 {
		opts.Limits = services.DefaultLimits()
	}
	a, err := newAliases(opts.AliasTableSize)
	if err != nil {
		return nil, err
	}
	if opts.SessionTableSize <= 0 {
		opts.SessionTableSize = sessionTableSize
	}
	sessions, err := lru.New[models.UserID, *session](opts.SessionTableSize)
	if err != nil {
		return nil, fmt.Errorf("session table init: %w", err)
	}

	b := &Bot{
		files:     files,
		gate:      g,
		messenger: m,
		observer:  nopGateObserver{},
		aliases:   a,
		sessions:  sessions,
		queues:    make(map[models.UserID]*mailbox),
		logger:    logging.OrNop(logger).With("module", "bot"),
		opts:      opts,
	}
	g.OnExpire(b.onWindowExpired)
	return b, nil
}

// SetGateObserver configures the metrics sink for upload windows.
func (b *Bot) SetGateObserver(o GateObserver) {
	if o != nil {
		b.observer = o
	}
}

// Run handles events until ctx is cancelled or events is closed, then waits
// for in-flight handlers. Events of one user are handled in the order they
// were received.
func (b *Bot) Run(ctx context.Context, events <-chan Event) error {
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			b.dispatch(ctx, ev)
		}
	}
}

func (b *Bot) session(userID models.UserID) *session {
	if s, ok := b.sessions.Get(userID); ok {
		return s
	}
	s := &session{}
	if prev, ok, _ := b.sessions.PeekOrAdd(userID, s); ok {
		return prev
	}
	return s
}

// Handle processes one event synchronously. Events of the same user are
// serialized; a panic is logged and contained to this event.
func (b *Bot) Handle(ctx context.Context, ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	logger := b.logger.With("event_id", ev.ID, "user_id", ev.UserID)

	s := b.session(ev.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "event handler panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if ev.ChatID != 0 {
		s.chatID.Store(ev.ChatID)
		ctx = WithChatID(ctx, ev.ChatID)
	}

	switch {
	case ev.Callback != nil:
		b.handleCallback(ctx, logger, s, ev)
	case ev.Document != nil:
		b.handleDocument(ctx, logger, s, ev)
	case ev.Command != "":
		b.handleCommand(ctx, logger, s, ev)
	default:
		logger.Debug(ctx, "ignoring event")
	}
}

func (b *Bot) handleCommand(ctx context.Context, logger logging.Logger, s *session, ev Event) {
	switch ev.Command {
	case "start":
		logger.Info(ctx, "session started", "name", ev.FullName)
		b.reply(ctx, logger, ev.ChatID, fmt.Sprintf(startMessage, escape(ev.FullName)), nil)
		s.initialized.Store(true)
	case "menu":
		if !b.requireStarted(ctx, logger, s, ev) {
			return
		}
		b.reply(ctx, logger, ev.ChatID, menuMessage, Keyboard{
			{{Text: buttonUpload, Data: dataUpload}},
			{{Text: buttonList, Data: dataList}},
		})
	default:
		logger.Debug(ctx, "unknown command", "command", ev.Command)
	}
}

func (b *Bot) handleCallback(ctx context.Context, logger logging.Logger, s *session, ev Event) {
	cb := ev.Callback
	if err := b.messenger.AnswerCallback(ctx, cb.ID); err != nil {
		logger.Warn(ctx, "answer callback failed", "error", err)
	}

	data := cb.Data
	if data == dataBack {
		b.deleteMessage(ctx, logger, ev.ChatID, cb.MessageID)
		return
	}
	if !b.requireStarted(ctx, logger, s, ev) {
		return
	}

	switch {
	case data == dataUpload:
		b.armUpload(ctx, logger, ev)
	case data == dataList:
		b.listFiles(ctx, logger, ev)
	case strings.HasPrefix(data, prefixFile):
		if name, ok := b.fileName(ctx, logger, ev, prefixFile); ok {
			b.fileMenu(ctx, logger, ev, name)
		}
	case strings.HasPrefix(data, prefixGet):
		if name, ok := b.fileName(ctx, logger, ev, prefixGet); ok {
			b.download(ctx, logger, ev, name)
		}
		b.deleteMessage(ctx, logger, ev.ChatID, cb.MessageID)
	case strings.HasPrefix(data, prefixRemove):
		if name, ok := b.fileName(ctx, logger, ev, prefixRemove); ok {
			b.remove(ctx, logger, ev, name)
		}
		b.deleteMessage(ctx, logger, ev.ChatID, cb.MessageID)
	default:
		logger.Debug(ctx, "unknown callback data", "data", data)
	}
}

func (b *Bot) fileName(ctx context.Context, logger logging.Logger, ev Event, prefix string) (string, bool) {
	name, ok := b.aliases.resolve(strings.TrimPrefix(ev.Callback.Data, prefix))
	if !ok {
		b.reply(ctx, logger, ev.ChatID, staleMenuMessage, nil)
	}
	return name, ok
}

func (b *Bot) requireStarted(ctx context.Context, logger logging.Logger, s *session, ev Event) bool {
	if s.initialized.Load() {
		return true
	}
	b.reply(ctx, logger, ev.ChatID, notStartedMessage, nil)
	return false
}

func (b *Bot) armUpload(ctx context.Context, logger logging.Logger, ev Event) {
	if err := b.gate.Arm(ev.UserID); err != nil {
		logger.Warn(ctx, "arm upload failed", "error", err)
		b.reply(ctx, logger, ev.ChatID, armErrorText(err), nil)
		return
	}
	b.observer.GateArmed()
	logger.Debug(ctx, "upload window armed", "window", b.gate.Window())
	b.reply(ctx, logger, ev.ChatID, fmt.Sprintf(uploadPrompt, windowSeconds(b.gate.Window())), nil)
}

func (b *Bot) handleDocument(ctx context.Context, logger logging.Logger, s *session, ev Event) {
	if !b.requireStarted(ctx, logger, s, ev) {
		return
	}
	if err := b.gate.Acquire(ev.UserID); err != nil {
		b.reply(ctx, logger, ev.ChatID, uploadNotArmed, nil)
		return
	}
	defer b.gate.Release(ev.UserID)

	msgID, err := b.messenger.SendText(ctx, ev.ChatID, processingMessage, nil)
	if err != nil {
		logger.Warn(ctx, "send progress message failed", "error", err)
	}

	var stop func()
	if err == nil {
		stop = b.startProgress(ctx, logger, ev.ChatID, msgID)
	}

	rec, upErr := b.files.Upload(ctx, ev.UserID, *ev.Document)

	text := uploadDone
	if upErr != nil {
		logger.Warn(ctx, "upload rejected", "name", ev.Document.Name, "error", upErr)
		text = uploadErrorText(upErr, b.opts.Limits)
	} else {
		logger.Info(ctx, "upload stored", "name", rec.Name, "size", rec.Size)
	}

	if stop == nil {
		b.reply(ctx, logger, ev.ChatID, text, nil)
		return
	}
	stop()
	if err := b.messenger.EditText(ctx, ev.ChatID, msgID, text); err != nil {
		logger.Warn(ctx, "edit progress message failed", "error", err)
	}
}

// startProgress cycles the indicator frames until the returned stop func is
// called. stop returns only after the last edit finished, so a later edit
// with the final result is never overwritten.
func (b *Bot) startProgress(ctx context.Context, logger logging.Logger, chatID int64, msgID int) func() {
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(b.opts.ProgressInterval)
		defer ticker.Stop()

		for i := 0; ; i = (i + 1) % len(processingFrames) {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := b.messenger.EditText(ctx, chatID, msgID, processingFrames[i]); err != nil {
					logger.Debug(ctx, "progress edit failed", "error", err)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-finished
		})
	}
}

func (b *Bot) listFiles(ctx context.Context, logger logging.Logger, ev Event) {
	files, err := b.files.List(ctx, ev.UserID)
	if err != nil {
		logger.Error(ctx, "list files failed", "error", err)
		b.reply(ctx, logger, ev.ChatID, genericFailMessage, nil)
		return
	}
	if len(files) == 0 {
		b.reply(ctx, logger, ev.ChatID, noFilesMessage, nil)
		return
	}

	used, err := b.files.Usage(ctx, ev.UserID)
	if err != nil {
		logger.Error(ctx, "usage failed", "error", err)
		b.reply(ctx, logger, ev.ChatID, genericFailMessage, nil)
		return
	}

	kb := make(Keyboard, 0, len(files))
	for _, f := range files {
		kb = append(kb, []Button{{
			Text: fmt.Sprintf("%s - %s", f.Name, models.FormatSize(f.Size)),
			Data: b.aliases.data(prefixFile, f.Name),
		}})
	}

	text := fmt.Sprintf(listMessage, escape(ev.FirstName), models.FormatSize(used), models.FormatSize(b.opts.Limits.MaxUserStorage))
	b.reply(ctx, logger, ev.ChatID, text, kb)
}

func (b *Bot) fileMenu(ctx context.Context, logger logging.Logger, ev Event, name string) {
	b.reply(ctx, logger, ev.ChatID, fmt.Sprintf(fileMenuMessage, escape(name)), Keyboard{
		{{Text: buttonDownload, Data: b.aliases.data(prefixGet, name)}},
		{{Text: buttonRemove, Data: b.aliases.data(prefixRemove, name)}},
		{{Text: buttonBack, Data: dataBack}},
	})
}

func (b *Bot) download(ctx context.Context, logger logging.Logger, ev Event, name string) {
	if err := b.files.Download(ctx, ev.UserID, name); err != nil {
		logger.Warn(ctx, "download failed", "name", name, "error", err)
		b.reply(ctx, logger, ev.ChatID, fmt.Sprintf(downloadFailed, escape(name)), nil)
	}
}

func (b *Bot) remove(ctx context.Context, logger logging.Logger, ev Event, name string) {
	before, err := b.files.Usage(ctx, ev.UserID)
	if err != nil {
		logger.Error(ctx, "usage failed", "error", err)
		b.reply(ctx, logger, ev.ChatID, removeFailed, nil)
		return
	}

	rec, err := b.files.Remove(ctx, ev.UserID, name)
	if err != nil {
		logger.Warn(ctx, "remove failed", "name", name, "error", err)
		b.reply(ctx, logger, ev.ChatID, removeFailed, nil)
		return
	}

	freed := rec.Size
	if after, err := b.files.Usage(ctx, ev.UserID); err == nil && before >= after {
		freed = before - after
	}
	b.reply(ctx, logger, ev.ChatID, fmt.Sprintf(removedMessage, escape(name), models.FormatSize(freed)), nil)
}

// onWindowExpired runs on the gate's timer goroutine.
func (b *Bot) onWindowExpired(userID models.UserID) {
	b.observer.GateExpired()

	s, ok := b.sessions.Peek(userID)
	if !ok {
		return
	}
	chatID := s.chatID.Load()
	if chatID == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	logger := b.logger.With("user_id", userID)
	logger.Debug(ctx, "upload window expired")
	b.reply(ctx, logger, chatID, timeUpMessage, nil)
}

func (b *Bot) reply(ctx context.Context, logger logging.Logger, chatID int64, text string, kb Keyboard) {
	if _, err := b.messenger.SendText(ctx, chatID, text, kb); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn(ctx, "send message failed", "error", err)
	}
}

func (b *Bot) deleteMessage(ctx context.Context, logger logging.Logger, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if err := b.messenger.DeleteMessage(ctx, chatID, messageID); err != nil {
		logger.Debug(ctx, "delete message failed", "error", err)
	}
}
