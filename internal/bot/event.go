package bot

import (
	"context"

	"github.com/dmitrijs2005/ezfile/internal/server/models"
)

// Button is one inline keyboard button. Data is what the platform sends back
// when the button is pressed.
type Button struct {
	Text string
	Data string
}

// Keyboard is a list of button rows.
type Keyboard [][]Button

// Callback is a pressed inline button.
type Callback struct {
	ID        string
	Data      string
	MessageID int
}

// Event is one inbound update, already stripped of transport details.
// Exactly one of Command, Callback or Document is set for the events the
// bot reacts to.
type Event struct {
	ID        string
	UserID    models.UserID
	ChatID    int64
	FirstName string
	FullName  string

	Command  string
	Text     string
	Callback *Callback
	Document *models.IncomingFile
}

// Messenger is the outbound half of the chat transport. Texts are HTML.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, kb Keyboard) (messageID int, err error)
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID string) error
}

// FileStore is the storage core as seen by the bot.
type FileStore interface {
	Upload(ctx context.Context, userID models.UserID, in models.IncomingFile) (models.FileRecord, error)
	List(ctx context.Context, userID models.UserID) ([]models.FileRecord, error)
	Download(ctx context.Context, userID models.UserID, name string) error
	Remove(ctx context.Context, userID models.UserID, name string) (models.FileRecord, error)
	Usage(ctx context.Context, userID models.UserID) (int64, error)
}

// GateObserver receives upload window activity for metrics.
type GateObserver interface {
	GateArmed()
	GateExpired()
}

type nopGateObserver struct{}

func (nopGateObserver) GateArmed()   {}
func (nopGateObserver) GateExpired() {}

type chatIDKey struct{}

// WithChatID records the chat the event being handled came from, so a
// transport can deliver documents back to it.
func WithChatID(ctx context.Context, chatID int64) context.Context {
	return context.WithValue(ctx, chatIDKey{}, chatID)
}

// ChatIDFrom returns the chat stored by WithChatID.
func ChatIDFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(chatIDKey{}).(int64)
	return id, ok && id != 0
}
