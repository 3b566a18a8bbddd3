// Package console is a local transport for the bot: a REPL on stdin/stdout
// that plays the role of one chat user, with local files standing in for
// platform documents.
package console

import (
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/dmitrijs2005/ezfile/internal/bot"
	"github.com/dmitrijs2005/ezfile/internal/filex"
	"github.com/dmitrijs2005/ezfile/internal/server/models"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

var tagPattern = regexp.MustCompile(`<[^>]+>`)

type shownKeyboard struct {
	messageID int
	buttons   []bot.Button
}

// Console implements bot.Messenger and services.Transfer for a single local
// user. Downloads are written to outDir.
type Console struct {
	userID models.UserID
	name   string
	outDir string

	mu       sync.Mutex
	nextID   int
	keyboard shownKeyboard
}

// New creates a console for userID; outDir is created if missing.
func New(userID models.UserID, name, outDir string) (*Console, error) {
	dir, err := filex.EnsureDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("console download dir: %w", err)
	}
	return &Console{userID: userID, name: name, outDir: dir}, nil
}

// ChatID is the chat the console user talks in.
func (c *Console) ChatID() int64 {
	return int64(c.userID)
}

func (c *Console) print(args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = printlnFn(args...)
}

// SendText prints the message and, when present, numbered buttons that the
// "press" command refers to.
func (c *Console) SendText(ctx context.Context, chatID int64, text string, kb bot.Keyboard) (int, error) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	if len(kb) > 0 {
		c.keyboard = shownKeyboard{messageID: id}
		for _, row := range kb {
			c.keyboard.buttons = append(c.keyboard.buttons, row...)
		}
	}
	buttons := c.keyboard.buttons
	c.mu.Unlock()

	c.print(plain(text))
	if len(kb) > 0 {
		for i, b := range buttons {
			c.print(fmt.Sprintf("  [%d] %s", i+1, b.Text))
		}
	}
	return id, nil
}

// EditText prints the replacement text.
func (c *Console) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	c.print(plain(text))
	return nil
}

// DeleteMessage forgets the keyboard attached to the message.
func (c *Console) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keyboard.messageID == messageID {
		c.keyboard = shownKeyboard{}
	}
	return nil
}

// AnswerCallback is a no-op on the console.
func (c *Console) AnswerCallback(ctx context.Context, callbackID string) error {
	return nil
}

// Fetch reads the local file the upload command pointed at.
func (c *Console) Fetch(ctx context.Context, file models.IncomingFile, w io.Writer) error {
	f, err := os.Open(file.ID)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// Send writes a downloaded file into the console's output directory.
func (c *Console) Send(ctx context.Context, userID models.UserID, name string, r io.Reader) error {
	target := filepath.Join(c.outDir, filepath.Base(name))
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	c.print("Saved to", target)
	return nil
}

func (c *Console) button(n int) (bot.Button, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 1 || n > len(c.keyboard.buttons) {
		return bot.Button{}, 0, false
	}
	return c.keyboard.buttons[n-1], c.keyboard.messageID, true
}

func (c *Console) event() bot.Event {
	return bot.Event{
		UserID:    c.userID,
		ChatID:    c.ChatID(),
		FirstName: firstName(c.name),
		FullName:  c.name,
	}
}

func firstName(full string) string {
	if f := strings.Fields(full); len(f) > 0 {
		return f[0]
	}
	return full
}

// plain strips HTML markup for terminal output.
func plain(s string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(s, ""))
}
