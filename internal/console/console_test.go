package console

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ezfile/internal/bot"
	"github.com/dmitrijs2005/ezfile/internal/cache"
	"github.com/dmitrijs2005/ezfile/internal/gate"
	"github.com/dmitrijs2005/ezfile/internal/logging"
	"github.com/dmitrijs2005/ezfile/internal/server/services"
	"github.com/dmitrijs2005/ezfile/internal/storage"
)

type output struct {
	mu    sync.Mutex
	lines []string
}

func (o *output) println(a ...any) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lines = append(o.lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
	return 0, nil
}

func (o *output) text() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return strings.Join(o.lines, "\n")
}

func captureOutput(t *testing.T) *output {
	t.Helper()
	out := &output{}
	origPrint, origTerm := printlnFn, isTerminal
	printlnFn = out.println
	isTerminal = func() bool { return false }
	t.Cleanup(func() {
		printlnFn = origPrint
		isTerminal = origTerm
	})
	return out
}

type recordingHandler struct {
	events []bot.Event
}

func (r *recordingHandler) Handle(_ context.Context, ev bot.Event) {
	r.events = append(r.events, ev)
}

func TestRunREPL_Dispatch(t *testing.T) {
	out := captureOutput(t)
	c, err := New(7, "Ada Lovelace", t.TempDir())
	require.NoError(t, err)

	_, err = c.SendText(context.Background(), 7, "<b>menu</b>", bot.Keyboard{
		{{Text: "Upload file", Data: "upload"}},
		{{Text: "List files", Data: "list_files"}},
	})
	require.NoError(t, err)

	local := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(local, []byte("hello"), 0o600))

	h := &recordingHandler{}
	input := strings.Join([]string{
		"help",
		"/start",
		"press 2",
		"press 9",
		"press",
		"upload " + local,
		"upload /does/not/exist",
		"foobar",
		"exit",
		"menu",
	}, "\n")
	runREPL(context.Background(), c, h, bufio.NewScanner(strings.NewReader(input)))

	require.Len(t, h.events, 3)
	assert.Equal(t, "start", h.events[0].Command)
	assert.Equal(t, "Ada", h.events[0].FirstName)
	assert.Equal(t, int64(7), h.events[0].ChatID)

	require.NotNil(t, h.events[1].Callback)
	assert.Equal(t, "list_files", h.events[1].Callback.Data)
	assert.Equal(t, 1, h.events[1].Callback.MessageID)

	require.NotNil(t, h.events[2].Document)
	assert.Equal(t, "a.txt", h.events[2].Document.Name)
	assert.Equal(t, int64(5), h.events[2].Document.Size)

	text := out.text()
	assert.Contains(t, text, "menu\n  [1] Upload file\n  [2] List files")
	assert.Contains(t, text, "No such button: 9")
	assert.Contains(t, text, "Usage: press <n>")
	assert.Contains(t, text, "Cannot read file: /does/not/exist")
	assert.Contains(t, text, "Unknown command: foobar")
	assert.Contains(t, text, "Bye!")
}

func TestDeleteMessageForgetsKeyboard(t *testing.T) {
	captureOutput(t)
	c, err := New(7, "Ada", t.TempDir())
	require.NoError(t, err)

	id, err := c.SendText(context.Background(), 7, "x", bot.Keyboard{{{Text: "Back", Data: "back"}}})
	require.NoError(t, err)
	_, _, ok := c.button(1)
	require.True(t, ok)

	require.NoError(t, c.DeleteMessage(context.Background(), 7, id))
	_, _, ok = c.button(1)
	assert.False(t, ok)
}

func TestPlain(t *testing.T) {
	assert.Equal(t, "File: a&b.txt", plain("File: <i><b>a&amp;b.txt</b></i>"))
}

func TestConsoleDrivesBot(t *testing.T) {
	out := captureOutput(t)

	layout, err := storage.NewLayout(filepath.Join(t.TempDir(), "files"))
	require.NoError(t, err)
	dc, err := cache.New(4, layout.Scan)
	require.NoError(t, err)

	downloads := t.TempDir()
	c, err := New(7, "Ada", downloads)
	require.NoError(t, err)

	svc := services.NewFileService(layout, dc, c, services.DefaultLimits(), logging.Nop())
	g := gate.New(time.Minute)
	t.Cleanup(g.Close)
	b, err := bot.New(svc, g, c, bot.Options{ProgressInterval: time.Hour}, nil)
	require.NoError(t, err)

	local := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(local, []byte("remember the milk"), 0o600))

	input := strings.Join([]string{
		"start",
		"menu",
		"press 1", // upload
		"upload " + local,
		"menu",
		"press 2", // list
		"press 1", // notes.txt
		"press 1", // download
		"exit",
	}, "\n")
	c.Run(context.Background(), b, strings.NewReader(input))

	text := out.text()
	assert.Contains(t, text, "File uploaded successfully!")
	assert.Contains(t, text, "notes.txt - 17 bytes")

	got, err := os.ReadFile(filepath.Join(downloads, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "remember the milk", string(got))
}
