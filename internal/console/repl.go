package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/dmitrijs2005/ezfile/internal/bot"
	"github.com/dmitrijs2005/ezfile/internal/server/models"
)

// isTerminal is a test seam; the prompt is only shown on an interactive
// stdin.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// handler is the slice of the bot the REPL drives.
type handler interface {
	Handle(ctx context.Context, ev bot.Event)
}

// Run reads commands from in until EOF, "exit" or ctx cancellation.
func (c *Console) Run(ctx context.Context, h handler, in io.Reader) {
	c.print("ezfile console (type 'help' for commands)")
	runREPL(ctx, c, h, bufio.NewScanner(in))
}

// runREPL dispatches one line at a time:
//
//	start | menu          send the command
//	press <n>             press button n of the last keyboard
//	upload <path>         send a local file as a document
//	help                  show commands
//	exit | quit           leave
func runREPL(ctx context.Context, c *Console, h handler, scanner *bufio.Scanner) {
	prompt := isTerminal()
	for {
		if ctx.Err() != nil {
			return
		}
		if prompt {
			fmt.Print("ezfile> ")
		}
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := strings.TrimPrefix(parts[0], "/"), parts[1:]

		switch cmd {
		case "help":
			c.print("Available commands: start, menu, press <n>, upload <path>, exit")

		case "start", "menu":
			ev := c.event()
			ev.Command = cmd
			h.Handle(ctx, ev)

		case "press", "p":
			if len(args) == 0 {
				c.print("Usage: press <n>")
				continue
			}
			n, err := strconv.Atoi(args[0])
			btn, msgID, ok := c.button(n)
			if err != nil || !ok {
				c.print("No such button:", args[0])
				continue
			}
			ev := c.event()
			ev.Callback = &bot.Callback{ID: strconv.Itoa(msgID), Data: btn.Data, MessageID: msgID}
			h.Handle(ctx, ev)

		case "upload", "u":
			if len(args) == 0 {
				c.print("Usage: upload <path>")
				continue
			}
			path := strings.Join(args, " ")
			fi, err := os.Stat(path)
			if err != nil || !fi.Mode().IsRegular() {
				c.print("Cannot read file:", path)
				continue
			}
			ev := c.event()
			ev.Document = &models.IncomingFile{ID: path, Name: filepath.Base(path), Size: fi.Size()}
			h.Handle(ctx, ev)

		case "exit", "quit":
			c.print("Bye!")
			return

		default:
			c.print("Unknown command:", cmd)
		}
	}
}
