package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/ezfile/internal/bot"
	"github.com/dmitrijs2005/ezfile/internal/console"
	"github.com/dmitrijs2005/ezfile/internal/flagx"
	"github.com/dmitrijs2005/ezfile/internal/logging"
	"github.com/dmitrijs2005/ezfile/internal/server"
	"github.com/dmitrijs2005/ezfile/internal/server/config"
	"github.com/dmitrijs2005/ezfile/internal/server/models"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	var (
		userID int64
		name   string
		outDir string
	)
	fs := flag.NewFlagSet("console", flag.ContinueOnError)
	fs.Int64Var(&userID, "user", 1, "user id to act as")
	fs.StringVar(&name, "name", os.Getenv("USER"), "display name")
	fs.StringVar(&outDir, "out", "./downloads", "where downloaded files are written")
	if err := fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-user", "-name", "-out"})); err != nil {
		log.Fatalf("%v", err)
	}

	logger := logging.New(cfg.LogLevel, os.Stderr)

	c, err := console.New(models.UserID(userID), name, outDir)
	if err != nil {
		log.Fatalf("%v", err)
	}

	core, err := server.NewCore(ctx, cfg, c, nil, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer core.Gate.Close()

	b, err := bot.New(core.Files, core.Gate, c, bot.Options{
		Limits:           core.Files.Limits(),
		ProgressInterval: cfg.ProgressInterval,
	}, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	c.Run(ctx, b, os.Stdin)
}
