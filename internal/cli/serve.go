package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/amirbrooks/wren/internal/server"
	"github.com/amirbrooks/wren/internal/telegram"
)

func (a *app) logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func (a *app) serveHTTP(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	gin.SetMode(gin.ReleaseMode)
	srv := server.New(a.store, server.Options{
		Token:  a.cfg.HTTP.Token,
		Logger: a.logger(),
	})
	return srv.ListenAndServe(ctx, a.cfg.HTTP.Addr)
}

func (a *app) serveTelegram(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := a.logger()
	var summarizer telegram.Summarizer
	if a.cfg.SummaryAPIKey() != "" {
		s, err := a.newSummarizer(a.cfg)
		if err != nil {
			return err
		}
		summarizer = s
	}
	bot, err := telegram.New(a.store, telegram.Config{
		Token:         a.cfg.Telegram.Token,
		AllowedUserID: a.cfg.Telegram.AllowedUserID,
		Logger:        log,
		Summarizer:    summarizer,
	})
	if err != nil {
		return err
	}
	return bot.Run(ctx, a.cfg.Telegram.Token)
}
