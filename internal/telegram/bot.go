// Package telegram runs a long-polling Telegram bot over the task store.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/amirbrooks/wren/internal/store"
)

// Tasks is the part of the store the bot uses.
type Tasks interface {
	Create(in store.CreateInput) (string, error)
	Resolve(query string) (string, error)
	Read(query string) (string, error)
	Apply(t store.Transition, query string) (string, error)
	Random(c store.Category) (string, error)
	Summarize() (string, error)
	RenderTelegramList(c store.Category) (string, error)
}

// Summarizer condenses a digest; nil means the raw digest is sent.
type Summarizer interface {
	Summarize(ctx context.Context, digest string) (string, error)
}

// Sender delivers replies. *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Config struct {
	Token         string
	AllowedUserID int64
	Logger        *slog.Logger
	Summarizer    Summarizer
}

type Bot struct {
	tasks      Tasks
	allowed    int64
	log        *slog.Logger
	summarizer Summarizer
}

func New(tasks Tasks, cfg Config) (*Bot, error) {
	if cfg.AllowedUserID == 0 {
		return nil, errors.New("telegram.allowed_user_id is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		tasks:      tasks,
		allowed:    cfg.AllowedUserID,
		log:        logger,
		summarizer: cfg.Summarizer,
	}, nil
}

// Run connects with token and serves updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("telegram.token is required")
	}
	var api *tgbotapi.BotAPI
	connect := func() error {
		var err error
		api, err = tgbotapi.NewBotAPI(token)
		if err != nil {
			b.log.Warn("telegram connect failed", "err", err)
		}
		return err
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(connect, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("telegram connect: %w", err)
	}
	b.log.Info("telegram bot started", "username", api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, api, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, sender Sender, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	reply := b.Reply(ctx, msg)
	if reply == "" {
		return
	}
	if _, err := sender.Send(tgbotapi.NewMessage(msg.Chat.ID, reply)); err != nil {
		b.log.Error("telegram send failed", "chat_id", msg.Chat.ID, "err", err)
	}
}

// Reply computes the bot's answer to msg.
func (b *Bot) Reply(ctx context.Context, msg *tgbotapi.Message) string {
	if msg.From == nil || msg.From.ID != b.allowed {
		var from int64
		if msg.From != nil {
			from = msg.From.ID
		}
		b.log.Warn("telegram message from unknown user", "user_id", from)
		return "Not authorized."
	}
	if !msg.IsCommand() {
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			return ""
		}
		name, err := b.tasks.Create(store.SplitMessage(text))
		if err != nil {
			return errorReply(err)
		}
		return "➕ created task: " + name
	}

	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		return helpText
	case "list", "ls":
		cat, err := store.ParseCategory(args)
		if err != nil {
			return errorReply(err)
		}
		out, err := b.tasks.RenderTelegramList(cat)
		if err != nil {
			return errorReply(err)
		}
		return out
	case "done", "postpone", "todo", "cancel":
		t, _ := store.TransitionByName(msg.Command())
		if args == "" {
			return fmt.Sprintf("Usage: /%s <task>", msg.Command())
		}
		out, err := b.tasks.Apply(t, args)
		if err != nil {
			return errorReply(err)
		}
		return out
	case "read":
		if args == "" {
			return "Usage: /read <task>"
		}
		path, err := b.tasks.Resolve(args)
		if err != nil {
			return errorReply(err)
		}
		name := filepath.Base(path)
		content, err := b.tasks.Read(name)
		if err != nil {
			return errorReply(err)
		}
		return store.RenderTelegramTask(name, content)
	case "one":
		name, err := b.tasks.Random(store.Active)
		if err != nil {
			return errorReply(err)
		}
		return "🎲 " + name
	case "summary":
		digest, err := b.tasks.Summarize()
		if err != nil {
			return errorReply(err)
		}
		if b.summarizer == nil {
			return store.TrimTelegram(digest)
		}
		out, err := b.summarizer.Summarize(ctx, digest)
		if err != nil {
			b.log.Error("summary failed", "err", err)
			return "Summary failed: " + err.Error()
		}
		return store.TrimTelegram(out)
	default:
		return "Unknown command. Try /help."
	}
}

func errorReply(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "🤷 " + err.Error()
	case errors.Is(err, store.ErrAlreadyExists):
		return "⚠️ " + err.Error()
	case errors.Is(err, store.ErrEmptyDirectory), errors.Is(err, store.ErrNoTasks):
		return "📭 nothing here"
	case errors.Is(err, store.ErrInvalid):
		return "❓ " + err.Error()
	default:
		return "💥 " + err.Error()
	}
}

const helpText = `Send any text to create a task (first line is the title).

/list [done|postponed|cancelled] - list tasks
/done <task> - mark done
/postpone <task> - postpone
/todo <task> - back to current
/cancel <task> - cancel
/read <task> - show content
/one - a random task
/summary - summary of current tasks`
