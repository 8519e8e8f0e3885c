package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/amirbrooks/wren/internal/config"
	"github.com/amirbrooks/wren/internal/store"
	"github.com/amirbrooks/wren/internal/summarize"
	"github.com/amirbrooks/wren/internal/telegram"
)

// Exit codes
const (
	ExitOK       = 0
	ExitUsage    = 2
	ExitNotFound = 3
	ExitConflict = 4
	ExitConfig   = 5
	ExitInternal = 10
)

// Version is overridden at build time with -ldflags "-X".
var Version = "0.5.0"

var errUsage = errors.New("usage")

type options struct {
	list     bool
	done     bool
	postpone bool
	todo     bool
	cancel   bool
	read     bool
	edit     bool
	one      bool
	summary  bool
	http     bool
	telegram bool
	version  bool
}

type app struct {
	cfg    *config.Config
	store  *store.Store
	out    io.Writer
	errOut io.Writer

	launch        func(argv []string) error
	newSummarizer func(cfg *config.Config) (telegram.Summarizer, error)
}

func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	cmd := &cobra.Command{
		Use:   "wren [flags] [--] [new task words...]",
		Short: "Plain-text task tracker",
		Long: `wren keeps tasks as plain-text files in notes/, done/, postponed/ and cancelled/.

With words and no flags it creates a task; with nothing at all it lists current tasks.
Words after -- are never read as flags: wren -- call -5 people`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, words []string) error {
			a, err := newApp(stdout, stderr)
			if err != nil {
				return err
			}
			return a.dispatch(cmd.Context(), opts, strings.TrimSpace(strings.Join(words, " ")))
		},
	}
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	f := cmd.Flags()
	f.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "ls" {
			name = "list"
		}
		return pflag.NormalizedName(name)
	})
	f.BoolVarP(&opts.list, "list", "l", false, "list current tasks; with -d/-p/-c list done, postponed or cancelled tasks")
	f.BoolVarP(&opts.done, "done", "d", false, "mark a task as done")
	f.BoolVarP(&opts.postpone, "postpone", "p", false, "postpone a task for the time being")
	f.BoolVarP(&opts.todo, "todo", "t", false, "move a postponed task back to current")
	f.BoolVarP(&opts.cancel, "cancel", "c", false, "cancel a task")
	f.BoolVarP(&opts.read, "read", "r", false, "print a task's content")
	f.BoolVarP(&opts.edit, "edit", "e", false, "open a task in $EDITOR")
	f.BoolVarP(&opts.one, "one", "o", false, "print one random task")
	f.BoolVarP(&opts.summary, "summary", "s", false, "print a summary of current tasks")
	f.BoolVar(&opts.http, "http", false, "start the HTTP server")
	f.BoolVar(&opts.telegram, "telegram", false, "start the Telegram bot")
	f.BoolVar(&opts.version, "version", false, "show version, config file and data directory")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(stderr, "wren:", err)
		return exitCode(err)
	}
	return ExitOK
}

func newApp(stdout, stderr io.Writer) (*app, error) {
	path := config.Path()
	if err := config.WriteDefault(path); err != nil {
		fmt.Fprintln(stderr, "wren: could not write default config:", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open data directory: %w", err)
	}
	return &app{
		cfg:           cfg,
		store:         st,
		out:           stdout,
		errOut:        stderr,
		launch:        runCommand,
		newSummarizer: newSummarizer,
	}, nil
}

func (a *app) dispatch(ctx context.Context, o options, words string) error {
	switch {
	case o.list && o.postpone:
		return a.list(store.Postponed, "?", color.FgYellow)
	case o.list && o.cancel:
		return a.list(store.Cancelled, "✘", color.FgRed)
	case o.list && o.done:
		return a.list(store.Done, "✔", color.FgGreen)
	case o.list:
		return a.list(store.Active, "➜", color.FgCyan)
	case o.version:
		fmt.Fprintf(a.out, "Wren %s\n\nconfig: %s\ndata directory: %s\n", Version, a.cfg.Path, a.store.Root)
		return nil
	case o.http:
		return a.serveHTTP(ctx)
	case o.telegram:
		return a.serveTelegram(ctx)
	case o.one:
		name, err := a.store.Random(store.Active)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, name)
		return nil
	case o.edit:
		if words == "" {
			return fmt.Errorf("%w: -e/--edit needs a task name", errUsage)
		}
		return a.edit(words)
	case o.summary:
		return a.summary(ctx)
	case o.read:
		if words == "" {
			return fmt.Errorf("%w: -r/--read needs a task name", errUsage)
		}
		content, err := a.store.Read(words)
		if err != nil {
			return err
		}
		fmt.Fprint(a.out, content)
		if content != "" && !strings.HasSuffix(content, "\n") {
			fmt.Fprintln(a.out)
		}
		return nil
	case o.done:
		return a.transition(store.TransitionDone, words)
	case o.postpone:
		return a.transition(store.TransitionPostpone, words)
	case o.todo:
		return a.transition(store.TransitionTodo, words)
	case o.cancel:
		return a.transition(store.TransitionCancel, words)
	case words != "":
		name, err := a.store.Create(store.CreateInput{Title: words})
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, "created task:", name)
		return nil
	default:
		return a.list(store.Active, "➜", color.FgCyan)
	}
}

func (a *app) list(c store.Category, bullet string, attr color.Attribute) error {
	names, err := a.store.List(c)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("%w: no %s tasks", store.ErrEmptyDirectory, c.Label())
	}
	mark := color.New(attr).Sprint(bullet)
	for _, name := range names {
		fmt.Fprintf(a.out, "%s %s\n", mark, name)
	}
	return nil
}

func (a *app) transition(t store.Transition, words string) error {
	if words == "" {
		return fmt.Errorf("%w: --%s needs a task name", errUsage, t.Name)
	}
	msg, err := a.store.Apply(t, words)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *app) summary(ctx context.Context) error {
	digest, err := a.store.Summarize()
	if err != nil {
		return err
	}
	if a.cfg.SummaryAPIKey() == "" {
		fmt.Fprint(a.out, digest)
		return nil
	}
	s, err := a.newSummarizer(a.cfg)
	if err != nil {
		return err
	}
	out, err := s.Summarize(ctx, digest)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, out)
	return nil
}

func newSummarizer(cfg *config.Config) (telegram.Summarizer, error) {
	return summarize.New(summarize.Options{
		APIKey:    cfg.SummaryAPIKey(),
		Model:     cfg.Summary.Model,
		MaxTokens: cfg.Summary.MaxTokens,
	})
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, errUsage), errors.Is(err, store.ErrInvalid):
		return ExitUsage
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrEmptyDirectory),
		errors.Is(err, store.ErrNoTasks):
		return ExitNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return ExitConflict
	case errors.Is(err, config.ErrConfig):
		return ExitConfig
	default:
		return ExitInternal
	}
}
