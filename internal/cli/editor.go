package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

func (a *app) edit(query string) error {
	path, err := a.store.Resolve(query)
	if err != nil {
		return err
	}
	argv, err := editorArgs(a.editorCommand(), path)
	if err != nil {
		return err
	}
	return a.launch(argv)
}

// editorCommand picks config.editor, then $EDITOR, then vi.
func (a *app) editorCommand() string {
	if e := strings.TrimSpace(a.cfg.Editor); e != "" {
		return e
	}
	if e := strings.TrimSpace(os.Getenv("EDITOR")); e != "" {
		return e
	}
	return "vi"
}

// editorArgs splits command shell-style and appends path.
func editorArgs(command, path string) ([]string, error) {
	parts, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("editor %q: %w", command, err)
	}
	if len(parts) == 0 {
		return nil, errors.New("editor command is empty")
	}
	return append(parts, path), nil
}

func runCommand(argv []string) error {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
