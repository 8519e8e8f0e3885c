package store

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gofrs/flock"
	"github.com/oklog/ulid/v2"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrEmptyDirectory = errors.New("empty directory")
	ErrNoTasks        = errors.New("no active tasks")
	ErrInvalid        = errors.New("invalid")
)

// LookupError reports a query that matched no task in any of the searched
// categories. It still satisfies errors.Is(err, ErrNotFound).
type LookupError struct {
	Query      string
	Categories []Category
}

func (e *LookupError) Error() string {
	if e == nil {
		return "not found"
	}
	labels := make([]string, 0, len(e.Categories))
	for _, c := range e.Categories {
		labels = append(labels, c.Label())
	}
	return fmt.Sprintf("no %s task matches %q", strings.Join(labels, " or "), e.Query)
}

func (e *LookupError) Is(target error) bool {
	return target == ErrNotFound
}

// Category is the status of a task, expressed as the directory holding it.
type Category string

const (
	Active    Category = "notes"
	Done      Category = "done"
	Postponed Category = "postponed"
	Cancelled Category = "cancelled"
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{Active, Done, Postponed, Cancelled}
}

func ParseCategory(s string) (Category, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "", "notes", "active", "todo", "current":
		return Active, nil
	case "done":
		return Done, nil
	case "postponed", "postpone":
		return Postponed, nil
	case "cancelled", "canceled", "cancel":
		return Cancelled, nil
	default:
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalid, s)
	}
}

// Label is the human name of the category.
func (c Category) Label() string {
	if c == Active {
		return "active"
	}
	return string(c)
}

type Task struct {
	Name    string    `json:"name"`
	Status  Category  `json:"status"`
	ModTime time.Time `json:"modified_at"`
	Size    int64     `json:"size"`
	Path    string    `json:"-"`
}

type CreateInput struct {
	Title   string
	Content string
}

// Store is a task repository rooted at a data directory holding one
// subdirectory per category.
type Store struct {
	Root string

	mu   sync.Mutex
	lock *flock.Flock
	intn func(n int) int
}

// Open opens the store rooted at root, creating the category directories.
func Open(root string) (*Store, error) {
	root = expandHome(strings.TrimSpace(root))
	if root == "" {
		return nil, fmt.Errorf("%w: data directory is required", ErrInvalid)
	}
	for _, c := range Categories() {
		if err := os.MkdirAll(filepath.Join(root, string(c)), 0o755); err != nil {
			return nil, err
		}
	}
	return &Store{
		Root: root,
		lock: flock.New(filepath.Join(root, ".lock")),
		intn: rand.IntN,
	}, nil
}

func (s *Store) Dir(c Category) string {
	return filepath.Join(s.Root, string(c))
}

// Create writes a new active task and returns its file name.
func (s *Store) Create(in CreateInput) (string, error) {
	title := strings.TrimSpace(in.Title)
	name := Sanitize(title)
	if name == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalid)
	}
	body := in.Content
	if strings.TrimSpace(body) == "" {
		body = title
	}
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	err := s.mutate(func() error {
		path := filepath.Join(s.Dir(Active), name)
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, name)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return atomicWriteFile(path, []byte(body), 0o644)
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// List returns the task names in c, sorted lexicographically.
func (s *Store) List(c Category) ([]string, error) {
	entries, err := os.ReadDir(s.Dir(c))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !isTaskEntry(e) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// Tasks is List with file metadata.
func (s *Store) Tasks(c Category) ([]Task, error) {
	names, err := s.List(c)
	if err != nil {
		return nil, err
	}
	out := make([]Task, 0, len(names))
	for _, name := range names {
		path := filepath.Join(s.Dir(c), name)
		info, err := os.Stat(path)
		if err != nil {
			// removed between listing and stat
			continue
		}
		out = append(out, Task{
			Name:    name,
			Status:  c,
			ModTime: info.ModTime().UTC(),
			Size:    info.Size(),
			Path:    path,
		})
	}
	return out, nil
}

// Find resolves query against the names in c. An exact name match (raw or
// sanitized query) is taken before any substring match, so with "buy-milk"
// and "milk" both present, "milk" finds "milk". Failing that, the first name
// containing the query, case-insensitively, in List order wins.
func (s *Store) Find(query string, c Category) (string, bool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", false, nil
	}
	names, err := s.List(c)
	if err != nil {
		return "", false, err
	}
	name, ok := matchName(names, query)
	return name, ok, nil
}

func matchName(names []string, query string) (string, bool) {
	qLower := strings.ToLower(query)
	qSlug := Sanitize(query)
	for _, n := range names {
		if strings.ToLower(n) == qLower || (qSlug != "" && n == qSlug) {
			return n, true
		}
	}
	for _, n := range names {
		nLower := strings.ToLower(n)
		if strings.Contains(nLower, qLower) || (qSlug != "" && strings.Contains(nLower, qSlug)) {
			return n, true
		}
	}
	return "", false
}

// Resolve returns the path of the active task matching query.
func (s *Store) Resolve(query string) (string, error) {
	name, err := s.lookup(query, Active)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Dir(Active), name), nil
}

func (s *Store) lookup(query string, c Category) (string, error) {
	name, ok, err := s.Find(query, c)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &LookupError{Query: strings.TrimSpace(query), Categories: []Category{c}}
	}
	return name, nil
}

// Read returns the content of the active task matching query.
func (s *Store) Read(query string) (string, error) {
	path, err := s.Resolve(query)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Write replaces the content of the active task matching query.
func (s *Store) Write(query string, content string) (string, error) {
	var name string
	err := s.mutate(func() error {
		n, err := s.lookup(query, Active)
		if err != nil {
			return err
		}
		name = n
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		return atomicWriteFile(filepath.Join(s.Dir(Active), n), []byte(content), 0o644)
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// Move relocates the task matching query from one category to another and
// returns a confirmation message.
func (s *Store) Move(query string, from, to Category) (string, error) {
	var name string
	err := s.mutate(func() error {
		n, err := s.lookup(query, from)
		if err != nil {
			return err
		}
		name = n
		return s.rename(n, from, to)
	})
	if err != nil {
		return "", err
	}
	return moveMessage(name, to), nil
}

func (s *Store) rename(name string, from, to Category) error {
	dst := filepath.Join(s.Dir(to), name)
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%w: %s is already %s", ErrAlreadyExists, name, to.Label())
	}
	if err := os.MkdirAll(s.Dir(to), 0o755); err != nil {
		return err
	}
	// Rename is atomic on same filesystem.
	return os.Rename(filepath.Join(s.Dir(from), name), dst)
}

func moveMessage(name string, to Category) string {
	switch to {
	case Done:
		return fmt.Sprintf("marked %q as done", name)
	case Postponed:
		return fmt.Sprintf("postponed %q", name)
	case Cancelled:
		return fmt.Sprintf("cancelled %q", name)
	default:
		return fmt.Sprintf("moved %q back to current tasks", name)
	}
}

// Transition is a named status change with the categories it may take a
// task from, tried in order.
type Transition struct {
	Name string
	From []Category
	To   Category
}

var (
	TransitionDone     = Transition{Name: "done", From: []Category{Active}, To: Done}
	TransitionPostpone = Transition{Name: "postpone", From: []Category{Active}, To: Postponed}
	TransitionTodo     = Transition{Name: "todo", From: []Category{Postponed, Cancelled}, To: Active}
	TransitionCancel   = Transition{Name: "cancel", From: []Category{Active, Postponed}, To: Cancelled}
)

func TransitionByName(name string) (Transition, bool) {
	for _, t := range []Transition{TransitionDone, TransitionPostpone, TransitionTodo, TransitionCancel} {
		if t.Name == strings.ToLower(strings.TrimSpace(name)) {
			return t, true
		}
	}
	return Transition{}, false
}

// Apply moves the task matching query along t.
func (s *Store) Apply(t Transition, query string) (string, error) {
	var msg string
	err := s.mutate(func() error {
		for _, from := range t.From {
			name, ok, err := s.Find(query, from)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := s.rename(name, from, t.To); err != nil {
				return err
			}
			msg = moveMessage(name, t.To)
			return nil
		}
		return &LookupError{Query: strings.TrimSpace(query), Categories: t.From}
	})
	return msg, err
}

func (s *Store) MarkDone(query string) (string, error) {
	return s.Apply(TransitionDone, query)
}

func (s *Store) MarkPostponed(query string) (string, error) {
	return s.Apply(TransitionPostpone, query)
}

func (s *Store) MarkTodo(query string) (string, error) {
	return s.Apply(TransitionTodo, query)
}

func (s *Store) MarkCancelled(query string) (string, error) {
	return s.Apply(TransitionCancel, query)
}

// Random returns one uniformly chosen task name from c.
func (s *Store) Random(c Category) (string, error) {
	names, err := s.List(c)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: no %s tasks", ErrEmptyDirectory, c.Label())
	}
	return names[s.intn(len(names))], nil
}

// mutate serializes filesystem changes within the process and across
// processes sharing the data directory.
func (s *Store) mutate(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", s.lock.Path(), err)
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

// Sanitize turns a title into a file name: lowercase letters and digits,
// every other run of characters collapsed into a single hyphen.
func Sanitize(title string) string {
	title = strings.TrimSpace(strings.ToLower(title))
	var b strings.Builder
	lastHyphen := false
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// SplitMessage splits free text into a title (first line) and content (the
// rest). A single line yields no content.
func SplitMessage(text string) CreateInput {
	text = strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n")
	title, rest, _ := strings.Cut(text, "\n")
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return CreateInput{Title: title}
	}
	return CreateInput{Title: title, Content: title + "\n\n" + rest + "\n"}
}

func isTaskEntry(e fs.DirEntry) bool {
	if e.IsDir() {
		return false
	}
	return !strings.HasPrefix(e.Name(), ".")
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~"+string(os.PathSeparator)) || path == "~" {
		home, _ := os.UserHomeDir()
		if home != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func atomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, ".tmp-"+ulid.Make().String())
	if err := os.WriteFile(tmp, data, perm); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
