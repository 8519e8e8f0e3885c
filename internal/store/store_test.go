package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestOpenCreatesCategoryDirs(t *testing.T) {
	s := openTestStore(t)
	for _, c := range Categories() {
		info, err := os.Stat(s.Dir(c))
		require.NoError(t, err)
		assert.True(t, info.IsDir(), "%s should be a directory", c)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"buy milk", "buy-milk"},
		{"  Buy   MILK!! ", "buy-milk"},
		{"call mom / dad", "call-mom-dad"},
		{"../etc/passwd", "etc-passwd"},
		{"Café au lait", "café-au-lait"},
		{"2024 taxes", "2024-taxes"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in), "Sanitize(%q)", tt.in)
	}
}

func TestCreateThenListContainsNameOnce(t *testing.T) {
	s := openTestStore(t)
	name, err := s.Create(CreateInput{Title: "buy milk"})
	require.NoError(t, err)
	assert.Equal(t, "buy-milk", name)

	names, err := s.List(Active)
	require.NoError(t, err)
	count := 0
	for _, n := range names {
		if n == "buy-milk" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	b, err := os.ReadFile(filepath.Join(s.Dir(Active), name))
	require.NoError(t, err)
	assert.Equal(t, "buy milk\n", string(b))
}

func TestCreateDuplicateFails(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Create(CreateInput{Title: "buy milk"})
	require.NoError(t, err)

	_, err = s.Create(CreateInput{Title: "Buy Milk"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyExists))
}

func TestCreateEmptyTitleIsInvalid(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Create(CreateInput{Title: "  ?? "})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestCreateWithContent(t *testing.T) {
	s := openTestStore(t)
	name, err := s.Create(SplitMessage("plan trip\nbook flights\nfind hotel"))
	require.NoError(t, err)
	assert.Equal(t, "plan-trip", name)

	content, err := s.Read("trip")
	require.NoError(t, err)
	assert.Equal(t, "plan trip\n\nbook flights\nfind hotel\n", content)
}

func TestListIsSortedAndSkipsHiddenAndDirs(t *testing.T) {
	s := openTestStore(t)
	for _, title := range []string{"zebra", "apple", "mango"} {
		_, err := s.Create(CreateInput{Title: title})
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(Active), ".tmp-x"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(Active), "sub"), 0o755))

	names, err := s.List(Active)
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "mango", "zebra"}, names)
}

func TestListMissingDirectoryIsEmpty(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, os.RemoveAll(s.Dir(Done)))
	names, err := s.List(Done)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestFind(t *testing.T) {
	s := openTestStore(t)
	for _, title := range []string{"buy milk", "buy bread", "milk the cow"} {
		_, err := s.Create(CreateInput{Title: title})
		require.NoError(t, err)
	}

	tests := []struct {
		query string
		want  string
		found bool
	}{
		{"buy", "buy-bread", true},
		{"MILK", "buy-milk", true},
		{"buy milk", "buy-milk", true},
		{"milk the cow", "milk-the-cow", true},
		{"milk-the", "milk-the-cow", true},
		{"cheese", "", false},
		{"   ", "", false},
	}
	for _, tt := range tests {
		got, ok, err := s.Find(tt.query, Active)
		require.NoError(t, err)
		assert.Equal(t, tt.found, ok, "query %q", tt.query)
		assert.Equal(t, tt.want, got, "query %q", tt.query)
	}
}

func TestFindPrefersExactName(t *testing.T) {
	s := openTestStore(t)
	for _, title := range []string{"buy milk", "milk"} {
		_, err := s.Create(CreateInput{Title: title})
		require.NoError(t, err)
	}
	got, ok, err := s.Find("milk", Active)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "milk", got)

	// without an exact name the first substring match in list order wins
	got, ok, err = s.Find("mil", Active)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "buy-milk", got)
}

func TestReadMissingIsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Read("nothing here")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var lookupErr *LookupError
	require.True(t, errors.As(err, &lookupErr))
	assert.Equal(t, []Category{Active}, lookupErr.Categories)
	assert.Equal(t, "nothing here", lookupErr.Query)
}

func TestTransitionMissNamesEverySearchedCategory(t *testing.T) {
	s := openTestStore(t)

	_, err := s.MarkTodo("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, `no postponed or cancelled task matches "ghost"`)

	_, err = s.MarkCancelled("ghost")
	assert.EqualError(t, err, `no active or postponed task matches "ghost"`)

	_, err = s.MarkDone("ghost")
	assert.EqualError(t, err, `no active task matches "ghost"`)
}

func TestMoveToDonePreservesContent(t *testing.T) {
	s := openTestStore(t)
	content := "line one\n\tline two with tab\nünïcödé\n"
	name, err := s.Create(CreateInput{Title: "report", Content: content})
	require.NoError(t, err)

	msg, err := s.Move("rep", Active, Done)
	require.NoError(t, err)
	assert.Contains(t, msg, name)

	active, err := s.List(Active)
	require.NoError(t, err)
	assert.NotContains(t, active, name)

	done, err := s.List(Done)
	require.NoError(t, err)
	assert.Equal(t, []string{name}, done)

	b, err := os.ReadFile(filepath.Join(s.Dir(Done), name))
	require.NoError(t, err)
	assert.Equal(t, content, string(b))
}

func TestMoveMissingIsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Move("ghost", Active, Done)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMoveRefusesToOverwrite(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Create(CreateInput{Title: "water plants"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(Done), "water-plants"), []byte("old\n"), 0o644))

	_, err = s.MarkDone("water")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	active, err := s.List(Active)
	require.NoError(t, err)
	assert.Equal(t, []string{"water-plants"}, active)
}

func TestPostponeThenTodoIsNoop(t *testing.T) {
	s := openTestStore(t)
	name, err := s.Create(CreateInput{Title: "learn go", Content: "start with the tour\n"})
	require.NoError(t, err)

	_, err = s.MarkPostponed("learn")
	require.NoError(t, err)
	postponed, err := s.List(Postponed)
	require.NoError(t, err)
	assert.Equal(t, []string{name}, postponed)

	_, err = s.MarkTodo("learn")
	require.NoError(t, err)

	active, err := s.List(Active)
	require.NoError(t, err)
	assert.Equal(t, []string{name}, active)
	postponed, err = s.List(Postponed)
	require.NoError(t, err)
	assert.Empty(t, postponed)

	content, err := s.Read(name)
	require.NoError(t, err)
	assert.Equal(t, "start with the tour\n", content)
}

func TestTransitionsFailWhenNothingMatches(t *testing.T) {
	s := openTestStore(t)
	for _, fn := range []func(string) (string, error){s.MarkDone, s.MarkPostponed, s.MarkTodo, s.MarkCancelled} {
		_, err := fn("nope")
		assert.ErrorIs(t, err, ErrNotFound)
	}
}

func TestCancelFallsBackToPostponed(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Create(CreateInput{Title: "old idea"})
	require.NoError(t, err)
	_, err = s.MarkPostponed("old")
	require.NoError(t, err)

	msg, err := s.MarkCancelled("old")
	require.NoError(t, err)
	assert.Equal(t, `cancelled "old-idea"`, msg)

	cancelled, err := s.List(Cancelled)
	require.NoError(t, err)
	assert.Equal(t, []string{"old-idea"}, cancelled)
}

func TestTodoRestoresCancelled(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Create(CreateInput{Title: "revive me"})
	require.NoError(t, err)
	_, err = s.MarkCancelled("revive")
	require.NoError(t, err)

	_, err = s.MarkTodo("revive")
	require.NoError(t, err)
	active, err := s.List(Active)
	require.NoError(t, err)
	assert.Equal(t, []string{"revive-me"}, active)
}

func TestWriteReplacesContent(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Create(CreateInput{Title: "groceries"})
	require.NoError(t, err)

	name, err := s.Write("groc", "eggs\nflour")
	require.NoError(t, err)
	assert.Equal(t, "groceries", name)

	content, err := s.Read("groceries")
	require.NoError(t, err)
	assert.Equal(t, "eggs\nflour\n", content)

	_, err = s.Write("missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveReturnsActivePath(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Create(CreateInput{Title: "fix bike"})
	require.NoError(t, err)
	path, err := s.Resolve("bike")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root, "notes", "fix-bike"), path)
}

func TestRandom(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Random(Active)
	assert.ErrorIs(t, err, ErrEmptyDirectory)

	for _, title := range []string{"a1", "b2", "c3"} {
		_, err := s.Create(CreateInput{Title: title})
		require.NoError(t, err)
	}
	s.intn = func(n int) int { return n - 1 }
	got, err := s.Random(Active)
	require.NoError(t, err)
	assert.Equal(t, "c3", got)
}

func TestTasksIncludesMetadata(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Create(CreateInput{Title: "stretch", Content: "ten minutes\n"})
	require.NoError(t, err)
	tasks, err := s.Tasks(Active)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "stretch", tasks[0].Name)
	assert.Equal(t, Active, tasks[0].Status)
	assert.Equal(t, int64(len("ten minutes\n")), tasks[0].Size)
	assert.False(t, tasks[0].ModTime.IsZero())
}

func TestConcurrentCreatesSerialize(t *testing.T) {
	s := openTestStore(t)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(CreateInput{Title: "same task"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	ok, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyExists):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, conflicts)
}

func TestParseCategory(t *testing.T) {
	for in, want := range map[string]Category{
		"":          Active,
		"active":    Active,
		"notes":     Active,
		"DONE":      Done,
		"postponed": Postponed,
		"canceled":  Cancelled,
	} {
		got, err := ParseCategory(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, "ParseCategory(%q)", in)
	}
	_, err := ParseCategory("archive")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestBuyMilkWalkthrough(t *testing.T) {
	s := openTestStore(t)
	name, err := s.Create(CreateInput{Title: "buy milk"})
	require.NoError(t, err)
	require.Equal(t, "buy-milk", name)

	content, err := s.Read("buy")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(content, "buy milk"))

	_, err = s.MarkDone("buy")
	require.NoError(t, err)

	_, err = s.Read("buy")
	assert.ErrorIs(t, err, ErrNotFound)
}
