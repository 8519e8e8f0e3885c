package store

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimTelegram(t *testing.T) {
	assert.Equal(t, "short", TrimTelegram("short\n\n"))

	long := strings.Repeat("ж", telegramMaxChars+50)
	out := TrimTelegram(long)
	assert.Equal(t, telegramMaxChars, utf8.RuneCountInString(out))
	assert.True(t, strings.HasSuffix(out, "… (truncated)"))
}

func TestRenderTelegramList(t *testing.T) {
	s := openTestStore(t)
	out, err := s.RenderTelegramList(Postponed)
	require.NoError(t, err)
	assert.Equal(t, "⏳ Postponed (0)\n\nNo postponed tasks.", out)

	for _, title := range []string{"b task", "a task"} {
		_, err := s.Create(CreateInput{Title: title})
		require.NoError(t, err)
	}
	out, err = s.RenderTelegramList(Active)
	require.NoError(t, err)
	assert.Equal(t, "📝 Active (2)\n\n• a-task\n• b-task", out)
}

func TestRenderTelegramTask(t *testing.T) {
	assert.Equal(t, "📄 x\n\nbody", RenderTelegramTask("x", "body\n"))
	assert.Equal(t, "📄 x\n\n(empty)", RenderTelegramTask("x", "  "))
}
