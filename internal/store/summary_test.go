package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeEmpty(t *testing.T) {
	s := openTestStore(t)
	out, err := s.Summarize()
	assert.ErrorIs(t, err, ErrNoTasks)
	assert.Empty(t, out)
}

func TestSummarizeConcatenatesActiveOnly(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Create(CreateInput{Title: "write report", Content: "draft intro\n\n"})
	require.NoError(t, err)
	_, err = s.Create(CreateInput{Title: "call bank"})
	require.NoError(t, err)
	_, err = s.Create(CreateInput{Title: "finished thing"})
	require.NoError(t, err)
	_, err = s.MarkDone("finished")
	require.NoError(t, err)

	out, err := s.Summarize()
	require.NoError(t, err)
	assert.Equal(t, "# call-bank\n\ncall bank\n\n# write-report\n\ndraft intro\n", out)
	assert.NotContains(t, out, "finished")
}

func TestSummarizeHasNoSideEffects(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Create(CreateInput{Title: "one"})
	require.NoError(t, err)
	before, err := s.Tasks(Active)
	require.NoError(t, err)

	_, err = s.Summarize()
	require.NoError(t, err)

	after, err := s.Tasks(Active)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
