package coach

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	assert.Len(t, p.Principles, 5)
	assert.Len(t, p.Framework, 10)
	assert.Len(t, p.Examples, 2)
	assert.Len(t, p.Boosters, 3)

	levels := make([]int, 0, len(p.Ladder))
	for _, tier := range p.Ladder {
		levels = append(levels, tier.Level)
		assert.NotEmpty(t, tier.State)
	}
	assert.Equal(t, []int{2, 4, 5, 7, 9}, levels)
}

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty path uses embedded policy", func(t *testing.T) {
		p, err := LoadPolicy("")
		require.NoError(t, err)
		assert.Equal(t, DefaultPolicy(), p)
	})

	t.Run("custom file", func(t *testing.T) {
		path := filepath.Join(dir, "policy.yaml")
		doc := "persona: Coach\nprinciples: [Be kind]\nclarify:\n  instruction: Ask two questions\nladder:\n  - {level: 3, state: low, keywords: [SAD]}\n"
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

		p, err := LoadPolicy(path)
		require.NoError(t, err)
		assert.Equal(t, "Coach", p.Persona)
		assert.Equal(t, []string{"sad"}, p.Ladder[0].Keywords)
	})

	t.Run("missing persona", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("principles: [x]\n"), 0o600))

		_, err := LoadPolicy(path)
		assert.True(t, errors.Is(err, ErrInvalidPolicy))
	})

	t.Run("ladder level out of range", func(t *testing.T) {
		_, err := ParsePolicy([]byte("persona: C\nprinciples: [x]\nclarify: {instruction: y}\nladder: [{level: 11, state: s, keywords: [a]}]\n"))
		assert.ErrorIs(t, err, ErrInvalidPolicy)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadPolicy(filepath.Join(dir, "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
