package harness

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFixturesProvisionsContents(t *testing.T) {
	f, err := NewFixtures()
	require.NoError(t, err)
	defer f.Close()

	tests := []struct {
		key     string
		content string
	}{
		{"a", "alpha\n"},
		{"b", "beta\n"},
		{"blank", "one\n\n\nthree\n\n\n"},
		{"tabs", "col1\tcol2\nline\t2\n"},
		{"empty", ""},
		{"no-newline", "no newline"},
	}
	for _, tt := range tests {
		data, err := os.ReadFile(f.Path(tt.key))
		require.NoError(t, err, tt.key)
		assert.Equal(t, tt.content, string(data), tt.key)
	}
}

func TestNewFixturesSpecialShapes(t *testing.T) {
	f, err := NewFixtures()
	require.NoError(t, err)
	defer f.Close()

	info, err := os.Stat(f.Path("dir"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	binary, err := os.ReadFile(f.Path("binary"))
	require.NoError(t, err)
	assert.Len(t, binary, 512)

	large, err := os.ReadFile(f.Path("large"))
	require.NoError(t, err)
	assert.Equal(t, 3000, strings.Count(string(large), "\n"))

	// Operand/option disambiguation fixtures keep their hostile names.
	assert.Equal(t, "-n", fileName(f.Path("optlike")))
	assert.Equal(t, "-dash.txt", fileName(f.Path("dash")))
}

func TestFixtureBytesMatchesPath(t *testing.T) {
	f, err := NewFixtures()
	require.NoError(t, err)
	defer f.Close()

	data, err := f.Bytes(FixtureControl)
	require.NoError(t, err)

	direct, err := os.ReadFile(f.Path("control"))
	require.NoError(t, err)
	assert.Equal(t, direct, data)
}

func TestFixturePathUnknownKeyPanics(t *testing.T) {
	f, err := NewFixtures()
	require.NoError(t, err)
	defer f.Close()

	assert.Panics(t, func() { f.Path("no-such-fixture") })
}

func TestCaseDirIsolated(t *testing.T) {
	f, err := NewFixtures()
	require.NoError(t, err)
	defer f.Close()

	first, err := f.CaseDir("some case name!")
	require.NoError(t, err)
	second, err := f.CaseDir("some case name!")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	for _, dir := range []string{first, second} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestCloseRemovesEverything(t *testing.T) {
	f, err := NewFixtures()
	require.NoError(t, err)

	dir := f.Dir
	require.NoError(t, f.Close())

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func fileName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
