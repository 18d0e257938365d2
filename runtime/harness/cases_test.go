package harness

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinCasesNamesUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for _, c := range BuiltinCases() {
		require.NotEmpty(t, c.Name)
		_, dup := seen[c.Name]
		assert.False(t, dup, "duplicate case name %q", c.Name)
		seen[c.Name] = struct{}{}
	}
}

func TestBuiltinCasesWellFormed(t *testing.T) {
	for _, c := range BuiltinCases() {
		if c.Op == OpCheck {
			assert.NotNil(t, c.Check, c.Name)
			continue
		}
		assert.NotEmpty(t, c.Args, c.Name)
		if c.Op == OpFifo {
			assert.Contains(t, c.Args, "@fifo", c.Name)
			assert.True(t, len(c.Chunks) > 0 || len(c.ChunksFrom) > 0, "%s has no payload", c.Name)
		}
	}
}

// Running a slice of the suite with cat standing in as its own subject
// must produce zero failures.
func TestBuiltinCasesSelfConsistent(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns many processes")
	}
	cfg := Config{Out: &bytes.Buffer{}}
	env := testEnv(t, cfg)

	picked := []string{
		"single file",
		"multiple files",
		"stdin only",
		"dash operand",
		"-nET combo",
		"order -b then -n",
		"multiple -- markers",
		"literal dash filename",
		"missing file error",
		"bad option error",
		"directory operand error",
		"ELOOP symlink",
		"line state across files",
		"visible NUL",
		"symlink chain",
		"relative symlink",
		"hardlink to file",
		"fifo streaming",
		"fifo squeeze blank",
		"bundled equals separated -nb",
		"repeated invocation deterministic",
		"broken pipe write error",
		"long options",
		"ENOENT vs EACCES messaging",
		"process asm keeps comment-only lines",
	}

	byName := make(map[string]Case)
	for _, c := range BuiltinCases() {
		byName[c.Name] = c
	}

	r := NewRegistry()
	for _, name := range picked {
		c, ok := byName[name]
		require.True(t, ok, "case %q not registered", name)
		r.Add(c)
	}

	summary, err := NewExecutor(cfg, env, r).Execute(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, len(picked), summary.Passed, "failures: %s", failedNames(summary))
}

func failedNames(s Summary) string {
	var failed []string
	for _, res := range s.Results {
		if res.Outcome != OutcomePass {
			failed = append(failed, res.Name+": "+res.Detail)
		}
	}
	return strings.Join(failed, "; ")
}
