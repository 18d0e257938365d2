package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv(t *testing.T, cfg Config) Env {
	t.Helper()
	fixtures, err := NewFixtures()
	require.NoError(t, err)
	t.Cleanup(func() { _ = fixtures.Close() })

	cat := catPath(t)
	runner := NewRunner(cfg)
	return Env{
		Config:     cfg,
		Fixtures:   fixtures,
		Runner:     runner,
		Comparator: NewComparator(runner, cat, cat, fixtures.Dir),
	}
}

func passCase(name string) Case {
	return Case{Name: name, Op: OpCheck, Check: func(context.Context, *Env) error { return nil }}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	r.Add(passCase("unique"))
	assert.Panics(t, func() { r.Add(passCase("unique")) })
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	r := NewRegistry()
	assert.Panics(t, func() { r.Add(Case{Op: OpCompare, Args: []string{"@a"}}) })
}

func TestRegistryRejectsCheckWithoutBody(t *testing.T) {
	r := NewRegistry()
	assert.Panics(t, func() { r.Add(Case{Name: "bodyless", Op: OpCheck}) })
}

func TestRegistryNamesInOrder(t *testing.T) {
	r := NewRegistry()
	r.Add(passCase("first"), passCase("second"), passCase("third"))
	assert.Equal(t, []string{"first", "second", "third"}, r.Names())
	assert.Equal(t, 3, r.Len())
}

func TestRegistrySuggest(t *testing.T) {
	r := NewRegistry()
	r.Add(passCase("fifo streaming"), passCase("single file"), passCase("broken pipe write error"))

	suggestions := r.Suggest("steaming", 2)
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "fifo streaming", suggestions[0])
}

func TestExecuteCountsOutcomes(t *testing.T) {
	var out bytes.Buffer
	cfg := Config{Out: &out}
	env := testEnv(t, cfg)

	r := NewRegistry()
	r.Add(
		passCase("passes"),
		Case{Name: "fails", Op: OpCheck, Check: func(context.Context, *Env) error {
			return errors.New("deliberate failure")
		}},
		Case{Name: "times out", Op: OpCheck, Check: func(context.Context, *Env) error {
			return fmt.Errorf("slow thing: %w", ErrTimeout)
		}},
	)

	summary, err := NewExecutor(cfg, env, r).Execute(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Executed)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.TimedOut)
	assert.Len(t, summary.Results, 3)

	assert.Contains(t, out.String(), "[PASS] passes")
	assert.Contains(t, out.String(), "[FAIL] fails")
	assert.Contains(t, out.String(), "[TIME] times out")
	assert.Contains(t, out.String(), "1/3 tests executed")
}

func TestExecuteFilterSelectsSubstring(t *testing.T) {
	var out bytes.Buffer
	cfg := Config{Out: &out}
	env := testEnv(t, cfg)

	r := NewRegistry()
	r.Add(passCase("alpha one"), passCase("alpha two"), passCase("beta"))

	summary, err := NewExecutor(cfg, env, r).Execute(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Executed)
	assert.Equal(t, 2, summary.Passed)
	assert.Contains(t, out.String(), "(filtered)")
}

func TestExecuteFilteredFailuresDoNotError(t *testing.T) {
	cfg := Config{Out: &bytes.Buffer{}}
	env := testEnv(t, cfg)

	r := NewRegistry()
	r.Add(Case{Name: "picked failure", Op: OpCheck, Check: func(context.Context, *Env) error {
		return errors.New("boom")
	}})

	summary, err := NewExecutor(cfg, env, r).Execute(context.Background(), "picked")
	assert.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
}

func TestExecuteNoMatchSuggests(t *testing.T) {
	var out bytes.Buffer
	cfg := Config{Out: &out}
	env := testEnv(t, cfg)

	r := NewRegistry()
	r.Add(passCase("fifo streaming"))

	summary, err := NewExecutor(cfg, env, r).Execute(context.Background(), "steaming")
	require.NoError(t, err)
	assert.Zero(t, summary.Executed)
	assert.Contains(t, out.String(), "no cases match filter")
	assert.Contains(t, out.String(), "did you mean: fifo streaming")
}

func TestRunCaseResolvesScratchFiles(t *testing.T) {
	cfg := Config{Out: &bytes.Buffer{}}
	env := testEnv(t, cfg)

	r := NewRegistry()
	r.Add(Case{
		Name:  "scratch compare",
		Op:    OpCompare,
		Files: map[string]string{"nested/dir/input.txt": "scratch content\n"},
		Args:  []string{"-n", "@nested/dir/input.txt"},
	})

	summary, err := NewExecutor(cfg, env, r).Execute(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Passed)
}

func TestRunCaseResolvesLinks(t *testing.T) {
	cfg := Config{Out: &bytes.Buffer{}}
	env := testEnv(t, cfg)

	r := NewRegistry()
	r.Add(Case{
		Name:  "link compare",
		Op:    OpCompare,
		Files: map[string]string{"target.txt": "via symlink\n"},
		Links: map[string]string{"alias.txt": "@target.txt"},
		Args:  []string{"@alias.txt"},
	})

	summary, err := NewExecutor(cfg, env, r).Execute(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Passed)
}

func TestRunCaseFifoDescriptor(t *testing.T) {
	cfg := Config{Out: &bytes.Buffer{}}
	env := testEnv(t, cfg)

	r := NewRegistry()
	r.Add(Case{
		Name:   "fifo descriptor",
		Op:     OpFifo,
		Args:   []string{"-n", "@fifo"},
		Chunks: []string{"one\n", "two\n"},
		Delay:  10 * time.Millisecond,
	})

	summary, err := NewExecutor(cfg, env, r).Execute(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Passed)
}

func TestRunCaseStdinFromFixture(t *testing.T) {
	cfg := Config{Out: &bytes.Buffer{}}
	env := testEnv(t, cfg)

	r := NewRegistry()
	r.Add(Case{
		Name:  "stdin from fixture",
		Op:    OpCompare,
		Args:  []string{"-A", "-"},
		Stdin: StdinSpec{From: "tabs"},
	})

	summary, err := NewExecutor(cfg, env, r).Execute(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Passed)
}
