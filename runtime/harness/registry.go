package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/aledsdavies/catconform/core/invariant"
)

// Op tags the few distinct case shapes; a single dispatcher interprets
// them. Cases are plain values, not per-case closures over shared state.
type Op int

const (
	// OpCompare runs subject and reference with identical argv and stdin.
	OpCompare Op = iota
	// OpFifo compares both executables reading a named-pipe operand.
	OpFifo
	// OpCheck runs a scripted check with full harness access.
	OpCheck
)

// StdinSpec selects the stdin payload for a case, first match wins:
// Key reads the content behind a FixtureKey, From reads any provisioned
// fixture by its path key, Lit is a literal payload. A non-nil empty Lit
// connects stdin and delivers EOF immediately; the zero StdinSpec
// leaves stdin unconnected.
type StdinSpec struct {
	Key  FixtureKey
	From string
	Lit  []byte
}

// Case is a value-type test descriptor. Argv tokens starting with "@"
// are placeholders: "@a", "@blank" and friends resolve to provisioned
// fixtures, "@<name>" to a file declared in Files or Links, "@fifo" to
// the case's named pipe, and "@scratch/<rest>" to a path inside the
// case's scratch directory without creating anything there.
type Case struct {
	Name string
	Op   Op

	// Files are scratch files created in the case directory before the
	// argv is resolved. Keys may contain path separators.
	Files map[string]string
	// Links are symlinks created after Files, in sorted key order so
	// chained links can reference earlier ones. Targets may be
	// placeholders or literal (possibly relative) paths.
	Links map[string]string

	Args  []string
	Stdin StdinSpec

	// Chunks is the FIFO payload for OpFifo, written in order with Delay
	// between chunks when more than one is supplied. ChunksFrom names
	// provisioned fixtures by path key and takes precedence over Chunks.
	Chunks     []string
	ChunksFrom []string
	Delay      time.Duration

	// Check is the scripted body for OpCheck.
	Check CheckFunc
}

// Env hands the harness plumbing to scripted checks and the dispatcher.
type Env struct {
	Config     Config
	Fixtures   *Fixtures
	Runner     *Runner
	Comparator *Comparator

	// CaseDir is the per-case scratch directory; empty until the
	// dispatcher provisions one.
	CaseDir string
}

// CheckFunc is a scripted case body.
type CheckFunc func(ctx context.Context, env *Env) error

// Registry holds the ordered case collection. Names must be unique at
// registration time; a duplicate is a programming error.
type Registry struct {
	cases []Case
	names map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Add registers cases in order.
func (r *Registry) Add(cases ...Case) {
	for _, c := range cases {
		invariant.Precondition(c.Name != "", "case name cannot be empty")
		_, dup := r.names[c.Name]
		invariant.Precondition(!dup, "duplicate case name %q", c.Name)
		if c.Op == OpCheck {
			invariant.Precondition(c.Check != nil, "case %q needs a check body", c.Name)
		}
		r.names[c.Name] = struct{}{}
		r.cases = append(r.cases, c)
	}
}

// Len reports the number of registered cases.
func (r *Registry) Len() int { return len(r.cases) }

// Names returns the registered case names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.cases))
	for i, c := range r.cases {
		names[i] = c.Name
	}
	return names
}

// Suggest ranks registered names against a filter that matched nothing
// and returns up to limit of the closest ones.
func (r *Registry) Suggest(filter string, limit int) []string {
	ranks := fuzzy.RankFindNormalizedFold(filter, r.Names())
	sort.Sort(ranks)
	suggestions := make([]string, 0, limit)
	for _, rank := range ranks {
		if len(suggestions) == limit {
			break
		}
		suggestions = append(suggestions, rank.Target)
	}
	return suggestions
}

// Outcome classifies a finished case.
type Outcome string

const (
	OutcomePass    Outcome = "pass"
	OutcomeFail    Outcome = "fail"
	OutcomeTimeout Outcome = "timeout"
)

// CaseResult records one executed case for the report writer.
type CaseResult struct {
	Name     string        `cbor:"name"`
	Outcome  Outcome       `cbor:"outcome"`
	Detail   string        `cbor:"detail,omitempty"`
	Duration time.Duration `cbor:"duration_ns"`
}

// Summary aggregates a suite execution.
type Summary struct {
	Total    int
	Executed int
	Passed   int
	Failed   int
	TimedOut int
	Results  []CaseResult
}

// Executor runs registered cases strictly sequentially. Concurrency
// exists only inside a case (stdin writers, FIFO producers).
type Executor struct {
	cfg      Config
	env      Env
	registry *Registry
}

// NewExecutor wires an executor over a shared environment.
func NewExecutor(cfg Config, env Env, registry *Registry) *Executor {
	invariant.NotNil(env.Fixtures, "fixtures")
	invariant.NotNil(env.Runner, "runner")
	invariant.NotNil(env.Comparator, "comparator")
	invariant.NotNil(registry, "registry")
	return &Executor{cfg: cfg, env: env, registry: registry}
}

// Execute runs every case whose name contains filter (all cases when
// filter is empty), printing a per-case line and a final summary. Every
// case runs to completion before the overall verdict; the returned
// error is non-nil only for an unfiltered run with failures, or for an
// infrastructure-level problem.
func (e *Executor) Execute(ctx context.Context, filter string) (Summary, error) {
	out := e.cfg.out()
	summary := Summary{Total: e.registry.Len()}

	for _, c := range e.registry.cases {
		if filter != "" && !strings.Contains(c.Name, filter) {
			continue
		}
		summary.Executed++

		if e.cfg.Verbose {
			fmt.Fprintf(out, "[run ] %s\n", c.Name)
		}

		start := time.Now()
		err := e.runCase(ctx, c)
		elapsed := time.Since(start)

		result := CaseResult{Name: c.Name, Duration: elapsed}
		switch {
		case err == nil:
			result.Outcome = OutcomePass
			summary.Passed++
			fmt.Fprintf(out, "[PASS] %s\n", c.Name)
		case errors.Is(err, ErrTimeout):
			result.Outcome = OutcomeTimeout
			result.Detail = err.Error()
			summary.TimedOut++
			fmt.Fprintf(out, "[TIME] %s: %v\n", c.Name, err)
		default:
			result.Outcome = OutcomeFail
			result.Detail = err.Error()
			summary.Failed++
			fmt.Fprintf(out, "[FAIL] %s: %v\n", c.Name, err)
		}
		summary.Results = append(summary.Results, result)
	}

	if summary.Executed == 0 && filter != "" {
		fmt.Fprintf(out, "no cases match filter %q\n", filter)
		for _, name := range e.registry.Suggest(filter, 5) {
			fmt.Fprintf(out, "  did you mean: %s\n", name)
		}
	}

	suffix := ""
	if filter != "" {
		suffix = " (filtered)"
	}
	fmt.Fprintf(out, "\n%d/%d tests executed%s.\n", summary.Passed, summary.Total, suffix)

	if filter == "" && summary.Passed != summary.Total {
		return summary, errors.New("failures encountered")
	}
	return summary, nil
}

// runCase interprets one descriptor. Infrastructure failures abort only
// this case, never the run.
func (e *Executor) runCase(ctx context.Context, c Case) error {
	env := e.env
	paths := make(map[string]string)

	if needsScratch(c) {
		dir, err := env.Fixtures.CaseDir(c.Name)
		if err != nil {
			return err
		}
		env.CaseDir = dir
	}

	for _, name := range sortedKeys(c.Files) {
		path := filepath.Join(env.CaseDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create scratch tree for %s: %w", name, err)
		}
		if err := os.WriteFile(path, []byte(c.Files[name]), 0o644); err != nil {
			return fmt.Errorf("write scratch file %s: %w", name, err)
		}
		paths[name] = path
	}

	for _, name := range sortedKeys(c.Links) {
		target, err := resolveToken(&env, paths, "", c.Links[name])
		if err != nil {
			return err
		}
		path := filepath.Join(env.CaseDir, name)
		if err := os.Symlink(target, path); err != nil {
			return fmt.Errorf("symlink %s -> %s: %w", name, target, err)
		}
		paths[name] = path
	}

	switch c.Op {
	case OpCompare:
		args, err := resolveArgs(&env, paths, "", c.Args)
		if err != nil {
			return err
		}
		stdin, err := resolveStdin(&env, c.Stdin)
		if err != nil {
			return err
		}
		return env.Comparator.Compare(ctx, args, stdin)

	case OpFifo:
		fifo := filepath.Join(env.CaseDir, "stream.fifo")
		if err := Mkfifo(fifo); err != nil {
			return err
		}
		args, err := resolveArgs(&env, paths, fifo, c.Args)
		if err != nil {
			return err
		}
		chunks, err := resolveChunks(&env, c)
		if err != nil {
			return err
		}
		return env.Comparator.CompareFifo(ctx, args, fifo, chunks, c.Delay)

	case OpCheck:
		return c.Check(ctx, &env)
	}

	invariant.Invariant(false, "unhandled case op %d", c.Op)
	return nil
}

func needsScratch(c Case) bool {
	if len(c.Files) > 0 || len(c.Links) > 0 || c.Op == OpFifo || c.Op == OpCheck {
		return true
	}
	for _, arg := range c.Args {
		if strings.HasPrefix(arg, "@scratch/") {
			return true
		}
	}
	return false
}

func resolveArgs(env *Env, paths map[string]string, fifo string, args []string) ([]string, error) {
	resolved := make([]string, len(args))
	for i, arg := range args {
		token, err := resolveToken(env, paths, fifo, arg)
		if err != nil {
			return nil, err
		}
		resolved[i] = token
	}
	return resolved, nil
}

// resolveToken expands one argv token. Non-placeholder tokens pass
// through verbatim.
func resolveToken(env *Env, paths map[string]string, fifo, token string) (string, error) {
	if !strings.HasPrefix(token, "@") {
		return token, nil
	}
	name := token[1:]

	if rest, ok := strings.CutPrefix(name, "scratch/"); ok {
		invariant.Invariant(env.CaseDir != "", "scratch placeholder without case dir")
		return filepath.Join(env.CaseDir, rest), nil
	}
	if name == "fifo" {
		invariant.Invariant(fifo != "", "fifo placeholder outside a fifo case")
		return fifo, nil
	}

	base, suffix := name, ""
	if i := strings.IndexByte(name, '/'); i >= 0 {
		base, suffix = name[:i], name[i:]
	}
	if path, ok := paths[base]; ok {
		return path + suffix, nil
	}
	return env.Fixtures.Path(base) + suffix, nil
}

func resolveStdin(env *Env, spec StdinSpec) ([]byte, error) {
	if spec.Key != "" {
		return env.Fixtures.Bytes(spec.Key)
	}
	if spec.From != "" {
		data, err := os.ReadFile(env.Fixtures.Path(spec.From))
		if err != nil {
			return nil, fmt.Errorf("read stdin fixture %s: %w", spec.From, err)
		}
		return data, nil
	}
	return spec.Lit, nil
}

func resolveChunks(env *Env, c Case) ([][]byte, error) {
	if len(c.ChunksFrom) > 0 {
		chunks := make([][]byte, len(c.ChunksFrom))
		for i, key := range c.ChunksFrom {
			data, err := os.ReadFile(env.Fixtures.Path(key))
			if err != nil {
				return nil, fmt.Errorf("read chunk fixture %s: %w", key, err)
			}
			chunks[i] = data
		}
		return chunks, nil
	}
	chunks := make([][]byte, len(c.Chunks))
	for i, chunk := range c.Chunks {
		chunks[i] = []byte(chunk)
	}
	return chunks, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
