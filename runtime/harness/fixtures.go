package harness

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aledsdavies/catconform/core/invariant"
)

// FixtureKey names the closed set of input contents a generated case can
// be paired with. The matrix generator picks the key most likely to make
// a flag combination actually do something.
type FixtureKey string

const (
	FixturePlain     FixtureKey = "plain"
	FixtureBlank     FixtureKey = "blank-lines"
	FixtureTabs      FixtureKey = "tabs"
	FixtureMixed     FixtureKey = "mixed-control"
	FixtureControl   FixtureKey = "control"
	FixtureNoNewline FixtureKey = "no-trailing-newline"
	FixtureBinary    FixtureKey = "binary"
)

// Fixtures owns a throwaway directory of deterministic input artifacts
// plus the in-memory stdin buffers. Contents are read-only after
// provisioning; cases needing custom files get a private subdirectory
// through CaseDir.
type Fixtures struct {
	// Dir is the ephemeral root; removed by Close.
	Dir string

	// StdinData and StdinMix are the canned stdin payloads shared by the
	// hand-written cases.
	StdinData []byte
	StdinMix  []byte

	paths map[string]string
}

// fixtureFiles is everything provisioned at startup. Names starting with
// a dash are deliberate: they exercise the subject's operand/option
// disambiguation.
var fixtureFiles = []struct {
	key     string
	name    string
	content string
}{
	{"a", "a.txt", "alpha\n"},
	{"b", "b.txt", "beta\n"},
	{"blank", "blank.txt", "one\n\n\nthree\n\n\n"},
	{"tabs", "tabs.txt", "col1\tcol2\nline\t2\n"},
	{"mixed", "mixed.txt", "tab\t\x01\nline\t2\x7f\n"},
	{"dash", "-dash.txt", "dash file\n"},
	{"optlike", "-n", "option-looking file\n"},
	{"dashv", "-vfile.txt", "dash-v data\n"},
	{"empty", "empty.txt", ""},
	{"no-newline", "no_newline.txt", "no newline"},
	{"control", "control.txt", "plain\ncontrol:\x01here\nesc:\x1bX\nmeta:\x80Y\n"},
}

// NewFixtures provisions the fixture directory. The caller owns the
// returned bundle and must Close it when the run ends.
func NewFixtures() (*Fixtures, error) {
	dir, err := os.MkdirTemp("", "catconform-")
	if err != nil {
		return nil, fmt.Errorf("create fixture dir: %w", err)
	}

	f := &Fixtures{
		Dir:       dir,
		StdinData: []byte("stdin data\n"),
		StdinMix:  []byte("middle line\n"),
		paths:     make(map[string]string),
	}

	for _, spec := range fixtureFiles {
		if err := f.provision(spec.key, spec.name, []byte(spec.content)); err != nil {
			f.Close()
			return nil, err
		}
	}

	if err := f.provision("large", "large.txt", numberedLines(3000)); err != nil {
		f.Close()
		return nil, err
	}
	// Large enough to hit big-input paths, small enough to avoid pipe stalls.
	if err := f.provision("huge", "huge.txt", numberedLines(1000)); err != nil {
		f.Close()
		return nil, err
	}

	binary := make([]byte, 512)
	if _, err := rand.Read(binary); err != nil {
		f.Close()
		return nil, fmt.Errorf("generate binary fixture: %w", err)
	}
	if err := f.provision("binary", "binary.bin", binary); err != nil {
		f.Close()
		return nil, err
	}

	subdir := filepath.Join(dir, "adir")
	if err := os.Mkdir(subdir, 0o755); err != nil {
		f.Close()
		return nil, fmt.Errorf("create fixture subdirectory: %w", err)
	}
	f.paths["dir"] = subdir

	return f, nil
}

func (f *Fixtures) provision(key, name string, content []byte) error {
	path := filepath.Join(f.Dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", name, err)
	}
	f.paths[key] = path
	return nil
}

// Close destroys the fixture directory and everything a case wrote
// underneath it.
func (f *Fixtures) Close() error {
	return os.RemoveAll(f.Dir)
}

// Path resolves a fixture key to its absolute path. Unknown keys are a
// programming error in the case tables.
func (f *Fixtures) Path(key string) string {
	path, ok := f.paths[key]
	invariant.Precondition(ok, "unknown fixture %q", key)
	return path
}

// Bytes reads the content backing a FixtureKey.
func (f *Fixtures) Bytes(key FixtureKey) ([]byte, error) {
	data, err := os.ReadFile(f.Path(fixturePathKey(key)))
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", key, err)
	}
	return data, nil
}

// CaseDir creates a uniquely named scratch directory for one test case,
// so per-case files never interfere across cases.
func (f *Fixtures) CaseDir(caseName string) (string, error) {
	dir, err := os.MkdirTemp(f.Dir, slug(caseName)+"-")
	if err != nil {
		return "", fmt.Errorf("create case dir for %q: %w", caseName, err)
	}
	return dir, nil
}

func fixturePathKey(key FixtureKey) string {
	switch key {
	case FixturePlain:
		return "a"
	case FixtureBlank:
		return "blank"
	case FixtureTabs:
		return "tabs"
	case FixtureMixed:
		return "mixed"
	case FixtureControl:
		return "control"
	case FixtureNoNewline:
		return "no-newline"
	case FixtureBinary:
		return "binary"
	}
	invariant.Invariant(false, "unhandled fixture key %q", key)
	return ""
}

func numberedLines(n int) []byte {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	return []byte(b.String())
}

func slug(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, name)
	if len(mapped) > 40 {
		mapped = mapped[:40]
	}
	return mapped
}
