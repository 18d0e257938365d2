package harness

import (
	"slices"
	"strings"
)

// OptionSpec is one deduplicated flag combination: a display label plus
// the exact ordered token sequence it stands for.
type OptionSpec struct {
	Label string
	Args  []string
}

// Key is the canonical dedup key: the token sequence joined with NUL.
// NUL cannot occur inside an argv token, so the encoding is injective
// and order-preserving. Two specs with the same tokens in a different
// order stay distinct.
func (s OptionSpec) Key() string {
	return strings.Join(s.Args, "\x00")
}

// shortAlphabet is the bundlable single-letter flag set, in the fixed
// order used for both bundled and separated subset enumeration.
var shortAlphabet = []byte{'n', 'b', 's', 'E', 'T', 'v', 'u', 'A'}

// longAlphabet is the long-form flag set; subset token order follows
// alphabet position, not semantic priority.
var longAlphabet = []string{
	"--number",
	"--number-nonblank",
	"--squeeze-blank",
	"--show-ends",
	"--show-tabs",
	"--show-nonprinting",
	"--show-all",
}

// extraShort covers the order-sensitive short sequences not reachable
// through bundling: -e and -t only exist as separate arguments here.
var extraShort = [][]string{
	{"-e"},
	{"-t"},
	{"-e", "-s"},
	{"-t", "-s"},
	{"-e", "-n"},
	{"-t", "-n"},
	{"-e", "-b"},
	{"-t", "-b"},
	{"-e", "-u"},
	{"-t", "-u"},
	{"-e", "-s", "-n"},
	{"-t", "-s", "-n"},
	{"-e", "-s", "-b"},
	{"-t", "-s", "-b"},
}

// orderSensitive issues mutually-overriding flag pairs in both orders to
// catch "last flag wins" vs "first flag wins" bugs.
var orderSensitive = [][]string{
	{"-n", "-b"},
	{"-b", "-n"},
	{"-s", "-n"},
	{"-n", "-s"},
	{"-s", "-b"},
	{"-b", "-s"},
	{"-E", "-T"},
	{"-T", "-E"},
	{"--number", "--number-nonblank"},
	{"--number-nonblank", "--number"},
	{"--squeeze-blank", "--number"},
	{"--number", "--squeeze-blank"},
	{"--show-ends", "--show-tabs"},
	{"--show-tabs", "--show-ends"},
}

// binaryMatrix exercises the visibility flags against the binary
// fixture, where decoration output differs most from plain passthrough.
var binaryMatrix = [][]string{
	nil,
	{"-v"},
	{"-A"},
	{"-t"},
	{"-e"},
	{"--show-nonprinting"},
	{"--show-all"},
	{"--show-ends"},
	{"--show-tabs"},
}

// GenerateOptionMatrix enumerates every non-empty subset of the short
// alphabet (bundled form always, separated form when more than one
// symbol), every non-empty subset of the long alphabet, the fixed extra
// and order-sensitive lists, and deduplicates by exact token sequence.
// First registration wins.
func GenerateOptionMatrix() []OptionSpec {
	var specs []OptionSpec
	seen := make(map[string]struct{})

	push := func(label string, args []string) {
		key := strings.Join(args, "\x00")
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		specs = append(specs, OptionSpec{Label: label, Args: args})
	}

	push("no options", nil)

	for mask := 1; mask < 1<<len(shortAlphabet); mask++ {
		var symbols []byte
		for i, flag := range shortAlphabet {
			if mask>>i&1 == 1 {
				symbols = append(symbols, flag)
			}
		}
		bundle := "-" + string(symbols)
		push("short bundled "+bundle, []string{bundle})
		if len(symbols) > 1 {
			separate := make([]string, len(symbols))
			for i, flag := range symbols {
				separate[i] = "-" + string(flag)
			}
			push("short separate "+strings.Join(separate, " "), separate)
		}
	}

	for _, args := range extraShort {
		push("short extra "+strings.Join(args, " "), args)
	}

	for mask := 1; mask < 1<<len(longAlphabet); mask++ {
		var args []string
		for i, flag := range longAlphabet {
			if mask>>i&1 == 1 {
				args = append(args, flag)
			}
		}
		push("long "+strings.Join(args, " "), args)
	}

	for _, args := range orderSensitive {
		push("order "+strings.Join(args, " "), args)
	}

	return specs
}

// PickFixture selects the input most likely to expose a flag
// combination's effect, by fixed priority: show-all style flags beat
// tab display, beat non-printing display, beat numbering/squeezing,
// beat end-of-line display. Inert combinations get plain content.
func PickFixture(args []string) FixtureKey {
	if hasLong(args, "--show-all") || hasShort(args, 'A') || hasShort(args, 't') {
		return FixtureMixed
	}
	if hasShort(args, 'T') || hasLong(args, "--show-tabs") {
		return FixtureTabs
	}
	if hasShort(args, 'e') || hasShort(args, 'v') || hasLong(args, "--show-nonprinting") {
		return FixtureControl
	}
	if hasShort(args, 's') || hasShort(args, 'b') || hasShort(args, 'n') ||
		hasLong(args, "--squeeze-blank") || hasLong(args, "--number-nonblank") || hasLong(args, "--number") {
		return FixtureBlank
	}
	if hasShort(args, 'E') || hasLong(args, "--show-ends") {
		return FixtureNoNewline
	}
	return FixturePlain
}

// hasShort reports whether flag appears in any short-option token,
// bundled or separate.
func hasShort(args []string, flag byte) bool {
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "--") {
			continue
		}
		if strings.IndexByte(arg[1:], flag) >= 0 {
			return true
		}
	}
	return false
}

func hasLong(args []string, flag string) bool {
	return slices.Contains(args, flag)
}

// fixturePlaceholder maps a FixtureKey to the argv placeholder the case
// dispatcher resolves into a path.
func fixturePlaceholder(key FixtureKey) string {
	return "@" + fixturePathKey(key)
}

// MatrixCases derives four concrete cases per surviving OptionSpec
// (single file, file plus a second fixed file, stdin, stdin plus a
// second fixed file operand) and appends the binary passthrough set.
func MatrixCases() []Case {
	specs := GenerateOptionMatrix()
	cases := make([]Case, 0, 4*len(specs)+len(binaryMatrix))

	for _, spec := range specs {
		key := PickFixture(spec.Args)
		file := fixturePlaceholder(key)

		cases = append(cases,
			Case{
				Name: "matrix file " + spec.Label,
				Op:   OpCompare,
				Args: append(slices.Clone(spec.Args), file),
			},
			Case{
				Name: "matrix multi " + spec.Label,
				Op:   OpCompare,
				Args: append(slices.Clone(spec.Args), file, "@b"),
			},
			Case{
				Name:  "matrix stdin " + spec.Label,
				Op:    OpCompare,
				Args:  append(slices.Clone(spec.Args), "-"),
				Stdin: StdinSpec{Key: key},
			},
			Case{
				Name:  "matrix stdin+file " + spec.Label,
				Op:    OpCompare,
				Args:  append(slices.Clone(spec.Args), "-", "@b"),
				Stdin: StdinSpec{Key: key},
			},
		)
	}

	for _, args := range binaryMatrix {
		cases = append(cases, Case{
			Name: strings.TrimRight("matrix binary "+strings.Join(args, " "), " "),
			Op:   OpCompare,
			Args: append(slices.Clone(args), "@binary"),
		})
	}

	return cases
}
