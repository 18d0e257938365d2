package harness

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aledsdavies/catconform/runtime/asmproc"
)

// compare builds a plain differential case: same argv against subject
// and reference, no stdin.
func compare(name string, args ...string) Case {
	return Case{Name: name, Op: OpCompare, Args: args}
}

// compareStdin is compare with a stdin payload attached.
func compareStdin(name string, stdin StdinSpec, args ...string) Case {
	return Case{Name: name, Op: OpCompare, Args: args, Stdin: stdin}
}

// check wraps a scripted body.
func check(name string, fn CheckFunc) Case {
	return Case{Name: name, Op: OpCheck, Check: fn}
}

func lit(s string) StdinSpec { return StdinSpec{Lit: []byte(s)} }
func fromFile(key string) StdinSpec { return StdinSpec{From: key} }

const stdinData = "stdin data\n"
const stdinMix = "middle line\n"

// BuiltinCases is the hand-written conformance suite: basics, operand
// and option parsing, error paths, cross-file line state, raw-byte
// display, filesystem special cases and the scripted process-level
// checks. Generated flag-matrix coverage lives in MatrixCases.
func BuiltinCases() []Case {
	var cases []Case

	// Basics: operands, stdin, dash handling.
	cases = append(cases,
		compare("single file", "@a"),
		compare("multiple files", "@a", "@b", "@blank"),
		compareStdin("stdin only", lit(stdinData), "-"),
		compareStdin("dash operand", lit(stdinMix), "@a", "-", "@b"),
		compare("dash filename", "--", "@dash"),
		compare("dash filename with numbering", "-n", "--", "@dash"),
		compare("empty file", "@empty"),
		compare("large file streaming", "@large"),
		compare("binary passthrough", "@binary"),
		compare("dev null operand", "/dev/null"),
		compareStdin("stdin empty", lit(""), "-"),
		compareStdin("double stdin operands", lit(stdinData), "-", "-"),
		compareStdin("stdin via -- then file", lit(stdinData), "--", "-", "@a"),
		compareStdin("double dash then dash", lit(stdinData), "--", "-"),
		compareStdin("mixed stdin and file numbering", lit("stdin first\nstdin second\n"), "-n", "-", "@a", "-"),
		compareStdin("stdin with option between dashes", lit("first\nsecond\n"), "-", "-n", "-"),
		compareStdin("multiple stdin operands with options", lit("a\nb\n"), "-n", "-", "-", "-"),
	)

	// Numbering and squeezing.
	cases = append(cases,
		compare("-n option", "-n", "@blank"),
		compare("-n across files", "-n", "@a", "@blank"),
		compare("-n large file", "-n", "@large"),
		compare("-b option", "-b", "@blank"),
		compare("-s option", "-s", "@blank"),
		compare("-s with no blanks", "-s", "@a"),
		compare("-n empty file", "-n", "@empty"),
		compare("-b empty file", "-b", "@empty"),
		compare("-s empty file", "-s", "@empty"),
		compareStdin("stdin numbered", lit(stdinData), "-n", "-"),
		compareStdin("stdin huge numbering", fromFile("huge"), "-n", "-"),
		compare("huge file numbering", "-n", "@huge"),
		compare("no newline + -n", "-n", "@no-newline"),
		compare("no newline + -b", "-b", "@no-newline"),
		compare("redundant -n flags", "-n", "-n", "@a"),
		compare("repeat -n", "-nn", "@blank"),
	)

	// Display flags.
	cases = append(cases,
		compare("-E option", "-E", "@blank"),
		compare("-E option large", "-E", "@large"),
		compare("-E option huge", "-E", "@huge"),
		compare("-E with tabs file", "-E", "@tabs"),
		compare("no newline + -E", "-E", "@no-newline"),
		compare("-T option (file)", "-T", "@tabs"),
		compareStdin("-T option (stdin)", fromFile("tabs"), "-T", "-"),
		compare("-T with no tabs", "-T", "@a"),
		compare("-v option", "-v", "@control"),
		compare("-v with tabs file", "-v", "@tabs"),
		compare("-A shortcut", "-A", "@control"),
		compare("-A with tabs file", "-A", "@tabs"),
		compare("-e shortcut", "-e", "@control"),
		compare("-e with no newline", "-e", "@no-newline"),
		compare("-t shortcut", "-t", "@tabs"),
		compareStdin("-t with tabs via stdin", fromFile("tabs"), "-t", "-"),
		compare("-u option", "-u", "@a"),
		compare("no newline + -A", "-A", "@no-newline"),
		compare("binary with -v", "-v", "@binary"),
		compare("binary with -A", "-A", "@binary"),
		compare("binary with -T", "-T", "@binary"),
		compare("binary with -E", "-E", "@binary"),
	)

	// Short-flag bundles and combinations.
	cases = append(cases,
		compare("-nET combo", "-nET", "@tabs"),
		compare("-EnT combo order", "-EnT", "@tabs"),
		compare("-nT combo", "-nT", "@tabs"),
		compare("bundled options -bnEs", "-bnEs", "@blank"),
		compare("-nb bundle", "-nb", "@blank"),
		compare("-bn bundle", "-bn", "@blank"),
		compare("-ns bundle", "-ns", "@blank"),
		compare("-sn bundle", "-sn", "@blank"),
		compare("-bs combo", "-b", "-s", "@blank"),
		compare("combo -ns across files", "-ns", "@a", "@blank"),
		compare("combo -nE", "-nE", "@blank"),
		compare("combo -bE", "-bE", "@blank"),
		compare("combo -bT", "-bT", "@tabs"),
		compare("combo -sE", "-sE", "@blank"),
		compare("combo -sT", "-sT", "@tabs"),
		compare("combo -A -s", "-As", "@blank"),
		compare("combo -e -s", "-e", "-s", "@blank"),
		compare("combo -t -s", "-t", "-s", "@blank"),
		compare("combo -e -t", "-e", "-t", "@tabs"),
		compare("combo -t -e", "-t", "-e", "@tabs"),
		compare("combo -e -n", "-e", "-n", "@blank"),
		compare("combo -t -n", "-t", "-n", "@tabs"),
		compare("combo -e -b", "-e", "-b", "@blank"),
		compare("combo -t -b", "-t", "-b", "@tabs"),
		compare("combo -u -n", "-u", "-n", "@blank"),
		compare("combo -u -b", "-u", "-b", "@blank"),
		compare("combo -u -s", "-u", "-s", "@blank"),
		compare("combo -u -v", "-u", "-v", "@control"),
		compare("combo -u --show-all", "-u", "--show-all", "@control"),
		compare("combo -nsvE", "-nsvE", "@control"),
		compare("combo -bsvE", "-bsvE", "@control"),
		compare("combo -A -n", "-A", "-n", "@control"),
		compare("combo -A -b", "-A", "-b", "@control"),
	)

	// Override ordering: numbering and squeezing flags interact, the
	// winner must match in both argument orders.
	cases = append(cases,
		compare("order -b then -n", "-b", "-n", "@blank"),
		compare("order -n then -b", "-n", "-b", "@blank"),
		compare("order -s then -n", "-s", "-n", "@blank"),
		compare("order -n then -s", "-n", "-s", "@blank"),
		compare("order -E then -T", "-E", "-T", "@tabs"),
		compare("order -T then -E", "-T", "-E", "@tabs"),
		compare("order --number then --number-nonblank", "--number", "--number-nonblank", "@blank"),
		compare("order --number-nonblank then --number", "--number-nonblank", "--number", "@blank"),
	)

	// Option parsing, "--" and operand disambiguation.
	cases = append(cases,
		compare("option-like operand after file", "@a", "@optlike"),
		compare("-- stops option parsing", "--", "@dashv"),
		compare("-- mid-argv parsing", "-n", "--", "-n", "@a"),
		compareStdin("stdin then option-like operand", lit(stdinData), "-", "@optlike"),
		compare("options after operand parsed", "@a", "-n"),
		compare("long option after operand", "@a", "--number"),
		compareStdin("double dash no operands", lit(stdinData), "--"),
		compare("-- then -n filename", "--", "@optlike"),
		compare("dash file before options", "--", "@dash", "-n"),
		compare("option permutation mixed", "@a", "-n", "@b", "--show-ends"),
		compareStdin("option permutation stdin", lit("stdin line 1\nstdin line 2\n"), "@a", "-", "-n", "@b"),
	)

	// Files whose names collide with option syntax.
	cases = append(cases,
		Case{
			Name:  "multiple -- markers",
			Op:    OpCompare,
			Files: map[string]string{"--": "double dash file\n"},
			Args:  []string{"--", "@a", "@--", "@b"},
		},
		Case{
			Name:  "literal dash filename",
			Op:    OpCompare,
			Files: map[string]string{"-": "dash literal\n"},
			Args:  []string{"--", "@-"},
		},
		Case{
			Name:  "file named --help with --",
			Op:    OpCompare,
			Files: map[string]string{"--help": "help file\n"},
			Args:  []string{"--", "@--help"},
		},
		Case{
			Name:  "file named --version with --",
			Op:    OpCompare,
			Files: map[string]string{"--version": "version file\n"},
			Args:  []string{"--", "@--version"},
		},
		Case{
			Name:  "file named --number with --",
			Op:    OpCompare,
			Files: map[string]string{"--number": "number file\n"},
			Args:  []string{"--", "@--number"},
		},
		Case{
			Name:  "file named --show-ends with --",
			Op:    OpCompare,
			Files: map[string]string{"--show-ends": "show ends file\n"},
			Args:  []string{"--", "@--show-ends"},
		},
		Case{
			Name:  "file named --show-tabs with --",
			Op:    OpCompare,
			Files: map[string]string{"--show-tabs": "show tabs file\n"},
			Args:  []string{"--", "@--show-tabs"},
		},
		Case{
			Name:  "file named --show-all with --",
			Op:    OpCompare,
			Files: map[string]string{"--show-all": "show all file\n"},
			Args:  []string{"--", "@--show-all"},
		},
		Case{
			Name:  "file named --show-nonprinting with --",
			Op:    OpCompare,
			Files: map[string]string{"--show-nonprinting": "show nonprinting file\n"},
			Args:  []string{"--", "@--show-nonprinting"},
		},
		Case{
			Name:  "file named --squeeze-blank with --",
			Op:    OpCompare,
			Files: map[string]string{"--squeeze-blank": "squeeze file\n"},
			Args:  []string{"--", "@--squeeze-blank"},
		},
		Case{
			Name:  "file named -e with --",
			Op:    OpCompare,
			Files: map[string]string{"-e": "dash e file\n"},
			Args:  []string{"--", "@-e"},
		},
		Case{
			Name:  "file named -A with --",
			Op:    OpCompare,
			Files: map[string]string{"-A": "dash A file\n"},
			Args:  []string{"--", "@-A"},
		},
		Case{
			Name:  "file named -- with -n",
			Op:    OpCompare,
			Files: map[string]string{"--": "double dash file\n"},
			Args:  []string{"-n", "--", "@--"},
		},
		Case{
			Name:  "file named --number with -n",
			Op:    OpCompare,
			Files: map[string]string{"--number": "number file\n"},
			Args:  []string{"-n", "--", "@--number"},
		},
		Case{
			Name:  "space in filename",
			Op:    OpCompare,
			Files: map[string]string{"space name.txt": "space\n"},
			Args:  []string{"@space name.txt"},
		},
	)

	// Long options.
	cases = append(cases,
		check("long options", checkLongOptions),
		compareStdin("long option stdin", lit(stdinData), "--number", "-"),
		compare("long option after -- is operand", "--", "--number", "@a"),
		compare("invalid long option", "--nope"),
		compare("invalid long option equals", "--number=1"),
		compare("unknown long option equals", "--nope=1"),
		compare("long option disallow arg", "--help=1"),
		compareStdin("--show-ends stdin", lit(stdinData), "--show-ends", "-"),
		compareStdin("--show-tabs stdin", fromFile("tabs"), "--show-tabs", "-"),
		compareStdin("--show-nonprinting stdin", fromFile("control"), "--show-nonprinting", "-"),
		compareStdin("--show-all stdin", fromFile("control"), "--show-all", "-"),
		compareStdin("--number-nonblank stdin", fromFile("blank"), "--number-nonblank", "-"),
		compareStdin("--squeeze-blank stdin", fromFile("blank"), "--squeeze-blank", "-"),
		compare("--number --show-ends", "--number", "--show-ends", "@blank"),
		compare("--number --show-tabs", "--number", "--show-tabs", "@tabs"),
		compare("--number --show-nonprinting", "--number", "--show-nonprinting", "@control"),
		compare("--number --show-all", "--number", "--show-all", "@control"),
		compare("--number-nonblank --show-ends", "--number-nonblank", "--show-ends", "@blank"),
		compare("--number-nonblank --show-tabs", "--number-nonblank", "--show-tabs", "@tabs"),
		compare("--number-nonblank --show-nonprinting", "--number-nonblank", "--show-nonprinting", "@control"),
		compare("--number-nonblank --show-all", "--number-nonblank", "--show-all", "@control"),
		compare("--squeeze-blank --number", "--squeeze-blank", "--number", "@blank"),
		compare("--squeeze-blank --number-nonblank", "--squeeze-blank", "--number-nonblank", "@blank"),
		compare("--squeeze-blank --show-ends", "--squeeze-blank", "--show-ends", "@blank"),
		compare("--squeeze-blank --show-tabs", "--squeeze-blank", "--show-tabs", "@tabs"),
		compare("--squeeze-blank --show-nonprinting", "--squeeze-blank", "--show-nonprinting", "@control"),
		compare("--squeeze-blank --show-all", "--squeeze-blank", "--show-all", "@control"),
		compare("long combo --show-nonprinting --show-ends", "--show-nonprinting", "--show-ends", "@control"),
		compare("long combo --show-nonprinting --show-tabs", "--show-nonprinting", "--show-tabs", "@control"),
		compare("long combo --show-all --number", "--show-all", "--number", "@control"),
		compare("long combo --show-all --number-nonblank", "--show-all", "--number-nonblank", "@control"),
		compare("long combo --show-tabs --number", "--show-tabs", "--number", "@tabs"),
		compareStdin("stdin + file --number", lit(stdinData), "--number", "-", "@a"),
		compareStdin("stdin + file --number-nonblank", fromFile("blank"), "--number-nonblank", "-", "@a"),
		compareStdin("stdin + file --show-ends", lit(stdinData), "--show-ends", "-", "@a"),
		compareStdin("stdin + file --show-tabs", fromFile("tabs"), "--show-tabs", "-", "@a"),
		compareStdin("stdin + file --show-nonprinting", fromFile("control"), "--show-nonprinting", "-", "@a"),
		compareStdin("stdin + file --show-all", fromFile("control"), "--show-all", "-", "@a"),
		compareStdin("file stdin file --number", lit("stdin line 1\nstdin line 2\n"), "--number", "@a", "-", "@b"),
		compareStdin("file stdin file --number-nonblank", lit("\nstdin\n\n"), "--number-nonblank", "@a", "-", "@b"),
		compareStdin("file stdin file --squeeze-blank", lit("line1\n\n\nline2\n"), "--squeeze-blank", "@a", "-", "@b"),
		compareStdin("file stdin file --show-ends", lit("stdin\n"), "--show-ends", "@a", "-", "@b"),
		compareStdin("file stdin file --show-tabs", fromFile("tabs"), "--show-tabs", "@a", "-", "@b"),
		compareStdin("file stdin file --show-all", fromFile("control"), "--show-all", "@a", "-", "@b"),
		compareStdin("double stdin --number", lit(stdinData), "--number", "-", "-"),
		compare("--show-nonprinting binary", "--show-nonprinting", "@binary"),
		compare("--show-all binary", "--show-all", "@binary"),
		compare("--show-tabs with no tabs", "--show-tabs", "@a"),
		compare("--show-ends no newline file", "--show-ends", "@no-newline"),
		compare("--number empty file", "--number", "@empty"),
		compare("--number-nonblank empty file", "--number-nonblank", "@empty"),
		compare("--squeeze-blank empty file", "--squeeze-blank", "@empty"),
		compare("--show-all empty file", "--show-all", "@empty"),
		compare("--show-nonprinting empty file", "--show-nonprinting", "@empty"),
		compare("--show-ends with -n", "--show-ends", "-n", "@blank"),
		compare("--show-tabs with -n", "--show-tabs", "-n", "@tabs"),
		compare("--show-nonprinting with -n", "--show-nonprinting", "-n", "@control"),
		compare("--show-all with -n", "--show-all", "-n", "@control"),
		compare("--show-ends with -b", "--show-ends", "-b", "@blank"),
		compare("--show-tabs with -b", "--show-tabs", "-b", "@tabs"),
		compare("--show-nonprinting with -b", "--show-nonprinting", "-b", "@control"),
		compare("--show-all with -b", "--show-all", "-b", "@control"),
		compare("-s with --number", "-s", "--number", "@blank"),
		compare("-s with --number-nonblank", "-s", "--number-nonblank", "@blank"),
		compare("-s with --show-ends", "-s", "--show-ends", "@blank"),
		compare("-s with --show-tabs", "-s", "--show-tabs", "@tabs"),
		compare("-s with --show-nonprinting", "-s", "--show-nonprinting", "@control"),
		compare("-s with --show-all", "-s", "--show-all", "@control"),
	)

	// Redundant long/short pairs must collapse to the same behavior.
	cases = append(cases,
		compare("redundant --number -n", "--number", "-n", "@blank"),
		compare("redundant --number-nonblank -b", "--number-nonblank", "-b", "@blank"),
		compare("redundant --squeeze-blank -s", "--squeeze-blank", "-s", "@blank"),
		compare("redundant --show-ends -E", "--show-ends", "-E", "@blank"),
		compare("redundant --show-tabs -T", "--show-tabs", "-T", "@tabs"),
		compare("redundant --show-nonprinting -v", "--show-nonprinting", "-v", "@control"),
		compare("redundant --show-all -A", "--show-all", "-A", "@control"),
		compare("redundant --show-ends --show-ends", "--show-ends", "--show-ends", "@blank"),
	)

	// Error paths: the exact diagnostic wording comes from the oracle,
	// never from expectations baked into the suite.
	cases = append(cases,
		compare("missing file error", "@scratch/missing.txt"),
		compare("missing among files", "@a", "@scratch/missing.txt", "@b"),
		compare("missing file with -n", "-n", "@scratch/missing_numbered.txt"),
		compare("missing file with -v among files", "-v", "@a", "@scratch/missing_visible.txt", "@b"),
		compare("bad option error", "-x"),
		compare("bad option bundle", "-nZ"),
		compare("directory operand error", "@dir"),
		compare("directory operand with -n", "-n", "@dir"),
		compare("directory operand with -v", "-v", "@dir"),
		compare("directory operand with -E", "-E", "@dir"),
		compare("very long path ENAMETOOLONG", "@scratch/"+strings.Repeat("a", 5000)),
		Case{
			Name:  "ENOTDIR path",
			Op:    OpCompare,
			Files: map[string]string{"notdir": "data"},
			Args:  []string{"@notdir/child"},
		},
		Case{
			Name: "ELOOP symlink",
			Op:   OpCompare,
			Links: map[string]string{
				"loop_a": "@scratch/loop_b",
				"loop_b": "@scratch/loop_a",
			},
			Args: []string{"@loop_a"},
		},
		check("ENOENT vs EACCES messaging", checkEnoentVsEacces),
	)

	// Line state must carry across operands, including numbering after a
	// file without a trailing newline.
	cases = append(cases,
		Case{
			Name: "line state across files",
			Op:   OpCompare,
			Files: map[string]string{
				"no_newline_boundary.txt": "first",
				"newline_boundary.txt":    "second\n",
			},
			Args: []string{"-n", "@no_newline_boundary.txt", "@newline_boundary.txt"},
		},
		Case{
			Name: "squeeze across files",
			Op:   OpCompare,
			Files: map[string]string{
				"blank_a.txt": "line1\n\n",
				"blank_b.txt": "\n\nline2\n",
			},
			Args: []string{"-s", "@blank_a.txt", "@blank_b.txt"},
		},
		Case{
			Name: "number nonblank across files",
			Op:   OpCompare,
			Files: map[string]string{
				"nonblank_a.txt": "line1\n\n",
				"nonblank_b.txt": "\nline2\n",
			},
			Args: []string{"-b", "@nonblank_a.txt", "@nonblank_b.txt"},
		},
		Case{
			Name: "squeeze + no newline boundary",
			Op:   OpCompare,
			Files: map[string]string{
				"squeeze_a.txt": "line1\n\n",
				"squeeze_b.txt": "\nline2",
			},
			Args: []string{"-s", "@squeeze_a.txt", "@squeeze_b.txt"},
		},
		Case{
			Name: "squeeze across three files",
			Op:   OpCompare,
			Files: map[string]string{
				"sq3_a.txt": "line1\n\n",
				"sq3_b.txt": "\n\nline2\n",
				"sq3_c.txt": "\n\nline3\n",
			},
			Args: []string{"-s", "@sq3_a.txt", "@sq3_b.txt", "@sq3_c.txt"},
		},
		Case{
			Name:  "number across empty then data",
			Op:    OpCompare,
			Files: map[string]string{"empty_then_data.txt": ""},
			Args:  []string{"-n", "@empty_then_data.txt", "@a"},
		},
		Case{
			Name:  "number-nonblank across empty then data",
			Op:    OpCompare,
			Files: map[string]string{"empty_then_data_b.txt": ""},
			Args:  []string{"-b", "@empty_then_data_b.txt", "@a"},
		},
		Case{
			Name:  "squeeze across empty then blank",
			Op:    OpCompare,
			Files: map[string]string{"empty_then_blank.txt": ""},
			Args:  []string{"-s", "@empty_then_blank.txt", "@blank"},
		},
		compare("show-ends across no-newline then file", "-E", "@no-newline", "@b"),
		compare("number across no-newline then file", "-n", "@no-newline", "@b"),
		compare("number-nonblank across no-newline then file", "-b", "@no-newline", "@b"),
	)

	// Raw-byte display coverage: every class of byte the visibility
	// transforms treat specially.
	cases = append(cases,
		Case{
			Name:  "visible DEL",
			Op:    OpCompare,
			Files: map[string]string{"del.txt": "del:\x7f!\n"},
			Args:  []string{"-v", "@del.txt"},
		},
		Case{
			Name:  "visible CR",
			Op:    OpCompare,
			Files: map[string]string{"cr.txt": "carriage\rreturn\n"},
			Args:  []string{"-v", "@cr.txt"},
		},
		Case{
			Name:  "visible NUL",
			Op:    OpCompare,
			Files: map[string]string{"nul.txt": "nul:\x00x\n"},
			Args:  []string{"-v", "@nul.txt"},
		},
		Case{
			Name:  "visible 0xFF",
			Op:    OpCompare,
			Files: map[string]string{"ff.txt": "ff:\xff!\n"},
			Args:  []string{"-v", "@ff.txt"},
		},
		Case{
			Name:  "visible formfeed",
			Op:    OpCompare,
			Files: map[string]string{"formfeed.txt": "form\x0cfeed\n"},
			Args:  []string{"-v", "@formfeed.txt"},
		},
		Case{
			Name:  "utf8 bytes -v",
			Op:    OpCompare,
			Files: map[string]string{"utf8_v.txt": "caf\xc3\xa9\n"},
			Args:  []string{"-v", "@utf8_v.txt"},
		},
		Case{
			Name:  "nul file -A",
			Op:    OpCompare,
			Files: map[string]string{"nul_a.txt": "nul\x00end\n"},
			Args:  []string{"-A", "@nul_a.txt"},
		},
		Case{
			Name:  "tabs + control -A",
			Op:    OpCompare,
			Files: map[string]string{"tabs_control.txt": "tab\t\x01\n"},
			Args:  []string{"-A", "@tabs_control.txt"},
		},
		Case{
			Name:  "crlf file -E",
			Op:    OpCompare,
			Files: map[string]string{"crlf_e.txt": "one\r\ntwo\r\n"},
			Args:  []string{"-E", "@crlf_e.txt"},
		},
		Case{
			Name:  "crlf file -v",
			Op:    OpCompare,
			Files: map[string]string{"crlf_v.txt": "one\r\ntwo\r\n"},
			Args:  []string{"-v", "@crlf_v.txt"},
		},
		Case{
			Name:  "crlf file -A",
			Op:    OpCompare,
			Files: map[string]string{"crlf_a.txt": "one\r\ntwo\r\n"},
			Args:  []string{"-A", "@crlf_a.txt"},
		},
		Case{
			Name:  "tabs without newline -T",
			Op:    OpCompare,
			Files: map[string]string{"tabs_no_nl.txt": "a\tb"},
			Args:  []string{"-T", "@tabs_no_nl.txt"},
		},
		Case{
			Name:  "tabs without newline -A",
			Op:    OpCompare,
			Files: map[string]string{"tabs_no_nl_a.txt": "a\tb"},
			Args:  []string{"-A", "@tabs_no_nl_a.txt"},
		},
		Case{
			Name:  "trailing spaces -E",
			Op:    OpCompare,
			Files: map[string]string{"trail_spaces.txt": "space  \t \nnext line  \n"},
			Args:  []string{"-E", "@trail_spaces.txt"},
		},
		Case{
			Name:  "only tabs -T",
			Op:    OpCompare,
			Files: map[string]string{"only_tabs.txt": "\t\t\n\tend\n"},
			Args:  []string{"-T", "@only_tabs.txt"},
		},
		Case{
			Name:  "tabs + blanks -sT",
			Op:    OpCompare,
			Files: map[string]string{"tabs_blanks.txt": "\n\n\tcol\n\n\n"},
			Args:  []string{"-sT", "@tabs_blanks.txt"},
		},
		Case{
			Name:  "leading blanks -b",
			Op:    OpCompare,
			Files: map[string]string{"leading_blanks.txt": "\n\nstart\n\nend\n"},
			Args:  []string{"-b", "@leading_blanks.txt"},
		},
		Case{
			Name:  "only newlines file -s",
			Op:    OpCompare,
			Files: map[string]string{"only_newlines.txt": "\n\n\n\n"},
			Args:  []string{"-s", "@only_newlines.txt"},
		},
		Case{
			Name:  "only newlines file -b",
			Op:    OpCompare,
			Files: map[string]string{"only_newlines_b.txt": "\n\n\n\n"},
			Args:  []string{"-b", "@only_newlines_b.txt"},
		},
		Case{
			Name:  "only newlines file -n",
			Op:    OpCompare,
			Files: map[string]string{"only_newlines_n.txt": "\n\n\n\n"},
			Args:  []string{"-n", "@only_newlines_n.txt"},
		},
		compareStdin("stdin only newlines -s", lit("\n\n\n\n"), "-s", "-"),
		compareStdin("stdin only newlines -b", lit("\n\n\n"), "-b", "-"),
		compareStdin("stdin only newlines -n", lit("\n\n\n"), "-n", "-"),
		compareStdin("stdin only newlines --number-nonblank", lit("\n\n\n"), "--number-nonblank", "-"),
		compareStdin("stdin only newlines --show-ends", lit("\n\n\n"), "--show-ends", "-"),
		compareStdin("stdin empty with -n", lit(""), "-n", "-"),
		compareStdin("stdin -A tabs", fromFile("tabs"), "-A", "-"),
		compareStdin("stdin -A control", fromFile("control"), "-A", "-"),
		compareStdin("stdin -b blanks", fromFile("blank"), "-b", "-"),
		compareStdin("stdin -nE blanks", fromFile("blank"), "-nE", "-"),
		compareStdin("stdin -bE blanks", fromFile("blank"), "-bE", "-"),
		compareStdin("stdin -sE blanks", fromFile("blank"), "-sE", "-"),
		compareStdin("stdin -v binary", fromFile("binary"), "-v", "-"),
		compareStdin("stdin --show-ends no newline", fromFile("no-newline"), "--show-ends", "-"),
	)

	// Filesystem shapes: symlinks, hardlinks, named pipes.
	cases = append(cases,
		Case{
			Name:  "symlink to file",
			Op:    OpCompare,
			Links: map[string]string{"link_to_a.txt": "@a"},
			Args:  []string{"@link_to_a.txt"},
		},
		Case{
			Name:  "symlink to directory",
			Op:    OpCompare,
			Links: map[string]string{"link_to_dir": "@dir"},
			Args:  []string{"@link_to_dir"},
		},
		Case{
			Name:  "symlink chain",
			Op:    OpCompare,
			Files: map[string]string{"chain_target.txt": "chain target\n"},
			Links: map[string]string{
				"chain_link1": "@chain_target.txt",
				"chain_link2": "@chain_link1",
			},
			Args: []string{"@chain_link2"},
		},
		Case{
			Name:  "relative symlink",
			Op:    OpCompare,
			Files: map[string]string{"rel_dir/rel_target.txt": "relative\n"},
			Links: map[string]string{"rel_link.txt": "rel_dir/rel_target.txt"},
			Args:  []string{"@rel_link.txt"},
		},
		check("hardlink to file", checkHardlink),
	)

	// FIFO operands: the whole payload is visible before the reader
	// starts in these, so plain differential comparison applies.
	cases = append(cases,
		Case{
			Name:       "plain stdout fifo fast path",
			Op:         OpFifo,
			Args:       []string{"@fifo"},
			ChunksFrom: []string{"large"},
		},
		Case{
			Name:       "-n fifo fast path",
			Op:         OpFifo,
			Args:       []string{"-n", "@fifo"},
			ChunksFrom: []string{"large"},
		},
		Case{
			Name:       "-v fifo fast path",
			Op:         OpFifo,
			Args:       []string{"-v", "@fifo"},
			ChunksFrom: []string{"control"},
		},
		Case{
			Name:       "-T fifo fast path",
			Op:         OpFifo,
			Args:       []string{"-T", "@fifo"},
			ChunksFrom: []string{"tabs"},
		},
		Case{
			Name:   "fifo decorated -vE",
			Op:     OpFifo,
			Args:   []string{"-vE", "@fifo"},
			Chunks: []string{"line1\n\nline2\tend\n"},
		},
		Case{
			Name:   "fifo squeeze blank",
			Op:     OpFifo,
			Args:   []string{"-s", "@fifo"},
			Chunks: []string{"one\n\n\n\nthree\n"},
		},
		Case{
			Name:   "fifo show ends",
			Op:     OpFifo,
			Args:   []string{"-E", "@fifo"},
			Chunks: []string{"one\n\n"},
		},
		Case{
			Name:   "fifo numbered show ends",
			Op:     OpFifo,
			Args:   []string{"-nE", "@fifo"},
			Chunks: []string{"one\n\n"},
		},
		Case{
			Name:   "fifo number nonblank",
			Op:     OpFifo,
			Args:   []string{"-b", "@fifo"},
			Chunks: []string{"one\n\nthree\n"},
		},
		Case{
			Name:   "fifo show all",
			Op:     OpFifo,
			Args:   []string{"-A", "@fifo"},
			Chunks: []string{"tab\t\x01\n"},
		},
		Case{
			Name:   "fifo show tabs and ends",
			Op:     OpFifo,
			Args:   []string{"-ET", "@fifo"},
			Chunks: []string{"one\tend\n\n"},
		},
		check("fifo streaming", checkFifoStreaming),
	)

	// Bundled short flags must behave exactly like the separated form.
	cases = append(cases,
		check("bundled equals separated -nb", checkBundleEquivalence("-nb", []string{"-n", "-b"}, "blank")),
		check("bundled equals separated -bn", checkBundleEquivalence("-bn", []string{"-b", "-n"}, "blank")),
		check("bundled equals separated -ET", checkBundleEquivalence("-ET", []string{"-E", "-T"}, "tabs")),
		check("bundled equals separated -TE", checkBundleEquivalence("-TE", []string{"-T", "-E"}, "tabs")),
		check("bundled equals separated -nsvE", checkBundleEquivalence("-nsvE", []string{"-n", "-s", "-v", "-E"}, "control")),
	)

	// Process-level behavior and stress.
	cases = append(cases,
		check("repeated invocation deterministic", checkDeterminism),
		check("--help switch", checkHelpOutput),
		check("--version switch", checkVersionOutput),
		check("--help stdout closed", checkHelpStdoutClosed),
		check("broken pipe write error", checkBrokenPipe),
		check("binary passthrough pipe", checkLargeBinaryPassthrough),
		check("large line numbers", checkLargeLineNumbers),
		checkLongLineCase(),
		check("process asm keeps comment-only lines", checkAsmCommentPreservation),
	)

	return cases
}

// checkLongLineCase builds the single-line stress input at registration
// time so the descriptor stays a value.
func checkLongLineCase() Case {
	return Case{
		Name:  "long line no newline -n",
		Op:    OpCompare,
		Files: map[string]string{"long_line.txt": strings.Repeat("x", 600_000)},
		Args:  []string{"-n", "@long_line.txt"},
	}
}

// checkLongOptions compares every long flag against the fixture that
// makes it observable.
func checkLongOptions(ctx context.Context, env *Env) error {
	pairs := []struct {
		flag    string
		fixture string
	}{
		{"--number", "blank"},
		{"--number-nonblank", "blank"},
		{"--squeeze-blank", "blank"},
		{"--show-ends", "blank"},
		{"--show-tabs", "tabs"},
		{"--show-nonprinting", "control"},
		{"--show-all", "control"},
	}
	for _, p := range pairs {
		if err := env.Comparator.Compare(ctx, []string{p.flag, env.Fixtures.Path(p.fixture)}, nil); err != nil {
			return fmt.Errorf("%s: %w", p.flag, err)
		}
	}
	return nil
}

// checkDeterminism runs the same subject invocation twice and requires
// byte-identical results: same argv, same fixture, same output, in pipe
// mode and in file-redirected mode.
func checkDeterminism(ctx context.Context, env *Env) error {
	stdin, err := env.Fixtures.Bytes(FixtureControl)
	if err != nil {
		return err
	}
	invocations := []Command{
		env.Comparator.SubjectCommand([]string{"-A", env.Fixtures.Path("control")}, nil),
		env.Comparator.SubjectCommand([]string{"-n", "-"}, stdin),
	}
	for _, spec := range invocations {
		first, err := env.Runner.Run(ctx, spec)
		if err != nil {
			return err
		}
		second, err := env.Runner.Run(ctx, spec)
		if err != nil {
			return err
		}
		if !bytes.Equal(first.Stdout, second.Stdout) ||
			!bytes.Equal(first.Stderr, second.Stderr) ||
			first.ExitCode != second.ExitCode {
			return fmt.Errorf("repeated run of args %q diverged", spec.Args)
		}

		firstPath := filepath.Join(env.CaseDir, "first.out")
		secondPath := filepath.Join(env.CaseDir, "second.out")
		if _, err := env.Runner.RunToFile(ctx, spec, firstPath); err != nil {
			return err
		}
		if _, err := env.Runner.RunToFile(ctx, spec, secondPath); err != nil {
			return err
		}
		firstBytes, err := os.ReadFile(firstPath)
		if err != nil {
			return err
		}
		secondBytes, err := os.ReadFile(secondPath)
		if err != nil {
			return err
		}
		if !bytes.Equal(firstBytes, secondBytes) {
			return fmt.Errorf("repeated file-redirected run of args %q diverged", spec.Args)
		}
	}
	return nil
}

// checkHelpOutput requires --help to succeed and print usage to stdout.
// The text itself is implementation-defined and not compared.
func checkHelpOutput(ctx context.Context, env *Env) error {
	out, err := env.Runner.Run(ctx, Command{Path: env.Comparator.Subject(), Args: []string{"--help"}})
	if err != nil {
		return err
	}
	if out.ExitCode != 0 {
		return fmt.Errorf("--help exited %d, stderr: %s", out.ExitCode, out.Stderr)
	}
	if len(out.Stdout) == 0 {
		return errors.New("--help printed nothing to stdout")
	}
	if len(out.Stderr) != 0 {
		return fmt.Errorf("--help wrote to stderr: %q", out.Stderr)
	}
	return nil
}

// checkVersionOutput requires --version to succeed with a single
// newline-terminated identification on stdout.
func checkVersionOutput(ctx context.Context, env *Env) error {
	out, err := env.Runner.Run(ctx, Command{Path: env.Comparator.Subject(), Args: []string{"--version"}})
	if err != nil {
		return err
	}
	if out.ExitCode != 0 {
		return fmt.Errorf("--version exited %d, stderr: %s", out.ExitCode, out.Stderr)
	}
	if len(out.Stdout) == 0 || out.Stdout[len(out.Stdout)-1] != '\n' {
		return fmt.Errorf("--version stdout not newline-terminated: %q", out.Stdout)
	}
	return nil
}

// checkHelpStdoutClosed runs --help with stdout redirected to /dev/null;
// the subject must still exit cleanly when its output goes nowhere.
func checkHelpStdoutClosed(ctx context.Context, env *Env) error {
	code, err := env.Runner.RunToFile(ctx, Command{Path: env.Comparator.Subject(), Args: []string{"--help"}}, os.DevNull)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("--help with discarded stdout exited %d", code)
	}
	return nil
}

// checkBrokenPipe verifies both executables terminate the same way when
// their stdout pipe reader vanishes mid-stream.
func checkBrokenPipe(ctx context.Context, env *Env) error {
	got, err := pipelineExit(ctx, env.Comparator.Subject(), env.Comparator.Oracle())
	if err != nil {
		return err
	}
	want, err := pipelineExit(ctx, env.Comparator.Oracle(), "")
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("broken pipe exit mismatch: subject %d, reference %d", got, want)
	}
	return nil
}

// pipelineExit spawns path reading stdin into a `head -n0` consumer that
// exits without reading, then keeps feeding stdin until the writer dies.
// Returns the producer's exit code (-1 for a signal death).
func pipelineExit(ctx context.Context, path, arg0 string) (int, error) {
	producer := exec.CommandContext(ctx, path, "-")
	if arg0 != "" {
		producer.Args[0] = arg0
	}

	stdin, err := producer.StdinPipe()
	if err != nil {
		return 0, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := producer.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("stdout pipe: %w", err)
	}

	consumer := exec.CommandContext(ctx, "head", "-n0")
	consumer.Stdin = stdout

	if err := producer.Start(); err != nil {
		return 0, fmt.Errorf("spawn producer %s: %w", path, err)
	}
	err = consumer.Start()
	// Drop the parent's copy of the read end; only the consumer may hold
	// it, otherwise the producer never sees a broken pipe.
	_ = stdout.Close()
	if err != nil {
		_ = producer.Process.Kill()
		_ = producer.Wait()
		return 0, fmt.Errorf("spawn consumer: %w", err)
	}
	if err := consumer.Wait(); err != nil {
		return 0, fmt.Errorf("wait for consumer: %w", err)
	}

	// The consumer is gone; every flushed write from here on raises
	// SIGPIPE in the producer.
	payload := bytes.Repeat([]byte("broken pipe payload\n"), 4096)
	for {
		if _, werr := stdin.Write(payload); werr != nil {
			break
		}
	}
	_ = stdin.Close()

	waitErr := producer.Wait()
	if waitErr == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, fmt.Errorf("wait for producer %s: %w", path, waitErr)
}

// checkEnoentVsEacces compares the diagnostics for a missing file and an
// unreadable one; the two must stay distinguishable the same way the
// reference distinguishes them.
func checkEnoentVsEacces(ctx context.Context, env *Env) error {
	missing := filepath.Join(env.CaseDir, "definitely_missing.txt")
	if err := env.Comparator.Compare(ctx, []string{missing}, nil); err != nil {
		return fmt.Errorf("missing file: %w", err)
	}

	locked := filepath.Join(env.CaseDir, "locked.txt")
	if err := os.WriteFile(locked, []byte("secret\n"), 0o644); err != nil {
		return fmt.Errorf("write locked fixture: %w", err)
	}
	if err := os.Chmod(locked, 0); err != nil {
		return fmt.Errorf("lock fixture: %w", err)
	}
	defer os.Chmod(locked, 0o644)

	if err := env.Comparator.Compare(ctx, []string{locked}, nil); err != nil {
		return fmt.Errorf("unreadable file: %w", err)
	}
	return nil
}

// checkHardlink compares reading through a hard link.
func checkHardlink(ctx context.Context, env *Env) error {
	link := filepath.Join(env.CaseDir, "hardlink_b.txt")
	if err := os.Link(env.Fixtures.Path("b"), link); err != nil {
		return fmt.Errorf("create hardlink: %w", err)
	}
	return env.Comparator.Compare(ctx, []string{link}, nil)
}

// checkFifoStreaming delivers two chunks through a FIFO with a real gap
// between them and requires the subject to emit exactly their
// concatenation in arrival order, then cross-checks against the
// reference in both capture modes.
func checkFifoStreaming(ctx context.Context, env *Env) error {
	fifo := filepath.Join(env.CaseDir, "stream.fifo")
	if err := Mkfifo(fifo); err != nil {
		return err
	}
	chunks := [][]byte{[]byte("chunk1\n"), []byte("chunk2\n")}
	delay := 50 * time.Millisecond

	out, err := env.Runner.RunFifo(ctx, env.Comparator.SubjectCommand([]string{fifo}, nil), fifo, chunks, delay)
	if err != nil {
		return err
	}
	if out.ExitCode != 0 {
		return fmt.Errorf("streaming read exited %d, stderr: %s", out.ExitCode, out.Stderr)
	}
	if want := []byte("chunk1\nchunk2\n"); !bytes.Equal(out.Stdout, want) {
		return fmt.Errorf("streamed chunks not concatenated in arrival order: got %q, want %q", out.Stdout, want)
	}

	return env.Comparator.CompareFifo(ctx, []string{fifo}, fifo, chunks, delay)
}

// checkBundleEquivalence requires a bundled short-flag token and its
// separated spelling to produce identical results from the same
// executable, for the subject and for the reference.
func checkBundleEquivalence(bundled string, separated []string, fixture string) CheckFunc {
	return func(ctx context.Context, env *Env) error {
		path := env.Fixtures.Path(fixture)
		execs := []struct {
			label string
			path  string
			arg0  string
		}{
			{"subject", env.Comparator.Subject(), env.Comparator.Oracle()},
			{"reference", env.Comparator.Oracle(), ""},
		}
		for _, e := range execs {
			one, err := env.Runner.Run(ctx, Command{Path: e.path, Args: []string{bundled, path}, Arg0: e.arg0})
			if err != nil {
				return err
			}
			many, err := env.Runner.Run(ctx, Command{Path: e.path, Args: append(slices.Clone(separated), path), Arg0: e.arg0})
			if err != nil {
				return err
			}
			if !bytes.Equal(one.Stdout, many.Stdout) || !bytes.Equal(one.Stderr, many.Stderr) || one.ExitCode != many.ExitCode {
				return fmt.Errorf("%s: %s differs from %v", e.label, bundled, separated)
			}
		}
		return nil
	}
}

// checkLargeBinaryPassthrough streams 2 MiB of random bytes through
// stdin, well past any internal buffer size.
func checkLargeBinaryPassthrough(ctx context.Context, env *Env) error {
	payload := make([]byte, 2<<20)
	if _, err := rand.Read(payload); err != nil {
		return fmt.Errorf("generate payload: %w", err)
	}
	return env.Comparator.Compare(ctx, []string{"-"}, payload)
}

// checkLargeLineNumbers numbers a million-line file, pushing the line
// counter past fixed-width formatting assumptions.
func checkLargeLineNumbers(ctx context.Context, env *Env) error {
	const lines = 1_000_005
	path := filepath.Join(env.CaseDir, "million_lines.txt")
	if err := os.WriteFile(path, bytes.Repeat([]byte("x\n"), lines), 0o644); err != nil {
		return fmt.Errorf("write million-line fixture: %w", err)
	}
	return env.Comparator.Compare(ctx, []string{"-n", path}, nil)
}

// checkAsmCommentPreservation guards the source-processing step the
// published subject is built from: comment-only lines survive, trailing
// comments are stripped.
func checkAsmCommentPreservation(_ context.Context, env *Env) error {
	src := filepath.Join(env.CaseDir, "sample.asm")
	content := ";only comment\nmov rax, rbx ; trailing\n  ; indented comment\nlabel: nop\n"
	if err := os.WriteFile(src, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write sample: %w", err)
	}

	dest := filepath.Join(env.CaseDir, "out", "sample.asm")
	if err := asmproc.ProcessFile(src, dest); err != nil {
		return err
	}

	processed, err := os.ReadFile(dest)
	if err != nil {
		return fmt.Errorf("read processed sample: %w", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(processed), "\n"), "\n")
	if len(lines) != 4 {
		return fmt.Errorf("expected 4 lines, got %d", len(lines))
	}
	if strings.TrimLeft(lines[0], " \t") != ";only comment" {
		return errors.New("comment-only line removed")
	}
	if !strings.Contains(lines[1], "mov rax, rbx") || strings.Contains(lines[1], ";") {
		return errors.New("trailing comment not stripped correctly")
	}
	if strings.TrimLeft(lines[2], " \t") != "; indented comment" {
		return errors.New("indented comment line lost")
	}
	return nil
}
