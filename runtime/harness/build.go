package harness

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// EnsureBuilt reassembles and links the subject when its source is newer
// than the existing binary (or the binary/object file is missing). The
// build toolchain is an external collaborator; its failures surface with
// the captured tool output.
func EnsureBuilt(cfg Config, subject, source string) error {
	srcInfo, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("stat subject source %s: %w", source, err)
	}

	object := strings.TrimSuffix(source, filepath.Ext(source)) + ".o"

	rebuild := false
	binInfo, err := os.Stat(subject)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		rebuild = true
	case err != nil:
		return fmt.Errorf("stat subject binary %s: %w", subject, err)
	case srcInfo.ModTime().After(binInfo.ModTime()):
		rebuild = true
	}
	if _, err := os.Stat(object); errors.Is(err, fs.ErrNotExist) {
		rebuild = true
	}

	if !rebuild {
		return nil
	}

	fmt.Fprintln(cfg.out(), "[build] assembling subject")

	subjectAbs, err := filepath.Abs(subject)
	if err != nil {
		return fmt.Errorf("resolve subject path: %w", err)
	}

	dir := filepath.Dir(source)
	if err := runTool(dir, "nasm", "-f", "elf64", filepath.Base(source), "-o", filepath.Base(object)); err != nil {
		return err
	}
	return runTool(dir, "ld", "-o", subjectAbs, filepath.Base(object))
}

func runTool(dir string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%s %q failed: %w: %s", name, args, err, msg)
		}
		return fmt.Errorf("%s %q failed: %w", name, args, err)
	}
	return nil
}
