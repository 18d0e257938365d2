// Package asmproc rewrites NASM sources with trailing comments stripped
// while keeping comment-only lines intact, so annotated sources stay
// diffable against their published form.
package asmproc

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ProcessTree walks root for .asm files and writes processed copies
// under outDir, mirroring the relative layout. outDir itself is skipped
// when it sits inside root.
func ProcessTree(root, outDir string, report func(rel string)) error {
	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if abs, aerr := filepath.Abs(path); aerr == nil && abs == absOut {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".asm" {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		if err := ProcessFile(path, filepath.Join(outDir, rel)); err != nil {
			return err
		}
		if report != nil {
			report(rel)
		}
		return nil
	})
}

// ProcessFile strips trailing comments from src and writes the result to
// dest, creating parent directories as needed. A line whose first
// non-blank character is ';' is a comment-only line and passes through
// unchanged; any other line is cut at its first ';' and right-trimmed.
// Every emitted line ends in a single newline.
func ProcessFile(src, dest string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}

	var out strings.Builder
	out.Grow(len(content))
	for _, line := range splitLines(string(content)) {
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), ";") {
			out.WriteString(strings.TrimRight(line, "\r\n"))
			out.WriteByte('\n')
			continue
		}
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		out.WriteString(strings.TrimRight(line, " \t\r\n"))
		out.WriteByte('\n')
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create output dir for %s: %w", dest, err)
	}
	if err := os.WriteFile(dest, []byte(out.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

// splitLines splits on '\n' without treating a trailing newline as an
// extra empty line.
func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
