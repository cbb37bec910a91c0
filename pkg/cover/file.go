// Copyright 2024 syzkaller project authors. All rights reserved.
// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package cover

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sbfcov/sbfcov/pkg/sbf"
)

const AnnotatedExt = ".annotated"

type lineRender func(string, bool, int, int) string

// RendFileCoverage returns the source file with every line prefixed by its hit count.
func RendFileCoverage(filePath string, counts *FileLineCounts, render lineRender) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read %v: %w", filePath, err)
	}
	return rendResult(string(content), filePath, counts, render), nil
}

func rendResult(content, filePath string, counts *FileLineCounts, render lineRender) string {
	srclines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	var lines []string
	for i, srcLine := range srclines {
		lineNum := i + 1
		covered, instrumented := counts.Count(filePath, uint32(lineNum))
		lines = append(lines, render(srcLine, instrumented, covered, lineNum))
	}
	return strings.Join(lines, "\n")
}

// RendTextLine renders a line in the gcov-like text form: hit count, line number, code.
// Lines without instructions have no count.
func RendTextLine(code string, instrumented bool, covered, num int) string {
	covStr := fmt.Sprintf("%6d", covered)
	if !instrumented {
		covStr = strings.Repeat(" ", 6)
	} else if covered == 0 {
		covStr = " #####"
	}
	return fmt.Sprintf("%s %6d %s", covStr, num, code)
}

// WriteAnnotated renders all files of counts one after another.
func WriteAnnotated(w io.Writer, counts *FileLineCounts) error {
	bw := bufio.NewWriter(w)
	for _, file := range counts.Files() {
		text, err := RendFileCoverage(file, counts, RendTextLine)
		if err != nil {
			return err
		}
		fmt.Fprintf(bw, "==> %v <==\n%v\n\n", file, text)
	}
	return bw.Flush()
}

func WriteAnnotatedFile(tracePath string, counts *FileLineCounts) (string, error) {
	return writeFile(sbf.WithExt(tracePath, AnnotatedExt), func(w io.Writer) error {
		return WriteAnnotated(w, counts)
	})
}
