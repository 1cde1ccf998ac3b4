// Package logtail reads the last N lines of a file by scanning
// backward from its end in fixed-size chunks, without reading the
// whole file into memory. It backs both the logs command and the
// diagnostics renderer, which otherwise tail the same daemon log
// files for two different audiences.
package logtail

import (
	"fmt"
	"io"
	"os"
)

const chunkSize = int64(4096)

// Lines returns the last n lines of the file at path, or nil if the
// file cannot be opened, statted, or is empty.
func Lines(path string, n int) []string {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil || stat.Size() == 0 {
		return nil
	}

	lines, err := collectTailLines(f, stat.Size(), n)
	if err != nil {
		return nil
	}
	return lines
}

// FromFile is like Lines but surfaces read errors instead of
// swallowing them, for callers that report a failure to the user
// rather than degrading to a placeholder.
func FromFile(f *os.File, fileSize int64, n int) ([]string, error) {
	return collectTailLines(f, fileSize, n)
}

// collectTailLines reads the last n lines from f, whose total size is
// fileSize, by scanning backward in fixed-size chunks.
func collectTailLines(f *os.File, fileSize int64, n int) ([]string, error) {
	lines := make([]string, 0, n)
	offset := fileSize
	remainder := "" // carry a partial line fragment between chunks

	for len(lines) < n && offset > 0 {
		chunkLines, newRemainder, err := readChunkLines(f, &offset, chunkSize, remainder)
		if err != nil {
			return nil, err
		}
		remainder = newRemainder
		lines = prependLines(lines, chunkLines, n)
	}

	if remainder != "" && len(lines) < n {
		lines = append([]string{remainder}, lines...)
	}

	return lines, nil
}

func readChunkLines(f *os.File, offset *int64, chunkSize int64, prevRemainder string) (fullLines []string, remainder string, err error) {
	readSize := chunkSize
	if *offset < chunkSize {
		readSize = *offset
	}
	*offset -= readSize

	buf := make([]byte, readSize)
	n, readErr := f.ReadAt(buf, *offset)
	if readErr != nil && readErr != io.EOF {
		return nil, "", fmt.Errorf("read log chunk: %w", readErr)
	}
	buf = buf[:n]

	chunk := string(buf) + prevRemainder
	chunkLines := splitLines(chunk)

	if *offset > 0 && len(chunkLines) > 0 {
		remainder = chunkLines[0]
		chunkLines = chunkLines[1:]
	}

	return chunkLines, remainder, nil
}

func prependLines(dst, chunkLines []string, n int) []string {
	for i := len(chunkLines) - 1; i >= 0 && len(dst) < n; i-- {
		if chunkLines[i] != "" || len(dst) > 0 {
			dst = append([]string{chunkLines[i]}, dst...)
		}
	}
	return dst
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
