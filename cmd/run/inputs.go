package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/wippyai/puzzle-host/catalog"
)

// inputPath locates the input for key below dir: year<YYYY>/day<DD>.txt.
func inputPath(dir string, key catalog.Key) string {
	return filepath.Join(dir, fmt.Sprintf("year%04d", key.Category), fmt.Sprintf("day%02d.txt", key.Item))
}

// readInput loads the input for key with one trailing newline removed.
func readInput(dir string, key catalog.Key) (string, error) {
	path := inputPath(dir, key)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%s: failed to read %s: %w", key, path, err)
	}
	return trimNewline(string(data)), nil
}

func trimNewline(s string) string {
	if strings.HasSuffix(s, "\r\n") {
		return s[:len(s)-2]
	}
	return strings.TrimSuffix(s, "\n")
}

// formatDuration renders d in microseconds below one millisecond and in
// milliseconds above, right-aligned to a fixed width.
func formatDuration(d time.Duration) string {
	unit, scale := "µs", 1e6
	if d >= time.Millisecond {
		unit, scale = "ms", 1e3
	}
	v := d.Seconds() * scale
	if v >= 1000 {
		return fmt.Sprintf("%7.0f %s", v, unit)
	}
	return fmt.Sprintf("%7.3f %s", v, unit)
}

// filterKeys keeps the keys matching the optional category and item
// arguments.
func filterKeys(keys []catalog.Key, args []string) ([]catalog.Key, error) {
	var cat, item int
	var err error
	if len(args) > 0 {
		if cat, err = parseNumber(args[0], "year", 1, 9999); err != nil {
			return nil, err
		}
	}
	if len(args) > 1 {
		if item, err = parseNumber(args[1], "day", 1, 255); err != nil {
			return nil, err
		}
	}
	var out []catalog.Key
	for _, k := range keys {
		if cat != 0 && int(k.Category) != cat {
			continue
		}
		if item != 0 && int(k.Item) != item {
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

func parseNumber(s, what string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%s %d out of range [%d, %d]", what, n, lo, hi)
	}
	return n, nil
}
