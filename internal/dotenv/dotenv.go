// Package dotenv seeds the process environment from a local .env file so
// the relay can run outside a managed platform without exporting keys by
// hand. Variables already present in the environment always win.
package dotenv

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Load reads KEY=VALUE lines from path and sets each key that is not
// already present in the environment. A missing file is not an error.
// It returns the keys it set, in file order, so callers can log what the
// file contributed without logging values.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var loaded []string
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		key, val, ok := parseLine(sc.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return loaded, fmt.Errorf("%s:%d: set %s: %w", path, lineNo, key, err)
		}
		loaded = append(loaded, key)
	}
	if err := sc.Err(); err != nil {
		return loaded, fmt.Errorf("read %s: %w", path, err)
	}
	return loaded, nil
}

// parseLine extracts one assignment. Blank lines, comments and lines
// without a key are skipped. An optional leading "export " is accepted so
// shell-sourceable files work unchanged.
func parseLine(line string) (key, val string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")

	key, val, found := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" {
		return "", "", false
	}
	return key, unquote(strings.TrimSpace(val)), true
}

func unquote(v string) string {
	if len(v) < 2 {
		return v
	}
	if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
		return v[1 : len(v)-1]
	}
	return v
}
