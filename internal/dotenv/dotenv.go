// Package dotenv loads a local .env file into the process environment so
// the gateway and the console client can run with a checked-out config
// instead of exported shell variables.
package dotenv

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// LoadFile reads KEY=VALUE pairs from path and sets each one that is not
// already present in the environment. A missing file is not an error; blank
// lines and # comments are skipped.
func LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, val, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return fmt.Errorf("set %s from %s: %w", key, path, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// parseLine splits one dotenv line into a key/value pair. Accepts an
// optional "export " prefix and single- or double-quoted values.
func parseLine(line string) (key, val string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")

	key, val, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}

	val = strings.TrimSpace(val)
	if len(val) >= 2 {
		switch {
		case val[0] == '"' && val[len(val)-1] == '"':
			val = val[1 : len(val)-1]
		case val[0] == '\'' && val[len(val)-1] == '\'':
			val = val[1 : len(val)-1]
		}
	}
	return key, val, true
}
