// Package secrets resolves configuration values that name an indirection —
// an environment variable or a file to read from — rather than carrying the
// secret itself. config.Load uses this to keep the tenant token pepper and
// the database DSN out of plain env/YAML.
package secrets

import (
	"fmt"
	"os"
	"strings"
)

// resolver produces a secret's contents from the portion of a value string
// following its scheme prefix.
type resolver func(rest string) (string, error)

var schemes = map[string]resolver{
	"env":  resolveEnv,
	"file": resolveFile,
}

// Resolve resolves value into its secret contents.
//
// A value of the form "scheme:rest" is dispatched to a registered scheme:
//   - "env:NAME" reads environment variable NAME
//   - "file:/absolute/path" reads an absolute file path
//
// A value with no recognized scheme prefix — including one with no colon at
// all, or a colon that belongs to something else entirely, like a DSN — is
// returned unchanged as plain text. An empty or whitespace-only value
// resolves to the empty string without error.
func Resolve(value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", nil
	}

	scheme, rest, hasScheme := strings.Cut(v, ":")
	if !hasScheme {
		return v, nil
	}

	resolve, ok := schemes[scheme]
	if !ok {
		return v, nil
	}
	return resolve(rest)
}

func resolveEnv(name string) (string, error) {
	return os.Getenv(name), nil
}

func resolveFile(path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("file secret path must be absolute, got: %s", path)
	}
	// #nosec G304 - path is operator-provided configuration and required to be absolute above
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", path, err)
	}
	return strings.TrimSpace(string(content)), nil
}
