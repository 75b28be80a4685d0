package secrets

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
)

// Source describes how to load a secret or a text blob such as a resume.
type Source struct {
	// Name is used in error messages to give more context about the value.
	Name string
	// Value is an inline value provided via configuration, flags or environment.
	Value string
	// File points to a file containing the value. When set it takes precedence over Value.
	File string
	// Hint is attached to the error when nothing usable is configured.
	Hint string
}

// Load returns the trimmed value from src, reading File first when it is set.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	file := strings.TrimSpace(src.File)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", errors.Wrapf(err, "reading %s from file %q", name, file)
		}
		src.Value = string(data)
	}

	value := strings.TrimSpace(src.Value)
	if value != "" {
		return value, nil
	}

	var err error
	if file != "" {
		err = errors.Newf("%s file %q is empty", name, file)
	} else {
		err = errors.Newf("%s is not configured", name)
	}

	if src.Hint != "" {
		err = errors.WithHint(err, src.Hint)
	}

	return "", err
}

// Optional is like Load but treats a missing value as empty instead of an error.
// A configured file that cannot be read is still an error.
func Optional(src Source) (string, error) {
	if strings.TrimSpace(src.File) == "" && strings.TrimSpace(src.Value) == "" {
		return "", nil
	}
	return Load(src)
}
