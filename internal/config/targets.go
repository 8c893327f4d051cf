// File: internal/config/targets.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/Enroleai/Uni-Automation/api/schemas"
)

// ErrTargetNotFound is returned when a named target has no profile on disk.
var ErrTargetNotFound = errors.New("target profile not found")

// LoadTarget reads and validates one target profile.
func LoadTarget(path string) (*schemas.Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open target profile: %w", err)
	}
	defer f.Close()

	t, err := schemas.DecodeTarget(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// LoadTargets reads every *.json profile in dir, sorted by file name so batch
// order is stable across runs.
func LoadTargets(dir string) ([]schemas.Target, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list target profiles: %w", err)
	}
	sort.Strings(paths)

	targets := make([]schemas.Target, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		t, err := LoadTarget(p)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[t.Name]; dup {
			return nil, fmt.Errorf("target %q defined twice (%s and %s)", t.Name, prev, filepath.Base(p))
		}
		seen[t.Name] = filepath.Base(p)
		targets = append(targets, *t)
	}
	return targets, nil
}

// SelectTargets filters loaded targets by name, preserving the order of names.
func SelectTargets(all []schemas.Target, names []string) ([]schemas.Target, error) {
	if len(names) == 0 {
		return all, nil
	}
	out := make([]schemas.Target, 0, len(names))
	for _, name := range names {
		found := false
		for _, t := range all {
			if strings.EqualFold(t.Name, name) {
				out = append(out, t)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, name)
		}
	}
	return out, nil
}

// TemplateFileName returns the file name a template for name is written to.
func TemplateFileName(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, slug)
	return slug + ".json"
}

// WriteTargetTemplate writes a blank profile for name into dir and returns its
// path. Existing files are never overwritten.
func WriteTargetTemplate(dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create targets directory: %w", err)
	}
	path := filepath.Join(dir, TemplateFileName(name))

	data, err := json.ConfigCompatibleWithStandardLibrary.MarshalIndent(schemas.TargetTemplate(name), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode template: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create template: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return "", fmt.Errorf("failed to write template: %w", err)
	}
	return path, nil
}

// LoadRecords reads a JSON array of records from path.
func LoadRecords(path string) ([]schemas.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open records file: %w", err)
	}
	defer f.Close()
	return schemas.DecodeRecords(f)
}
