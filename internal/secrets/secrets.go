// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and session cookies from a directory of
// plain-text files and an optional dotenv file. Each file in the directory
// is one secret: the filename is the key name and the trimmed contents are
// the value.
//
// Keys used by paperfetch: semantic-scholar-api-key, institutional-session,
// contact-email (or their dotenv forms SEMANTIC_SCHOLAR_API_KEY,
// INSTITUTIONAL_SESSION, CONTACT_EMAIL).
package secrets

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logrus.WithField("secret", name).WithError(err).Warn("could not read secret")
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// LoadEnv reads a dotenv file without touching the process environment.
// A missing file yields an empty map.
func LoadEnv(path string) (map[string]string, error) {
	vals, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	return vals, nil
}

// Store answers credential lookups from the secrets directory, a dotenv
// file, and the process environment, in that order.
type Store struct {
	files map[string]string
	env   map[string]string
}

// New loads dir and envFile. Either may be empty or missing.
func New(dir, envFile string) (*Store, error) {
	s := &Store{files: map[string]string{}, env: map[string]string{}}
	var err error
	if dir != "" {
		if s.files, err = Load(dir); err != nil {
			return nil, err
		}
	}
	if envFile != "" {
		if s.env, err = LoadEnv(envFile); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Get looks up a secret by its file name ("contact-email"). The dotenv and
// process environment are searched under the upper-snake form
// ("CONTACT_EMAIL").
func (s *Store) Get(name string) (string, bool) {
	if v, ok := s.files[name]; ok {
		return v, true
	}
	envName := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
	if v := strings.TrimSpace(s.env[envName]); v != "" {
		return v, true
	}
	if v := strings.TrimSpace(os.Getenv(envName)); v != "" {
		return v, true
	}
	return "", false
}

// Session returns the session cookie or API key for a source: the first of
// "<source>-session" and "<source>-api-key" that is set, with underscores
// in the source name written as dashes.
func (s *Store) Session(source string) (string, bool) {
	name := strings.ReplaceAll(source, "_", "-")
	for _, key := range []string{name + "-session", name + "-api-key"} {
		if v, ok := s.Get(key); ok {
			return v, true
		}
	}
	return "", false
}

// Names lists the loaded secret names, files first and then dotenv keys,
// each group sorted. Values are never listed.
func (s *Store) Names() []string {
	return append(slices.Sorted(maps.Keys(s.files)), slices.Sorted(maps.Keys(s.env))...)
}
