// Package file persists the chat state to a single local file, the server-side
// counterpart of a browser's localStorage entry. The format follows the
// extension: .yaml/.yml is YAML, anything else JSON.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"chatdesk/chatdesk/services/sessions"

	"gopkg.in/yaml.v3"
)

type Store struct {
	path string
	yaml bool
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("state path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return &Store{path: path, yaml: ext == ".yaml" || ext == ".yml"}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Load(context.Context) (*sessions.StoreState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var st sessions.StoreState
	if s.yaml {
		err = yaml.Unmarshal(data, &st)
	} else {
		err = json.Unmarshal(data, &st)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return &st, nil
}

// Save writes to a temp file and renames it over the target, so a crash
// never leaves a half-written state behind.
func (s *Store) Save(_ context.Context, st sessions.StoreState) error {
	var (
		data []byte
		err  error
	)
	if s.yaml {
		data, err = yaml.Marshal(st)
	} else {
		data, err = json.MarshalIndent(st, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".chat-state-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
