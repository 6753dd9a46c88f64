package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sqltalk/internal/conversation"
)

// sessionHistoryDir resolves the directory holding per-session history
// snapshots, creating it when missing.
func sessionHistoryDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".sqltalk", "sessions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create session directory: %w", err)
	}
	return dir, nil
}

// sessionFileName maps a user-chosen session id onto a safe file name so
// ids like "work/q3" cannot escape the session directory.
func sessionFileName(id string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, id)
	return safe + ".json"
}

// loadSessionHistory reads the persisted history for id. A session that
// was never saved yields an empty history, not an error.
func loadSessionHistory(id string) ([]conversation.Exchange, error) {
	dir, err := sessionHistoryDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, sessionFileName(id)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var history []conversation.Exchange
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("corrupt session file for %q: %w", id, err)
	}
	return history, nil
}

// saveSessionHistory writes the session snapshot for the next invocation.
func saveSessionHistory(id string, history []conversation.Exchange) error {
	dir, err := sessionHistoryDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, sessionFileName(id)), data, 0o644)
}
