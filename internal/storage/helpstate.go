package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"bilancio/internal/core"
)

// KeyPrefix namespaces help state keys.
const KeyPrefix = "bilancio:help-state:"

// HelpStateKey is the storage key for a user's help state.
func HelpStateKey(user string) string {
	return KeyPrefix + user
}

// LoadPolicy says what Load does when stored state cannot be read.
type LoadPolicy int

const (
	// UseDefault logs the failure and starts from an empty state.
	UseDefault LoadPolicy = iota
	// Propagate returns the failure to the caller.
	Propagate
)

// HelpStateStore reads and writes one user's UserHelpState as JSON.
type HelpStateStore struct {
	kv     KV
	key    string
	policy LoadPolicy
	logger *slog.Logger
}

func NewHelpStateStore(kv KV, user string, policy LoadPolicy, logger *slog.Logger) *HelpStateStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &HelpStateStore{kv: kv, key: HelpStateKey(user), policy: policy, logger: logger}
}

// Load returns the stored state. An absent key is not an error.
func (s *HelpStateStore) Load(ctx context.Context) (core.UserHelpState, error) {
	raw, found, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return s.fail(ctx, fmt.Errorf("read help state: %w", err))
	}
	if !found || len(raw) == 0 {
		return core.NewUserHelpState(), nil
	}

	var state core.UserHelpState
	if err := json.Unmarshal(raw, &state); err != nil {
		return s.fail(ctx, fmt.Errorf("decode help state: %w", err))
	}
	return state.Normalize(), nil
}

func (s *HelpStateStore) Save(ctx context.Context, state core.UserHelpState) error {
	raw, err := json.Marshal(state.Normalize())
	if err != nil {
		return fmt.Errorf("encode help state: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("write help state: %w", err)
	}
	return nil
}

func (s *HelpStateStore) fail(ctx context.Context, err error) (core.UserHelpState, error) {
	if s.policy == Propagate {
		return core.UserHelpState{}, err
	}
	s.logger.WarnContext(ctx, "Help state unreadable, starting empty", "key", s.key, "error", err)
	return core.NewUserHelpState(), nil
}
