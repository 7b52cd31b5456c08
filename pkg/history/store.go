package history

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dajeong/miso/internal/observability"
	"github.com/dajeong/miso/internal/tracing"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Turn is one conversation turn as persisted to disk.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// ToolsUsed names the tools invoked while producing an assistant turn.
	ToolsUsed []string `json:"tools_used,omitempty"`
}

// Store persists conversation history under a directory, one JSONL file per
// conversation key.
type Store struct {
	dir        string
	writeLocks map[string]*sync.Mutex
	locksMu    sync.RWMutex
}

// Info describes a stored conversation.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	Turns        int       `json:"turns"`
}

// New creates a store rooted at dir, defaulting to ~/.miso/conversations.
func New(dir string) (*Store, error) {
	observability.EnsureRegistered()

	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".miso", "conversations")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create conversations directory: %w", err)
	}

	s := &Store{
		dir:        dir,
		writeLocks: make(map[string]*sync.Mutex),
	}

	log.Info().Str("dir", dir).Msg("History store initialized")
	s.updateActiveConversationsMetric()

	return s, nil
}

// validateKey rejects keys that could escape the store directory.
func (s *Store) validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("conversation key cannot be empty")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("conversation key cannot contain '..'")
	}
	if strings.ContainsAny(key, "/\\") {
		return fmt.Errorf("conversation key cannot contain path separators")
	}
	if strings.Contains(key, "\x00") {
		return fmt.Errorf("conversation key cannot contain null bytes")
	}
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".jsonl")
}

func (s *Store) updateActiveConversationsMetric() {
	keys, err := s.List()
	if err != nil {
		return
	}
	observability.SetActiveConversations(len(keys))
}

// getWriteLock gets or creates a write lock for a conversation
func (s *Store) getWriteLock(key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	if lock, exists := s.writeLocks[key]; exists {
		return lock
	}

	lock := &sync.Mutex{}
	s.writeLocks[key] = lock
	return lock
}

func (s *Store) releaseWriteLock(key string) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	delete(s.writeLocks, key)
}

// Append appends a turn to a conversation, creating the file on first use.
func (s *Store) Append(ctx context.Context, key string, turn Turn) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithConversationID(ctx, key)
	ctx, span := tracing.StartSpan(
		ctx,
		"miso.history",
		"history.append",
		attribute.String("conversation", key),
		attribute.String("role", turn.Role),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger).With().Str("conversation", key).Logger()
	start := time.Now()
	defer func() {
		observability.RecordHistorySave(time.Since(start))
	}()

	if err := s.validateKey(key); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if turn.Role == "" {
		return fmt.Errorf("turn role cannot be empty")
	}
	if turn.Content == "" {
		return fmt.Errorf("turn content cannot be empty")
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	lock := s.getWriteLock(key)
	lock.Lock()
	defer lock.Unlock()

	path := s.path(key)
	created := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		created = true
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to open conversation file: %w", err)
	}
	defer file.Close()

	data, err := json.Marshal(turn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to write turn: %w", err)
	}

	if err := file.Sync(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to sync conversation file: %w", err)
	}

	if created {
		s.updateActiveConversationsMetric()
	}

	logger.Debug().
		Str("role", turn.Role).
		Msg("Turn appended")

	return nil
}

// Load reads every turn of a conversation, skipping lines that fail to parse.
// A missing conversation yields an empty slice, not an error.
func (s *Store) Load(ctx context.Context, key string) ([]Turn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithConversationID(ctx, key)
	ctx, span := tracing.StartSpan(
		ctx,
		"miso.history",
		"history.load",
		attribute.String("conversation", key),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger).With().Str("conversation", key).Logger()
	start := time.Now()
	defer func() {
		observability.RecordHistoryLoad(time.Since(start))
	}()

	if err := s.validateKey(key); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	path := s.path(key)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return []Turn{}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to open conversation file: %w", err)
	}
	defer file.Close()

	var turns []Turn
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if line == "" {
			continue
		}

		var turn Turn
		if err := json.Unmarshal([]byte(line), &turn); err != nil {
			logger.Warn().
				Int("line", lineNum).
				Err(err).
				Msg("Failed to parse turn, skipping")
			continue
		}

		if turn.Role == "" || turn.Content == "" {
			logger.Warn().
				Int("line", lineNum).
				Msg("Invalid turn, skipping")
			continue
		}

		turns = append(turns, turn)
	}

	if err := scanner.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	logger.Debug().
		Int("turns", len(turns)).
		Msg("Conversation loaded")

	return turns, nil
}

// Recent returns the last n turns of a conversation.
func (s *Store) Recent(ctx context.Context, key string, n int) ([]Turn, error) {
	turns, err := s.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if n <= 0 || n >= len(turns) {
		return turns, nil
	}
	return turns[len(turns)-n:], nil
}

// Delete removes a conversation file.
func (s *Store) Delete(ctx context.Context, key string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithConversationID(ctx, key)
	ctx, span := tracing.StartSpan(
		ctx,
		"miso.history",
		"history.delete",
		attribute.String("conversation", key),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger).With().Str("conversation", key).Logger()

	if err := s.validateKey(key); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	// Wait for any in-progress writes
	lock := s.getWriteLock(key)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to delete conversation file: %w", err)
	}

	s.releaseWriteLock(key)
	s.updateActiveConversationsMetric()

	logger.Info().Msg("Conversation deleted")

	return nil
}

// List lists every stored conversation key.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read conversations directory: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".jsonl") {
			continue
		}

		keys = append(keys, strings.TrimSuffix(name, ".jsonl"))
	}

	return keys, nil
}

// Prune deletes conversations whose files have not been modified within
// maxAge. It returns the number of conversations removed.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, fmt.Errorf("prune age must be positive")
	}

	keys, err := s.List()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, key := range keys {
		info, err := os.Stat(s.path(key))
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := s.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("conversation", key).Msg("Failed to prune conversation")
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Info().Int("removed", removed).Msg("Old conversations pruned")
	}

	return removed, nil
}

// Stat returns metadata about a stored conversation.
func (s *Store) Stat(ctx context.Context, key string) (Info, error) {
	if err := s.validateKey(key); err != nil {
		return Info{}, err
	}

	fileInfo, err := os.Stat(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, fmt.Errorf("conversation does not exist: %s", key)
		}
		return Info{}, fmt.Errorf("failed to stat conversation file: %w", err)
	}

	turns, err := s.Load(ctx, key)
	if err != nil {
		return Info{}, err
	}

	return Info{
		Key:          key,
		Size:         fileInfo.Size(),
		LastModified: fileInfo.ModTime(),
		Turns:        len(turns),
	}, nil
}

// Close releases the store's in-memory state.
func (s *Store) Close() error {
	s.locksMu.Lock()
	s.writeLocks = make(map[string]*sync.Mutex)
	s.locksMu.Unlock()

	log.Info().Msg("History store closed")

	return nil
}
