package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager handles conversation history persistence
type Manager struct {
	filePath    string
	mu          sync.RWMutex
	history     *History
	current     *Session
	maxSessions int
}

// NewManager creates a new history manager
func NewManager(filePath string, maxSessions int) *Manager {
	if maxSessions < 1 {
		maxSessions = 1
	}
	return &Manager{
		filePath:    filePath,
		history:     &History{Sessions: []Session{}},
		maxSessions: maxSessions,
	}
}

// Load loads history from disk and starts a new session
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := filepath.Dir(m.filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := os.ReadFile(m.filePath)
	switch {
	case os.IsNotExist(err):
		m.history = &History{Sessions: []Session{}}
	case err != nil:
		return fmt.Errorf("failed to read history file: %w", err)
	default:
		var h History
		if err := json.Unmarshal(data, &h); err != nil {
			// Corrupted file - back it up and start fresh
			_ = os.Rename(m.filePath, m.filePath+".backup")
			h = History{Sessions: []Session{}}
		}
		m.history = &h
	}

	m.startNewSession()
	return nil
}

// startNewSession creates a new session (must be called with lock held)
func (m *Manager) startNewSession() {
	now := time.Now()
	m.current = &Session{
		ID:        uuid.New().String(),
		StartedAt: now,
		UpdatedAt: now,
		Messages:  []Message{},
	}
	m.history.Sessions = append(m.history.Sessions, *m.current)
}

// NewSession abandons the current session and starts an empty one
func (m *Manager) NewSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startNewSession()
}

// AddMessage adds a message to the current session and saves to disk
func (m *Manager) AddMessage(msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		m.startNewSession()
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	m.current.Messages = append(m.current.Messages, msg)
	m.current.UpdatedAt = time.Now()

	for i := range m.history.Sessions {
		if m.history.Sessions[i].ID == m.current.ID {
			m.history.Sessions[i] = *m.current
			break
		}
	}

	return m.saveUnlocked()
}

// GetRecentMessages returns the last N messages from the current session
func (m *Manager) GetRecentMessages(limit int) []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil || len(m.current.Messages) == 0 || limit <= 0 {
		return []Message{}
	}

	messages := m.current.Messages
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	out := make([]Message, len(messages))
	copy(out, messages)
	return out
}

// Sessions returns a copy of all stored sessions, oldest first
func (m *Manager) Sessions() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, len(m.history.Sessions))
	copy(out, m.history.Sessions)
	return out
}

// Save persists the history to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveUnlocked()
}

// saveUnlocked saves without acquiring the lock (must be called with lock held)
func (m *Manager) saveUnlocked() error {
	if len(m.history.Sessions) > m.maxSessions {
		m.history.Sessions = m.history.Sessions[len(m.history.Sessions)-m.maxSessions:]
	}

	data, err := json.MarshalIndent(m.history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	// Write to a temp file and rename so a crash never leaves a torn file
	tempPath := m.filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, m.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// GetCurrentSession returns a copy of the current session
func (m *Manager) GetCurrentSession() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	s := *m.current
	s.Messages = append([]Message(nil), m.current.Messages...)
	return &s
}
