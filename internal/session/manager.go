// Package session keeps a bounded sliding window of prior exchanges per
// session, supplying recency context across turns.
package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/course-rag/backend/internal/domain"
)

const DefaultMaxExchanges = 2

// Manager owns all in-process conversation state. Histories live only
// for the process lifetime and are created lazily on first use.
type Manager struct {
	maxExchanges int

	mu       sync.Mutex
	sessions map[string][]domain.Exchange
}

func NewManager(maxExchanges int) *Manager {
	if maxExchanges <= 0 {
		maxExchanges = DefaultMaxExchanges
	}
	return &Manager{
		maxExchanges: maxExchanges,
		sessions:     make(map[string][]domain.Exchange),
	}
}

// NewSessionID mints an id for callers that did not supply one.
func (m *Manager) NewSessionID() string {
	return uuid.New().String()
}

// History renders the session's retained exchanges as model context, or
// "" for an unknown or empty session.
func (m *Manager) History(sessionID string) string {
	if sessionID == "" {
		return ""
	}

	m.mu.Lock()
	exchanges := m.sessions[sessionID]
	m.mu.Unlock()

	if len(exchanges) == 0 {
		return ""
	}

	var b strings.Builder
	for i, ex := range exchanges {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "User: %s\nAssistant: %s", ex.UserMessage, ex.AssistantMessage)
	}
	return b.String()
}

// Record appends one completed exchange atomically, evicting the oldest
// once the window is full.
func (m *Manager) Record(sessionID, userMessage, assistantMessage string) {
	if sessionID == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	exchanges := append(m.sessions[sessionID], domain.Exchange{
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
	})
	if len(exchanges) > m.maxExchanges {
		exchanges = exchanges[len(exchanges)-m.maxExchanges:]
	}
	m.sessions[sessionID] = exchanges
}
