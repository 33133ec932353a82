package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/solpilot/solpilot/internal/schema"
)

// Session holds one conversation's transcript and metadata.
//
// The transcript is append-only: turns only ever add messages. Tool call IDs
// are tracked so a duplicate ID, whether issued or answered twice, is rejected
// instead of silently corrupting the pairing the model relies on.
type Session struct {
	Key       string
	Messages  schema.Messages
	CreatedAt time.Time
	UpdatedAt time.Time
	Metadata  map[string]any

	issued   map[string]bool // call IDs the assistant has issued
	answered map[string]bool // call IDs a tool result has answered

	turnActive bool

	mu sync.Mutex
}

// newSession constructs a Session with all fields set. Used by the manager
// when loading from disk.
func newSession(key string, messages schema.Messages, createdAt, updatedAt time.Time, meta map[string]any) *Session {
	s := &Session{
		Key:       key,
		Messages:  messages,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		Metadata:  meta,
		issued:    make(map[string]bool),
		answered:  make(map[string]bool),
	}
	s.reindexLocked()
	return s
}

// NewSession creates an empty session.
func NewSession(key string) *Session {
	return &Session{
		Key:       key,
		Messages:  schema.NewMessages(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Metadata:  map[string]any{},
		issued:    make(map[string]bool),
		answered:  make(map[string]bool),
	}
}

// reindexLocked rebuilds the call ID sets from the transcript.
func (s *Session) reindexLocked() {
	for _, msg := range s.Messages.Messages {
		for _, tc := range msg.ToolCalls {
			s.issued[tc.ID] = true
		}
		if msg.Role == "tool" && msg.ToolCallID != "" {
			s.answered[msg.ToolCallID] = true
		}
	}
}

// BeginTurn marks the session as having an in-flight turn. A second writer is
// a bug in the caller, so it is refused rather than serialised.
func (s *Session) BeginTurn() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turnActive {
		return fmt.Errorf("session %s already has a turn in flight", s.Key)
	}
	s.turnActive = true
	return nil
}

// EndTurn releases the turn guard.
func (s *Session) EndTurn() {
	s.mu.Lock()
	s.turnActive = false
	s.mu.Unlock()
}

// AddUser appends a user message.
func (s *Session) AddUser(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages.AddUser(content)
	s.UpdatedAt = time.Now()
}

// AddAssistant appends an assistant message. Any tool calls it carries must
// have IDs never issued before in this session.
func (s *Session) AddAssistant(content *string, toolCalls []schema.ToolCall, reasoning *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tc := range toolCalls {
		if s.issued[tc.ID] {
			return fmt.Errorf("duplicate tool call id %q in session %s", tc.ID, s.Key)
		}
	}
	for _, tc := range toolCalls {
		s.issued[tc.ID] = true
	}
	s.Messages.AddAssistant(content, toolCalls, reasoning)
	s.UpdatedAt = time.Now()
	return nil
}

// HasCallID reports whether the assistant has already issued this tool call
// ID in the session. Callers use it to pick fresh IDs before AddAssistant.
func (s *Session) HasCallID(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued[id]
}

// AddToolResult appends a tool result. The call ID must have been issued and
// must not have been answered already.
func (s *Session) AddToolResult(callID, toolName, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.issued[callID] {
		return fmt.Errorf("tool result for unknown call id %q in session %s", callID, s.Key)
	}
	if s.answered[callID] {
		return fmt.Errorf("duplicate tool result for call id %q in session %s", callID, s.Key)
	}
	s.answered[callID] = true
	s.Messages.AddToolResult(callID, toolName, result)
	s.UpdatedAt = time.Now()
	return nil
}

// AddAssistantFinal appends the turn's closing assistant message along with
// the names of tools used during the turn.
func (s *Session) AddAssistantFinal(content string, toolsUsed []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := content
	s.Messages.Add(schema.Message{
		Role:      "assistant",
		Content:   &c,
		ToolsUsed: toolsUsed,
	})
	s.UpdatedAt = time.Now()
}

// History returns the last maxMessages messages for the LLM. The projection
// never starts mid tool exchange: if the window would open on a tool result,
// it is widened to include the assistant message that issued the call.
func (s *Session) History(maxMessages int) schema.Messages {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.Messages.Messages
	start := 0
	if maxMessages > 0 && len(msgs) > maxMessages {
		start = len(msgs) - maxMessages
	}
	for start > 0 && msgs[start].Role == "tool" {
		start--
	}

	out := schema.NewMessages()
	out.Messages = append(out.Messages, msgs[start:]...)
	return out
}

// Len returns the number of messages in the session.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Messages.Messages)
}

// Clear resets the transcript and the call ID tracking.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = schema.NewMessages()
	s.issued = make(map[string]bool)
	s.answered = make(map[string]bool)
	s.UpdatedAt = time.Now()
}

// Snapshot returns a copy of the current message list.
func (s *Session) Snapshot() schema.Messages {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Messages.Clone()
}
