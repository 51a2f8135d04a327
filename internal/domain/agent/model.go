// internal/domain/agent/model.go

package agent

import (
	"context"
	"time"
)

// Level is the severity a message is styled with
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Message is one line in the agent panel
type Message struct {
	ID    string    `json:"id"`
	Agent string    `json:"agent"`
	Text  string    `json:"text"`
	Level Level     `json:"level"`
	At    time.Time `json:"at"`
}

// Panel is the narration log shown next to the map
type Panel interface {
	// Messages returns the retained log, oldest first
	Messages() []Message

	// Ask forwards a question to the language model and logs the answer
	Ask(ctx context.Context, question string) (Message, error)

	// Watch registers a callback for every appended message
	Watch(fn func(Message)) func()
}

// Responder answers free-text questions
type Responder interface {
	Answer(ctx context.Context, prompt string) (string, error)
}
