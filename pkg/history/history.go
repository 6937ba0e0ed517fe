// Package history holds the bounded, in-memory conversation of one session.
package history

import (
	"sync"

	"github.com/xhad/askdocs/internal/models"
)

const DefaultMaxTurns = 20

// History is a FIFO of conversation turns capped at a maximum length. It is
// safe for concurrent use.
type History struct {
	mu    sync.Mutex
	max   int
	turns []models.ConversationTurn
}

// New returns an empty history holding at most maxTurns turns. A non-positive
// maxTurns uses DefaultMaxTurns.
func New(maxTurns int) *History {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &History{max: maxTurns}
}

// Append adds turns in order as one step, evicting the oldest turns beyond
// capacity.
func (h *History) Append(turns ...models.ConversationTurn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns, turns...)
	if over := len(h.turns) - h.max; over > 0 {
		h.turns = append([]models.ConversationTurn(nil), h.turns[over:]...)
	}
}

// Recent returns a copy of the last n turns in original order.
func (h *History) Recent(n int) []models.ConversationTurn {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n <= 0 || len(h.turns) == 0 {
		return nil
	}
	if n > len(h.turns) {
		n = len(h.turns)
	}
	out := make([]models.ConversationTurn, n)
	copy(out, h.turns[len(h.turns)-n:])
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

func (h *History) Cap() int {
	return h.max
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}
