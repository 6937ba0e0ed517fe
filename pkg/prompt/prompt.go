package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xhad/askdocs/internal/models"
)

const (
	// Delimiter separates context blocks.
	Delimiter = "\n\n---\n\n"

	DefaultHistoryTurns = 10
)

// DefaultSystemPrompt sets the assistant's persona and grounding rules.
const DefaultSystemPrompt = `You are a documentation assistant. You help users understand and use the product described in the documentation you are given.

Your responsibilities:
1. Answer questions accurately from the provided documentation
2. Give clear, structured answers, with step-by-step instructions where a procedure is involved
3. Say so honestly when a question is not covered by the documentation

Answering rules:
- Prefer information from the documentation over general knowledge
- Cite the documents you used by their source
- Flag anything you are not certain about
- Never invent features or facts that the documentation does not contain
- If the documentation has nothing relevant, suggest consulting the full documentation or contacting support
- Keep answers concise and accurate`

const userTemplate = `Answer the user's question using the documentation below.

Relevant documentation:
%s

Question:
%s

Answer from the documentation above. If it does not contain the answer, say so clearly.`

type AssemblerConfig struct {
	// MaxContextLength bounds the joined context blocks, in characters.
	MaxContextLength int
	// HistoryTurns is the most history that is replayed ahead of the question.
	HistoryTurns int
	SystemPrompt string
}

// Assembler turns ranked results, history and a question into chat messages.
type Assembler struct {
	config AssemblerConfig
}

// Assembly is the assembled prompt plus the results that made it into the
// context.
type Assembly struct {
	Messages []models.Message
	Context  string
	Used     []models.ScoredResult
}

func NewAssembler(config AssemblerConfig) (*Assembler, error) {
	if config.MaxContextLength <= 0 {
		return nil, models.ConfigError("max context length must be positive, got %d", config.MaxContextLength)
	}
	if config.HistoryTurns < 0 {
		return nil, models.ConfigError("history turns cannot be negative")
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = DefaultSystemPrompt
	}
	return &Assembler{config: config}, nil
}

func (a *Assembler) HistoryTurns() int {
	return a.config.HistoryTurns
}

// Block renders one result with its 1-based rank.
func Block(rank int, r models.ScoredResult) string {
	return fmt.Sprintf("[Document %d] (source: %s, relevance: %.2f)\n%s", rank, r.Source(), r.Score, r.Content)
}

// BuildContext joins blocks in rank order, dropping whole blocks from the end
// until the result fits in budget characters.
func BuildContext(results []models.ScoredResult, budget int) (string, []models.ScoredResult) {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = Block(i+1, r)
	}

	n := len(blocks)
	for n > 0 && utf8.RuneCountInString(strings.Join(blocks[:n], Delimiter)) > budget {
		n--
	}
	return strings.Join(blocks[:n], Delimiter), results[:n]
}

// Assemble returns the system message, then up to HistoryTurns recent turns,
// then the user message carrying context and question. When no block fits the
// budget, Used is empty and callers should not send the messages.
func (a *Assembler) Assemble(results []models.ScoredResult, history []models.ConversationTurn, question string) Assembly {
	context, used := BuildContext(results, a.config.MaxContextLength)

	if len(history) > a.config.HistoryTurns {
		history = history[len(history)-a.config.HistoryTurns:]
	}

	messages := make([]models.Message, 0, len(history)+2)
	messages = append(messages, models.Message{Role: models.RoleSystem, Content: a.config.SystemPrompt})
	for _, turn := range history {
		messages = append(messages, models.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, models.Message{
		Role:    models.RoleUser,
		Content: fmt.Sprintf(userTemplate, context, question),
	})

	return Assembly{Messages: messages, Context: context, Used: used}
}
