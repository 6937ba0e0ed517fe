package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/internal/types"
	"github.com/xhad/askdocs/pkg/history"
	"github.com/xhad/askdocs/pkg/logger"
	"github.com/xhad/askdocs/pkg/metrics"
	"github.com/xhad/askdocs/pkg/prompt"
	"github.com/xhad/askdocs/pkg/retriever"
)

const (
	NoInformationAnswer = "Sorry, I could not find relevant information in the documentation. " +
		"Try rephrasing your question, or consult the full documentation."

	previewLength = 100
)

type AgentConfig struct {
	Collection string
	Dimension  int
	Metric     models.Distance
	MaxHistory int
}

// QueryOptions tune a single question. A zero TopK uses the retriever default.
type QueryOptions struct {
	TopK       int
	UseHistory bool
	Filter     models.Filter
}

// Agent answers questions from the indexed documentation. Each Agent owns
// one conversation; use NewSession for concurrent independent users.
type Agent struct {
	config    AgentConfig
	retriever *retriever.Retriever
	assembler *prompt.Assembler
	generator types.Generator
	index     types.VectorIndex
	history   *history.History
	metrics   *metrics.Metrics
}

func New(config AgentConfig, r *retriever.Retriever, a *prompt.Assembler, g types.Generator, index types.VectorIndex, m *metrics.Metrics) *Agent {
	if config.Collection == "" {
		config.Collection = r.Collection()
	}
	if config.Metric == "" {
		config.Metric = models.Cosine
	}
	return &Agent{
		config:    config,
		retriever: r,
		assembler: a,
		generator: g,
		index:     index,
		history:   history.New(config.MaxHistory),
		metrics:   m,
	}
}

// NewSession returns an agent sharing this one's pipeline with an empty
// history of its own.
func (a *Agent) NewSession() *Agent {
	session := *a
	session.history = history.New(a.config.MaxHistory)
	return &session
}

// Init makes sure the collection exists with the configured dimension.
func (a *Agent) Init(ctx context.Context) error {
	return a.index.EnsureCollection(ctx, a.config.Collection, a.config.Dimension, a.config.Metric)
}

// Query never returns an error: failures become a result whose Error field is
// set and whose Answer explains what went wrong.
func (a *Agent) Query(ctx context.Context, question string, opts QueryOptions) models.QueryResult {
	start := time.Now()

	result, err := a.query(ctx, question, opts)
	switch {
	case err != nil:
		logger.Error("error processing query: %v", err)
		a.metrics.ObserveQuery(metrics.OutcomeFailed, time.Since(start))
		return models.QueryResult{
			Question: question,
			Answer:   fmt.Sprintf("Sorry, an error occurred while generating the answer: %v", err),
			Sources:  []models.Source{},
			Error:    err.Error(),
		}
	case !result.ContextUsed:
		a.metrics.ObserveQuery(metrics.OutcomeNoContext, time.Since(start))
	default:
		a.metrics.ObserveQuery(metrics.OutcomeAnswered, time.Since(start))
	}
	return result
}

func (a *Agent) query(ctx context.Context, question string, opts QueryOptions) (models.QueryResult, error) {
	results, err := a.retriever.RetrieveFiltered(ctx, question, opts.TopK, opts.Filter)
	if err != nil {
		return models.QueryResult{}, err
	}

	var turns []models.ConversationTurn
	if opts.UseHistory {
		turns = a.history.Recent(a.assembler.HistoryTurns())
	}

	assembly := a.assembler.Assemble(results, turns, question)
	if len(assembly.Used) == 0 {
		logger.Debug("no context for %q (%d results retrieved)", question, len(results))
		return noInformation(question), nil
	}

	answer, err := a.generator.Generate(ctx, assembly.Messages)
	if err != nil {
		return models.QueryResult{}, err
	}

	if opts.UseHistory {
		a.history.Append(
			models.ConversationTurn{Role: models.RoleUser, Content: question},
			models.ConversationTurn{Role: models.RoleAssistant, Content: answer},
		)
	}

	sources := make([]models.Source, len(assembly.Used))
	for i, r := range assembly.Used {
		sources[i] = models.Source{
			Source:  r.Source(),
			Score:   r.Score,
			Preview: Preview(r.Content),
		}
	}

	return models.QueryResult{
		Question:    question,
		Answer:      answer,
		Sources:     sources,
		ContextUsed: true,
	}, nil
}

func noInformation(question string) models.QueryResult {
	return models.QueryResult{
		Question: question,
		Answer:   NoInformationAnswer,
		Sources:  []models.Source{},
	}
}

// Preview returns the first 100 characters of content, with "..." appended
// only when something was cut.
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "..."
}

func (a *Agent) ClearHistory() {
	a.history.Clear()
}

func (a *Agent) HistoryLen() int {
	return a.history.Len()
}

func (a *Agent) CollectionStats(ctx context.Context) (models.CollectionStats, error) {
	return a.index.Stats(ctx, a.config.Collection)
}
