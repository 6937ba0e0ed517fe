package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xhad/askdocs/pkg/agent"
	"github.com/xhad/askdocs/pkg/ingest"
	"github.com/xhad/askdocs/pkg/logger"
	"github.com/xhad/askdocs/pkg/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Message types.
const (
	TypeQuery    = "query"
	TypeResponse = "response"
	TypeClear    = "clear"
	TypeCleared  = "cleared"
	TypeStats    = "stats"
	TypeIngest   = "ingest"
	TypeIngested = "ingested"
	TypeProgress = "progress"
	TypeStatus   = "status"
	TypeError    = "error"
)

type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Data    any    `json:"data,omitempty"`
}

type incoming struct {
	Type    string          `json:"type"`
	Content string          `json:"content"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type queryData struct {
	TopK       int   `json:"top_k"`
	UseHistory *bool `json:"use_history"`
}

// IngestFunc crawls url and indexes what it finds, reporting progress text.
type IngestFunc func(ctx context.Context, url string, progress func(string)) (ingest.Report, error)

type Config struct {
	Addr string
	// UseHistory is the default for queries that do not say.
	UseHistory bool
	Ingest     IngestFunc
}

// WSServer serves the agent over a websocket, one conversation per
// connection.
type WSServer struct {
	config  Config
	agent   *agent.Agent
	metrics *metrics.Metrics
}

func NewWSServer(config Config, a *agent.Agent, m *metrics.Metrics) *WSServer {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	return &WSServer{config: config, agent: a, metrics: m}
}

func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully.
func (s *WSServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting websocket server on %s", s.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *WSServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.agent.CollectionStats(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	json.NewEncoder(w).Encode(stats)
}

// conn serializes writes; gorilla connections allow one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		logger.Debug("error sending message: %v", err)
	}
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &conn{ws: ws}
	session := s.agent.NewSession()
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("error reading message: %v", err)
			}
			cancel()
			return
		}

		var msg incoming
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.send(Message{Type: TypeError, Content: fmt.Sprintf("invalid message: %v", err)})
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleMessage(ctx, c, session, msg)
		}()
	}
}

func (s *WSServer) handleMessage(ctx context.Context, c *conn, session *agent.Agent, msg incoming) {
	switch msg.Type {
	case TypeQuery:
		data := queryData{}
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				c.send(Message{Type: TypeError, Content: fmt.Sprintf("invalid query options: %v", err)})
				return
			}
		}
		useHistory := s.config.UseHistory
		if data.UseHistory != nil {
			useHistory = *data.UseHistory
		}

		result := session.Query(ctx, msg.Content, agent.QueryOptions{TopK: data.TopK, UseHistory: useHistory})
		c.send(Message{Type: TypeResponse, Content: result.Answer, Data: result})

	case TypeClear:
		session.ClearHistory()
		c.send(Message{Type: TypeCleared, Content: "conversation history cleared"})

	case TypeStats:
		stats, err := session.CollectionStats(ctx)
		if err != nil {
			c.send(Message{Type: TypeError, Content: err.Error()})
			return
		}
		c.send(Message{Type: TypeStats, Data: stats})

	case TypeIngest:
		if s.config.Ingest == nil {
			c.send(Message{Type: TypeError, Content: "ingestion is disabled on this server"})
			return
		}
		c.send(Message{Type: TypeStatus, Content: fmt.Sprintf("Processing URL: %s", msg.Content)})
		report, err := s.config.Ingest(ctx, msg.Content, func(p string) {
			c.send(Message{Type: TypeProgress, Content: p})
		})
		if err != nil {
			c.send(Message{Type: TypeError, Content: fmt.Sprintf("ingestion failed: %v", err)})
			return
		}
		c.send(Message{
			Type:    TypeIngested,
			Content: fmt.Sprintf("Indexed %d chunks from %d documents", report.Indexed, report.Documents),
			Data:    report,
		})

	default:
		c.send(Message{Type: TypeError, Content: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}
