// Package chatbot answers customer questions from a local knowledge base
// of documents and ingested web pages.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/google/uuid"

	"github.com/kalambet/flowerdesk/internal/engine"
	"github.com/kalambet/flowerdesk/internal/prompts"
	"github.com/kalambet/flowerdesk/internal/retrieval"
)

const (
	// DefaultTopK is how many chunks back an answer.
	DefaultTopK = 4
	// MaxTurns is how many question/answer pairs a session keeps.
	MaxTurns = 10
	// MaxSessions caps the sessions held in memory. The least recently
	// used one is dropped first.
	MaxSessions = 1000

	maxPageSize = 5 << 20
)

// AnswerFailed is the reply when the backend cannot answer.
const AnswerFailed = "抱歉,回答问题时出现错误,请稍后重试。"

// ErrEmptyQuestion is returned by Ask for a blank question.
var ErrEmptyQuestion = errors.New("question is empty")

// Converser answers a message history.
type Converser interface {
	Converse(ctx context.Context, messages []engine.Message) (string, error)
}

// Index is the knowledge base. ReplaceSource swaps in the chunks of the
// source named in metadata and keeps the old ones if it fails.
type Index interface {
	ReplaceSource(ctx context.Context, ids, texts []string, metadata map[string]string) error
	QueryNearest(ctx context.Context, text string, k int) ([]retrieval.Match, error)
}

// Answer is the reply to one question.
type Answer struct {
	SessionID string   `json:"session_id"`
	Reply     string   `json:"response"`
	Sources   []string `json:"sources"`
}

// Bot is a retrieval-augmented chatbot with per-session history.
type Bot struct {
	gen     Converser
	index   Index
	prompts *prompts.Catalog
	logger  *slog.Logger
	client  *http.Client

	mu          sync.Mutex
	sessions    map[string]*session
	maxSessions int
	clock       uint64
}

type session struct {
	msgs     []engine.Message
	lastUsed uint64
}

// New creates a Bot.
func New(gen Converser, index Index, catalog *prompts.Catalog, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bot{
		gen:         gen,
		index:       index,
		prompts:     catalog,
		logger:      logger,
		client:      &http.Client{Timeout: 30 * time.Second},
		sessions:    make(map[string]*session),
		maxSessions: MaxSessions,
	}
}

// LoadDir ingests every supported document under dir and returns the
// number of chunks stored.
func (b *Bot) LoadDir(ctx context.Context, dir string) (int, error) {
	docs, err := LoadDir(dir)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, d := range docs {
		n, err := b.AddText(ctx, d.Source, d.Text)
		if err != nil {
			return total, err
		}
		total += n
	}
	b.logger.Info("knowledge base loaded", "dir", dir, "documents", len(docs), "chunks", total)
	return total, nil
}

// AddText chunks text and stores it under source, replacing anything
// previously stored for that source. Chunk ids are derived from source
// and position, so reloading a document is idempotent. A failed reload
// leaves the previous chunks in place.
func (b *Bot) AddText(ctx context.Context, source, text string) (int, error) {
	chunks := retrieval.Chunk(text, retrieval.DefaultChunkSize)
	if len(chunks) == 0 {
		return 0, nil
	}
	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = chunkID(source, i)
	}
	if err := b.index.ReplaceSource(ctx, ids, chunks, map[string]string{"source": source}); err != nil {
		return 0, fmt.Errorf("indexing %s: %w", source, err)
	}
	b.logger.Debug("document indexed", "source", source, "chunks", len(chunks))
	return len(chunks), nil
}

func chunkID(source string, i int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"#"+strconv.Itoa(i))).String()
}

// AddURL fetches an article, extracts its readable text and stores it
// under the URL.
func (b *Bot) AddURL(ctx context.Context, rawURL string) (int, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return 0, fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetching %s: status %d", u, resp.StatusCode)
	}
	page, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", u, err)
	}

	text := ""
	article, err := readability.FromReader(strings.NewReader(string(page)), u)
	if err == nil {
		text = strings.TrimSpace(article.TextContent)
		if article.Title != "" && text != "" {
			text = article.Title + "\n" + text
		}
	} else {
		b.logger.Warn("readability failed, using page text", "url", u.String(), "error", err)
	}
	if text == "" {
		if text, err = HTMLText(strings.NewReader(string(page))); err != nil {
			return 0, fmt.Errorf("parsing %s: %w", u, err)
		}
	}
	return b.AddText(ctx, u.String(), text)
}

// Ask answers question within session. An empty sessionID starts a new
// session; the returned Answer carries its id. Backend failures produce
// AnswerFailed and leave the history unchanged.
func (b *Bot) Ask(ctx context.Context, sessionID, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var snippets, sources []string
	matches, err := b.index.QueryNearest(ctx, question, DefaultTopK)
	if err != nil {
		b.logger.Warn("retrieving chat context", "session", sessionID, "error", err)
	}
	for _, m := range matches {
		snippets = append(snippets, m.Text)
		if src := m.Metadata["source"]; src != "" && !slices.Contains(sources, src) {
			sources = append(sources, src)
		}
	}

	system, err := b.prompts.Render(prompts.ChatSystem, struct{ Context []string }{snippets})
	if err != nil {
		return Answer{}, fmt.Errorf("rendering chat prompt: %w", err)
	}

	history := b.history(sessionID)
	msgs := make([]engine.Message, 0, len(history)+2)
	msgs = append(msgs, engine.Message{Role: engine.RoleSystem, Content: system})
	msgs = append(msgs, history...)
	msgs = append(msgs, engine.Message{Role: engine.RoleUser, Content: question})

	reply, err := b.gen.Converse(ctx, msgs)
	if err != nil {
		b.logger.Error("chat backend failed", "session", sessionID, "error", err)
		return Answer{SessionID: sessionID, Reply: AnswerFailed, Sources: sources}, nil
	}
	reply = strings.TrimSpace(reply)

	b.remember(sessionID,
		engine.Message{Role: engine.RoleUser, Content: question},
		engine.Message{Role: engine.RoleAssistant, Content: reply},
	)
	return Answer{SessionID: sessionID, Reply: reply, Sources: sources}, nil
}

// Reset forgets a session's history.
func (b *Bot) Reset(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, sessionID)
}

func (b *Bot) history(sessionID string) []engine.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[sessionID]
	if !ok {
		return []engine.Message{}
	}
	return slices.Clone(s.msgs)
}

func (b *Bot) remember(sessionID string, msgs ...engine.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock++
	s, ok := b.sessions[sessionID]
	if !ok {
		if b.maxSessions > 0 && len(b.sessions) >= b.maxSessions {
			b.evictOldest()
		}
		s = &session{}
		b.sessions[sessionID] = s
	}
	s.lastUsed = b.clock
	h := append(s.msgs, msgs...)
	if over := len(h) - 2*MaxTurns; over > 0 {
		h = append([]engine.Message(nil), h[over:]...)
	}
	s.msgs = h
}

// evictOldest drops the least recently used session. Callers hold b.mu.
func (b *Bot) evictOldest() {
	var oldest string
	first := true
	var used uint64
	for id, s := range b.sessions {
		if first || s.lastUsed < used {
			oldest, used, first = id, s.lastUsed, false
		}
	}
	delete(b.sessions, oldest)
	b.logger.Debug("session evicted", "session", oldest)
}
