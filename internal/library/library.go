// Package library holds the loaded archive and serves views and branch moves
// to the host surfaces (HTTP, NATS, CLI).
package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/arbor/internal/archive"
	"github.com/MikeSquared-Agency/arbor/internal/branch"
	"github.com/MikeSquared-Agency/arbor/internal/conversation"
	"github.com/MikeSquared-Agency/arbor/internal/hermes"
	"github.com/MikeSquared-Agency/arbor/internal/metrics"
)

var (
	ErrNotFound    = errors.New("conversation not found")
	ErrUnavailable = errors.New("conversation could not be opened")
)

// Publisher sends events; *hermes.Client satisfies it.
type Publisher interface {
	Publish(subject string, data any) error
}

// Selections persists the selected node per conversation; *store.Store
// satisfies it.
type Selections interface {
	GetSelection(ctx context.Context, conversationID string) (string, bool, error)
	SaveSelection(ctx context.Context, conversationID, nodeID string) error
}

// Summary is the list entry for one conversation.
type Summary struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	CreateTime archive.Timestamp `json:"create_time"`
	UpdateTime archive.Timestamp `json:"update_time"`
	Messages   int               `json:"messages"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
}

// Library is safe for concurrent use. Sessions are only touched under mu.
type Library struct {
	selections Selections
	publisher  Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu      sync.Mutex
	source  string
	order   []string
	results map[string]conversation.Result
}

// Option configures a Library.
type Option func(*Library)

func WithSelections(s Selections) Option { return func(l *Library) { l.selections = s } }
func WithPublisher(p Publisher) Option { return func(l *Library) { l.publisher = p } }
func WithMetrics(m *metrics.Metrics) Option { return func(l *Library) { l.metrics = m } }

func New(logger *slog.Logger, opts ...Option) *Library {
	l := &Library{
		logger:  logger,
		results: make(map[string]conversation.Result),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load reads the export at path and replaces the current archive.
func (l *Library) Load(ctx context.Context, path string) (hermes.ArchiveLoaded, error) {
	a, err := archive.Load(path)
	if err != nil {
		return hermes.ArchiveLoaded{}, fmt.Errorf("load archive %s: %w", path, err)
	}
	return l.Replace(ctx, path, a), nil
}

// Replace opens every conversation of a and swaps it in wholesale. Saved
// selections are restored when they still name a node of the conversation.
func (l *Library) Replace(ctx context.Context, source string, a *archive.Archive) hermes.ArchiveLoaded {
	results := conversation.OpenAll(a, l.logger)

	evt := hermes.ArchiveLoaded{
		EventID:   hermes.NewEventID(),
		Path:      source,
		Timestamp: time.Now().UTC(),
	}

	order := make([]string, 0, len(results))
	byKey := make(map[string]conversation.Result, len(results))
	for _, r := range results {
		key := r.ID
		if _, dup := byKey[key]; key == "" || dup {
			key = fmt.Sprintf("#%d", r.Index)
			l.logger.Warn("conversation id missing or duplicated", "id", r.ID, "key", key)
		}
		order = append(order, key)

		switch {
		case r.Failed():
			evt.Failed = append(evt.Failed, key)
			l.metrics.ConversationOpened(metrics.StatusFailed)
		case r.Err != nil:
			evt.Empty++
			l.metrics.ConversationOpened(metrics.StatusEmpty)
		default:
			l.restoreSelection(ctx, key, r.Session)
			l.metrics.ConversationOpened(metrics.StatusOK)
		}
		byKey[key] = r
	}
	evt.Conversations = len(results)

	l.mu.Lock()
	l.source, l.order, l.results = source, order, byKey
	l.mu.Unlock()

	l.metrics.SetLoaded(len(results))
	l.logger.Info("archive loaded",
		"source", source,
		"conversations", evt.Conversations,
		"empty", evt.Empty,
		"failed", len(evt.Failed),
	)
	l.publish(hermes.SubjectArchiveLoaded, evt)
	return evt
}

func (l *Library) restoreSelection(ctx context.Context, key string, s *conversation.Session) {
	if l.selections == nil {
		return
	}
	node, ok, err := l.selections.GetSelection(ctx, key)
	if err != nil {
		l.logger.Warn("failed to read saved selection", "conversation_id", key, "error", err)
		return
	}
	if !ok {
		return
	}
	changed, err := s.Select(node)
	if err != nil {
		l.logger.Warn("saved selection rejected", "conversation_id", key, "node", node, "error", err)
		return
	}
	if changed {
		l.logger.Debug("selection restored", "conversation_id", key, "node", node)
	}
}

// Source returns where the current archive was loaded from.
func (l *Library) Source() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.source
}

// List summarises every conversation in archive order.
func (l *Library) List() []Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Summary, 0, len(l.order))
	for _, key := range l.order {
		r := l.results[key]
		sum := Summary{ID: key, Title: r.Title, Status: metrics.StatusOK}
		switch {
		case r.Failed():
			sum.Status = metrics.StatusFailed
			sum.Error = r.Err.Error()
		default:
			v := r.Session.View()
			sum.CreateTime, sum.UpdateTime = v.CreateTime, v.UpdateTime
			sum.Messages = len(v.Entries)
			if v.Empty {
				sum.Status = metrics.StatusEmpty
			}
		}
		out = append(out, sum)
	}
	return out
}

// View returns the current view of a conversation.
func (l *Library) View(id string) (conversation.View, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.session(id)
	if err != nil {
		return conversation.View{}, err
	}
	return s.View(), nil
}

// MoveBranch switches the branch at nodeID, persists the new selection and
// announces it.
func (l *Library) MoveBranch(ctx context.Context, id, nodeID string, dir branch.Direction) (conversation.View, error) {
	l.mu.Lock()
	s, err := l.session(id)
	if err != nil {
		l.mu.Unlock()
		return conversation.View{}, err
	}
	before := s.Current()
	view, err := s.MoveBranch(nodeID, dir)
	l.mu.Unlock()

	if err != nil {
		l.metrics.BranchMoved(dir.String(), metrics.OutcomeRejected)
		return view, err
	}
	if view.CurrentNode == before {
		l.metrics.BranchMoved(dir.String(), metrics.OutcomeBoundary)
		return view, nil
	}
	l.metrics.BranchMoved(dir.String(), metrics.OutcomeMoved)

	if l.selections != nil {
		if err := l.selections.SaveSelection(ctx, id, view.CurrentNode); err != nil {
			l.logger.Warn("failed to save selection", "conversation_id", id, "error", err)
		}
	}
	l.publish(hermes.SubjectBranchMoved, hermes.BranchMoved{
		EventID:        hermes.NewEventID(),
		ConversationID: id,
		ForkNodeID:     nodeID,
		Direction:      dir.String(),
		PreviousNode:   before,
		CurrentNode:    view.CurrentNode,
		Timestamp:      time.Now().UTC(),
	})
	return view, nil
}

// HandleArchiveImported is the NATS handler for swarm.arbor.archive.imported.
func (l *Library) HandleArchiveImported(subject string, data []byte) {
	var evt hermes.ArchiveImported
	if err := json.Unmarshal(data, &evt); err != nil {
		l.logger.Error("failed to parse archive event", "subject", subject, "error", err)
		return
	}
	if evt.Path == "" {
		l.logger.Error("archive event without path", "subject", subject)
		return
	}
	if _, err := l.Load(context.Background(), evt.Path); err != nil {
		l.logger.Error("archive reload failed", "path", evt.Path, "error", err)
	}
}

// session must be called with mu held.
func (l *Library) session(id string) (*conversation.Session, error) {
	r, ok := l.results[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if r.Failed() {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, r.Err)
	}
	return r.Session, nil
}

func (l *Library) publish(subject string, evt any) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(subject, evt); err != nil {
		l.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
