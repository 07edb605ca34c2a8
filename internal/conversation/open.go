package conversation

import (
	"log/slog"

	"github.com/MikeSquared-Agency/arbor/internal/archive"
	"github.com/MikeSquared-Agency/arbor/internal/branch"
)

// Result is the outcome of opening one archive entry. Session is nil when
// Err is fatal for that conversation; an empty conversation has both a
// Session and an *EmptyConversationError.
type Result struct {
	Index   int
	ID      string
	Title   string
	Session *Session
	Err     error
}

// Failed reports whether the conversation could not be opened.
func (r Result) Failed() bool { return r.Session == nil }

// OpenAll opens every conversation of an archive, in archive order. A failure
// in one entry is logged and recorded on its Result; it never stops the
// others. Entries the decoder skipped come back as failed results.
func OpenAll(a *archive.Archive, logger *slog.Logger, opts ...branch.Option) []Result {
	total := len(a.Conversations) + len(a.Skipped)
	results := make([]Result, 0, total)

	convs, skipped := a.Conversations, a.Skipped
	for i := 0; i < total; i++ {
		if len(skipped) > 0 && (skipped[0].Index == i || len(convs) == 0) {
			se := skipped[0]
			skipped = skipped[1:]
			logger.Warn("conversation skipped", "index", se.Index, "conversation_id", se.ID, "error", se.Err)
			results = append(results, Result{Index: i, ID: se.ID, Err: se})
			continue
		}

		c := convs[0]
		convs = convs[1:]
		results = append(results, open(i, c, logger, opts))
	}
	return results
}

func open(i int, c archive.Conversation, logger *slog.Logger, opts []branch.Option) Result {
	r := Result{Index: i, ID: c.ID, Title: c.Title}
	s, err := Open(c, opts...)
	if err != nil {
		logger.Warn("conversation failed to open", "conversation_id", c.ID, "error", err)
		r.Err = err
		return r
	}
	r.Session = s
	if err := s.Err(); err != nil {
		logger.Debug("conversation is empty", "conversation_id", c.ID)
		r.Err = err
	}
	return r
}
