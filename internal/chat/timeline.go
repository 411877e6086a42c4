package chat

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lokapasar/chatsync/internal/dto"
	"github.com/lokapasar/chatsync/internal/observability"
)

const defaultPageSize = 30

// Timeline holds the message history of the open thread. The held sequence
// preserves server page order: the newest page first, older pages appended
// behind it by LoadOlder. No two entries ever share a message id, regardless
// of how appends and poll merges interleave.
type Timeline struct {
	mu        sync.Mutex
	transport Transport
	logger    zerolog.Logger
	pageSize  int

	chatID       string
	entries      []dto.Message
	seen         map[string]struct{}
	hasMore      bool
	nextPage     int
	loadingOlder bool
}

// NewTimeline constructs an empty timeline store.
func NewTimeline(transport Transport, pageSize int, logger zerolog.Logger) *Timeline {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Timeline{
		transport: transport,
		pageSize:  pageSize,
		logger:    logger.With().Str("component", "timeline").Logger(),
		seen:      make(map[string]struct{}),
	}
}

// ChatID returns the thread the timeline is bound to.
func (t *Timeline) ChatID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chatID
}

// HasMore reports whether older pages remain to be fetched.
func (t *Timeline) HasMore() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasMore
}

// Len returns the number of held messages.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// LoadInitial binds the timeline to a thread and replaces the held sequence
// with the newest page. Results of calls still in flight for a previously
// bound thread are discarded when they resolve.
func (t *Timeline) LoadInitial(ctx context.Context, chatID string) error {
	t.mu.Lock()
	t.chatID = chatID
	t.entries = nil
	t.seen = make(map[string]struct{})
	t.hasMore = false
	t.nextPage = 1
	t.loadingOlder = false
	t.mu.Unlock()

	page, err := t.transport.GetMessages(ctx, chatID, 0, t.pageSize)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.chatID != chatID {
		// The view moved on while the fetch was in flight.
		return nil
	}

	t.entries = make([]dto.Message, 0, len(page.Content))
	t.seen = make(map[string]struct{}, len(page.Content))
	for _, m := range page.Content {
		if _, dup := t.seen[m.ID]; dup {
			continue
		}
		t.entries = append(t.entries, m)
		t.seen[m.ID] = struct{}{}
	}
	t.hasMore = !page.Last
	t.nextPage = 1

	t.logger.Debug().Str("chat_id", chatID).Int("count", len(t.entries)).Bool("has_more", t.hasMore).Msg("initial page loaded")
	return nil
}

// LoadOlder fetches the next older page and appends it behind the held
// sequence. Re-entrant calls while a fetch is in flight are no-ops, and a
// failed fetch never clears already-loaded messages.
func (t *Timeline) LoadOlder(ctx context.Context) error {
	t.mu.Lock()
	if t.chatID == "" || t.loadingOlder || !t.hasMore {
		t.mu.Unlock()
		return nil
	}
	t.loadingOlder = true
	chatID, pageNum := t.chatID, t.nextPage
	t.mu.Unlock()

	page, err := t.transport.GetMessages(ctx, chatID, pageNum, t.pageSize)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.loadingOlder = false

	if err != nil {
		return err
	}
	if t.chatID != chatID {
		return nil
	}

	for _, m := range page.Content {
		if _, dup := t.seen[m.ID]; dup {
			continue
		}
		t.entries = append(t.entries, m)
		t.seen[m.ID] = struct{}{}
	}
	t.hasMore = !page.Last
	t.nextPage = pageNum + 1
	return nil
}

// MergeNewer re-fetches the newest page and folds in messages not yet held,
// preserving existing entries' positions. It returns the number of messages
// added. A failed fetch leaves the sequence untouched.
func (t *Timeline) MergeNewer(ctx context.Context) (int, error) {
	t.mu.Lock()
	chatID := t.chatID
	t.mu.Unlock()
	if chatID == "" {
		return 0, nil
	}

	page, err := t.transport.GetMessages(ctx, chatID, 0, t.pageSize)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.chatID != chatID {
		return 0, nil
	}

	added := 0
	for _, m := range page.Content {
		if _, dup := t.seen[m.ID]; dup {
			continue
		}
		t.entries = append(t.entries, m)
		t.seen[m.ID] = struct{}{}
		added++
	}
	if added > 0 {
		observability.TimelineMerges().Add(float64(added))
		t.logger.Debug().Str("chat_id", chatID).Int("added", added).Msg("poll merged new messages")
	}
	return added, nil
}

// Append adds a just-sent message returned by the backend. Messages for other
// threads or already-held ids are ignored, so an append racing a poll merge of
// the same message leaves exactly one copy.
func (t *Timeline) Append(message dto.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.chatID == "" || (message.ChatID != "" && message.ChatID != t.chatID) {
		return
	}
	if _, dup := t.seen[message.ID]; dup {
		return
	}
	t.entries = append(t.entries, message)
	t.seen[message.ID] = struct{}{}
}

// Snapshot returns a copy of the held sequence in arrival order.
func (t *Timeline) Snapshot() []dto.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]dto.Message, len(t.entries))
	copy(out, t.entries)
	return out
}

// Chronological returns a copy sorted for rendering: createdAt ascending with
// id as the tie-break for equal timestamps.
func (t *Timeline) Chronological() []dto.Message {
	out := t.Snapshot()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
