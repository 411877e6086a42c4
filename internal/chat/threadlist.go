package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lokapasar/chatsync/internal/dto"
)

// ThreadList holds the inquiry threads for the current user. The collection is
// replaced wholesale on successful loads and kept in backend order; the client
// never resorts locally, so paginated fetches and the list stay consistent.
type ThreadList struct {
	mu        sync.Mutex
	transport Transport
	logger    zerolog.Logger
	role      string
	threads   []dto.Thread
}

// NewThreadList constructs an empty thread list store.
func NewThreadList(transport Transport, logger zerolog.Logger) *ThreadList {
	return &ThreadList{
		transport: transport,
		logger:    logger.With().Str("component", "thread_list").Logger(),
	}
}

// Load fetches the full thread list for the role and replaces the held
// collection. A transport failure leaves the existing collection untouched.
func (l *ThreadList) Load(ctx context.Context, role string) error {
	threads, err := l.transport.ListThreads(ctx, role)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.role = role
	l.threads = threads
	l.mu.Unlock()

	l.logger.Debug().Str("role", role).Int("count", len(threads)).Msg("thread list loaded")
	return nil
}

// Threads returns a copy of the held collection in backend order.
func (l *ThreadList) Threads() []dto.Thread {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]dto.Thread, len(l.threads))
	copy(out, l.threads)
	return out
}

// Get returns the thread with the given chat id, if held.
func (l *ThreadList) Get(chatID string) (dto.Thread, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range l.threads {
		if t.ChatID == chatID {
			return t, true
		}
	}
	return dto.Thread{}, false
}

// MarkRead confirms the read state with the backend and only then zeroes the
// local unread count. A failed call leaves the count unchanged; the client
// never assumes a read-mark optimistically.
func (l *ThreadList) MarkRead(ctx context.Context, chatID string) error {
	if err := l.transport.MarkRead(ctx, chatID); err != nil {
		return err
	}

	l.mu.Lock()
	for i := range l.threads {
		if l.threads[i].ChatID == chatID {
			l.threads[i].UnreadCount = 0
			break
		}
	}
	l.mu.Unlock()
	return nil
}

// RefreshAfterSend re-fetches the list so lastMessage and ordering reflect the
// just-sent message instead of drifting from the timeline.
func (l *ThreadList) RefreshAfterSend(ctx context.Context, chatID string) error {
	l.mu.Lock()
	role := l.role
	l.mu.Unlock()

	if role == "" {
		return nil
	}
	if err := l.Load(ctx, role); err != nil {
		l.logger.Debug().Err(err).Str("chat_id", chatID).Msg("thread list refresh after send failed")
		return err
	}
	return nil
}
