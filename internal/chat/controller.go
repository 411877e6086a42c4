package chat

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/lokapasar/chatsync/internal/dto"
	"github.com/lokapasar/chatsync/internal/session"
)

// Options tunes controller construction.
type Options struct {
	PageSize     int
	PollInterval time.Duration
	// Visible gates poll cycles; nil means always visible.
	Visible func() bool
}

// Controller owns the chat subsystem for one session: the thread list, the
// timeline and poller of the currently open thread, and the active composer.
// It is created after login and shut down at logout; nothing here reads
// ambient global state.
type Controller struct {
	transport Transport
	sess      session.Session
	threads   *ThreadList
	timeline  *Timeline
	poller    *Poller
	uploader  *Uploader
	validate  *validator.Validate
	logger    zerolog.Logger

	mu       sync.Mutex
	composer *Composer
}

// NewController wires the chat stores around a transport and session.
func NewController(t Transport, sess session.Session, opts Options, logger zerolog.Logger) *Controller {
	logger = logger.With().Str("component", "chat_controller").Logger()

	threads := NewThreadList(t, logger)
	timeline := NewTimeline(t, opts.PageSize, logger)
	poller := NewPoller(timeline, threads, opts.PollInterval, opts.Visible, logger)

	return &Controller{
		transport: t,
		sess:      sess,
		threads:   threads,
		timeline:  timeline,
		poller:    poller,
		uploader:  NewUploader(t, logger),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

// Threads exposes the thread list store.
func (c *Controller) Threads() *ThreadList { return c.threads }

// Timeline exposes the timeline store of the open thread.
func (c *Controller) Timeline() *Timeline { return c.timeline }

// Poller exposes the polling scheduler.
func (c *Controller) Poller() *Poller { return c.poller }

// Composer returns the composer bound to the open thread, or nil when no
// thread is open.
func (c *Controller) Composer() *Composer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.composer
}

// LoadThreads refreshes the thread list for the session's role.
func (c *Controller) LoadThreads(ctx context.Context) error {
	return c.threads.Load(ctx, c.sess.Role)
}

// OpenThread switches the view to a thread: it stops any previous polling
// loop, loads the newest page, confirms the read mark, binds a fresh composer
// and arms the poller. Cancelling ctx also stops the polling loop.
func (c *Controller) OpenThread(ctx context.Context, chatID string) error {
	c.poller.Stop()

	if err := c.timeline.LoadInitial(ctx, chatID); err != nil {
		return err
	}

	if err := c.threads.MarkRead(ctx, chatID); err != nil {
		// Unread count stays until a later mark-read succeeds.
		c.logger.Debug().Err(err).Str("chat_id", chatID).Msg("read mark on open failed")
	}

	c.mu.Lock()
	c.composer = NewComposer(chatID, c.transport, c.uploader, c.validate, c.logger, func(sendCtx context.Context, message dto.Message) {
		c.timeline.Append(message)
		if err := c.threads.RefreshAfterSend(sendCtx, chatID); err != nil {
			c.logger.Debug().Err(err).Str("chat_id", chatID).Msg("thread refresh after send failed")
		}
	})
	c.mu.Unlock()

	c.poller.Start(ctx, chatID)
	return nil
}

// CloseThread stops polling for the open thread. The composer and timeline
// are replaced on the next OpenThread.
func (c *Controller) CloseThread() {
	c.poller.Stop()
}

// Shutdown tears the subsystem down at logout.
func (c *Controller) Shutdown() {
	c.poller.Stop()
}

// StartInquiry opens (or finds) the inquiry thread for a product and returns
// its chat id.
func (c *Controller) StartInquiry(ctx context.Context, productID string) (string, error) {
	inquiry, err := c.transport.StartInquiry(ctx, productID)
	if err != nil {
		return "", err
	}
	return inquiry.ChatID, nil
}
