package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lokapasar/chatsync/internal/observability"
)

const defaultPollInterval = 5 * time.Second

// Poller periodically folds the newest page of the open thread into the
// timeline. Cycles are skipped entirely while the view is not visible, and
// poll failures are swallowed apart from a diagnostic signal; the background
// refresh never interrupts the user.
type Poller struct {
	interval time.Duration
	visible  func() bool
	timeline *Timeline
	threads  *ThreadList
	logger   zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
}

// NewPoller constructs a poller. visible may be nil, in which case every
// cycle runs.
func NewPoller(timeline *Timeline, threads *ThreadList, interval time.Duration, visible func() bool, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		interval: interval,
		visible:  visible,
		timeline: timeline,
		threads:  threads,
		logger:   logger.With().Str("component", "poller").Logger(),
	}
}

// Start arms the polling loop for a thread. Any loop already running is
// stopped first; at most one loop exists per poller.
func (p *Poller) Start(ctx context.Context, chatID string) {
	p.Stop()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go p.run(ctx, chatID, done)
	p.logger.Debug().Str("chat_id", chatID).Dur("interval", p.interval).Msg("polling started")
}

// Stop cancels the running loop and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// LastError returns the diagnostic from the most recent failed cycle, or nil
// after a successful one.
func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Poller) run(ctx context.Context, chatID string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.visible != nil && !p.visible() {
				continue
			}

			observability.Polls().Inc()
			added, err := p.timeline.MergeNewer(ctx)
			if err != nil {
				observability.PollFailures().Inc()
				p.setLastErr(err)
				p.logger.Debug().Err(err).Str("chat_id", chatID).Msg("poll cycle failed")
				continue
			}
			p.setLastErr(nil)

			// The user is presumed to be viewing the thread, so anything a
			// poll delivered counts as read.
			if added > 0 && p.threads != nil {
				if err := p.threads.MarkRead(ctx, chatID); err != nil {
					p.logger.Debug().Err(err).Str("chat_id", chatID).Msg("read mark after poll failed")
				}
			}
		}
	}
}

func (p *Poller) setLastErr(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}
