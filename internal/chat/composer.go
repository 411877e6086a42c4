package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/lokapasar/chatsync/internal/dto"
	"github.com/lokapasar/chatsync/internal/transport"
)

// ComposerState is the lifecycle state of one message composition.
type ComposerState int

const (
	// ComposerIdle accepts input; no call is in flight.
	ComposerIdle ComposerState = iota
	// ComposerUploading waits for the attachment upload to resolve.
	ComposerUploading
	// ComposerSending waits for the send call to resolve.
	ComposerSending
)

func (s ComposerState) String() string {
	switch s {
	case ComposerUploading:
		return "uploading"
	case ComposerSending:
		return "sending"
	default:
		return "idle"
	}
}

// PendingAttachment is the locally selected file awaiting send. Result is
// populated after a successful upload and reused by later send attempts, so a
// failed send never triggers a second upload of the same selection.
type PendingAttachment struct {
	FileName string
	Data     []byte
	Result   *dto.UploadResult
}

// Composer governs composing and sending one message at a time for a thread:
// idle -> (uploading) -> sending -> idle. Typed text and the selected file
// survive failed uploads and sends; only a successful send clears them.
type Composer struct {
	mu      sync.Mutex
	chatID  string
	state   ComposerState
	text    string
	pending *PendingAttachment
	lastErr error

	transport Transport
	uploader  *Uploader
	validate  *validator.Validate
	logger    zerolog.Logger
	onSent    func(context.Context, dto.Message)
}

// NewComposer constructs a composer bound to one thread. onSent receives the
// server's canonical message after a successful send.
func NewComposer(chatID string, t Transport, uploader *Uploader, validate *validator.Validate, logger zerolog.Logger, onSent func(context.Context, dto.Message)) *Composer {
	return &Composer{
		chatID:    chatID,
		transport: t,
		uploader:  uploader,
		validate:  validate,
		logger:    logger.With().Str("component", "composer").Str("chat_id", chatID).Logger(),
		onSent:    onSent,
	}
}

// ChatID returns the thread the composer is bound to.
func (c *Composer) ChatID() string { return c.chatID }

// State returns the current lifecycle state.
func (c *Composer) State() ComposerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error annotation from the last failed attempt, cleared by
// the next successful send.
func (c *Composer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// SetText replaces the draft text.
func (c *Composer) SetText(text string) {
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
}

// Text returns the draft text.
func (c *Composer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// Attach selects a file for the next send, replacing any earlier selection.
// Ignored while an upload or send is in flight.
func (c *Composer) Attach(fileName string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ComposerIdle {
		c.logger.Debug().Str("file_name", fileName).Msg("attach ignored while busy")
		return
	}
	c.pending = &PendingAttachment{FileName: fileName, Data: data}
}

// Attachment returns the pending attachment, if any.
func (c *Composer) Attachment() *PendingAttachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// RemoveAttachment drops the selected file. Ignored while busy.
func (c *Composer) RemoveAttachment() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ComposerIdle {
		return
	}
	c.pending = nil
}

// Send runs the upload-then-send sequence. It is a no-op while a previous
// attempt is in flight, or when the draft has neither text nor an attachment.
// On failure the draft is preserved exactly; a cached upload result makes the
// retry skip the upload entirely.
func (c *Composer) Send(ctx context.Context) error {
	c.mu.Lock()
	if c.state != ComposerIdle {
		c.mu.Unlock()
		return nil
	}

	text := strings.TrimSpace(c.text)
	pending := c.pending
	if text == "" && pending == nil {
		c.mu.Unlock()
		return nil
	}

	if pending != nil && pending.Result == nil {
		c.state = ComposerUploading
		fileName, data := pending.FileName, pending.Data
		c.mu.Unlock()

		result, err := c.uploader.Upload(ctx, c.chatID, fileName, data)

		c.mu.Lock()
		if err != nil {
			c.state = ComposerIdle
			c.lastErr = err
			c.mu.Unlock()
			return err
		}
		// Cache the result before attempting the send so a failed send
		// retries without re-uploading.
		pending.Result = &result
	}

	req := dto.SendMessageRequest{
		MessageType: dto.MessageTypeText,
		MessageText: text,
	}
	if pending != nil && pending.Result != nil {
		req.MessageType = dto.MessageTypeFile
		req.AttachmentURL = pending.Result.FileURL
		req.FileName = pending.Result.FileName
		req.FileMimeType = pending.Result.FileMimeType
	}
	c.state = ComposerSending
	c.mu.Unlock()

	if c.validate != nil {
		if err := c.validate.Struct(req); err != nil {
			c.fail(&transport.SendError{Err: err})
			return c.Err()
		}
	}

	message, err := c.transport.SendMessage(ctx, c.chatID, req)
	if err != nil {
		var sendErr *transport.SendError
		if !errors.As(err, &sendErr) {
			err = &transport.SendError{Err: err}
		}
		c.fail(err)
		return err
	}

	c.mu.Lock()
	c.state = ComposerIdle
	c.text = ""
	c.pending = nil
	c.lastErr = nil
	c.mu.Unlock()

	c.logger.Debug().Str("message_id", message.ID).Str("type", message.MessageType).Msg("message sent")
	if c.onSent != nil {
		c.onSent(ctx, message)
	}
	return nil
}

// fail returns the composer to idle with an error annotation, preserving the
// draft text and attachment.
func (c *Composer) fail(err error) {
	c.mu.Lock()
	c.state = ComposerIdle
	c.lastErr = err
	c.mu.Unlock()
}
