package chat

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/lokapasar/chatsync/internal/dto"
	"github.com/lokapasar/chatsync/internal/transport"
)

// Uploader stores one attachment remotely and returns its reference. It owns
// no state beyond the in-flight call; caching a successful result against
// retries is the composer's contract.
type Uploader struct {
	transport Transport
	logger    zerolog.Logger
}

// NewUploader constructs an attachment uploader.
func NewUploader(t Transport, logger zerolog.Logger) *Uploader {
	return &Uploader{
		transport: t,
		logger:    logger.With().Str("component", "uploader").Logger(),
	}
}

// Upload sends the attachment bytes once and returns the remote reference.
func (u *Uploader) Upload(ctx context.Context, chatID, fileName string, data []byte) (dto.UploadResult, error) {
	result, err := u.transport.UploadAttachment(ctx, chatID, fileName, data)
	if err != nil {
		var uploadErr *transport.UploadError
		if !errors.As(err, &uploadErr) {
			err = &transport.UploadError{Err: err}
		}
		u.logger.Debug().Err(err).Str("chat_id", chatID).Str("file_name", fileName).Msg("attachment upload failed")
		return dto.UploadResult{}, err
	}

	u.logger.Debug().Str("chat_id", chatID).Str("file_url", result.FileURL).Msg("attachment uploaded")
	return result, nil
}
