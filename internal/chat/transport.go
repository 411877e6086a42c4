package chat

import (
	"context"

	"github.com/lokapasar/chatsync/internal/dto"
)

// Transport is the backend surface the chat core consumes. The HTTP client in
// internal/transport implements it; tests substitute scripted stubs.
type Transport interface {
	ListThreads(ctx context.Context, role string) ([]dto.Thread, error)
	GetMessages(ctx context.Context, chatID string, page, size int) (dto.MessagePage, error)
	SendMessage(ctx context.Context, chatID string, req dto.SendMessageRequest) (dto.Message, error)
	MarkRead(ctx context.Context, chatID string) error
	UploadAttachment(ctx context.Context, chatID, fileName string, data []byte) (dto.UploadResult, error)
	StartInquiry(ctx context.Context, productID string) (dto.Inquiry, error)
}
