package dto

import (
	"strings"
	"time"
)

// Message type values accepted by the backend.
const (
	MessageTypeText = "TEXT"
	MessageTypeFile = "FILE"
)

// Thread summarises one buyer-seller product inquiry as shown in the inbox.
type Thread struct {
	ChatID               string    `json:"chatId"`
	OtherParticipantName string    `json:"otherParticipantName"`
	TopicTitle           string    `json:"topicTitle"`
	TopicImageURL        string    `json:"topicImageUrl,omitempty"`
	LastMessage          string    `json:"lastMessage,omitempty"`
	LastMessageAt        time.Time `json:"lastMessageAt"`
	UnreadCount          int       `json:"unreadCount"`
}

// Message is the canonical, server-assigned representation of a chat message.
// Messages are immutable once created; ID is unique within a thread.
type Message struct {
	ID            string    `json:"id"`
	ChatID        string    `json:"chatId"`
	SenderID      string    `json:"senderId"`
	MessageType   string    `json:"messageType"`
	MessageText   string    `json:"messageText"`
	AttachmentURL string    `json:"attachmentUrl,omitempty"`
	FileName      string    `json:"fileName,omitempty"`
	FileType      string    `json:"fileType,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// IsFile reports whether the message carries an attachment.
func (m Message) IsFile() bool {
	return m.MessageType == MessageTypeFile
}

// Summary returns the text shown in thread list previews. Attachments are
// collapsed to a marker so the list never renders raw URLs.
func (m Message) Summary() string {
	if m.IsFile() {
		if name := strings.TrimSpace(m.FileName); name != "" {
			return "\U0001F4CE " + name
		}
		return "\U0001F4CE attachment"
	}
	return m.MessageText
}

// MessagePage is one page of thread history. The backend returns pages
// newest-first; Last marks the oldest page.
type MessagePage struct {
	Content []Message `json:"content"`
	Page    int       `json:"page"`
	Size    int       `json:"size"`
	Last    bool      `json:"last"`
}

// SendMessageRequest is the payload posted to create a message.
type SendMessageRequest struct {
	MessageType   string `json:"messageType" validate:"required,oneof=TEXT FILE"`
	MessageText   string `json:"messageText" validate:"max=4000"`
	AttachmentURL string `json:"attachmentUrl,omitempty" validate:"omitempty,url"`
	FileName      string `json:"fileName,omitempty" validate:"max=255"`
	FileMimeType  string `json:"fileMimeType,omitempty" validate:"max=128"`
}

// UploadResult describes a stored attachment returned by the upload endpoint.
type UploadResult struct {
	FileURL      string `json:"fileUrl"`
	FileName     string `json:"fileName"`
	FileMimeType string `json:"fileType"`
}

// StartInquiryRequest opens (or returns) the thread for a product inquiry.
type StartInquiryRequest struct {
	ProductID string `json:"productId" validate:"required,max=64"`
}

// Inquiry is the response to a start-inquiry call.
type Inquiry struct {
	ChatID string `json:"chatId"`
}

// Envelope is the common response wrapper used by the backend.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
}
