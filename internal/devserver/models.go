package devserver

import (
	"time"

	"github.com/lokapasar/chatsync/internal/dto"
	"github.com/lokapasar/chatsync/internal/session"
)

// InquiryThread is one buyer-seller conversation about a product. At most one
// thread exists per (buyer, product) pair.
type InquiryThread struct {
	ChatID          string `gorm:"primaryKey;size:64"`
	ProductID       string `gorm:"size:64;index:idx_inquiry_product_buyer,unique"`
	BuyerID         string `gorm:"size:64;index:idx_inquiry_product_buyer,unique"`
	SellerID        string `gorm:"size:64;index"`
	BuyerName       string `gorm:"size:128"`
	SellerName      string `gorm:"size:128"`
	ProductTitle    string `gorm:"size:255"`
	ProductImageURL string `gorm:"size:512"`
	LastMessage     string `gorm:"size:512"`
	LastMessageAt   time.Time
	BuyerUnread     int `gorm:"not null;default:0"`
	SellerUnread    int `gorm:"not null;default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// InquiryMessage is one immutable message within a thread.
type InquiryMessage struct {
	ID            string `gorm:"primaryKey;size:64"`
	ChatID        string `gorm:"size:64;index"`
	SenderID      string `gorm:"size:64;index"`
	MessageType   string `gorm:"size:16;default:TEXT"`
	MessageText   string `gorm:"type:text"`
	AttachmentURL string `gorm:"size:512"`
	FileName      string `gorm:"size:255"`
	FileType      string `gorm:"size:128"`
	CreatedAt     time.Time
}

// ToThread serialises the thread from one participant's perspective.
func (t InquiryThread) ToThread(role string) dto.Thread {
	out := dto.Thread{
		ChatID:        t.ChatID,
		TopicTitle:    t.ProductTitle,
		TopicImageURL: t.ProductImageURL,
		LastMessage:   t.LastMessage,
		LastMessageAt: t.LastMessageAt,
	}
	if role == session.RoleSeller {
		out.OtherParticipantName = t.BuyerName
		out.UnreadCount = t.SellerUnread
	} else {
		out.OtherParticipantName = t.SellerName
		out.UnreadCount = t.BuyerUnread
	}
	return out
}

// ToMessage serialises the message for clients.
func (m InquiryMessage) ToMessage() dto.Message {
	return dto.Message{
		ID:            m.ID,
		ChatID:        m.ChatID,
		SenderID:      m.SenderID,
		MessageType:   m.MessageType,
		MessageText:   m.MessageText,
		AttachmentURL: m.AttachmentURL,
		FileName:      m.FileName,
		FileType:      m.FileType,
		CreatedAt:     m.CreatedAt,
	}
}

func toMessages(items []InquiryMessage) []dto.Message {
	out := make([]dto.Message, 0, len(items))
	for _, item := range items {
		out = append(out, item.ToMessage())
	}
	return out
}
