package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lokapasar/chatsync/internal/session"
)

const lastMessageCacheTTL = 30 * time.Minute

// Store persists inquiry threads and messages for the dev backend.
type Store interface {
	EnsureInquiry(ctx context.Context, productID, buyerID, buyerName string) (InquiryThread, error)
	ListThreads(ctx context.Context, userID, role string) ([]InquiryThread, error)
	GetThread(ctx context.Context, chatID string) (InquiryThread, error)
	PageMessages(ctx context.Context, chatID string, page, size int) ([]InquiryMessage, bool, error)
	SaveMessage(ctx context.Context, message *InquiryMessage) error
	MarkRead(ctx context.Context, chatID, userID string) error
	LastMessage(ctx context.Context, chatID string) (InquiryMessage, bool)
}

type gormStore struct {
	db          *gorm.DB
	redis       *redis.Client
	cachePrefix string
	logger      zerolog.Logger
}

// NewStore constructs a store backed by GORM with an optional Redis cache for
// last-message lookups. redisClient may be nil.
func NewStore(db *gorm.DB, redisClient *redis.Client, cachePrefix string, logger zerolog.Logger) Store {
	return &gormStore{
		db:          db,
		redis:       redisClient,
		cachePrefix: cachePrefix,
		logger:      logger.With().Str("component", "devserver_store").Logger(),
	}
}

// Migrate creates the dev backend tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&InquiryThread{}, &InquiryMessage{})
}

func (s *gormStore) EnsureInquiry(ctx context.Context, productID, buyerID, buyerName string) (InquiryThread, error) {
	var thread InquiryThread
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND buyer_id = ?", productID, buyerID).
		First(&thread).Error
	if err == nil {
		return thread, nil
	}
	if err != gorm.ErrRecordNotFound {
		return InquiryThread{}, err
	}

	thread = InquiryThread{
		ChatID:       uuid.NewString(),
		ProductID:    productID,
		BuyerID:      buyerID,
		BuyerName:    buyerName,
		SellerID:     "seller-" + productID,
		SellerName:   "Seller " + productID,
		ProductTitle: "Product " + productID,
	}
	if err := s.db.WithContext(ctx).Create(&thread).Error; err != nil {
		return InquiryThread{}, err
	}
	return thread, nil
}

func (s *gormStore) ListThreads(ctx context.Context, userID, role string) ([]InquiryThread, error) {
	query := s.db.WithContext(ctx)
	if role == session.RoleSeller {
		query = query.Where("seller_id = ?", userID)
	} else {
		query = query.Where("buyer_id = ?", userID)
	}

	var threads []InquiryThread
	if err := query.Order("last_message_at DESC").Find(&threads).Error; err != nil {
		return nil, err
	}
	return threads, nil
}

func (s *gormStore) GetThread(ctx context.Context, chatID string) (InquiryThread, error) {
	var thread InquiryThread
	err := s.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&thread).Error
	if err != nil {
		return InquiryThread{}, err
	}
	return thread, nil
}

// PageMessages returns one newest-first page and whether it is the oldest one.
func (s *gormStore) PageMessages(ctx context.Context, chatID string, page, size int) ([]InquiryMessage, bool, error) {
	if size <= 0 || size > 100 {
		size = 30
	}
	if page < 0 {
		page = 0
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&InquiryMessage{}).Where("chat_id = ?", chatID).Count(&total).Error; err != nil {
		return nil, false, err
	}

	var messages []InquiryMessage
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC, id DESC").
		Offset(page * size).
		Limit(size).
		Find(&messages).Error
	if err != nil {
		return nil, false, err
	}

	last := int64((page+1)*size) >= total
	return messages, last, nil
}

func (s *gormStore) SaveMessage(ctx context.Context, message *InquiryMessage) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	thread, err := s.GetThread(ctx, message.ChatID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"last_message":    message.ToMessage().Summary(),
			"last_message_at": message.CreatedAt,
		}
		if message.SenderID == thread.BuyerID {
			updates["seller_unread"] = gorm.Expr("seller_unread + 1")
		} else {
			updates["buyer_unread"] = gorm.Expr("buyer_unread + 1")
		}

		if err := tx.Model(&InquiryThread{}).Where("chat_id = ?", message.ChatID).Updates(updates).Error; err != nil {
			return err
		}

		s.cacheLastMessage(ctx, *message)
		return nil
	})
}

func (s *gormStore) MarkRead(ctx context.Context, chatID, userID string) error {
	thread, err := s.GetThread(ctx, chatID)
	if err != nil {
		return err
	}

	column := "buyer_unread"
	if userID == thread.SellerID {
		column = "seller_unread"
	}

	return s.db.WithContext(ctx).
		Model(&InquiryThread{}).
		Where("chat_id = ?", chatID).
		Update(column, 0).Error
}

// LastMessage serves the cached newest message when Redis is configured,
// falling back to the database.
func (s *gormStore) LastMessage(ctx context.Context, chatID string) (InquiryMessage, bool) {
	if cached, ok := s.fetchCachedLastMessage(ctx, chatID); ok {
		return cached, true
	}

	var message InquiryMessage
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC, id DESC").
		First(&message).Error
	if err != nil {
		return InquiryMessage{}, false
	}
	return message, true
}

func (s *gormStore) cacheLastMessage(ctx context.Context, message InquiryMessage) {
	if s.redis == nil || s.cachePrefix == "" {
		return
	}

	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal message for cache")
		return
	}

	key := fmt.Sprintf("%s:%s", s.cachePrefix, message.ChatID)
	if err := s.redis.Set(ctx, key, payload, lastMessageCacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache last message")
	}
}

func (s *gormStore) fetchCachedLastMessage(ctx context.Context, chatID string) (InquiryMessage, bool) {
	if s.redis == nil || s.cachePrefix == "" {
		return InquiryMessage{}, false
	}

	key := fmt.Sprintf("%s:%s", s.cachePrefix, chatID)
	result, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return InquiryMessage{}, false
	}

	var message InquiryMessage
	if err := json.Unmarshal([]byte(result), &message); err != nil {
		s.logger.Warn().Err(err).Msg("failed to unmarshal cached message")
		return InquiryMessage{}, false
	}
	return message, true
}
