package devserver

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func newTestStore(t *testing.T) (Store, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewStore(db, client, "chat:last", zerolog.Nop()), db
}

func TestStoreEnsureInquiryIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.EnsureInquiry(ctx, "P42", "buyer-1", "Ani")
	require.NoError(t, err)
	require.NotEmpty(t, first.ChatID)
	require.Equal(t, "seller-P42", first.SellerID)

	second, err := store.EnsureInquiry(ctx, "P42", "buyer-1", "Ani")
	require.NoError(t, err)
	require.Equal(t, first.ChatID, second.ChatID, "same buyer and product reuse the thread")

	other, err := store.EnsureInquiry(ctx, "P42", "buyer-2", "Budi")
	require.NoError(t, err)
	require.NotEqual(t, first.ChatID, other.ChatID)
}

func TestStoreSaveMessageUpdatesThread(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	thread, err := store.EnsureInquiry(ctx, "P1", "buyer-1", "Ani")
	require.NoError(t, err)

	msg := InquiryMessage{ChatID: thread.ChatID, SenderID: "buyer-1", MessageType: "TEXT", MessageText: "masih ada?"}
	require.NoError(t, store.SaveMessage(ctx, &msg))
	require.NotEmpty(t, msg.ID, "store assigns the message id")

	updated, err := store.GetThread(ctx, thread.ChatID)
	require.NoError(t, err)
	require.Equal(t, "masih ada?", updated.LastMessage)
	require.Equal(t, 1, updated.SellerUnread, "buyer messages raise the seller counter")
	require.Zero(t, updated.BuyerUnread)

	reply := InquiryMessage{ChatID: thread.ChatID, SenderID: thread.SellerID, MessageType: "TEXT", MessageText: "ada"}
	require.NoError(t, store.SaveMessage(ctx, &reply))

	updated, err = store.GetThread(ctx, thread.ChatID)
	require.NoError(t, err)
	require.Equal(t, 1, updated.BuyerUnread)
	require.Equal(t, 1, updated.SellerUnread)
}

func TestStorePageMessagesNewestFirst(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	thread, err := store.EnsureInquiry(ctx, "P1", "buyer-1", "Ani")
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		msg := InquiryMessage{
			ID:          fmt.Sprintf("m%d", i+1),
			ChatID:      thread.ChatID,
			SenderID:    "buyer-1",
			MessageType: "TEXT",
			MessageText: fmt.Sprintf("message %d", i+1),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.SaveMessage(ctx, &msg))
	}

	page, last, err := store.PageMessages(ctx, thread.ChatID, 0, 2)
	require.NoError(t, err)
	require.False(t, last)
	require.Equal(t, "m5", page[0].ID)
	require.Equal(t, "m4", page[1].ID)

	page, last, err = store.PageMessages(ctx, thread.ChatID, 2, 2)
	require.NoError(t, err)
	require.True(t, last, "the oldest page is flagged")
	require.Len(t, page, 1)
	require.Equal(t, "m1", page[0].ID)
}

func TestStoreMarkReadZeroesCallerCounter(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	thread, err := store.EnsureInquiry(ctx, "P1", "buyer-1", "Ani")
	require.NoError(t, err)

	msg := InquiryMessage{ChatID: thread.ChatID, SenderID: "buyer-1", MessageType: "TEXT", MessageText: "halo"}
	require.NoError(t, store.SaveMessage(ctx, &msg))

	require.NoError(t, store.MarkRead(ctx, thread.ChatID, thread.SellerID))

	updated, err := store.GetThread(ctx, thread.ChatID)
	require.NoError(t, err)
	require.Zero(t, updated.SellerUnread)
}

func TestStoreLastMessageServedFromCache(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	thread, err := store.EnsureInquiry(ctx, "P1", "buyer-1", "Ani")
	require.NoError(t, err)

	msg := InquiryMessage{ChatID: thread.ChatID, SenderID: "buyer-1", MessageType: "TEXT", MessageText: "cached"}
	require.NoError(t, store.SaveMessage(ctx, &msg))

	// Remove the row so only the cache can answer.
	require.NoError(t, db.Where("chat_id = ?", thread.ChatID).Delete(&InquiryMessage{}).Error)

	cached, ok := store.LastMessage(ctx, thread.ChatID)
	require.True(t, ok)
	require.Equal(t, msg.ID, cached.ID)
	require.Equal(t, "cached", cached.MessageText)
}
