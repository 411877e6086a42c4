package integration_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lokapasar/chatsync/internal/chat"
	"github.com/lokapasar/chatsync/internal/devserver"
	"github.com/lokapasar/chatsync/internal/dto"
	"github.com/lokapasar/chatsync/internal/session"
	"github.com/lokapasar/chatsync/internal/transport"
)

const e2eSecret = "e2e-secret"

// startBackend boots the dev backend on a random local port and returns its
// base URL.
func startBackend(t *testing.T) string {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, devserver.Migrate(db))

	store := devserver.NewStore(db, nil, "", zerolog.Nop())
	server := devserver.New(devserver.Options{Store: store, JWTSecret: e2eSecret}, zerolog.Nop())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		_ = server.App().Listener(listener)
	}()
	t.Cleanup(func() { _ = server.App().Shutdown() })

	return "http://" + listener.Addr().String()
}

func newParticipant(t *testing.T, baseURL, userID, role string) (*chat.Controller, session.Session) {
	t.Helper()

	bearer, err := devserver.MintDevToken(e2eSecret, userID, role, time.Hour)
	require.NoError(t, err)

	sess := session.New(userID, role, bearer)
	client := transport.NewClient(baseURL, sess, 5*time.Second, zerolog.Nop())
	ctrl := chat.NewController(client, sess, chat.Options{PollInterval: 50 * time.Millisecond}, zerolog.Nop())
	t.Cleanup(ctrl.Shutdown)
	return ctrl, sess
}

func TestEndToEndInquiryConversation(t *testing.T) {
	baseURL := startBackend(t)
	ctx := context.Background()

	buyer, _ := newParticipant(t, baseURL, "buyer-1", session.RoleBuyer)

	chatID, err := buyer.StartInquiry(ctx, "P42")
	require.NoError(t, err)
	require.NotEmpty(t, chatID)

	require.NoError(t, buyer.OpenThread(ctx, chatID))
	buyer.Composer().SetText("is this still available?")
	require.NoError(t, buyer.Composer().Send(ctx))
	require.Equal(t, 1, buyer.Timeline().Len())

	// The seller signs in, sees the unread thread and replies.
	seller, _ := newParticipant(t, baseURL, "seller-P42", session.RoleSeller)
	require.NoError(t, seller.LoadThreads(ctx))

	threads := seller.Threads().Threads()
	require.Len(t, threads, 1)
	require.Equal(t, chatID, threads[0].ChatID)
	require.Equal(t, 1, threads[0].UnreadCount)

	require.NoError(t, seller.OpenThread(ctx, chatID))
	thread, ok := seller.Threads().Get(chatID)
	require.True(t, ok)
	require.Zero(t, thread.UnreadCount, "opening the thread marks it read")

	seller.Composer().SetText("yes, ready to ship")
	require.NoError(t, seller.Composer().Send(ctx))

	// The buyer's poller picks the reply up without manual refresh.
	require.Eventually(t, func() bool {
		for _, message := range buyer.Timeline().Chronological() {
			if message.MessageText == "yes, ready to ship" {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	history := buyer.Timeline().Chronological()
	require.Equal(t, "is this still available?", history[0].MessageText)
	require.Equal(t, "yes, ready to ship", history[len(history)-1].MessageText)
}

func TestEndToEndAttachmentSend(t *testing.T) {
	baseURL := startBackend(t)
	ctx := context.Background()

	buyer, _ := newParticipant(t, baseURL, "buyer-1", session.RoleBuyer)

	chatID, err := buyer.StartInquiry(ctx, "P7")
	require.NoError(t, err)
	require.NoError(t, buyer.OpenThread(ctx, chatID))

	pngHeader := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
	buyer.Composer().SetText("photo attached")
	buyer.Composer().Attach("photo.png", pngHeader)
	require.NoError(t, buyer.Composer().Send(ctx))

	messages := buyer.Timeline().Chronological()
	require.Len(t, messages, 1)
	require.Equal(t, dto.MessageTypeFile, messages[0].MessageType)
	require.Equal(t, "photo.png", messages[0].FileName)
	require.Contains(t, messages[0].AttachmentURL, "/files/")

	// The composer is clean again after a successful send.
	require.Empty(t, buyer.Composer().Text())
	require.Nil(t, buyer.Composer().Attachment())
}

func TestEndToEndOlderHistoryPaging(t *testing.T) {
	baseURL := startBackend(t)
	ctx := context.Background()

	buyer, _ := newParticipant(t, baseURL, "buyer-1", session.RoleBuyer)
	chatID, err := buyer.StartInquiry(ctx, "P9")
	require.NoError(t, err)
	require.NoError(t, buyer.OpenThread(ctx, chatID))

	for i := 0; i < 45; i++ {
		buyer.Composer().SetText(fmt.Sprintf("message %02d", i))
		require.NoError(t, buyer.Composer().Send(ctx))
	}

	// Reopen so history comes back in pages.
	require.NoError(t, buyer.OpenThread(ctx, chatID))
	require.Equal(t, 30, buyer.Timeline().Len())
	require.True(t, buyer.Timeline().HasMore())

	require.NoError(t, buyer.Timeline().LoadOlder(ctx))
	require.Equal(t, 45, buyer.Timeline().Len())
	require.False(t, buyer.Timeline().HasMore())

	history := buyer.Timeline().Chronological()
	require.Equal(t, "message 00", history[0].MessageText)
	require.Equal(t, "message 44", history[len(history)-1].MessageText)
}
