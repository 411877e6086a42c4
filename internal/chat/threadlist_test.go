package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lokapasar/chatsync/internal/dto"
)

func TestThreadListLoadReplacesCollection(t *testing.T) {
	threads := []dto.Thread{
		{ChatID: "T1", TopicTitle: "Vintage camera", UnreadCount: 2},
		{ChatID: "T2", TopicTitle: "Mechanical keyboard"},
	}
	stub := &stubTransport{listFn: func(role string) ([]dto.Thread, error) {
		require.Equal(t, "buyer", role)
		return threads, nil
	}}

	list := NewThreadList(stub, zerolog.Nop())
	require.NoError(t, list.Load(context.Background(), "buyer"))
	require.Len(t, list.Threads(), 2)

	// Backend order is kept as-is; the client never resorts.
	got := list.Threads()
	require.Equal(t, "T1", got[0].ChatID)
	require.Equal(t, "T2", got[1].ChatID)
}

func TestThreadListLoadFailureKeepsExisting(t *testing.T) {
	fail := false
	stub := &stubTransport{listFn: func(role string) ([]dto.Thread, error) {
		if fail {
			return nil, errors.New("backend down")
		}
		return []dto.Thread{{ChatID: "T1"}}, nil
	}}

	list := NewThreadList(stub, zerolog.Nop())
	require.NoError(t, list.Load(context.Background(), "seller"))

	fail = true
	require.Error(t, list.Load(context.Background(), "seller"))
	require.Len(t, list.Threads(), 1, "failed load must not clear the held list")
}

func TestThreadListMarkReadOnlyAfterTransportSuccess(t *testing.T) {
	readErr := errors.New("network failure")
	stub := &stubTransport{
		listFn: func(role string) ([]dto.Thread, error) {
			return []dto.Thread{{ChatID: "T1", UnreadCount: 2}}, nil
		},
		readFn: func(chatID string) error { return readErr },
	}

	list := NewThreadList(stub, zerolog.Nop())
	require.NoError(t, list.Load(context.Background(), "buyer"))

	require.Error(t, list.MarkRead(context.Background(), "T1"))
	thread, ok := list.Get("T1")
	require.True(t, ok)
	require.Equal(t, 2, thread.UnreadCount, "unread count stays until the backend confirms")

	readErr = nil
	require.NoError(t, list.MarkRead(context.Background(), "T1"))
	thread, _ = list.Get("T1")
	require.Zero(t, thread.UnreadCount)
}

func TestThreadListRefreshAfterSendReloads(t *testing.T) {
	preview := "older preview"
	stub := &stubTransport{listFn: func(role string) ([]dto.Thread, error) {
		return []dto.Thread{{ChatID: "T1", LastMessage: preview}}, nil
	}}

	list := NewThreadList(stub, zerolog.Nop())
	require.NoError(t, list.Load(context.Background(), "buyer"))

	preview = "just sent"
	require.NoError(t, list.RefreshAfterSend(context.Background(), "T1"))

	thread, _ := list.Get("T1")
	require.Equal(t, "just sent", thread.LastMessage)

	listCalls, _, _, _, _, _ := stub.calls()
	require.Equal(t, 2, listCalls)
}
