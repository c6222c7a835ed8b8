package collector_client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetMessagesBefore(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/channels/chan-1/messages", r.URL.Path)
		require.Equal(t, "msg-50", r.URL.Query().Get("before"))
		require.Equal(t, "100", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []Message{
				{ID: "msg-51", ChannelID: "chan-1", Text: "hello", CreatedAt: created},
			},
		})
	}))
	defer srv.Close()

	msgs, err := NewClient(srv.URL, zap.NewNop()).GetMessagesBefore(context.Background(), "chan-1", "msg-50", 100)

	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "msg-51", msgs[0].ID)
	require.True(t, created.Equal(msgs[0].CreatedAt))
}

func TestGetMessagesBeforeOmitsEmptyCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasBefore := r.URL.Query()["before"]
		require.False(t, hasBefore, "an empty cursor must not be sent")
		json.NewEncoder(w).Encode(map[string]interface{}{"messages": []Message{}})
	}))
	defer srv.Close()

	msgs, err := NewClient(srv.URL, zap.NewNop()).GetMessagesBefore(context.Background(), "chan-1", "", 100)

	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestGetThreadMessagesBefore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/threads/thread-1/messages", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []Message{{ID: "t-1", ChannelID: "thread-1", Text: "in thread"}},
		})
	}))
	defer srv.Close()

	msgs, err := NewClient(srv.URL, zap.NewNop()).GetThreadMessagesBefore(context.Background(), "thread-1", "", 100)

	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestGetMessagesBeforeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, zap.NewNop()).GetMessagesBefore(context.Background(), "chan-1", "", 100)
	require.Error(t, err)
}

func TestGetChannelInfo(t *testing.T) {
	created := time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/channels/chan-1", r.URL.Path)
		json.NewEncoder(w).Encode(ChannelInfo{ID: "chan-1", Name: "general", CreatedAt: created})
	}))
	defer srv.Close()

	info, err := NewClient(srv.URL, zap.NewNop()).GetChannelInfo(context.Background(), "chan-1")

	require.NoError(t, err)
	require.Equal(t, "general", info.Name)
	require.True(t, created.Equal(info.CreatedAt))
}
