package api

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plumemail/plume/internal/cache"
	"github.com/plumemail/plume/internal/models"
	"github.com/plumemail/plume/internal/view"
)

// seedMessages fills one folder with count messages, newest last by UID.
func seedMessages(t *testing.T, store *cache.Store, count int) {
	t.Helper()

	store.UpsertFolder(&models.Folder{ID: "inbox", AccountID: "a1", Name: "INBOX", SpecialUse: models.SpecialInbox})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= count; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.InsertMessage(&models.Message{
			ID:        fmt.Sprintf("m%02d", i),
			AccountID: "a1",
			FolderID:  "inbox",
			UID:       int64(i),
			Subject:   fmt.Sprintf("message %d", i),
			SentAt:    &ts,
		}))
	}
}

func getMessages(t *testing.T, handler *MessagesHandler, query string) (int, messagesResponse) {
	t.Helper()

	r := httptest.NewRequest("GET", "/api/v1/messages?"+query, nil)
	w := httptest.NewRecorder()
	handler.GetMessages(w, r)

	var resp messagesResponse
	if w.Code == 200 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

func TestGetMessages(t *testing.T) {
	store := cache.NewStore()
	seedMessages(t, store, 20)
	handler := NewMessagesHandler(store)

	t.Run("default paging returns newest first", func(t *testing.T) {
		code, resp := getMessages(t, handler, "accountId=a1&folderId=inbox")
		require.Equal(t, 200, code)

		assert.Equal(t, 20, resp.Total)
		assert.Equal(t, view.Range{Start: 0, End: 20}, resp.Window)
		require.Len(t, resp.Messages, 20)
		assert.Equal(t, "message 20", resp.Messages[0].Subject)
		assert.Equal(t, "message 1", resp.Messages[19].Subject)
	})

	t.Run("offset and limit page through the folder", func(t *testing.T) {
		code, resp := getMessages(t, handler, "accountId=a1&folderId=inbox&offset=5&limit=3")
		require.Equal(t, 200, code)

		assert.Equal(t, view.Range{Start: 5, End: 8}, resp.Window)
		require.Len(t, resp.Messages, 3)
		assert.Equal(t, "message 15", resp.Messages[0].Subject)
	})

	t.Run("offset past the end clamps to empty", func(t *testing.T) {
		code, resp := getMessages(t, handler, "accountId=a1&folderId=inbox&offset=99")
		require.Equal(t, 200, code)
		assert.Empty(t, resp.Messages)
		assert.Equal(t, 20, resp.Total)
	})

	t.Run("viewport parameters select the visible window", func(t *testing.T) {
		// 400px viewport over 40px rows at scroll 200 shows rows 5..14;
		// one buffer row on each side widens that to 4..15.
		code, resp := getMessages(t, handler,
			"accountId=a1&folderId=inbox&viewportExtent=400&itemExtent=40&scrollOffset=200&buffer=1")
		require.Equal(t, 200, code)

		assert.Equal(t, view.Range{Start: 4, End: 16}, resp.Window)
		require.Len(t, resp.Messages, 12)
		assert.Equal(t, "message 16", resp.Messages[0].Subject)
		assert.Equal(t, "message 5", resp.Messages[11].Subject)
	})

	t.Run("window clamps at the end of the list", func(t *testing.T) {
		code, resp := getMessages(t, handler,
			"accountId=a1&folderId=inbox&viewportExtent=400&itemExtent=40&scrollOffset=100000")
		require.Equal(t, 200, code)

		assert.Equal(t, 20, resp.Window.End)
		assert.NotEmpty(t, resp.Messages)
	})

	t.Run("empty folder yields an empty window", func(t *testing.T) {
		code, resp := getMessages(t, handler,
			"accountId=a1&folderId=nowhere&viewportExtent=400&itemExtent=40")
		require.Equal(t, 200, code)
		assert.Equal(t, view.Range{}, resp.Window)
		assert.Empty(t, resp.Messages)
	})

	t.Run("missing query parameters are a 400", func(t *testing.T) {
		code, _ := getMessages(t, handler, "accountId=a1")
		assert.Equal(t, 400, code)
	})
}

func TestGetMessage(t *testing.T) {
	store := cache.NewStore()
	seedMessages(t, store, 1)
	handler := NewMessagesHandler(store)

	t.Run("returns the cached message", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.GetMessage(w, nil, "m01")

		require.Equal(t, 200, w.Code)
		var msg models.Message
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
		assert.Equal(t, "message 1", msg.Subject)
	})

	t.Run("unknown id is a 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.GetMessage(w, nil, "ghost")
		assert.Equal(t, 404, w.Code)
	})
}
