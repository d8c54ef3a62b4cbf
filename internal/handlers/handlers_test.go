package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"emi-service/internal/middleware"
	"emi-service/internal/models"
)

const testUserID int64 = 1

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, testUserID)
		c.Next()
	})
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func channel(id, owner int64, subscribers ...int64) models.Chat {
	o := owner
	return models.Chat{
		ID:              id,
		Type:            models.ChatTypeChannel,
		Name:            "news",
		Participants:    append([]int64{owner}, subscribers...),
		Admins:          []int64{owner},
		OwnerID:         &o,
		IsPublic:        true,
		SubscriberCount: 1 + len(subscribers),
	}
}
