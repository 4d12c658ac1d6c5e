package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mkarpenko/pairchat/internal/config"
	"github.com/mkarpenko/pairchat/internal/database"
	"github.com/mkarpenko/pairchat/internal/ws"
	"github.com/mkarpenko/pairchat/pkg/auth"
)

// newTestRouter connects to a local Postgres; the whole suite skips when the
// database is unreachable.
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Port:       "0",
		Env:        "dev",
		JWTSecret:  "test-secret",
		SessionTTL: time.Hour,
	}
	db, err := database.Connect("host=localhost user=postgres password=postgres dbname=pairchat port=5432 sslmode=disable TimeZone=UTC")
	if err != nil {
		t.Skipf("skip: postgres not available: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Skipf("skip: migrate failed: %v", err)
	}

	hub := ws.NewHub(nil)
	go hub.Run()
	t.Cleanup(hub.Stop)

	return SetupRouter(cfg, db, auth.NewSessionManager(cfg.JWTSecret, cfg.SessionTTL), hub, nil)
}

func doJSON(r *gin.Engine, method, path string, body interface{}, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func signup(t *testing.T, r *gin.Engine, username, password string) (uint, *http.Cookie) {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/api/auth/signup",
		map[string]string{"username": username, "password": password}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		User struct {
			ID       uint   `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, username, resp.User.Username)
	return resp.User.ID, sessionCookie(t, w)
}

func uniq(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(r, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSignupLoginRoundTrip(t *testing.T) {
	r := newTestRouter(t)
	username := uniq("alice")

	_, _ = signup(t, r, username, "pw1")

	// Duplicate signup conflicts and creates no second row.
	w := doJSON(r, http.MethodPost, "/api/auth/signup",
		map[string]string{"username": username, "password": "other"}, nil)
	require.Equal(t, http.StatusConflict, w.Code)

	// Wrong password.
	w = doJSON(r, http.MethodPost, "/api/auth/login",
		map[string]string{"username": username, "password": "wrong"}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Unknown user is indistinguishable from a wrong password.
	w = doJSON(r, http.MethodPost, "/api/auth/login",
		map[string]string{"username": uniq("ghost"), "password": "pw"}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Correct credentials yield a session whose claims match the username.
	w = doJSON(r, http.MethodPost, "/api/auth/login",
		map[string]string{"username": username, "password": "pw1"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookie := sessionCookie(t, w)

	first := doJSON(r, http.MethodGet, "/api/auth/me", nil, []*http.Cookie{cookie})
	require.Equal(t, http.StatusOK, first.Code)
	second := doJSON(r, http.MethodGet, "/api/auth/me", nil, []*http.Cookie{cookie})
	require.Equal(t, http.StatusOK, second.Code)
	require.JSONEq(t, first.Body.String(), second.Body.String(), "me must be idempotent")
}

func TestSignupValidation(t *testing.T) {
	r := newTestRouter(t)

	for _, body := range []map[string]string{
		{},
		{"username": "x"},
		{"password": "y"},
		{"username": "   ", "password": "y"},
	} {
		w := doJSON(r, http.MethodPost, "/api/auth/signup", body, nil)
		require.Equal(t, http.StatusBadRequest, w.Code, "body: %v", body)
	}
}

func TestUnauthenticatedRequests(t *testing.T) {
	r := newTestRouter(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/conversations"},
		{http.MethodPost, "/api/conversations"},
		{http.MethodGet, "/api/messages/1"},
		{http.MethodPost, "/api/messages/1"},
		{http.MethodGet, "/api/users/search?query=a"},
	} {
		w := doJSON(r, tc.method, tc.path, nil, nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodDelete, "/api/auth/signup", nil, nil)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = doJSON(r, http.MethodGet, "/api/auth/logout", nil, nil)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestConversationAndMessageFlow(t *testing.T) {
	r := newTestRouter(t)

	aliceName, bobName, carolName := uniq("alice"), uniq("bob"), uniq("carol")
	aliceID, aliceCookie := signup(t, r, aliceName, "pw1")
	bobID, bobCookie := signup(t, r, bobName, "pw2")
	_, carolCookie := signup(t, r, carolName, "pw3")

	// Alice opens a conversation with Bob.
	w := doJSON(r, http.MethodPost, "/api/conversations",
		map[string]uint{"otherUserId": bobID}, []*http.Cookie{aliceCookie})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created struct {
		ID            uint   `json:"id"`
		OtherUsername string `json:"other_username"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotZero(t, created.ID)
	require.Equal(t, bobName, created.OtherUsername)

	// Creating it again returns the same conversation.
	w = doJSON(r, http.MethodPost, "/api/conversations",
		map[string]uint{"otherUserId": bobID}, []*http.Cookie{aliceCookie})
	require.Equal(t, http.StatusOK, w.Code)
	var again struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &again))
	require.Equal(t, created.ID, again.ID)

	// Bob opening it from his side also lands on the same row.
	w = doJSON(r, http.MethodPost, "/api/conversations",
		map[string]uint{"otherUserId": aliceID}, []*http.Cookie{bobCookie})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &again))
	require.Equal(t, created.ID, again.ID)

	// Self conversation is rejected.
	w = doJSON(r, http.MethodPost, "/api/conversations",
		map[string]uint{"otherUserId": aliceID}, []*http.Cookie{aliceCookie})
	require.Equal(t, http.StatusBadRequest, w.Code)

	convPath := fmt.Sprintf("/api/messages/%d", created.ID)

	// Whitespace-only content inserts nothing.
	w = doJSON(r, http.MethodPost, convPath,
		map[string]string{"content": "   "}, []*http.Cookie{aliceCookie})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Alice sends, the persisted row comes back.
	w = doJSON(r, http.MethodPost, convPath,
		map[string]string{"content": "hi"}, []*http.Cookie{aliceCookie})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sent struct {
		Message struct {
			ID       uint   `json:"id"`
			SenderID uint   `json:"sender_id"`
			Content  string `json:"content"`
		} `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sent))
	require.NotZero(t, sent.Message.ID)
	require.Equal(t, aliceID, sent.Message.SenderID)
	require.Equal(t, "hi", sent.Message.Content)

	w = doJSON(r, http.MethodPost, convPath,
		map[string]string{"content": "  hello bob  "}, []*http.Cookie{aliceCookie})
	require.Equal(t, http.StatusOK, w.Code)

	// Bob reads them in ascending order, content trimmed.
	w = doJSON(r, http.MethodGet, convPath, nil, []*http.Cookie{bobCookie})
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Messages []struct {
			ID       uint      `json:"id"`
			SenderID uint      `json:"sender_id"`
			Content  string    `json:"content"`
			Created  time.Time `json:"created_at"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed.Messages, 2)
	require.Equal(t, "hi", listed.Messages[0].Content)
	require.Equal(t, "hello bob", listed.Messages[1].Content)
	for i := 1; i < len(listed.Messages); i++ {
		prev, cur := listed.Messages[i-1], listed.Messages[i]
		require.False(t, cur.Created.Before(prev.Created), "created_at must be non-decreasing")
		if cur.Created.Equal(prev.Created) {
			require.Greater(t, cur.ID, prev.ID, "ties break by ascending id")
		}
	}

	// Carol was never added as a participant.
	w = doJSON(r, http.MethodGet, convPath, nil, []*http.Cookie{carolCookie})
	require.Equal(t, http.StatusForbidden, w.Code)
	w = doJSON(r, http.MethodPost, convPath,
		map[string]string{"content": "let me in"}, []*http.Cookie{carolCookie})
	require.Equal(t, http.StatusForbidden, w.Code)

	// Bad conversation ids.
	w = doJSON(r, http.MethodGet, "/api/messages/abc", nil, []*http.Cookie{aliceCookie})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConversationListOrdering(t *testing.T) {
	r := newTestRouter(t)

	_, aliceCookie := signup(t, r, uniq("alice"), "pw1")
	bobID, _ := signup(t, r, uniq("bob"), "pw2")
	carolID, _ := signup(t, r, uniq("carol"), "pw3")

	var withBob, withCarol struct {
		ID uint `json:"id"`
	}
	w := doJSON(r, http.MethodPost, "/api/conversations",
		map[string]uint{"otherUserId": bobID}, []*http.Cookie{aliceCookie})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &withBob))

	w = doJSON(r, http.MethodPost, "/api/conversations",
		map[string]uint{"otherUserId": carolID}, []*http.Cookie{aliceCookie})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &withCarol))

	// A message in the Bob conversation makes it the most recently active.
	w = doJSON(r, http.MethodPost, fmt.Sprintf("/api/messages/%d", withBob.ID),
		map[string]string{"content": "ping"}, []*http.Cookie{aliceCookie})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/api/conversations", nil, []*http.Cookie{aliceCookie})
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Conversations []struct {
			ID          uint   `json:"id"`
			LastMessage string `json:"last_message"`
		} `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.GreaterOrEqual(t, len(listed.Conversations), 2)
	require.Equal(t, withBob.ID, listed.Conversations[0].ID)
	require.Equal(t, "ping", listed.Conversations[0].LastMessage)
}

func TestUsernameCaseSensitivity(t *testing.T) {
	r := newTestRouter(t)

	upper := uniq("Case")
	lower := strings.ToLower(upper)

	// Usernames compare with the column's default collation, so the case
	// variants are distinct accounts.
	upperID, _ := signup(t, r, upper, "pw1")
	lowerID, _ := signup(t, r, lower, "pw2")
	require.NotEqual(t, upperID, lowerID)

	// Login matches exactly: the case variant is a different account with a
	// different password.
	w := doJSON(r, http.MethodPost, "/api/auth/login",
		map[string]string{"username": lower, "password": "pw1"}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/api/auth/login",
		map[string]string{"username": upper, "password": "pw1"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestUserSearchMatchesAcrossCase(t *testing.T) {
	r := newTestRouter(t)

	needle := uniq("mixedcase")
	_, cookie := signup(t, r, uniq("searcher"), "pw1")
	targetID, _ := signup(t, r, needle, "pw2")

	// Search is the one case-insensitive lookup: an upper-cased query still
	// finds the lower-cased username.
	w := doJSON(r, http.MethodGet, "/api/users/search?query="+strings.ToUpper(needle), nil, []*http.Cookie{cookie})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Users []struct {
			ID       uint   `json:"id"`
			Username string `json:"username"`
		} `json:"users"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Users, 1)
	require.Equal(t, targetID, resp.Users[0].ID)
	require.Equal(t, needle, resp.Users[0].Username)
}

func TestUserSearchExcludesSelf(t *testing.T) {
	r := newTestRouter(t)

	prefix := uniq("searchable")
	_, cookie := signup(t, r, prefix+"_me", "pw1")
	otherID, _ := signup(t, r, prefix+"_other", "pw2")

	w := doJSON(r, http.MethodGet, "/api/users/search?query="+prefix, nil, []*http.Cookie{cookie})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Users []struct {
			ID       uint   `json:"id"`
			Username string `json:"username"`
		} `json:"users"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Users, 1)
	require.Equal(t, otherID, resp.Users[0].ID)

	// Empty query returns nothing rather than everyone.
	w = doJSON(r, http.MethodGet, "/api/users/search", nil, []*http.Cookie{cookie})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Empty(t, resp.Users)
}

func TestLogoutClearsCookie(t *testing.T) {
	r := newTestRouter(t)

	_, cookie := signup(t, r, uniq("alice"), "pw1")

	w := doJSON(r, http.MethodPost, "/api/auth/logout", nil, []*http.Cookie{cookie})
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"ok":true}`, w.Body.String())

	var cleared *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			cleared = c
		}
	}
	require.NotNil(t, cleared, "logout must overwrite the session cookie")
	require.Empty(t, cleared.Value)
	require.Negative(t, cleared.MaxAge)

	// The token itself stays valid until expiry: sessions are stateless.
	w = doJSON(r, http.MethodGet, "/api/auth/me", nil, []*http.Cookie{cookie})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAvatarUpdate(t *testing.T) {
	r := newTestRouter(t)

	_, cookie := signup(t, r, uniq("ava"), "pw1")

	w := doJSON(r, http.MethodPost, "/api/users/me/avatar",
		map[string]string{"avatar_path": "/avatars/a.png"}, []*http.Cookie{cookie})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(r, http.MethodGet, "/api/auth/me", nil, []*http.Cookie{cookie})
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		User struct {
			AvatarPath string `json:"avatar_path"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	require.Equal(t, "/avatars/a.png", me.User.AvatarPath)
}
