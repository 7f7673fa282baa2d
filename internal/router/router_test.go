package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anonto42/devforum/backend/internal/auth"
	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/realtime"
	"github.com/anonto42/devforum/backend/internal/repositories"
	"github.com/anonto42/devforum/backend/internal/services"
	"github.com/anonto42/devforum/backend/internal/views"
	"github.com/anonto42/devforum/backend/validators"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	logger := zap.NewNop()
	store := repositories.NewMemoryStore(realtime.NewHub(logger))
	authn := auth.NewLocalAuthenticator(auth.NewMemoryCredentialStore(), "router-secret")

	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	SetupRoutes(e, Services{
		Auth:        services.NewAuthService(authn, store.Users(), logger),
		Posts:       services.NewPostService(store.Posts(), store.Comments(), store.Users(), logger),
		Users:       services.NewUserService(store.Users(), authn, logger),
		SearchDelay: 10 * time.Millisecond,
	}, logger)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func signUp(t *testing.T, e *echo.Echo, email, name string) authResponse {
	t.Helper()
	rec := do(t, e, http.MethodPost, "/api/v1/auth/signup", "",
		`{"email":"`+email+`","password":"secret1","displayName":"`+name+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[authResponse](t, rec)
}

func TestHealth(t *testing.T) {
	e := newTestServer(t)
	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := do(t, e, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
	}
}

func TestForumFlow(t *testing.T) {
	e := newTestServer(t)
	bea := signUp(t, e, "bea@example.com", "Bea")
	ann := signUp(t, e, "ann@example.com", "Ann")

	rec := do(t, e, http.MethodPost, "/api/v1/posts", bea.Token,
		`{"title":"Async patterns","content":"Discussing async/await vs callbacks","tags":["JavaScript"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	post := decode[models.Post](t, rec)
	assert.Equal(t, "Bea", post.AuthorName)
	assert.Equal(t, 0, post.LikeCount)

	rec = do(t, e, http.MethodPost, "/api/v1/posts/"+post.ID+"/like", ann.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]bool](t, rec)["liked"])

	rec = do(t, e, http.MethodGet, "/api/v1/users/"+bea.User.UID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ReputationCreatePost+models.ReputationReceiveLike, decode[models.User](t, rec).Reputation)

	rec = do(t, e, http.MethodPost, "/api/v1/posts/"+post.ID+"/comments", ann.Token, `{"content":"Nice write-up"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, e, http.MethodGet, "/api/v1/posts/"+post.ID+"/comments", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	comments := decode[[]models.Comment](t, rec)
	require.Len(t, comments, 1)
	assert.Equal(t, "Ann", comments[0].AuthorName)

	rec = do(t, e, http.MethodGet, "/api/v1/posts/"+post.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.Post](t, rec)
	assert.Equal(t, 1, got.LikeCount)
	assert.Equal(t, 1, got.CommentCount)

	rec = do(t, e, http.MethodPost, "/api/v1/posts/"+post.ID+"/bookmark", ann.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, e, http.MethodGet, "/api/v1/bookmarks", ann.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Post](t, rec), 1)

	rec = do(t, e, http.MethodGet, "/api/v1/posts?tag=JavaScript&sort=popular", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Post](t, rec), 1)
	rec = do(t, e, http.MethodGet, "/api/v1/posts?tag=Python", "", "")
	assert.Empty(t, decode[[]models.Post](t, rec))

	rec = do(t, e, http.MethodGet, "/api/v1/search?q=ASYNC", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Post](t, rec), 1)

	rec = do(t, e, http.MethodGet, "/api/v1/trending", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Post](t, rec), 1)
}

func TestErrorResponses(t *testing.T) {
	e := newTestServer(t)
	user := signUp(t, e, "ada@example.com", "Ada")

	rec := do(t, e, http.MethodPost, "/api/v1/posts", "", `{"title":"Hello there"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/v1/posts", "not-a-token", `{"title":"Hello there"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/v1/posts", user.Token, `{"title":"Hi","content":"short","tags":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[struct {
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	}](t, rec)
	assert.Equal(t, "Validation failed", body.Message)
	assert.Equal(t, "Title must be between 5 and 200 characters", body.Fields["title"])
	assert.Contains(t, body.Fields, "content")
	assert.Contains(t, body.Fields, "tags")

	rec = do(t, e, http.MethodPost, "/api/v1/posts", user.Token, `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e, http.MethodGet, "/api/v1/posts/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/v1/posts/missing/like", user.Token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/v1/auth/signup", "", `{"email":"ada@example.com","password":"secret1","displayName":"Ada"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/v1/auth/signin", "", `{"email":"ada@example.com","password":"wrong!"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, e, http.MethodGet, "/api/v1/posts?limit=many", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfileRoutes(t *testing.T) {
	e := newTestServer(t)
	user := signUp(t, e, "ada@example.com", "Ada")

	rec := do(t, e, http.MethodPut, "/api/v1/profile", user.Token,
		`{"displayName":"Ada Lovelace","bio":"Analyst","skills":"math, engines"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.User](t, rec)
	assert.Equal(t, "Ada Lovelace", updated.DisplayName)
	assert.Equal(t, []string{"math", "engines"}, updated.Skills)

	rec = do(t, e, http.MethodGet, "/api/v1/profile", user.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Analyst", decode[models.User](t, rec).Bio)

	rec = do(t, e, http.MethodPost, "/api/v1/auth/signin", "", `{"email":"ada@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[authResponse](t, rec).User.Online)

	rec = do(t, e, http.MethodPost, "/api/v1/auth/signout", user.Token, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type liveFrame struct {
	View string          `json:"view"`
	Data json.RawMessage `json:"data"`
}

// readUntil reads frames until one for view satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, view string, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f liveFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.View == view && match(f.Data) {
			return f.Data
		}
	}
}

func TestLiveChannel(t *testing.T) {
	e := newTestServer(t)
	srv := httptest.NewServer(e)
	defer srv.Close()
	user := signUp(t, e, "ada@example.com", "Ada")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/live?access_token=" + user.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	readUntil(t, conn, "session", func(raw json.RawMessage) bool {
		var st struct {
			Loading bool         `json:"loading"`
			User    *models.User `json:"user"`
		}
		return json.Unmarshal(raw, &st) == nil && !st.Loading && st.User != nil
	})

	require.NoError(t, conn.WriteJSON(map[string]string{"op": "feed", "tag": "Go"}))
	readUntil(t, conn, "feed", func(raw json.RawMessage) bool {
		var st struct {
			Loading bool `json:"loading"`
		}
		return json.Unmarshal(raw, &st) == nil && !st.Loading
	})

	rec := do(t, e, http.MethodPost, "/api/v1/posts", user.Token,
		`{"title":"Channels in Go","content":"Buffered versus unbuffered channels","tags":["General"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.NoError(t, conn.WriteJSON(map[string]string{"op": "search", "term": "channels"}))
	readUntil(t, conn, "search", func(raw json.RawMessage) bool {
		var st struct {
			Searching bool          `json:"searching"`
			Results   []models.Post `json:"results"`
		}
		return json.Unmarshal(raw, &st) == nil && !st.Searching && len(st.Results) == 1
	})

	require.NoError(t, conn.WriteJSON(map[string]string{"op": "bogus"}))
	readUntil(t, conn, "error", func(json.RawMessage) bool { return true })
}

func TestLiveRequiresToken(t *testing.T) {
	e := newTestServer(t)
	rec := do(t, e, http.MethodGet, "/api/v1/live", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLiveEngagement(t *testing.T) {
	e := newTestServer(t)
	srv := httptest.NewServer(e)
	defer srv.Close()
	user := signUp(t, e, "ada@example.com", "Ada")

	rec := do(t, e, http.MethodPost, "/api/v1/posts", user.Token,
		`{"title":"Select statements","content":"Waiting on several channels at once","tags":["General"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	post := decode[models.Post](t, rec)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/live?access_token=" + user.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	readUntil(t, conn, "session", func(raw json.RawMessage) bool {
		var st struct {
			Loading bool         `json:"loading"`
			User    *models.User `json:"user"`
		}
		return json.Unmarshal(raw, &st) == nil && !st.Loading && st.User != nil
	})

	require.NoError(t, conn.WriteJSON(map[string]string{"op": "like", "postId": post.ID}))
	raw := readUntil(t, conn, "error", func(json.RawMessage) bool { return true })
	var frameErr struct {
		PostID string `json:"postId"`
		Code   int    `json:"code"`
	}
	require.NoError(t, json.Unmarshal(raw, &frameErr))
	assert.Equal(t, post.ID, frameErr.PostID)
	assert.Equal(t, http.StatusConflict, frameErr.Code)

	require.NoError(t, conn.WriteJSON(map[string]string{"op": "post", "id": post.ID}))
	readUntil(t, conn, "post:"+post.ID, func(raw json.RawMessage) bool {
		var st struct {
			Status string `json:"status"`
		}
		return json.Unmarshal(raw, &st) == nil && st.Status == "ready"
	})

	settled := func(match func(st views.EngagementState) bool) func(json.RawMessage) bool {
		return func(raw json.RawMessage) bool {
			var st views.EngagementState
			return json.Unmarshal(raw, &st) == nil && !st.Pending && match(st)
		}
	}

	require.NoError(t, conn.WriteJSON(map[string]string{"op": "like", "postId": post.ID}))
	readUntil(t, conn, "engagement:"+post.ID, settled(func(st views.EngagementState) bool {
		return st.Liked && st.LikeCount == 1
	}))

	require.NoError(t, conn.WriteJSON(map[string]string{"op": "bookmark", "postId": post.ID}))
	readUntil(t, conn, "engagement:"+post.ID, settled(func(st views.EngagementState) bool {
		return st.Bookmarked && st.Liked
	}))

	rec = do(t, e, http.MethodGet, "/api/v1/posts/"+post.ID, user.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{user.User.UID}, decode[models.Post](t, rec).Likes)
	rec = do(t, e, http.MethodGet, "/api/v1/bookmarks", user.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Post](t, rec), 1)
}
