package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/anonto42/devforum/backend/internal/auth"
	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/services"
	"github.com/anonto42/devforum/backend/internal/session"
	"github.com/anonto42/devforum/backend/internal/views"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var errPostNotOpen = echo.NewHTTPError(http.StatusConflict, "Open the post before liking or saving it")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// clientFrame is a request sent by the client over the live channel.
type clientFrame struct {
	Op       string `json:"op"`
	View     string `json:"view"`
	Tag      string `json:"tag"`
	AuthorID string `json:"authorId"`
	Limit    int    `json:"limit"`
	Sort     string `json:"sort"`
	ID       string `json:"id"`
	PostID   string `json:"postId"`
	Term     string `json:"term"`
}

// serverFrame carries the latest state of one view.
type serverFrame struct {
	View string      `json:"view"`
	Data interface{} `json:"data"`
}

// LiveHandler streams view state over a websocket
type LiveHandler struct {
	postService *services.PostService
	authService *services.AuthService
	userService *services.UserService
	searchDelay time.Duration
	logger      *zap.Logger
}

// NewLiveHandler creates a new LiveHandler
func NewLiveHandler(postService *services.PostService, authService *services.AuthService, userService *services.UserService, searchDelay time.Duration, logger *zap.Logger) *LiveHandler {
	return &LiveHandler{
		postService: postService,
		authService: authService,
		userService: userService,
		searchDelay: searchDelay,
		logger:      logger,
	}
}

// RegisterLiveRoutes registers the websocket endpoint
func (h *LiveHandler) RegisterLiveRoutes(protected *echo.Group) {
	protected.GET("/live", h.Live)
}

// Live upgrades the connection and serves views until the client goes away
func (h *LiveHandler) Live(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Sugar().Warnf("websocket upgrade failed: %s", err.Error())
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc := &liveConn{
		h:      h,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		send:   make(chan []byte, sendBuffer),
		views:  make(map[string]closer),

		engagements: make(map[string]*views.Engagement),
	}
	lc.serve(id)
	return nil
}

type closer interface {
	Close()
}

// liveConn is one websocket client with its session and open views.
type liveConn struct {
	h      *LiveHandler
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	send   chan []byte

	mu      sync.Mutex
	views   map[string]closer
	session *session.Context

	// engagements is keyed by post ID and only touched by the read loop.
	engagements map[string]*views.Engagement
}

func (lc *liveConn) serve(id *auth.Identity) {
	defer lc.conn.Close()
	defer lc.closeAll()
	defer lc.cancel()

	go lc.writePump()

	lc.session = session.New(lc.ctx, lc.h.authService, lc.h.userService, func(st session.State) {
		lc.push("session", st)
	})
	lc.session.SetIdentity(id)

	lc.conn.SetReadLimit(maxMessageSize)
	_ = lc.conn.SetReadDeadline(time.Now().Add(pongWait))
	lc.conn.SetPongHandler(func(string) error {
		return lc.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := lc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				lc.h.logger.Sugar().Warnf("websocket read failed: %s", err.Error())
			}
			return
		}
		var f clientFrame
		if err := json.Unmarshal(data, &f); err != nil {
			lc.push("error", echo.Map{"message": "malformed frame"})
			continue
		}
		lc.handle(f)
	}
}

func (lc *liveConn) handle(f clientFrame) {
	switch f.Op {
	case "feed":
		filter := services.FeedFilter{Tag: f.Tag, AuthorID: f.AuthorID, Limit: f.Limit}
		feed := lc.feed()
		if f.Sort != "" {
			feed.SetSort(models.ParseSortMode(f.Sort))
		}
		feed.SetFilter(filter)
	case "sort":
		lc.feed().SetSort(models.ParseSortMode(f.Sort))
	case "post":
		if f.ID == "" {
			lc.push("error", echo.Map{"message": "id is required"})
			return
		}
		name := "post:" + f.ID
		lc.replace(name, views.OpenPost(lc.ctx, lc.h.postService, f.ID, func(st views.PostState) {
			lc.push(name, st)
		}))
	case "comments":
		if f.PostID == "" {
			lc.push("error", echo.Map{"message": "postId is required"})
			return
		}
		name := "comments:" + f.PostID
		lc.replace(name, views.OpenComments(lc.ctx, lc.h.postService, f.PostID, func(st views.CommentsState) {
			lc.push(name, st)
		}))
	case "search":
		lc.search().SetTerm(f.Term)
	case "like", "bookmark":
		if f.PostID == "" {
			lc.push("error", echo.Map{"message": "postId is required"})
			return
		}
		e, err := lc.engagement(f.PostID)
		if err != nil {
			lc.pushError(f.PostID, err)
			return
		}
		go lc.toggle(f.Op, f.PostID, e)
	case "unsubscribe":
		lc.mu.Lock()
		v := lc.views[f.View]
		delete(lc.views, f.View)
		lc.mu.Unlock()
		if v != nil {
			v.Close()
		}
	default:
		lc.push("error", echo.Map{"message": "unknown op " + f.Op})
	}
}

func (lc *liveConn) feed() *views.Feed {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if f, ok := lc.views["feed"].(*views.Feed); ok {
		return f
	}
	f := views.NewFeed(lc.ctx, lc.h.postService, func(st views.FeedState) { lc.push("feed", st) })
	lc.views["feed"] = f
	return f
}

func (lc *liveConn) search() *views.Search {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if s, ok := lc.views["search"].(*views.Search); ok {
		return s
	}
	s := views.NewSearch(lc.ctx, lc.h.postService, lc.h.searchDelay, func(st views.SearchState) { lc.push("search", st) })
	lc.views["search"] = s
	return s
}

// engagement returns the post's engagement state, seeded from the open post view
// and the session's profile.
func (lc *liveConn) engagement(postID string) (*views.Engagement, error) {
	lc.mu.Lock()
	pv, _ := lc.views["post:"+postID].(*views.PostView)
	lc.mu.Unlock()
	if pv == nil {
		return nil, errPostNotOpen
	}
	ps := pv.State()
	if ps.Status != views.StatusReady || ps.Post == nil {
		return nil, errPostNotOpen
	}

	st := lc.session.State()
	user := st.User
	if user == nil {
		if st.Identity == nil {
			return nil, errNotAuthorized
		}
		user = &models.User{UID: st.Identity.UID}
	}

	if e, ok := lc.engagements[postID]; ok {
		e.Reseed(*ps.Post, user)
		return e, nil
	}
	name := "engagement:" + postID
	e := views.NewEngagement(lc.h.postService, *ps.Post, user, func(st views.EngagementState) {
		lc.push(name, st)
	})
	lc.engagements[postID] = e
	return e, nil
}

func (lc *liveConn) toggle(op, postID string, e *views.Engagement) {
	var err error
	if op == "like" {
		_, err = e.ToggleLike(lc.ctx)
	} else {
		_, err = e.ToggleBookmark(lc.ctx)
	}
	if err != nil {
		lc.pushError(postID, err)
	}
}

// pushError reports err with the status code the REST API would use.
func (lc *liveConn) pushError(postID string, err error) {
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		errors.As(httpError(err), &he)
	}
	if he.Internal != nil {
		lc.h.logger.Sugar().Warnf("live %s failed: %s", postID, he.Internal.Error())
	}
	lc.push("error", echo.Map{"postId": postID, "code": he.Code, "message": he.Message})
}

func (lc *liveConn) replace(name string, v closer) {
	lc.mu.Lock()
	old := lc.views[name]
	lc.views[name] = v
	lc.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

func (lc *liveConn) closeAll() {
	lc.mu.Lock()
	open := lc.views
	lc.views = make(map[string]closer)
	lc.mu.Unlock()
	for _, v := range open {
		v.Close()
	}
	if lc.session != nil {
		lc.session.Close()
	}
}

// push queues a frame. A client that cannot keep up is disconnected.
func (lc *liveConn) push(view string, data interface{}) {
	msg, err := json.Marshal(serverFrame{View: view, Data: data})
	if err != nil {
		lc.h.logger.Sugar().Errorf("failed to encode %s frame: %s", view, err.Error())
		return
	}
	select {
	case <-lc.ctx.Done():
	case lc.send <- msg:
	default:
		lc.h.logger.Sugar().Warnf("dropping slow websocket client")
		lc.cancel()
		_ = lc.conn.Close()
	}
}

func (lc *liveConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-lc.ctx.Done():
			_ = lc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = lc.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-lc.send:
			_ = lc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := lc.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				lc.cancel()
				return
			}
		case <-ticker.C:
			_ = lc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := lc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				lc.cancel()
				return
			}
		}
	}
}
