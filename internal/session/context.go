// Package session tracks who is signed in on one connection and keeps their
// profile document live.
package session

import (
	"context"
	"sync"

	"github.com/anonto42/devforum/backend/internal/auth"
	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/realtime"
	"github.com/anonto42/devforum/backend/internal/services"
)

// State is a snapshot of the session. Loading is true from the moment an identity
// is set until its profile document has been read once.
type State struct {
	Identity *auth.Identity `json:"identity"`
	User     *models.User   `json:"user"`
	Loading  bool           `json:"loading"`
}

// Context owns the identity of one consumer and the subscription to its user
// document. It is not shared between connections.
type Context struct {
	ctx      context.Context
	authSvc  *services.AuthService
	userSvc  *services.UserService
	onChange func(State)

	emitMu sync.Mutex
	mu     sync.Mutex
	gen    uint64
	state  State
	sub    *realtime.Subscription
	closed bool
}

func New(ctx context.Context, authSvc *services.AuthService, userSvc *services.UserService, onChange func(State)) *Context {
	return &Context{ctx: ctx, authSvc: authSvc, userSvc: userSvc, onChange: onChange}
}

// SetIdentity switches the session to id, or signs it out when id is nil.
func (c *Context) SetIdentity(id *auth.Identity) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	old := c.sub
	c.sub = nil
	c.gen++
	gen := c.gen
	c.state = State{Identity: id, Loading: id != nil}
	c.mu.Unlock()

	old.Cancel()
	c.emit(gen, nil)
	if id == nil {
		return
	}

	sub := c.userSvc.SubscribeToUser(c.ctx, id.UID,
		func(doc realtime.Document[models.User]) {
			c.emit(gen, func(st *State) {
				if doc.Exists {
					u := doc.Value
					st.User = &u
				}
				st.Loading = false
			})
		},
		func(error) {
			c.emit(gen, func(st *State) { st.Loading = false })
		})

	c.mu.Lock()
	if c.gen != gen || c.closed {
		c.mu.Unlock()
		sub.Cancel()
		return
	}
	c.sub = sub
	c.mu.Unlock()
}

// SignIn authenticates and switches the session to the signed-in account.
func (c *Context) SignIn(ctx context.Context, req models.SignInRequest) (*services.AuthResult, error) {
	res, err := c.authSvc.SignIn(ctx, req)
	if err != nil {
		return nil, err
	}
	c.SetIdentity(res.Identity)
	return res, nil
}

func (c *Context) SignUp(ctx context.Context, req models.SignUpRequest) (*services.AuthResult, error) {
	res, err := c.authSvc.SignUp(ctx, req)
	if err != nil {
		return nil, err
	}
	c.SetIdentity(res.Identity)
	return res, nil
}

// LogOut signs the current account out and clears the session.
func (c *Context) LogOut(ctx context.Context) error {
	id := c.State().Identity
	if id == nil {
		return nil
	}
	if err := c.authSvc.LogOut(ctx, id.UID); err != nil {
		return err
	}
	c.SetIdentity(nil)
	return nil
}

func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close drops the user subscription. The session cannot be reused.
func (c *Context) Close() {
	c.mu.Lock()
	c.closed = true
	c.gen++
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	sub.Cancel()
}

func (c *Context) emit(gen uint64, mutate func(st *State)) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.mu.Lock()
	if c.closed || c.gen != gen {
		c.mu.Unlock()
		return
	}
	if mutate != nil {
		mutate(&c.state)
	}
	st := c.state
	c.mu.Unlock()
	if c.onChange != nil {
		c.onChange(st)
	}
}
