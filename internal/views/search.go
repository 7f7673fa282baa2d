package views

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/realtime"
)

const DefaultSearchDelay = 500 * time.Millisecond

type SearchState struct {
	Term      string        `json:"term"`
	Searching bool          `json:"searching"`
	Results   []models.Post `json:"results"`
	Error     string        `json:"error,omitempty"`
}

// Search runs a debounced search as the term changes. A blank term clears the
// results at once; results of a superseded term are dropped.
type Search struct {
	ctx      context.Context
	source   PostSource
	onChange func(SearchState)
	debounce *realtime.Debouncer

	emitMu sync.Mutex
	mu     sync.Mutex
	seq    uint64
	state  SearchState
	closed bool
}

func NewSearch(ctx context.Context, source PostSource, delay time.Duration, onChange func(SearchState)) *Search {
	if delay <= 0 {
		delay = DefaultSearchDelay
	}
	return &Search{
		ctx:      ctx,
		source:   source,
		onChange: onChange,
		debounce: realtime.NewDebouncer(delay),
		state:    SearchState{Results: []models.Post{}},
	}
}

// SetTerm records a keystroke.
func (s *Search) SetTerm(term string) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	if strings.TrimSpace(term) == "" {
		s.debounce.Stop()
		s.emit(func(st *SearchState) {
			st.Term, st.Searching, st.Results, st.Error = term, false, []models.Post{}, ""
		})
		return
	}

	s.emit(func(st *SearchState) { st.Term, st.Searching = term, true })
	s.debounce.Call(func() {
		results, err := s.source.SearchPosts(s.ctx, term)
		s.emit(func(st *SearchState) {
			if s.seq != seq {
				return
			}
			st.Searching = false
			if err != nil {
				st.Error = err.Error()
				return
			}
			st.Results, st.Error = results, ""
		})
	})
}

func (s *Search) State() SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Search) Close() {
	s.debounce.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Search) emit(mutate func(st *SearchState)) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	before := s.state
	mutate(&s.state)
	st := s.state
	s.mu.Unlock()
	if s.onChange != nil && !sameSearchState(before, st) {
		s.onChange(st)
	}
}

func sameSearchState(a, b SearchState) bool {
	return a.Term == b.Term && a.Searching == b.Searching && a.Error == b.Error &&
		len(a.Results) == len(b.Results) && (len(a.Results) == 0 || &a.Results[0] == &b.Results[0])
}
