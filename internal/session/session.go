package session

import (
	"context"
	"sync"

	"ragchat/internal/history"
	"ragchat/internal/logger"
	"ragchat/internal/service"
)

// Asker answers a question; *service.RAGService satisfies it.
type Asker interface {
	Ask(ctx context.Context, question string) (service.Answer, error)
}

// Session owns the state and performs the effects Reduce asks for.
type Session struct {
	mu    sync.Mutex
	state State
	store *history.FileStore
	asker Asker
	log   logger.Logger
}

func New(store *history.FileStore, asker Asker, log logger.Logger) *Session {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Session{
		state: Initial(store.Load()),
		store: store,
		asker: asker,
		log:   log.With("component", "session"),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Apply runs one transition and persists history when required. The returned
// effect still carries any question to ask; the caller decides how to run it.
func (s *Session) Apply(ev Event) (State, Effect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, eff := Reduce(s.state, ev)
	s.state = st
	if eff.Persist {
		if err := s.store.Save(st.History); err != nil {
			s.log.Error("save history", "err", err)
			s.state.Err = err
			s.state.Status = "Error: " + err.Error()
			return s.state, eff, err
		}
	}
	return s.state, eff, nil
}

// Dispatch applies ev and performs every resulting effect synchronously,
// feeding answers back as events.
func (s *Session) Dispatch(ctx context.Context, ev Event) (State, error) {
	for {
		st, eff, err := s.Apply(ev)
		if err != nil || eff.Ask == "" {
			return st, err
		}
		ev = s.AskEvent(ctx, eff.Ask)
	}
}

// AskEvent runs the question and converts the outcome into the next event.
// It does not touch the state, so drivers may call it off the UI goroutine.
func (s *Session) AskEvent(ctx context.Context, question string) Event {
	ans, err := s.asker.Ask(ctx, question)
	if err != nil {
		return AnswerFailed{Err: err}
	}
	return AnswerReady{Text: ans.Text, Sources: Sources(ans)}
}

// Sources lists the distinct source names of an answer in rank order.
func Sources(ans service.Answer) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, r := range ans.Sources {
		src := r.Entry.Chunk.Source
		if _, ok := seen[src]; ok || src == "" {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	return out
}
