// Package session holds the chat application state and the pure transition
// function that drives it.
package session

import (
	"strings"

	"ragchat/internal/history"
)

// NewChatName marks a conversation that has not been saved yet.
const NewChatName = "New Chat"

type State struct {
	History      history.History
	Current      string
	Messages     []history.Message
	Sources      []string
	MenuOpen     string
	RenameTarget string
	Pending      bool
	Building     bool
	Status       string
	Err          error
}

// Effect is the I/O a transition asks its driver to perform.
type Effect struct {
	Persist bool
	Ask     string
	Build   bool
}

type Event interface{ event() }

type (
	NewChat      struct{}
	Submit       struct{ Text string }
	AnswerFailed struct{ Err error }
	Open         struct{ Name string }
	ToggleMenu   struct{ Name string }
	BeginRename  struct{ Name string }
	CommitRename struct{ New string }
	CancelRename struct{}
	Delete       struct{ Name string }
	BuildStarted struct{}
	BuildDone    struct{ Err error }
)

// AnswerReady carries the generated text and the names of the sources it used.
type AnswerReady struct {
	Text    string
	Sources []string
}

func (NewChat) event()      {}
func (Submit) event()       {}
func (AnswerReady) event()  {}
func (AnswerFailed) event() {}
func (Open) event()         {}
func (ToggleMenu) event()   {}
func (BeginRename) event()  {}
func (CommitRename) event() {}
func (CancelRename) event() {}
func (Delete) event()       {}
func (BuildStarted) event() {}
func (BuildDone) event()    {}

// Initial returns a fresh unsaved conversation over h.
func Initial(h history.History) State {
	if h == nil {
		h = history.History{}
	}
	return State{History: h, Current: NewChatName}
}

func (s State) IsNew() bool { return s.Current == NewChatName }

// Reduce applies ev to s. It never mutates s; History is copied before any change.
// An outstanding answer or index build blocks every other action.
func Reduce(s State, ev Event) (State, Effect) {
	if s.Pending {
		switch ev.(type) {
		case AnswerReady, AnswerFailed, ToggleMenu, CancelRename:
		default:
			s.Status = "Waiting for the current answer"
			return s, Effect{}
		}
	}
	if s.Building {
		switch ev.(type) {
		case BuildDone, ToggleMenu, CancelRename:
		default:
			s.Status = "Index build in progress"
			return s, Effect{}
		}
	}

	switch ev := ev.(type) {
	case NewChat:
		var eff Effect
		if s.IsNew() && len(s.Messages) > 0 {
			h := s.History.Clone()
			h.CreateOrUpdate(history.AutoName(h, s.Messages[0].Text), s.Messages)
			s.History = h
			eff.Persist = true
		}
		return reset(s), eff

	case Submit:
		text := ev.Text
		if strings.TrimSpace(text) == "" {
			return s, Effect{}
		}
		s.Messages = appendMessage(s.Messages, history.Message{Sender: history.SenderUser, Text: text})
		s.Pending = true
		s.Err = nil
		s.Status = "Thinking..."
		return s, Effect{Ask: text}

	case AnswerReady:
		if !s.Pending {
			return s, Effect{}
		}
		s.Messages = appendMessage(s.Messages, history.Message{Sender: history.SenderAssistant, Text: ev.Text})
		s.Sources = append([]string(nil), ev.Sources...)
		h := s.History.Clone()
		if s.IsNew() {
			s.Current = history.AutoName(h, firstText(s.Messages))
		}
		h.CreateOrUpdate(s.Current, s.Messages)
		s.History = h
		s.Pending = false
		s.Status = ""
		return s, Effect{Persist: true}

	case AnswerFailed:
		if !s.Pending {
			return s, Effect{}
		}
		s.Pending = false
		s.Err = ev.Err
		if ev.Err != nil {
			s.Status = "Error: " + ev.Err.Error()
		}
		return s, Effect{}

	case Open:
		msgs, ok := s.History.Get(ev.Name)
		if !ok {
			s.Status = "No conversation named " + ev.Name
			return s, Effect{}
		}
		s.Current = ev.Name
		s.Messages = msgs
		s.Sources = nil
		s.MenuOpen = ""
		s.RenameTarget = ""
		s.Err = nil
		s.Status = ""
		return s, Effect{}

	case ToggleMenu:
		if s.MenuOpen == ev.Name {
			s.MenuOpen = ""
		} else {
			s.MenuOpen = ev.Name
		}
		return s, Effect{}

	case BeginRename:
		if !s.History.Has(ev.Name) {
			return s, Effect{}
		}
		s.RenameTarget = ev.Name
		s.MenuOpen = ""
		return s, Effect{}

	case CommitRename:
		old := s.RenameTarget
		s.RenameTarget = ""
		if old == "" {
			return s, Effect{}
		}
		h := s.History.Clone()
		if !h.Rename(old, ev.New) {
			return s, Effect{}
		}
		s.History = h
		if s.Current == old {
			s.Current = strings.TrimSpace(ev.New)
		}
		s.Status = "Renamed to " + strings.TrimSpace(ev.New)
		return s, Effect{Persist: true}

	case CancelRename:
		s.RenameTarget = ""
		return s, Effect{}

	case BuildStarted:
		s.Building = true
		s.Err = nil
		s.Status = "Building index..."
		return s, Effect{Build: true}

	case BuildDone:
		if !s.Building {
			return s, Effect{}
		}
		s.Building = false
		s.Err = ev.Err
		s.Status = ""
		if ev.Err != nil {
			s.Status = "Index build failed: " + ev.Err.Error()
		}
		return s, Effect{}

	case Delete:
		h := s.History.Clone()
		if !h.Delete(ev.Name) {
			return s, Effect{}
		}
		s.History = h
		s.MenuOpen = ""
		if s.RenameTarget == ev.Name {
			s.RenameTarget = ""
		}
		if s.Current == ev.Name {
			s = reset(s)
		}
		s.Status = "Deleted " + ev.Name
		return s, Effect{Persist: true}
	}
	return s, Effect{}
}

func reset(s State) State {
	s.Current = NewChatName
	s.Messages = nil
	s.Sources = nil
	s.MenuOpen = ""
	s.RenameTarget = ""
	s.Pending = false
	s.Err = nil
	s.Status = ""
	return s
}

func appendMessage(msgs []history.Message, m history.Message) []history.Message {
	out := make([]history.Message, len(msgs), len(msgs)+1)
	copy(out, msgs)
	return append(out, m)
}

func firstText(msgs []history.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	return msgs[0].Text
}
