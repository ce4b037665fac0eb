// Package history persists named conversations as a single JSON document.
package history

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	SenderUser      = "user"
	SenderAssistant = "assistant"

	autoNameRunes   = 30
	defaultAutoName = "Chat"
)

type Message struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// History maps a conversation name to its messages.
type History map[string][]Message

func (h History) Names() []string {
	names := make([]string, 0, len(h))
	for n := range h {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (h History) Get(name string) ([]Message, bool) {
	msgs, ok := h[name]
	return cloneMessages(msgs), ok
}

func (h History) Has(name string) bool {
	_, ok := h[name]
	return ok
}

// CreateOrUpdate stores a copy of msgs under name.
func (h History) CreateOrUpdate(name string, msgs []Message) {
	h[name] = cloneMessages(msgs)
}

// Rename moves a conversation. It is a no-op when newName is blank, equals
// oldName or oldName does not exist, and reports whether anything moved.
// An existing conversation called newName is replaced.
func (h History) Rename(oldName, newName string) bool {
	newName = strings.TrimSpace(newName)
	if newName == "" || newName == oldName {
		return false
	}
	msgs, ok := h[oldName]
	if !ok {
		return false
	}
	h[newName] = msgs
	delete(h, oldName)
	return true
}

func (h History) Delete(name string) bool {
	if _, ok := h[name]; !ok {
		return false
	}
	delete(h, name)
	return true
}

func (h History) Clone() History {
	out := make(History, len(h))
	for k, v := range h {
		out[k] = cloneMessages(v)
	}
	return out
}

// AutoName derives a conversation name from the first message: its first 30
// characters as typed, or "Chat" when blank, suffixed with _1, _2, ... until unused.
func AutoName(h History, first string) string {
	base := truncateRunes(first, autoNameRunes)
	if strings.TrimSpace(base) == "" {
		base = defaultAutoName
	}
	name := base
	for i := 1; h.Has(name); i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	return name
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func cloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	return append([]Message(nil), msgs...)
}
