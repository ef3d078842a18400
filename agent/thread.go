package agent

import (
	"fmt"

	"github.com/kernelmesh/kernelmesh/core"
)

// Thread is a handle on one conversation, backed by a session in a
// core.SessionStore. All reads go through the store so multiple agents (or
// process replicas sharing a durable store) observe the same history.
type Thread struct {
	id    string
	store core.SessionStore
}

// NewThread starts a fresh conversation with a generated ID.
func NewThread(store core.SessionStore) (*Thread, error) {
	id := core.NewID()
	if _, err := store.Create(id); err != nil {
		return nil, fmt.Errorf("failed to create thread session: %w", err)
	}
	return &Thread{id: id, store: store}, nil
}

// ResumeThread attaches to an existing conversation by session ID. Stores
// create the session lazily if it does not exist yet.
func ResumeThread(store core.SessionStore, id string) (*Thread, error) {
	if _, err := store.Get(id); err != nil {
		return nil, fmt.Errorf("failed to load thread session: %w", err)
	}
	return &Thread{id: id, store: store}, nil
}

// ID returns the underlying session ID.
func (t *Thread) ID() string { return t.id }

// AddEvent appends an event to the conversation.
func (t *Thread) AddEvent(ev core.Event) error {
	return t.store.AppendEvent(t.id, ev)
}

// AddUserMessage appends a user text message.
func (t *Thread) AddUserMessage(text string) error {
	return t.AddEvent(core.NewUserMessageEvent("", text))
}

// Events returns the full event history.
func (t *Thread) Events() ([]core.Event, error) {
	sess, err := t.store.Get(t.id)
	if err != nil {
		return nil, err
	}
	return sess.GetEvents(), nil
}

// History returns the conversational contents (user/assistant/tool, no
// streaming partials) in order, ready to hand to a chat model.
func (t *Thread) History() ([]core.Content, error) {
	sess, err := t.store.Get(t.id)
	if err != nil {
		return nil, err
	}
	events := sess.GetConversationHistory()
	contents := make([]core.Content, 0, len(events))
	for _, ev := range events {
		if ev.Content != nil {
			contents = append(contents, *ev.Content)
		}
	}
	return contents, nil
}

// State returns a session state value.
func (t *Thread) State(key string) (any, bool, error) {
	sess, err := t.store.Get(t.id)
	if err != nil {
		return nil, false, err
	}
	v, ok := sess.GetState(key)
	return v, ok, nil
}
