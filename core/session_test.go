package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStateAndEvents(t *testing.T) {
	s := NewSession("s1")

	s.SetState("step", "draft")
	v, ok := s.GetState("step")
	require.True(t, ok)
	assert.Equal(t, "draft", v)

	s.ApplyStateDelta(map[string]any{"step": "review", "round": 2})
	v, _ = s.GetState("step")
	assert.Equal(t, "review", v)

	s.AddEvent(NewUserMessageEvent("inv-1", "hi"))
	events := s.GetEvents()
	require.Len(t, events, 1)

	// GetEvents hands out a copy.
	events[0].Author = "tampered"
	assert.Equal(t, "user", s.GetEvents()[0].Author)
}

func TestSessionConversationHistoryFiltering(t *testing.T) {
	s := NewSession("s1")
	s.AddEvent(NewUserMessageEvent("inv-1", "question"))

	partial := NewMessageEvent("assistant", "thin")
	yes := true
	partial.Partial = &yes
	s.AddEvent(partial)

	control := NewEvent("inv-1", "system")
	s.AddEvent(control)

	s.AddEvent(NewMessageEvent("assistant", "answer"))

	history := s.GetConversationHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "question", history[0].Content.JoinedText())
	assert.Equal(t, "answer", history[1].Content.JoinedText())
}

func TestSessionClone(t *testing.T) {
	s := NewSession("s1")
	s.SetState("k", "v")
	s.AddEvent(NewUserMessageEvent("inv-1", "hi"))

	clone := s.Clone()
	clone.SetState("k", "changed")
	clone.AddEvent(NewMessageEvent("assistant", "extra"))

	v, _ := s.GetState("k")
	assert.Equal(t, "v", v)
	assert.Len(t, s.GetEvents(), 1)
}

func TestInvocationContextStateDelta(t *testing.T) {
	sess := NewSession("s1")
	sess.SetState("persisted", 1)

	ictx := NewInvocationContext(t.Context(), "s1", NewID(), sess, nil, nil, nil)
	ictx.SetState("staged", 2)

	v, ok := ictx.GetState("staged")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	// Falls through to the session for unstaged keys.
	v, ok = ictx.GetState("persisted")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = ictx.GetState("missing")
	assert.False(t, ok)
}

func TestInvocationContextForkIsolation(t *testing.T) {
	ictx := NewInvocationContext(t.Context(), "s1", NewID(), NewSession("s1"), nil, nil, nil)
	ictx.SetState("parent", true)

	child := ictx.Fork("call-1")
	child.SetState("child", true)

	assert.Equal(t, "call-1", child.FunctionCallID)
	_, ok := ictx.StateDelta["child"]
	assert.False(t, ok)
	_, ok = child.StateDelta["parent"]
	assert.False(t, ok)
}
