package orch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dkeye/syncroom/internal/core"
	"github.com/dkeye/syncroom/internal/core/mocks"
	"github.com/dkeye/syncroom/internal/domain"
)

func chat(author, text string) domain.Message {
	return domain.Message{Author: author, Text: text}
}

func TestPostMessageBroadcastsStoredVersion(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	require.NoError(t, h.c.PostMessage(ctx, "r", chat("alice", "hello")))
	h.drain(t)

	ev, ok := h.tr.last(core.EventReceiveMessage)
	require.True(t, ok)
	msg := ev.Payload.(domain.Message)
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, domain.RoomID("r"), msg.RoomID)
	assert.Equal(t, "hello", msg.Text)
	assert.NotNil(t, msg.Reactions)

	cached := h.snapshot(t, "r").Messages
	require.Len(t, cached, 1)
	assert.Equal(t, "m1", cached[0].ID)
}

func TestPostMessageValidation(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	assert.ErrorIs(t, h.c.PostMessage(ctx, "r", chat("alice", "")), ErrInvalidArg)
	assert.ErrorIs(t, h.c.PostMessage(ctx, "r", chat("alice", strings.Repeat("x", domain.MaxMessageLen+1))), ErrInvalidArg)
	assert.ErrorIs(t, h.c.PostMessage(ctx, "r", chat("", "hi")), ErrInvalidArg)

	card := songA()
	require.NoError(t, h.c.PostMessage(ctx, "r", domain.Message{Author: "alice", SongCard: &card}))
}

func TestRecentMessagesKeepsNewestFifty(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	for i := range DefaultCacheSize + 1 {
		require.NoError(t, h.c.PostMessage(ctx, "r", chat("alice", fmt.Sprintf("msg %d", i))))
	}
	h.drain(t)

	cached := h.snapshot(t, "r").Messages
	require.Len(t, cached, DefaultCacheSize)
	assert.Equal(t, "m2", cached[0].ID)
	assert.Equal(t, "msg 1", cached[0].Text)
	assert.Equal(t, fmt.Sprintf("m%d", DefaultCacheSize+1), cached[len(cached)-1].ID)
	assert.Len(t, h.tr.named(core.EventReceiveMessage), DefaultCacheSize+1)
}

func TestPostMessageFallsBackWhenStoreFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	messages := mocks.NewMockMessageStore(ctrl)
	messages.EXPECT().Create(gomock.Any(), gomock.Any()).
		Return(domain.Message{}, errors.New("db down")).
		Times(2)

	h := newHarnessWith(t, Options{NewID: func() string { return "local-1" }}, messages, nil)
	ctx := context.Background()

	require.NoError(t, h.c.PostMessage(ctx, "r", chat("alice", "still here")))
	withID := chat("bob", "mine")
	withID.ID = "client-7"
	require.NoError(t, h.c.PostMessage(ctx, "r", withID))
	h.drain(t)

	events := h.tr.named(core.EventReceiveMessage)
	require.Len(t, events, 2)

	first := events[0].Payload.(domain.Message)
	assert.Equal(t, "local-1", first.ID)
	assert.Equal(t, "still here", first.Text)
	assert.False(t, first.Edited)
	assert.Equal(t, domain.Reactions{}, first.Reactions)
	assert.True(t, first.Timestamp.Equal(h.clock.Now()))

	assert.Equal(t, "client-7", events[1].Payload.(domain.Message).ID)
	assert.Len(t, h.snapshot(t, "r").Messages, 2)
}

func TestJoinHydratesOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	messages := mocks.NewMockMessageStore(ctrl)
	stored := []domain.Message{
		{ID: "old1", RoomID: "r", Author: "alice", Text: "one"},
		{ID: "old2", RoomID: "r", Author: "bob", Text: "two"},
	}
	messages.EXPECT().ListRecent(gomock.Any(), domain.RoomID("r"), DefaultCacheSize).
		Return(stored, nil).
		Times(1)

	h := newHarnessWith(t, Options{}, messages, nil)
	ctx := context.Background()
	_, err := h.c.Enqueue(ctx, "r", songA(), "alice")
	require.NoError(t, err)
	h.tr.reset()

	require.NoError(t, h.c.Join(ctx, "s1", "r"))
	h.drain(t)
	require.NoError(t, h.c.Join(ctx, "s2", "r"))
	h.drain(t)

	for _, sid := range []core.SessionID{"s1", "s2"} {
		var got []string
		for _, e := range h.tr.to(sid) {
			got = append(got, e.Event)
		}
		assert.Equal(t, []string{core.EventSyncStateUpdated, core.EventQueueUpdated, core.EventReceiveMessageHistory}, got, sid)
	}

	hist, ok := h.tr.last(core.EventReceiveMessageHistory)
	require.True(t, ok)
	msgs := hist.Payload.([]domain.Message)
	require.Len(t, msgs, 2)
	assert.Equal(t, "old1", msgs[0].ID)
	assert.Equal(t, 2, h.tr.MemberCount("r"))
}

func TestJoinStillRepliesWhenStoreFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	messages := mocks.NewMockMessageStore(ctrl)
	messages.EXPECT().ListRecent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("timeout"))

	h := newHarnessWith(t, Options{}, messages, nil)
	require.NoError(t, h.c.Join(context.Background(), "s1", "r"))
	h.drain(t)

	ev, ok := h.tr.last(core.EventReceiveMessageHistory)
	require.True(t, ok)
	assert.Equal(t, core.SessionID("s1"), ev.To)
	assert.Empty(t, ev.Payload)
}

func historyFor(t *testing.T, h *harness, sid core.SessionID) []domain.Message {
	t.Helper()
	for _, e := range h.tr.to(sid) {
		if e.Event == core.EventReceiveMessageHistory {
			return e.Payload.([]domain.Message)
		}
	}
	require.Fail(t, "no message history sent", sid)
	return nil
}

func TestJoinLoadsStoredHistoryAfterPost(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		_, err := h.store.Create(ctx, domain.Message{RoomID: "r", Author: "alice", Text: text})
		require.NoError(t, err)
	}

	// the room comes to life through a post, not a join
	require.NoError(t, h.c.PostMessage(ctx, "r", chat("bob", "four")))
	h.drain(t)
	require.NoError(t, h.c.Join(ctx, "s1", "r"))
	h.drain(t)

	msgs := historyFor(t, h, "s1")
	require.Len(t, msgs, 4)
	var texts []string
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"one", "two", "three", "four"}, texts)
	assert.Len(t, h.snapshot(t, "r").Messages, 4)
}

func TestJoinRetriesLoadAfterFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	messages := mocks.NewMockMessageStore(ctrl)
	stored := []domain.Message{
		{ID: "old1", RoomID: "r", Author: "alice", Text: "one"},
		{ID: "new", RoomID: "r", Author: "bob", Text: "two"},
	}
	messages.EXPECT().ListRecent(gomock.Any(), domain.RoomID("r"), DefaultCacheSize).
		Return(nil, errors.New("timeout")).
		Times(1)
	messages.EXPECT().ListRecent(gomock.Any(), domain.RoomID("r"), DefaultCacheSize).
		Return(stored, nil).
		Times(1)
	messages.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, m domain.Message) (domain.Message, error) {
			m.ID = "new"
			return m, nil
		})

	h := newHarnessWith(t, Options{}, messages, nil)
	ctx := context.Background()

	require.NoError(t, h.c.Join(ctx, "s1", "r"))
	h.drain(t)
	assert.Empty(t, historyFor(t, h, "s1"))

	require.NoError(t, h.c.PostMessage(ctx, "r", chat("bob", "two")))
	h.drain(t)

	require.NoError(t, h.c.Join(ctx, "s2", "r"))
	h.drain(t)
	msgs := historyFor(t, h, "s2")
	require.Len(t, msgs, 2)
	assert.Equal(t, "old1", msgs[0].ID)
	assert.Equal(t, "new", msgs[1].ID)

	// seeded now, so no further load
	require.NoError(t, h.c.Join(ctx, "s3", "r"))
	h.drain(t)
	assert.Len(t, historyFor(t, h, "s3"), 2)
}

func TestToggleReaction(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	t.Run("cached message", func(t *testing.T) {
		require.NoError(t, h.c.PostMessage(ctx, "r", chat("alice", "hi")))
		h.drain(t)

		require.NoError(t, h.c.ToggleReaction(ctx, "r", "m1", "👍", "bob"))
		h.drain(t)

		ev, ok := h.tr.last(core.EventReactionToggled)
		require.True(t, ok)
		assert.Equal(t, ReactionToggle{RoomID: "r", MessageID: "m1", Emoji: "👍", Author: "bob"}, ev.Payload)

		stored, err := h.store.Get(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, domain.Reactions{"👍": {"bob"}}, stored.Reactions)
		assert.Equal(t, domain.Reactions{"👍": {"bob"}}, h.snapshot(t, "r").Messages[0].Reactions)

		require.NoError(t, h.c.ToggleReaction(ctx, "r", "m1", "👍", "bob"))
		h.drain(t)
		stored, err = h.store.Get(ctx, "m1")
		require.NoError(t, err)
		assert.Empty(t, stored.Reactions)
		assert.Empty(t, h.snapshot(t, "r").Messages[0].Reactions)
	})

	t.Run("message outside the cache", func(t *testing.T) {
		old, err := h.store.Create(ctx, domain.Message{RoomID: "other", Author: "carol", Text: "old"})
		require.NoError(t, err)

		require.NoError(t, h.c.ToggleReaction(ctx, "other", old.ID, "🔥", "dave"))
		h.drain(t)

		stored, err := h.store.Get(ctx, old.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.Reactions{"🔥": {"dave"}}, stored.Reactions)
	})

	t.Run("unknown message still broadcasts", func(t *testing.T) {
		h.tr.reset()
		require.NoError(t, h.c.ToggleReaction(ctx, "r", "nope", "👍", "bob"))
		h.drain(t)
		assert.Len(t, h.tr.named(core.EventReactionToggled), 1)
	})

	assert.ErrorIs(t, h.c.ToggleReaction(ctx, "r", "", "👍", "bob"), ErrInvalidArg)
	assert.ErrorIs(t, h.c.ToggleReaction(ctx, "r", "m1", "👍", ""), ErrInvalidUser)
}

func TestEditMessage(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	require.NoError(t, h.c.PostMessage(ctx, "r", chat("alice", "helo")))
	h.drain(t)

	require.NoError(t, h.c.EditMessage(ctx, "r", "m1", "hello", "alice"))
	h.drain(t)

	ev, ok := h.tr.last(core.EventMessageEdited)
	require.True(t, ok)
	assert.Equal(t, MessageEdit{RoomID: "r", MessageID: "m1", NewText: "hello", Editor: "alice"}, ev.Payload)

	stored, err := h.store.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "hello", stored.Text)
	assert.True(t, stored.Edited)

	cached := h.snapshot(t, "r").Messages[0]
	assert.Equal(t, "hello", cached.Text)
	assert.True(t, cached.Edited)

	assert.ErrorIs(t, h.c.EditMessage(ctx, "r", "m1", "", "alice"), ErrInvalidArg)
	assert.ErrorIs(t, h.c.EditMessage(ctx, "r", "", "x", "alice"), ErrInvalidArg)
}
