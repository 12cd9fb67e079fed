package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReactions_ToggleIsSelfInverse(t *testing.T) {
	r := Reactions{"🔥": {"amy"}, "👍": {"bob", "cat"}}
	before := r.Clone()

	assert.True(t, r.Toggle("🔥", "bob"))
	assert.ElementsMatch(t, []string{"amy", "bob"}, r["🔥"])
	assert.False(t, r.Toggle("🔥", "bob"))
	assert.Equal(t, before, r)

	assert.False(t, r.Toggle("👍", "cat"))
	assert.True(t, r.Toggle("👍", "cat"))
	assert.ElementsMatch(t, before["👍"], r["👍"])
}

func TestReactions_LastAuthorDropsEmoji(t *testing.T) {
	r := Reactions{}
	r.Toggle("🎵", "amy")
	r.Toggle("🎵", "amy")
	_, ok := r["🎵"]
	assert.False(t, ok)
	assert.Empty(t, r)
}

func TestReactions_CloneIsIndependent(t *testing.T) {
	r := Reactions{"🔥": {"amy"}}
	c := r.Clone()
	c.Toggle("🔥", "bob")
	assert.Equal(t, []string{"amy"}, r["🔥"])

	assert.NotNil(t, Reactions(nil).Clone())
}

func TestMessage_Validate(t *testing.T) {
	assert.NoError(t, Message{Author: "amy", Text: "hi"}.Validate())
	assert.NoError(t, Message{Author: "amy", SongCard: &Song{ID: "x"}}.Validate())
	assert.ErrorIs(t, Message{Author: "amy"}.Validate(), ErrMessageEmpty)
	assert.ErrorIs(t, Message{Author: "amy", Text: strings.Repeat("x", MaxMessageLen+1)}.Validate(), ErrMessageTooLong)
	assert.ErrorIs(t, Message{Text: "hi"}.Validate(), ErrUsernameEmpty)
}

func TestIsPermutationOf(t *testing.T) {
	q := []QueueEntry{{QueueID: "1"}, {QueueID: "2"}, {QueueID: "3"}}
	assert.True(t, IsPermutationOf([]QueueEntry{{QueueID: "3"}, {QueueID: "1"}, {QueueID: "2"}}, q))
	assert.False(t, IsPermutationOf([]QueueEntry{{QueueID: "3"}, {QueueID: "1"}}, q))
	assert.False(t, IsPermutationOf([]QueueEntry{{QueueID: "1"}, {QueueID: "1"}, {QueueID: "2"}}, q))
	assert.False(t, IsPermutationOf([]QueueEntry{{QueueID: "1"}, {QueueID: "2"}, {QueueID: "9"}}, q))
}

func TestSong_Validate(t *testing.T) {
	assert.NoError(t, Song{ID: "x", Platform: PlatformSpotify}.Validate())
	assert.ErrorIs(t, Song{Platform: PlatformSpotify}.Validate(), ErrSongIDEmpty)
	assert.ErrorIs(t, Song{ID: "x", Platform: "soundcloud"}.Validate(), ErrUnknownPlatform)
}

func TestParseRoomID(t *testing.T) {
	id, err := ParseRoomID("abc")
	assert.NoError(t, err)
	assert.Equal(t, RoomID("abc"), id)
	_, err = ParseRoomID("")
	assert.ErrorIs(t, err, ErrRoomIDEmpty)
	_, err = ParseRoomID(strings.Repeat("r", MaxRoomIDLen+1))
	assert.ErrorIs(t, err, ErrRoomIDTooLong)
}
