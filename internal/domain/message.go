package domain

import (
	"errors"
	"slices"
	"time"
)

const MaxMessageLen = 4000

var (
	ErrMessageEmpty   = errors.New("message empty")
	ErrMessageTooLong = errors.New("message too long")
)

// Reactions maps an emoji to the authors who reacted with it, each author at
// most once per emoji.
type Reactions map[string][]string

// Toggle removes author from emoji if present (dropping the emoji when it
// empties) and adds it otherwise. It mutates r and reports whether the
// author is now reacting.
func (r Reactions) Toggle(emoji, author string) bool {
	authors := r[emoji]
	if i := slices.Index(authors, author); i >= 0 {
		authors = slices.Delete(slices.Clone(authors), i, i+1)
		if len(authors) == 0 {
			delete(r, emoji)
		} else {
			r[emoji] = authors
		}
		return false
	}
	r[emoji] = append(slices.Clone(authors), author)
	return true
}

func (r Reactions) Clone() Reactions {
	out := make(Reactions, len(r))
	for emoji, authors := range r {
		out[emoji] = slices.Clone(authors)
	}
	return out
}

type ReplyRef struct {
	ID string `json:"id"`
}

type Message struct {
	ID        string    `json:"id"`
	RoomID    RoomID    `json:"roomId"`
	Author    string    `json:"user"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Edited    bool      `json:"edited"`
	Reactions Reactions `json:"reactions"`
	ReplyTo   *ReplyRef `json:"replyTo,omitempty"`
	SongCard  *Song     `json:"songCard,omitempty"`
}

func (m Message) Validate() error {
	if m.Text == "" && m.SongCard == nil {
		return ErrMessageEmpty
	}
	if len(m.Text) > MaxMessageLen {
		return ErrMessageTooLong
	}
	return ValidateUsername(m.Author)
}

// Clone copies the message deep enough that the copy can be broadcast while
// the original keeps changing.
func (m Message) Clone() Message {
	m.Reactions = m.Reactions.Clone()
	if m.ReplyTo != nil {
		r := *m.ReplyTo
		m.ReplyTo = &r
	}
	if m.SongCard != nil {
		s := *m.SongCard
		m.SongCard = &s
	}
	return m
}
