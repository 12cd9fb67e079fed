package orch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/syncroom/internal/core"
	"github.com/dkeye/syncroom/internal/domain"
	"github.com/dkeye/syncroom/internal/metrics"
)

type ReactionToggle struct {
	RoomID    domain.RoomID `json:"roomId"`
	MessageID string        `json:"messageId"`
	Emoji     string        `json:"emoji"`
	Author    string        `json:"user"`
}

type MessageEdit struct {
	RoomID    domain.RoomID `json:"roomId"`
	MessageID string        `json:"messageId"`
	NewText   string        `json:"newText"`
	Editor    string        `json:"user"`
}

// Join subscribes sid to the room and replies to it alone with the current
// playback state, queue and recent messages. Until the cache has been
// seeded from the message store, each join loads it first; messages posted
// in the meantime are already in the store.
func (c *Coordinator) Join(ctx context.Context, sid core.SessionID, id domain.RoomID) error {
	return c.do(ctx, id, true, func(r *room) {
		if err := c.transport.Subscribe(sid, r.id); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("room", string(r.id)).Msg("subscribe failed")
			return
		}
		c.transport.OnDisconnect(sid, r.touch)
		if r.hydrated {
			r.sendState(sid)
			return
		}
		r.persist(func(ctx context.Context) {
			msgs, err := c.messages.ListRecent(ctx, r.id, c.opts.CacheSize)
			if err != nil {
				metrics.PersistFailures.WithLabelValues("message_list").Inc()
				log.Error().Err(err).Str("module", "orch").Str("room", string(r.id)).Msg("error loading messages")
			}
			r.post(func(r *room) {
				// the store already holds anything posted before this
				// load, so it replaces whatever the cache collected
				if err == nil && !r.hydrated {
					r.recent.Seed(msgs)
					r.hydrated = true
				}
				r.sendState(sid)
			})
		})
	})
}

func (r *room) sendState(sid core.SessionID) {
	t := r.c.transport
	t.Unicast(sid, core.EventSyncStateUpdated, r.playbackCopy())
	t.Unicast(sid, core.EventQueueUpdated, r.queueCopy())
	t.Unicast(sid, core.EventReceiveMessageHistory, r.recent.Snapshot())
}

// PostMessage persists msg, caches it and broadcasts the stored version.
// When the store fails the message still goes out under a local id.
func (c *Coordinator) PostMessage(ctx context.Context, id domain.RoomID, msg domain.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArg, err)
	}
	msg.RoomID = id
	msg.Edited = false
	msg.Reactions = domain.Reactions{}
	return c.do(ctx, id, true, func(r *room) {
		r.persist(func(ctx context.Context) {
			saved, err := c.messages.Create(ctx, msg)
			if err != nil {
				metrics.PersistFailures.WithLabelValues("message_create").Inc()
				log.Error().Err(err).Str("module", "orch").Str("room", string(id)).Msg("failed to save message")
				saved = msg
				if saved.ID == "" {
					saved.ID = c.opts.NewID()
				}
				saved.Timestamp = c.now()
			}
			saved.RoomID = id
			saved.Edited = false
			saved.Reactions = domain.Reactions{}
			r.post(func(r *room) {
				r.recent.Add(saved)
				r.broadcast(core.EventReceiveMessage, saved.Clone())
			})
		})
	})
}

// ToggleReaction broadcasts the toggle right away and persists the new
// reaction set afterwards; a failed write leaves clients ahead of storage.
func (c *Coordinator) ToggleReaction(ctx context.Context, id domain.RoomID, messageID, emoji, author string) error {
	if messageID == "" || emoji == "" {
		return ErrInvalidArg
	}
	if err := domain.ValidateUsername(author); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidUser, err)
	}
	return c.do(ctx, id, true, func(r *room) {
		r.broadcast(core.EventReactionToggled, ReactionToggle{RoomID: id, MessageID: messageID, Emoji: emoji, Author: author})

		if cached := r.recent.Find(messageID); cached != nil {
			if cached.Reactions == nil {
				cached.Reactions = domain.Reactions{}
			}
			cached.Reactions.Toggle(emoji, author)
			reactions := cached.Reactions.Clone()
			r.persist(func(ctx context.Context) {
				if err := c.messages.UpdateReactions(ctx, messageID, reactions); err != nil {
					reactionFailed(id, messageID, err)
				}
			})
			return
		}
		r.persist(func(ctx context.Context) {
			stored, err := c.messages.Get(ctx, messageID)
			if err != nil {
				reactionFailed(id, messageID, err)
				return
			}
			reactions := stored.Reactions.Clone()
			reactions.Toggle(emoji, author)
			if err := c.messages.UpdateReactions(ctx, messageID, reactions); err != nil {
				reactionFailed(id, messageID, err)
			}
		})
	})
}

func reactionFailed(id domain.RoomID, messageID string, err error) {
	metrics.PersistFailures.WithLabelValues("message_reactions").Inc()
	log.Error().Err(err).Str("module", "orch").Str("room", string(id)).Str("message", messageID).Msg("reaction update failed")
}

// EditMessage broadcasts the new text right away, then persists it with the
// edited flag.
func (c *Coordinator) EditMessage(ctx context.Context, id domain.RoomID, messageID, newText, editor string) error {
	if messageID == "" {
		return ErrInvalidArg
	}
	if newText == "" {
		return fmt.Errorf("%w: %w", ErrInvalidArg, domain.ErrMessageEmpty)
	}
	if len(newText) > domain.MaxMessageLen {
		return fmt.Errorf("%w: %w", ErrInvalidArg, domain.ErrMessageTooLong)
	}
	return c.do(ctx, id, true, func(r *room) {
		r.broadcast(core.EventMessageEdited, MessageEdit{RoomID: id, MessageID: messageID, NewText: newText, Editor: editor})
		if cached := r.recent.Find(messageID); cached != nil {
			cached.Text = newText
			cached.Edited = true
		}
		r.persist(func(ctx context.Context) {
			if err := c.messages.UpdateText(ctx, messageID, newText); err != nil {
				metrics.PersistFailures.WithLabelValues("message_edit").Inc()
				log.Error().Err(err).Str("module", "orch").Str("room", string(id)).Str("message", messageID).Msg("edit update failed")
			}
		})
	})
}
