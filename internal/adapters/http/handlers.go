package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/syncroom/internal/app/orch"
	"github.com/dkeye/syncroom/internal/core"
	"github.com/dkeye/syncroom/internal/domain"
)

const historyPageSize = 50

type handlers struct {
	deps Deps
}

func (h *handlers) root(c *gin.Context) {
	c.String(stdhttp.StatusOK, "Syncroom server is running")
}

func (h *handlers) health(c *gin.Context) {
	status := stdhttp.StatusOK
	body := gin.H{
		"status":   "ok",
		"sessions": h.deps.Hub.Registry.SessionCount(),
		"rooms":    h.deps.Rooms.RoomCount(),
	}
	if h.deps.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Health.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Msg("health check failed")
			status = stdhttp.StatusServiceUnavailable
			body["status"] = "degraded"
			body["error"] = err.Error()
		}
	}
	c.JSON(status, body)
}

func (h *handlers) resolveMetadata(c *gin.Context) {
	var req struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		c.JSON(stdhttp.StatusBadRequest, gin.H{"error": "URL is required"})
		return
	}
	song, err := h.deps.Resolver.Resolve(c.Request.Context(), req.URL)
	if err != nil {
		c.JSON(stdhttp.StatusUnprocessableEntity, gin.H{"error": "Could not fetch metadata or unsupported platform"})
		return
	}
	c.JSON(stdhttp.StatusOK, song)
}

// search degrades to an empty list when the upstream fails.
func (h *handlers) search(c *gin.Context) {
	var req struct {
		Query string `json:"query"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		c.JSON(stdhttp.StatusBadRequest, gin.H{"error": "Query is required"})
		return
	}
	songs, err := h.deps.Resolver.Search(c.Request.Context(), req.Query)
	if err != nil || songs == nil {
		songs = []domain.Song{}
	}
	c.JSON(stdhttp.StatusOK, songs)
}

func (h *handlers) listHistory(c *gin.Context) {
	room, err := domain.ParseRoomID(c.Query("roomId"))
	if err != nil {
		c.JSON(stdhttp.StatusBadRequest, gin.H{"error": "roomId is required"})
		return
	}
	entries, err := h.deps.History.List(c.Request.Context(), room, historyPageSize)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room", string(room)).Msg("list history")
		c.JSON(stdhttp.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	c.JSON(stdhttp.StatusOK, entries)
}

type historyRequest struct {
	RoomID    string          `json:"roomId"`
	SongID    string          `json:"songId"`
	Platform  domain.Platform `json:"platform"`
	Title     string          `json:"title"`
	Artist    string          `json:"artist"`
	Thumbnail string          `json:"thumbnail"`
	PlayedBy  string          `json:"playedBy"`
}

func (h *handlers) appendHistory(c *gin.Context) {
	var req historyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RoomID == "" || req.SongID == "" || req.Title == "" {
		c.JSON(stdhttp.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	room, err := domain.ParseRoomID(req.RoomID)
	if err != nil {
		c.JSON(stdhttp.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	playedBy := req.PlayedBy
	if playedBy == "" {
		playedBy = "Unknown"
	}
	song := domain.Song{
		ID:        req.SongID,
		Platform:  req.Platform,
		Title:     req.Title,
		Artist:    req.Artist,
		Thumbnail: req.Thumbnail,
	}
	entry, err := h.deps.History.Append(c.Request.Context(), room, song, playedBy)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room", string(room)).Msg("append history")
		c.JSON(stdhttp.StatusInternalServerError, gin.H{"error": "Failed to log history"})
		return
	}
	c.JSON(stdhttp.StatusCreated, entry)
}

func (h *handlers) listRooms(c *gin.Context) {
	rooms := h.deps.Hub.List()
	slices.SortFunc(rooms, func(a, b core.RoomInfo) int { return strings.Compare(string(a.ID), string(b.ID)) })
	c.JSON(stdhttp.StatusOK, rooms)
}

type roomStateResponse struct {
	orch.Snapshot
	Members []core.MemberDTO `json:"members"`
}

func (h *handlers) roomState(c *gin.Context) {
	room, err := domain.ParseRoomID(c.Param("roomId"))
	if err != nil {
		c.JSON(stdhttp.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	snap, err := h.deps.Rooms.Snapshot(c.Request.Context(), room)
	if errors.Is(err, orch.ErrNoRoom) {
		c.JSON(stdhttp.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if err != nil {
		c.JSON(stdhttp.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(stdhttp.StatusOK, roomStateResponse{Snapshot: snap, Members: h.deps.Hub.Registry.MembersOfRoom(room)})
}
