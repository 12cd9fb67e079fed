package core

// Client -> server events.
const (
	EventJoinRoom       = "join_room"
	EventSendMessage    = "send_message"
	EventToggleReaction = "toggle_reaction"
	EventEditMessage    = "edit_message"
	EventSyncUpdate     = "sync_update"
	EventQueueAdd       = "queue_add"
	EventQueueRemove    = "queue_remove"
	EventQueueReorder   = "queue_reorder"
	EventPlayNext       = "play_next"
	EventPlayPrevious   = "play_previous"
	EventPauseSync      = "pause_sync"
	EventResumeSync     = "resume_sync"
	EventSeekSync       = "seek_sync"
	EventStopSync       = "stop_sync"
)

// Server -> client events.
const (
	EventSyncStateUpdated      = "sync_state_updated"
	EventSyncStopped           = "sync_stopped"
	EventQueueUpdated          = "queue_updated"
	EventReceiveMessage        = "receive_message"
	EventReceiveMessageHistory = "receive_message_history"
	EventReactionToggled       = "reaction_toggled"
	EventMessageEdited         = "message_edited"
	EventHistoryEntry          = "history_entry"
	EventError                 = "error"
)
