package proto

import "encoding/json"

// Envelope is the minimal shape of an inbound frame, used to pick a decode rule.
type Envelope struct {
	Type string `json:"type"`
}

// Server → client event types.
const (
	TypeConnected               = "connected"
	TypeNewMessage              = "new_message"
	TypeNewDMMessage            = "new_dm_message"
	TypeMessageDeleted          = "message_deleted"
	TypeUserJoined              = "user_joined"
	TypeUserLeft                = "user_left"
	TypeUserTyping              = "user_typing"
	TypeUserOnlineStatusChanged = "user_online_status_changed"
	TypeUserBanned              = "user_banned"
	TypeServerCreated           = "server_created"
	TypeServerDeleted           = "server_deleted"
	TypeServerMemberJoined      = "server_member_joined"
	TypeServerMemberLeft        = "server_member_left"
	TypeServerMemberRoleUpdated = "server_member_role_updated"
	TypeServerStatsUpdated      = "server_stats_updated"
	TypeChannelCreated          = "channel_created"
	TypeChannelDeleted          = "channel_deleted"
	TypeChannelRenamed          = "channel_renamed"
	TypeDMCreated               = "dm_created"
	TypeFileDownloaded          = "file_downloaded"
	TypeError                   = "error"
	TypePong                    = "pong"
)

// Client → server message types.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeTyping      = "typing"
	TypeHeartbeat   = "heartbeat"
)

// ClientMessage is the envelope for messages sent to the server.
type ClientMessage struct {
	Type      string `json:"type"`
	ChannelID string `json:"channel_id,omitempty"`
}

// Subscribe requests delivery of events for a channel.
func Subscribe(channelID string) ClientMessage {
	return ClientMessage{Type: TypeSubscribe, ChannelID: channelID}
}

// Unsubscribe stops delivery of events for a channel.
func Unsubscribe(channelID string) ClientMessage {
	return ClientMessage{Type: TypeUnsubscribe, ChannelID: channelID}
}

// Typing tells the server the local user is typing in a channel.
func Typing(channelID string) ClientMessage {
	return ClientMessage{Type: TypeTyping, ChannelID: channelID}
}

// Heartbeat keeps the stream alive; the server answers with a pong event.
func Heartbeat() ClientMessage {
	return ClientMessage{Type: TypeHeartbeat}
}

// Attachment describes a file attached to a message.
type Attachment struct {
	FileID        string `json:"file_id"`
	FileName      string `json:"file_name,omitempty"`
	FileSize      int64  `json:"file_size,omitempty"`
	DownloadCount int64  `json:"download_count,omitempty"`
}

// decodeAttachments tolerates the loosely-typed attachment list the server sends.
func decodeAttachments(raw json.RawMessage) []Attachment {
	if len(raw) == 0 {
		return nil
	}
	var out []Attachment
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
