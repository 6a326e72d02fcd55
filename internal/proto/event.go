package proto

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingType marks a frame without a type discriminant.
var ErrMissingType = errors.New("frame has no event type")

// Event is one decoded server event. The set of implementations is closed:
// the reconciler switches over every variant, so adding an event type means
// adding a struct here and a rule there.
type Event interface {
	// EventType returns the wire discriminant.
	EventType() string

	isEvent()
}

// Connected confirms the stream is authenticated as the given user.
type Connected struct {
	Username string `json:"username"`
}

// NewMessage is a chat message posted to a channel.
type NewMessage struct {
	MessageID         string          `json:"message_id"`
	ChannelID         string          `json:"channel_id"`
	SenderUsername    string          `json:"sender_username"`
	Content           string          `json:"content"`
	FilteredContent   string          `json:"filtered_content,omitempty"`
	ContentType       string          `json:"content_type"`
	FilterStatus      string          `json:"filter_status"`
	CreatedAt         string          `json:"created_at"`
	SenderProfileType string          `json:"sender_profile_type,omitempty"`
	SenderAvatarColor string          `json:"sender_avatar_color,omitempty"`
	RawAttachments    json.RawMessage `json:"attachments,omitempty"`
}

// Attachments decodes the attachment list, dropping entries it cannot read.
func (e *NewMessage) Attachments() []Attachment {
	return decodeAttachments(e.RawAttachments)
}

// NewDMMessage is a chat message posted to a direct-message conversation.
type NewDMMessage struct {
	MessageID         string          `json:"message_id"`
	DMID              string          `json:"dm_id"`
	SenderUsername    string          `json:"sender_username"`
	Content           string          `json:"content"`
	FilteredContent   string          `json:"filtered_content,omitempty"`
	ContentType       string          `json:"content_type"`
	FilterStatus      string          `json:"filter_status"`
	CreatedAt         string          `json:"created_at"`
	SenderProfileType string          `json:"sender_profile_type,omitempty"`
	SenderAvatarColor string          `json:"sender_avatar_color,omitempty"`
	RawAttachments    json.RawMessage `json:"attachments,omitempty"`
}

// Attachments decodes the attachment list, dropping entries it cannot read.
func (e *NewDMMessage) Attachments() []Attachment {
	return decodeAttachments(e.RawAttachments)
}

// MessageDeleted removes a message from whichever feed holds it.
type MessageDeleted struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id,omitempty"`
	DMID      string `json:"dm_id,omitempty"`
}

// UserJoined announces a user joining a channel.
type UserJoined struct {
	Username  string `json:"username"`
	ChannelID string `json:"channel_id"`
}

// UserLeft announces a user leaving a channel.
type UserLeft struct {
	Username  string `json:"username"`
	ChannelID string `json:"channel_id"`
}

// UserTyping announces a user typing in a channel.
type UserTyping struct {
	Username  string `json:"username"`
	ChannelID string `json:"channel_id"`
}

// UserOnlineStatusChanged flips a member's presence flag on a server.
type UserOnlineStatusChanged struct {
	ServerName string `json:"server_name"`
	Username   string `json:"username"`
	IsOnline   bool   `json:"is_online"`
}

// UserBanned announces a sitewide ban of a user.
type UserBanned struct {
	Username string `json:"username"`
}

// ServerCreated announces a new server.
type ServerCreated struct {
	ServerName    string `json:"server_name"`
	OwnerUsername string `json:"owner_username"`
}

// ServerDeleted announces a server removal.
type ServerDeleted struct {
	ServerName string `json:"server_name"`
}

// ServerMemberJoined announces a user joining a server.
type ServerMemberJoined struct {
	ServerName string `json:"server_name"`
	Username   string `json:"username"`
}

// ServerMemberLeft announces a user leaving (or being removed from) a server.
type ServerMemberLeft struct {
	ServerName string `json:"server_name"`
	Username   string `json:"username"`
}

// ServerMemberRoleUpdated announces a member role change.
type ServerMemberRoleUpdated struct {
	ServerName string `json:"server_name"`
	Username   string `json:"username"`
	NewRole    string `json:"new_role"`
}

// ServerStatsUpdated carries fresh cached counts for a server.
type ServerStatsUpdated struct {
	ServerName   string `json:"server_name"`
	MemberCount  int64  `json:"member_count"`
	ChannelCount int64  `json:"channel_count"`
}

// ChannelCreated announces a new channel on a server.
type ChannelCreated struct {
	ServerName  string `json:"server_name"`
	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name"`
}

// ChannelDeleted announces a channel removal.
type ChannelDeleted struct {
	ServerName string `json:"server_name"`
	ChannelID  string `json:"channel_id"`
}

// ChannelRenamed announces a channel rename.
type ChannelRenamed struct {
	ServerName string `json:"server_name"`
	ChannelID  string `json:"channel_id"`
	NewName    string `json:"new_name"`
}

// DMCreated announces a new direct-message conversation.
type DMCreated struct {
	DMID      string `json:"dm_id"`
	Username1 string `json:"username1"`
	Username2 string `json:"username2"`
}

// FileDownloaded carries the updated download counter for an attachment.
type FileDownloaded struct {
	FileID        string `json:"file_id"`
	DownloadCount int64  `json:"download_count"`
}

// StreamError is a protocol-level error report from the server.
type StreamError struct {
	Message string `json:"message"`
}

// Pong answers a client heartbeat.
type Pong struct{}

func (*Connected) EventType() string               { return TypeConnected }
func (*NewMessage) EventType() string              { return TypeNewMessage }
func (*NewDMMessage) EventType() string            { return TypeNewDMMessage }
func (*MessageDeleted) EventType() string          { return TypeMessageDeleted }
func (*UserJoined) EventType() string              { return TypeUserJoined }
func (*UserLeft) EventType() string                { return TypeUserLeft }
func (*UserTyping) EventType() string              { return TypeUserTyping }
func (*UserOnlineStatusChanged) EventType() string { return TypeUserOnlineStatusChanged }
func (*UserBanned) EventType() string              { return TypeUserBanned }
func (*ServerCreated) EventType() string           { return TypeServerCreated }
func (*ServerDeleted) EventType() string           { return TypeServerDeleted }
func (*ServerMemberJoined) EventType() string      { return TypeServerMemberJoined }
func (*ServerMemberLeft) EventType() string        { return TypeServerMemberLeft }
func (*ServerMemberRoleUpdated) EventType() string { return TypeServerMemberRoleUpdated }
func (*ServerStatsUpdated) EventType() string      { return TypeServerStatsUpdated }
func (*ChannelCreated) EventType() string          { return TypeChannelCreated }
func (*ChannelDeleted) EventType() string          { return TypeChannelDeleted }
func (*ChannelRenamed) EventType() string          { return TypeChannelRenamed }
func (*DMCreated) EventType() string               { return TypeDMCreated }
func (*FileDownloaded) EventType() string          { return TypeFileDownloaded }
func (*StreamError) EventType() string             { return TypeError }
func (*Pong) EventType() string                    { return TypePong }

func (*Connected) isEvent()               {}
func (*NewMessage) isEvent()              {}
func (*NewDMMessage) isEvent()            {}
func (*MessageDeleted) isEvent()          {}
func (*UserJoined) isEvent()              {}
func (*UserLeft) isEvent()                {}
func (*UserTyping) isEvent()              {}
func (*UserOnlineStatusChanged) isEvent() {}
func (*UserBanned) isEvent()              {}
func (*ServerCreated) isEvent()           {}
func (*ServerDeleted) isEvent()           {}
func (*ServerMemberJoined) isEvent()      {}
func (*ServerMemberLeft) isEvent()        {}
func (*ServerMemberRoleUpdated) isEvent() {}
func (*ServerStatsUpdated) isEvent()      {}
func (*ChannelCreated) isEvent()          {}
func (*ChannelDeleted) isEvent()          {}
func (*ChannelRenamed) isEvent()          {}
func (*DMCreated) isEvent()               {}
func (*FileDownloaded) isEvent()          {}
func (*StreamError) isEvent()             {}
func (*Pong) isEvent()                    {}

// Decode parses a raw frame into its typed event. It returns (nil, nil) for
// event types this client does not know, so the stream can grow new types
// without breaking older clients.
func Decode(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var ev Event
	switch env.Type {
	case "":
		return nil, ErrMissingType
	case TypeConnected:
		ev = &Connected{}
	case TypeNewMessage:
		ev = &NewMessage{}
	case TypeNewDMMessage:
		ev = &NewDMMessage{}
	case TypeMessageDeleted:
		ev = &MessageDeleted{}
	case TypeUserJoined:
		ev = &UserJoined{}
	case TypeUserLeft:
		ev = &UserLeft{}
	case TypeUserTyping:
		ev = &UserTyping{}
	case TypeUserOnlineStatusChanged:
		ev = &UserOnlineStatusChanged{}
	case TypeUserBanned:
		ev = &UserBanned{}
	case TypeServerCreated:
		ev = &ServerCreated{}
	case TypeServerDeleted:
		ev = &ServerDeleted{}
	case TypeServerMemberJoined:
		ev = &ServerMemberJoined{}
	case TypeServerMemberLeft:
		ev = &ServerMemberLeft{}
	case TypeServerMemberRoleUpdated:
		ev = &ServerMemberRoleUpdated{}
	case TypeServerStatsUpdated:
		ev = &ServerStatsUpdated{}
	case TypeChannelCreated:
		ev = &ChannelCreated{}
	case TypeChannelDeleted:
		ev = &ChannelDeleted{}
	case TypeChannelRenamed:
		ev = &ChannelRenamed{}
	case TypeDMCreated:
		ev = &DMCreated{}
	case TypeFileDownloaded:
		ev = &FileDownloaded{}
	case TypeError:
		ev = &StreamError{}
	case TypePong:
		ev = &Pong{}
	default:
		return nil, nil
	}

	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return ev, nil
}
