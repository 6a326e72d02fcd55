package api

import "github.com/vovakirdan/wirechat-client/internal/proto"

// Role is a member's role within a server.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Server is the cached summary of a server. MemberCount and ChannelCount are
// projections maintained by the backend; the client overwrites them on
// stat-update events or full reloads and never derives them from its own
// partial lists.
type Server struct {
	Name            string `json:"name"`
	CreatorUsername string `json:"creator_username"`
	CreatedAt       string `json:"created_at"`
	MemberCount     int64  `json:"member_count"`
	ChannelCount    int64  `json:"channel_count"`
}

// Channel is the cached summary of a channel.
type Channel struct {
	ID           string `json:"id"`
	ServerName   string `json:"server_name"`
	Name         string `json:"name"`
	CreatedAt    string `json:"created_at"`
	MessageCount int64  `json:"message_count"`
	Position     int64  `json:"position"`
}

// Member is one user's membership on a server. At most one record exists per
// (server, username) pair.
type Member struct {
	ServerName string `json:"server_name"`
	Username   string `json:"username"`
	Role       Role   `json:"role"`
	IsOnline   bool   `json:"is_online"`
	JoinedAt   string `json:"joined_at"`
	LastSeen   string `json:"last_seen"`
}

// DirectMessage is the cached summary of a DM conversation.
type DirectMessage struct {
	ID            string `json:"id"`
	Username1     string `json:"username1"`
	Username2     string `json:"username2"`
	CreatedAt     string `json:"created_at"`
	LastMessageAt string `json:"last_message_at,omitempty"`
	MessageCount  int64  `json:"message_count"`
}

// Message is one entry in a channel or DM feed. ID is unique within a feed;
// feeds are ordered oldest to newest.
type Message struct {
	ID              string             `json:"id"`
	ChannelID       string             `json:"channel_id,omitempty"`
	DMID            string             `json:"dm_id,omitempty"`
	SenderUsername  string             `json:"sender_username"`
	Content         string             `json:"content"`
	FilteredContent string             `json:"filtered_content,omitempty"`
	ContentType     string             `json:"content_type"`
	CreatedAt       string             `json:"created_at"`
	FilterStatus    string             `json:"filter_status"`
	Attachments     []proto.Attachment `json:"attachments,omitempty"`
}
