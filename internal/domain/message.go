package domain

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Roles carried by the capability token. Anything other than RoleAdmin is
// normalized to RoleUser when the token is verified.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Identity is the verified content of a capability token. A session carries
// exactly one Identity for its whole lifetime.
type Identity struct {
	Room      string
	UserID    string
	Name      string
	NameLower string
	Role      string
}

// IsAdmin reports whether the identity may issue admin frames.
func (id Identity) IsAdmin() bool { return id.Role == RoleAdmin }

// UserRef identifies a message author on the wire.
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User returns the wire reference for this identity.
func (id Identity) User() UserRef { return UserRef{ID: id.UserID, Name: id.Name} }

// Message is one accepted chat message. It is both the broadcast payload and
// the history entry; once created it is never mutated.
type Message struct {
	Type string  `json:"type"`
	ID   string  `json:"id"`
	Room string  `json:"room"`
	Text string  `json:"text"`
	TS   int64   `json:"ts"`
	User UserRef `json:"user"`
}

// NewMessage assigns a monotonically sortable id and the current timestamp.
func NewMessage(room, text string, user UserRef) Message {
	return Message{
		Type: "message",
		ID:   ulid.Make().String(),
		Room: room,
		Text: text,
		TS:   time.Now().UnixMilli(),
		User: user,
	}
}

// AuditEntry is one append-only record of an admin action. Only the fields
// relevant to the action are set.
type AuditEntry struct {
	Action  string `json:"action"`
	By      string `json:"by"`
	Name    string `json:"name"`
	Text    string `json:"text,omitempty"`
	Value   string `json:"value,omitempty"`
	UserID  string `json:"userId,omitempty"`
	Minutes int    `json:"minutes,omitempty"`
	MsgID   string `json:"id,omitempty"`
	TS      int64  `json:"ts"`
}

// RoomInfo is the roster view of one room, built from shared state only.
type RoomInfo struct {
	Name      string `json:"name"`
	Occupants int64  `json:"occupants"`
	SinceTS   int64  `json:"sinceTs"`
	Slow      string `json:"slow"`
}

// UserInfo is the roster view of one room member.
type UserInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	SinceTS int64  `json:"sinceTs"`
	LastTS  int64  `json:"lastTs"`
	Msg     int64  `json:"msg"`
}
