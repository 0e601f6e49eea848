package domain

// Frame is one inbound client frame. All message kinds share this shape;
// fields not used by a kind are simply left empty by the client.
type Frame struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	ID      string `json:"id"`
	Emoji   string `json:"emoji"`
	Delta   *int   `json:"delta"`
	Action  string `json:"action"`
	Value   string `json:"value"`
	UserID  string `json:"userId"`
	Minutes int    `json:"minutes"`
}

// Inbound frame kinds.
const (
	FrameTyping   = "typing"
	FrameMessage  = "message"
	FrameReaction = "reaction"
	FrameAdmin    = "admin"
)

// Hello is the welcome payload sent to a newly active session.
type Hello struct {
	Type      string `json:"type"`
	Occupants int    `json:"occupants"`
}

// Presence reports the local occupant count of a room.
type Presence struct {
	Type      string `json:"type"`
	Occupants int    `json:"occupants"`
}

// History carries the replay of recent messages, oldest first.
type History struct {
	Type  string    `json:"type"`
	Items []Message `json:"items"`
}

// Typing is broadcast to a room while a user is composing.
type Typing struct {
	Type string  `json:"type"`
	User UserRef `json:"user"`
}

// Reaction is a stateless broadcast referencing a message by id.
type Reaction struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Emoji string `json:"emoji"`
	Delta int    `json:"delta"`
}

// Announce is an emphasized admin broadcast.
type Announce struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Moderate is the broadcast form of an admin moderation action. Only the
// fields the action needs are populated.
type Moderate struct {
	Type    string `json:"type"`
	Action  string `json:"action"`
	Value   string `json:"value,omitempty"`
	UserID  string `json:"userId,omitempty"`
	Minutes int    `json:"minutes,omitempty"`
	ID      string `json:"id,omitempty"`
}
