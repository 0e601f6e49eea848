// Package repository defines the shared-state contract. Every cross-process
// fact — room catalog, membership, nickname holds, moderation state, history,
// audit — is read and written through the Store interface; in-memory state
// elsewhere is strictly process-local.
package repository

import (
	"context"
	"time"

	"vls-chat/internal/domain"
)

// Store is the shared mutable state of the chat service. Implementations must
// make CreateHold a single atomic set-if-absent and ConsumeHold a single
// atomic read-and-delete; the join and handshake flows depend on those two
// operations never interleaving.
type Store interface {
	// CreateHold reserves nameLower in room for userID with the given expiry.
	// It reports false when a live hold for that name already exists.
	CreateHold(ctx context.Context, room, nameLower, userID string, ttl time.Duration) (bool, error)

	// ConsumeHold atomically reads and deletes the hold, returning the holder's
	// user id. It returns ErrNotFound when no live hold exists. The hold is
	// consumed even when the caller turns out not to own it.
	ConsumeHold(ctx context.Context, room, nameLower string) (string, error)

	// JoinRoom adds the room to the catalog, the user to the room's membership
	// set, and initializes the user's descriptor and the room's creation time.
	JoinRoom(ctx context.Context, room string, user domain.UserRef) error

	// LeaveRoom removes the user from the room's membership set.
	LeaveRoom(ctx context.Context, room, userID string) error

	// TouchUser bumps the user's message counter and last-activity timestamp.
	TouchUser(ctx context.Context, userID string) error

	// Rooms returns the room roster, ordered by occupancy descending then name.
	Rooms(ctx context.Context) ([]domain.RoomInfo, error)

	// RoomUsers returns the descriptors of the room's current members.
	RoomUsers(ctx context.Context, room string) ([]domain.UserInfo, error)

	// SlowMode returns the room's per-sender cooldown, zero when off.
	SlowMode(ctx context.Context, room string) (time.Duration, error)

	// SetSlowMode stores the normalized slow-mode value ("off" or "Ns").
	SetSlowMode(ctx context.Context, room, value string) error

	IsBanned(ctx context.Context, room, userID string) (bool, error)

	// Ban blocks the user in the room permanently.
	Ban(ctx context.Context, room, userID string) error

	// InTimeout reports whether the user's timeout in the room is still live.
	InTimeout(ctx context.Context, room, userID string) (bool, error)

	// Timeout blocks the user in the room for the given duration; the penalty
	// expires store-side.
	Timeout(ctx context.Context, room, userID string, d time.Duration) error

	// AppendHistory adds a message to the room's bounded history buffer,
	// evicting the oldest entries beyond the cap.
	AppendHistory(ctx context.Context, room string, msg domain.Message) error

	// History returns up to limit entries, newest first.
	History(ctx context.Context, room string, limit int) ([]domain.Message, error)

	// AppendAudit adds an entry to the room's bounded audit trail.
	AppendAudit(ctx context.Context, room string, entry domain.AuditEntry) error

	// Audit returns up to limit entries, newest first.
	Audit(ctx context.Context, room string, limit int) ([]domain.AuditEntry, error)

	// CountRequest increments the counter at key and refreshes its expiry
	// window, returning the new count. Used for rate limiting.
	CountRequest(ctx context.Context, key string, window time.Duration) (int64, error)
}
