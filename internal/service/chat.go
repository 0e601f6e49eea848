package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"vls-chat/internal/domain"
	"vls-chat/internal/logsink"
	"vls-chat/internal/repository"
)

const (
	// textMax bounds message and announce text length.
	textMax = 2000
	// emojiMax bounds a reaction label.
	emojiMax = 16
	// replayMax caps the history replay to a new session regardless of the
	// room's overall retention cap.
	replayMax = 50
	// defaultTimeoutMinutes applies when an admin timeout omits a duration.
	defaultTimeoutMinutes = 5
)

// ChatService implements the message and moderation pipeline: the ban and
// timeout gates, message acceptance with slow-mode, reactions, and admin
// sub-actions. Broadcast delivery stays with the hub; this service only
// decides what, if anything, gets broadcast, and performs the shared-state,
// audit, and log-sink writes.
type ChatService struct {
	store repository.Store
	sink  *logsink.Sink
}

// NewChatService creates a ChatService.
func NewChatService(store repository.Store, sink *logsink.Sink) *ChatService {
	if store == nil {
		panic("Store cannot be nil for ChatService")
	}
	if sink == nil {
		panic("Sink cannot be nil for ChatService")
	}
	return &ChatService{store: store, sink: sink}
}

// Blocked evaluates the ban and timeout gates for one inbound frame. The
// gates are checked freshly every time so moderation applied mid-session
// takes effect on the next frame. A gate that cannot be read drops the frame
// too; moderation state must never fail open.
func (s *ChatService) Blocked(ctx context.Context, room, userID string) bool {
	banned, err := s.store.IsBanned(ctx, room, userID)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"room": room, "user_id": userID}).Warn("Ban gate unreadable, dropping frame")
		return true
	}
	if banned {
		return true
	}
	timedOut, err := s.store.InTimeout(ctx, room, userID)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"room": room, "user_id": userID}).Warn("Timeout gate unreadable, dropping frame")
		return true
	}
	return timedOut
}

// AcceptMessage truncates, applies slow-mode against the session's
// last-accepted timestamp, and on acceptance persists the message to history,
// bumps the author's counters, and hands it to the log sink. The returned
// bool reports acceptance; the caller resets its slow-mode clock only then.
func (s *ChatService) AcceptMessage(ctx context.Context, from domain.Identity, text string, lastAccepted time.Time) (domain.Message, bool) {
	text = truncate(text, textMax)
	if text == "" {
		return domain.Message{}, false
	}

	cooldown, err := s.store.SlowMode(ctx, from.Room)
	if err != nil {
		logrus.WithError(err).WithField("room", from.Room).Warn("Slow mode unreadable, treating as off")
		cooldown = 0
	}
	if cooldown > 0 && time.Since(lastAccepted) < cooldown {
		return domain.Message{}, false
	}

	msg := domain.NewMessage(from.Room, text, from.User())

	// Best-effort shared-state writes: delivery proceeds even when the store
	// write fails.
	if err := s.store.AppendHistory(ctx, from.Room, msg); err != nil {
		logrus.WithError(err).WithField("room", from.Room).Warn("History append failed, message delivered anyway")
	}
	if err := s.store.TouchUser(ctx, from.UserID); err != nil {
		logrus.WithError(err).WithField("user_id", from.UserID).Warn("User counter update failed")
	}
	s.sink.Record(from.Room, msg.Type, msg.TS, msg)

	return msg, true
}

// Reaction validates a stateless reaction frame. The referenced message id is
// not checked for existence.
func (s *ChatService) Reaction(f domain.Frame) (domain.Reaction, bool) {
	emoji := truncate(f.Emoji, emojiMax)
	if f.ID == "" || emoji == "" {
		return domain.Reaction{}, false
	}
	delta := 1
	if f.Delta != nil {
		delta = *f.Delta
	}
	return domain.Reaction{Type: "reaction", ID: f.ID, Emoji: emoji, Delta: delta}, true
}

// Admin executes one admin sub-action and returns the payload to broadcast.
// Non-admin senders are a silent no-op: no broadcast, no audit entry, nothing
// revealed to the sender.
func (s *ChatService) Admin(ctx context.Context, actor domain.Identity, f domain.Frame) (interface{}, bool) {
	if !actor.IsAdmin() {
		return nil, false
	}

	rec := domain.AuditEntry{
		Action: f.Action,
		By:     actor.UserID,
		Name:   actor.Name,
		TS:     time.Now().UnixMilli(),
	}

	switch f.Action {
	case "announce":
		text := truncate(f.Text, textMax)
		if text == "" {
			return nil, false
		}
		rec.Text = text
		s.audit(ctx, actor.Room, rec)
		return domain.Announce{Type: "announce", Text: text}, true

	case "clear":
		// Clear is a client-side transcript directive only; the stored
		// history buffer is untouched.
		s.audit(ctx, actor.Room, rec)
		return domain.Moderate{Type: "moderate", Action: "clear"}, true

	case "slow":
		value := domain.NormalizeSlowMode(f.Value)
		if err := s.store.SetSlowMode(ctx, actor.Room, value); err != nil {
			logrus.WithError(err).WithField("room", actor.Room).Error("Failed to set slow mode")
			return nil, false
		}
		rec.Value = value
		s.audit(ctx, actor.Room, rec)
		return domain.Moderate{Type: "moderate", Action: "slow", Value: value}, true

	case "timeout":
		if f.UserID == "" {
			return nil, false
		}
		minutes := f.Minutes
		if minutes < 1 {
			minutes = defaultTimeoutMinutes
		}
		if err := s.store.Timeout(ctx, actor.Room, f.UserID, time.Duration(minutes)*time.Minute); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{"room": actor.Room, "target": f.UserID}).Error("Failed to apply timeout")
			return nil, false
		}
		rec.UserID = f.UserID
		rec.Minutes = minutes
		s.audit(ctx, actor.Room, rec)
		return domain.Moderate{Type: "moderate", Action: "timeout", UserID: f.UserID, Minutes: minutes}, true

	case "ban":
		if f.UserID == "" {
			return nil, false
		}
		if err := s.store.Ban(ctx, actor.Room, f.UserID); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{"room": actor.Room, "target": f.UserID}).Error("Failed to apply ban")
			return nil, false
		}
		rec.UserID = f.UserID
		s.audit(ctx, actor.Room, rec)
		return domain.Moderate{Type: "moderate", Action: "ban", UserID: f.UserID}, true

	case "purge":
		if f.UserID == "" {
			return nil, false
		}
		rec.UserID = f.UserID
		s.audit(ctx, actor.Room, rec)
		return domain.Moderate{Type: "moderate", Action: "purge", UserID: f.UserID}, true

	case "delete":
		if f.ID == "" {
			return nil, false
		}
		rec.MsgID = f.ID
		s.audit(ctx, actor.Room, rec)
		return domain.Moderate{Type: "moderate", Action: "delete", ID: f.ID}, true
	}

	return nil, false
}

// audit records an admin action in the shared audit trail and the log sink,
// both best-effort.
func (s *ChatService) audit(ctx context.Context, room string, rec domain.AuditEntry) {
	if err := s.store.AppendAudit(ctx, room, rec); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"room": room, "action": rec.Action}).Warn("Audit append failed")
	}
	s.sink.Record(room, "admin", rec.TS, rec)
}

// HistoryReplay returns up to 50 recent entries in ascending chronological
// order for replay to a newly active session.
func (s *ChatService) HistoryReplay(ctx context.Context, room string) ([]domain.Message, error) {
	items, err := s.store.History(ctx, room, replayMax)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

// JoinPresence records shared membership for a newly active session.
// Best-effort: a store failure does not abort the handshake.
func (s *ChatService) JoinPresence(ctx context.Context, id domain.Identity) {
	if err := s.store.JoinRoom(ctx, id.Room, id.User()); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"room": id.Room, "user_id": id.UserID}).Warn("Shared membership add failed")
	}
}

// LeavePresence removes shared membership when a session closes.
func (s *ChatService) LeavePresence(ctx context.Context, room, userID string) {
	if err := s.store.LeaveRoom(ctx, room, userID); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"room": room, "user_id": userID}).Warn("Shared membership remove failed")
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) > max {
		runes = runes[:max]
	}
	return string(runes)
}
