package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"vls-chat/internal/domain"
)

// Store is a testify mock of repository.Store.
type Store struct {
	mock.Mock
}

func (m *Store) CreateHold(ctx context.Context, room, nameLower, userID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, room, nameLower, userID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *Store) ConsumeHold(ctx context.Context, room, nameLower string) (string, error) {
	args := m.Called(ctx, room, nameLower)
	return args.String(0), args.Error(1)
}

func (m *Store) JoinRoom(ctx context.Context, room string, user domain.UserRef) error {
	return m.Called(ctx, room, user).Error(0)
}

func (m *Store) LeaveRoom(ctx context.Context, room, userID string) error {
	return m.Called(ctx, room, userID).Error(0)
}

func (m *Store) TouchUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *Store) Rooms(ctx context.Context) ([]domain.RoomInfo, error) {
	args := m.Called(ctx)
	var rooms []domain.RoomInfo
	if v := args.Get(0); v != nil {
		rooms = v.([]domain.RoomInfo)
	}
	return rooms, args.Error(1)
}

func (m *Store) RoomUsers(ctx context.Context, room string) ([]domain.UserInfo, error) {
	args := m.Called(ctx, room)
	var users []domain.UserInfo
	if v := args.Get(0); v != nil {
		users = v.([]domain.UserInfo)
	}
	return users, args.Error(1)
}

func (m *Store) SlowMode(ctx context.Context, room string) (time.Duration, error) {
	args := m.Called(ctx, room)
	return args.Get(0).(time.Duration), args.Error(1)
}

func (m *Store) SetSlowMode(ctx context.Context, room, value string) error {
	return m.Called(ctx, room, value).Error(0)
}

func (m *Store) IsBanned(ctx context.Context, room, userID string) (bool, error) {
	args := m.Called(ctx, room, userID)
	return args.Bool(0), args.Error(1)
}

func (m *Store) Ban(ctx context.Context, room, userID string) error {
	return m.Called(ctx, room, userID).Error(0)
}

func (m *Store) InTimeout(ctx context.Context, room, userID string) (bool, error) {
	args := m.Called(ctx, room, userID)
	return args.Bool(0), args.Error(1)
}

func (m *Store) Timeout(ctx context.Context, room, userID string, d time.Duration) error {
	return m.Called(ctx, room, userID, d).Error(0)
}

func (m *Store) AppendHistory(ctx context.Context, room string, msg domain.Message) error {
	return m.Called(ctx, room, msg).Error(0)
}

func (m *Store) History(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, room, limit)
	var items []domain.Message
	if v := args.Get(0); v != nil {
		items = v.([]domain.Message)
	}
	return items, args.Error(1)
}

func (m *Store) AppendAudit(ctx context.Context, room string, entry domain.AuditEntry) error {
	return m.Called(ctx, room, entry).Error(0)
}

func (m *Store) Audit(ctx context.Context, room string, limit int) ([]domain.AuditEntry, error) {
	args := m.Called(ctx, room, limit)
	var entries []domain.AuditEntry
	if v := args.Get(0); v != nil {
		entries = v.([]domain.AuditEntry)
	}
	return entries, args.Error(1)
}

func (m *Store) CountRequest(ctx context.Context, key string, window time.Duration) (int64, error) {
	args := m.Called(ctx, key, window)
	return args.Get(0).(int64), args.Error(1)
}
