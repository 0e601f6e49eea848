package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"vls-chat/internal/domain"
	"vls-chat/internal/repository"
)

var nickPattern = regexp.MustCompile(`^[a-zA-Z0-9._\- ]{2,40}$`)

// JoinService performs phase 1 of the nickname reservation protocol: it
// validates the requested name, creates the single-use hold with a fixed
// expiry, and issues the capability token the WebSocket handshake will
// present as phase 2.
type JoinService struct {
	store   repository.Store
	auth    *AuthService
	holdTTL time.Duration
}

// NewJoinService creates a JoinService. holdTTL bounds how long a client may
// wait between joining and connecting.
func NewJoinService(store repository.Store, auth *AuthService, holdTTL time.Duration) *JoinService {
	if store == nil {
		panic("Store cannot be nil for JoinService")
	}
	if auth == nil {
		panic("AuthService cannot be nil for JoinService")
	}
	if holdTTL <= 0 {
		holdTTL = 60 * time.Second
	}
	return &JoinService{store: store, auth: auth, holdTTL: holdTTL}
}

// Join reserves the nickname and returns a signed token plus the granted
// role. The hold is created with create-if-absent semantics, so a name held
// by anyone else in the room is rejected outright.
func (s *JoinService) Join(ctx context.Context, room, displayName, password string) (string, string, error) {
	room = strings.TrimSpace(room)
	if room == "" {
		room = "demo"
	}
	name := strings.TrimSpace(displayName)
	if name == "" || !nickPattern.MatchString(name) {
		return "", "", ErrNameInvalid
	}
	nameLower := strings.ToLower(name)

	role, err := s.auth.ElevateRole(name, password)
	if err != nil {
		return "", "", err
	}

	userID := newUserID()
	held, err := s.store.CreateHold(ctx, room, nameLower, userID, s.holdTTL)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"room": room, "name": nameLower}).Error("Join: hold creation failed")
		return "", "", ErrInternalServer
	}
	if !held {
		return "", "", ErrNameTaken
	}

	token, err := s.auth.IssueToken(domain.Identity{
		Room:      room,
		UserID:    userID,
		Name:      name,
		NameLower: nameLower,
		Role:      role,
	})
	if err != nil {
		logrus.WithError(err).Error("Join: token signing failed")
		return "", "", ErrInternalServer
	}

	logrus.WithFields(logrus.Fields{
		"room":    room,
		"user_id": userID,
		"role":    role,
	}).Info("Join: nickname held and token issued")
	return token, role, nil
}

func newUserID() string {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to a
		// timestamp-only id rather than aborting the join.
		return fmt.Sprintf("u_%s", strconv.FormatInt(time.Now().UnixNano(), 36))
	}
	return fmt.Sprintf("u_%s%s", hex.EncodeToString(buf), strconv.FormatInt(time.Now().UnixMilli(), 36))
}
