package service

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"vls-chat/internal/domain"
)

// TokenClaims is the signed content of a capability token. The token binds a
// single identity to a single room for its whole validity window.
type TokenClaims struct {
	Room             string `json:"room"`
	UserID           string `json:"userId"`
	DisplayName      string `json:"displayName"`
	DisplayNameLower string `json:"displayNameLower"`
	Role             string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService issues and verifies capability tokens and checks admin
// credentials against a bcrypt hash map loaded from disk.
type AuthService struct {
	secret []byte
	expiry time.Duration
	admins map[string]string
}

// NewAuthService creates an AuthService. adminsFile maps display names to
// bcrypt password hashes; a missing or unreadable file just means no admins.
func NewAuthService(jwtSecret string, expiry time.Duration, adminsFile string) (*AuthService, error) {
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	if expiry <= 0 {
		expiry = 6 * time.Hour
	}
	return &AuthService{
		secret: []byte(jwtSecret),
		expiry: expiry,
		admins: loadAdmins(adminsFile),
	}, nil
}

func loadAdmins(path string) map[string]string {
	if path == "" {
		return map[string]string{}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		logrus.WithError(err).WithField("path", path).Warn("Admins file not loaded, no admin elevation available")
		return map[string]string{}
	}
	admins := map[string]string{}
	if err := json.Unmarshal(raw, &admins); err != nil {
		logrus.WithError(err).WithField("path", path).Warn("Admins file is not a valid JSON object, ignoring it")
		return map[string]string{}
	}
	return admins
}

// IssueToken signs a time-bound capability token for the identity.
func (s *AuthService) IssueToken(id domain.Identity) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		Room:             id.Room,
		UserID:           id.UserID,
		DisplayName:      id.Name,
		DisplayNameLower: id.NameLower,
		Role:             id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// VerifyToken checks signature and expiry and returns the normalized
// identity. Any parse or validation failure maps to ErrInvalidToken; the
// caller gets no retry.
func (s *AuthService) VerifyToken(tokenStr string) (domain.Identity, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return domain.Identity{}, ErrInvalidToken
	}

	room := strings.TrimSpace(claims.Room)
	if room == "" {
		room = "demo"
	}
	name := strings.TrimSpace(claims.DisplayName)
	if name == "" {
		name = "Anon"
	}
	nameLower := strings.TrimSpace(claims.DisplayNameLower)
	if nameLower == "" {
		nameLower = strings.ToLower(name)
	}
	role := domain.RoleUser
	if claims.Role == domain.RoleAdmin {
		role = domain.RoleAdmin
	}
	return domain.Identity{
		Room:      room,
		UserID:    strings.TrimSpace(claims.UserID),
		Name:      name,
		NameLower: nameLower,
		Role:      role,
	}, nil
}

// ElevateRole decides the role for a joining display name. Names listed in
// the admins file must present the matching password; everyone else is a
// plain user.
func (s *AuthService) ElevateRole(displayName, password string) (string, error) {
	hash, listed := s.admins[displayName]
	if !listed {
		return domain.RoleUser, nil
	}
	if password == "" {
		return "", ErrAdminPasswordRequired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrAdminPasswordInvalid
	}
	return domain.RoleAdmin, nil
}
