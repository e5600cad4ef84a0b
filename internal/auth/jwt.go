package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aura-webinar/live/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Token types carried in Claims.TokenType.
const (
	TokenTypeSession   = "session"
	TokenTypeBroadcast = "broadcast"
)

// Claims holds JWT claims. WebinarID is set only on broadcast tokens.
type Claims struct {
	UserID    int64  `json:"user_id"`
	Mobile    string `json:"mobile,omitempty"`
	Role      string `json:"role"`
	WebinarID int64  `json:"webinar_id,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// JWTService handles token generation and validation.
type JWTService struct {
	secret          []byte
	sessionExpire   time.Duration
	broadcastExpire time.Duration
	now             func() time.Time
}

// NewJWTService creates a JWT service. Non-positive lifetimes fall back to 5h sessions and 24h broadcast tokens.
func NewJWTService(secret string, sessionHours, broadcastHours int) *JWTService {
	if sessionHours <= 0 {
		sessionHours = 5
	}
	if broadcastHours <= 0 {
		broadcastHours = 24
	}
	return &JWTService{
		secret:          []byte(secret),
		sessionExpire:   time.Duration(sessionHours) * time.Hour,
		broadcastExpire: time.Duration(broadcastHours) * time.Hour,
		now:             time.Now,
	}
}

// GenerateSession issues a login session token.
func (s *JWTService) GenerateSession(userID int64, mobile string, role models.Role) (string, error) {
	return s.sign(Claims{
		UserID:    userID,
		Mobile:    mobile,
		Role:      string(role),
		TokenType: TokenTypeSession,
	}, s.sessionExpire)
}

// GenerateBroadcast issues a token that lets a host publish overlays to one webinar.
// The jti is unique per token so individual tokens can be revoked later.
func (s *JWTService) GenerateBroadcast(userID int64, role models.Role, webinarID int64) (string, *Claims, error) {
	claims := Claims{
		UserID:    userID,
		Role:      string(role),
		WebinarID: webinarID,
		TokenType: TokenTypeBroadcast,
	}
	token, err := s.sign(claims, s.broadcastExpire)
	if err != nil {
		return "", nil, err
	}
	parsed, err := s.Validate(token)
	if err != nil {
		return "", nil, err
	}
	return token, parsed, nil
}

func (s *JWTService) sign(claims Claims, ttl time.Duration) (string, error) {
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.New().String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and validates a JWT, returning claims or error.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateBroadcast validates a token and requires it to be a broadcast token for webinarID.
func (s *JWTService) ValidateBroadcast(tokenString string, webinarID int64) (*Claims, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeBroadcast || claims.WebinarID != webinarID {
		return nil, ErrInvalidToken
	}
	role, err := models.ParseRole(claims.Role)
	if err != nil || !role.IsStaff() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateSession validates a session token for the HTTP middleware.
func (s *JWTService) ValidateSession(tokenString string) (int64, string, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return 0, "", err
	}
	if claims.TokenType != TokenTypeSession {
		return 0, "", ErrInvalidToken
	}
	return claims.UserID, claims.Role, nil
}
