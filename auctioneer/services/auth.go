package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin = "admin"
	RoleTeam  = "team"
	// RoleViewer gets the public event stream only.
	RoleViewer = "viewer"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims identifies a websocket connection. TeamID is zero for admin and
// viewer tokens.
type Claims struct {
	AuctionID int64  `json:"auction_id"`
	TeamID    int64  `json:"team_id,omitempty"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthService(secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthService{secret: []byte(secret), ttl: ttl}
}

// IssueToken mints an HS256 token for a single auction session.
func (s *AuthService) IssueToken(auctionID, teamID int64, role string) (string, error) {
	switch role {
	case RoleAdmin, RoleTeam, RoleViewer:
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}
	if role == RoleTeam && teamID == 0 {
		return "", fmt.Errorf("team token requires a team id")
	}

	now := time.Now()
	claims := Claims{
		AuctionID: auctionID,
		TeamID:    teamID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Issuer:    "crickora-auction",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *AuthService) VerifyToken(raw string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
