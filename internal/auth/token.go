// Package auth issues and verifies the HS256 session tokens used by the standalone server.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrTokenExpired = errors.New("session token expired")
)

// Session is the identity carried by a token.
type Session struct {
	UserID    string
	Username  string
	ExpiresAt time.Time
}

// Issuer signs and verifies session tokens with a shared secret.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// NewSession mints a token for a fresh guest identity.
func (s *Issuer) NewSession(username string) (string, Session, error) {
	return s.Issue(uuid.NewString(), username)
}

// Issue signs a token for userID.
func (s *Issuer) Issue(userID, username string) (string, Session, error) {
	if s == nil {
		return "", Session{}, fmt.Errorf("issuer is nil")
	}
	if userID == "" {
		return "", Session{}, fmt.Errorf("user is required")
	}
	if len(s.secret) == 0 || s.issuer == "" {
		return "", Session{}, fmt.Errorf("token config is incomplete")
	}
	if username == "" {
		username = "guest-" + userID[:min(8, len(userID))]
	}

	now := s.now()
	sess := Session{UserID: userID, Username: username, ExpiresAt: now.Add(s.ttl).Truncate(time.Second)}
	claims := jwt.MapClaims{
		"iss": s.issuer,
		"sub": userID,
		"usr": username,
		"iat": now.Unix(),
		"exp": sess.ExpiresAt.Unix(),
		"jti": uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, sess, nil
}

// Parse verifies tokenString and returns the session it carries.
func (s *Issuer) Parse(tokenString string) (Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return Session{}, ErrTokenExpired
		}
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Session{}, ErrInvalidToken
	}
	if !claims.VerifyIssuer(s.issuer, true) {
		return Session{}, fmt.Errorf("%w: wrong issuer", ErrInvalidToken)
	}
	sub, _ := claims["sub"].(string)
	usr, _ := claims["usr"].(string)
	exp, _ := claims["exp"].(float64)
	if sub == "" {
		return Session{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Session{UserID: sub, Username: usr, ExpiresAt: time.Unix(int64(exp), 0)}, nil
}
