package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the identity payload carried by the upstream-issued token.
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Parser validates tokens minted by the upstream auth issuer. With a shared
// secret configured it verifies HS256 signatures; without one it reads the
// claims unverified, since the issuer is remote and may not share its key.
// Expiry is enforced either way.
type Parser struct {
	secret []byte
	now    func() time.Time
}

func NewParser(secret string) *Parser {
	p := &Parser{now: time.Now}
	if secret != "" {
		p.secret = []byte(secret)
	}
	return p
}

func (p *Parser) Parse(token string) (*Claims, error) {
	claims := &Claims{}

	if p.secret != nil {
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidToken, t.Header["alg"])
			}
			return p.secret, nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return nil, ErrTokenExpired
			}
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		if !parsed.Valid {
			return nil, ErrInvalidToken
		}
		return claims, nil
	}

	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ExpiresAt != nil && !p.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}
