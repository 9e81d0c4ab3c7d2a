package proposals

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "propostas"

// TokenClaims are carried by acceptance links. The jti names a
// proposal_tokens row so a link can be consumed once.
type TokenClaims struct {
	ProposalID int64 `json:"pid"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 acceptance tokens.
type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

func (s *Signer) Issue(t Token) (string, error) {
	claims := TokenClaims{
		ProposalID: t.ProposalID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        t.ID.String(),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(t.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify returns the token id and proposal named by raw. Bad signatures and
// malformed tokens yield ErrTokenInvalid. A correctly signed token past its
// exp yields ErrTokenExpired together with its ids, so callers can still
// show a proposal that was answered before the deadline.
func (s *Signer) Verify(raw string) (uuid.UUID, int64, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	expired := false
	if err != nil {
		// Claims are validated after the signature, so an expiry error
		// means the token is authentic.
		if !errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, jwt.ErrTokenInvalidIssuer) {
			return uuid.Nil, 0, ErrTokenInvalid
		}
		expired = true
	}
	id, err := uuid.Parse(claims.ID)
	if err != nil || claims.ProposalID <= 0 {
		return uuid.Nil, 0, ErrTokenInvalid
	}
	if expired {
		return id, claims.ProposalID, ErrTokenExpired
	}
	return id, claims.ProposalID, nil
}
