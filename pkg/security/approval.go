package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ApprovalClaims is carried by a signed token an operator presents to
// authorize a single corridor action. Scope/Action bind the approval to
// one operation so a leaked or replayed token cannot be reused elsewhere.
type ApprovalClaims struct {
	jwt.RegisteredClaims
	CorridorID string `json:"corridor_id"`
	Action     string `json:"action"`
}

// ApprovalIssuer mints and verifies operator approval tokens with a single
// shared HMAC secret. A real deployment rotates this secret out of band;
// the issuer itself is stateless.
type ApprovalIssuer struct {
	secret []byte
	issuer string
}

// NewApprovalIssuer builds an issuer that signs with secret and stamps
// issuer as the token's iss claim.
func NewApprovalIssuer(secret []byte, issuer string) *ApprovalIssuer {
	return &ApprovalIssuer{secret: secret, issuer: issuer}
}

// Issue signs a token authorizing action on corridorID for subject,
// valid from now until now+ttl.
func (a *ApprovalIssuer) Issue(subject, corridorID, action string, now time.Time, ttl time.Duration) (string, error) {
	claims := ApprovalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		CorridorID: corridorID,
		Action:     action,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses tokenString and confirms it authorizes action on
// corridorID. It rejects tokens signed with anything but HS256, expired
// tokens, and tokens scoped to a different corridor or action.
func (a *ApprovalIssuer) Verify(tokenString, corridorID, action string) (*ApprovalClaims, error) {
	claims := &ApprovalClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithIssuer(a.issuer))
	if err != nil {
		return nil, err
	}
	if claims.CorridorID != corridorID {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Action != action {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
