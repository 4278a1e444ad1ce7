package utils // package utils provides helper functions for token creation and hashing

import (
    "crypto/rand"   // secure random number generation
    "crypto/sha256" // SHA‑256 hashing for reset tokens
    "encoding/hex"  // hex encoding and decoding functions
    "errors"        // sentinel error for verification failures
    "strings"       // whitespace trimming of subjects
    "time"          // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// ErrInvalidToken is the only error Verify returns.  Expired, malformed and
// tampered tokens are indistinguishable.
var ErrInvalidToken = errors.New("invalid token")

// SessionToken represents a signed JWT session token along with its expiry.
type SessionToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// TokenIssuer signs and verifies HS256 session tokens.  The key and
// lifetime are fixed at construction; the issuer holds no other state and
// is safe for concurrent use.
type TokenIssuer struct {
    secret []byte
    ttl    time.Duration
    now    func() time.Time
}

// NewTokenIssuer builds an issuer from the process-wide signing secret and
// token lifetime.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
    return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the lifetime given to issued tokens.
func (i *TokenIssuer) TTL() time.Duration { return i.ttl }

// Issue builds and signs a JWT whose subject is userID.  The JWT carries
// the standard claims sub, exp and iat.
func (i *TokenIssuer) Issue(userID string) (SessionToken, error) {
    now := i.now().UTC()
    exp := now.Add(i.ttl)
    claims := jwt.RegisteredClaims{
        Subject:   userID,
        IssuedAt:  jwt.NewNumericDate(now),
        ExpiresAt: jwt.NewNumericDate(exp),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
    if err != nil {
        return SessionToken{}, err
    }
    return SessionToken{Token: signed, Exp: exp}, nil
}

// Verify parses raw, checks signature, algorithm and expiry, and returns
// the embedded user ID.
func (i *TokenIssuer) Verify(raw string) (string, error) {
    var claims jwt.RegisteredClaims
    tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
        return i.secret, nil
    },
        jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
        jwt.WithExpirationRequired(),
        jwt.WithTimeFunc(i.now),
    )
    if err != nil || !tok.Valid {
        return "", ErrInvalidToken
    }
    sub := strings.TrimSpace(claims.Subject)
    if sub == "" {
        return "", ErrInvalidToken
    }
    return sub, nil
}

// ResetToken is a single-use password reset credential.  Raw is sent to the
// user out of band; only Hash is persisted.
type ResetToken struct {
    Raw  string    // raw token string delivered to the user
    Hash string    // SHA‑256 hex digest stored with the user
    Exp  time.Time // UTC expiration time
}

// NewResetToken returns a cryptographically secure random token that expires
// after ttl.
func NewResetToken(ttl time.Duration) (ResetToken, error) {
    // 20 random bytes -> 40 hex chars
    raw, err := randomHex(20)
    if err != nil {
        return ResetToken{}, err
    }
    return ResetToken{
        Raw:  raw,
        Hash: HashResetToken(raw),
        Exp:  time.Now().UTC().Add(ttl),
    }, nil
}

// HashResetToken returns the SHA‑256 hex digest of a raw reset token.  Only
// the digest is ever persisted.
func HashResetToken(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

// randomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
