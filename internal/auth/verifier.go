package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/jdekker/go-notes-backend/internal/repo"
)

// Verification failures. All of them map to HTTP 401; the distinctions exist
// for logging and for clients that want a precise reason.
var (
	// ErrInvalidFormat means the credential does not carry the API token prefix.
	ErrInvalidFormat = errors.New("invalid API token format")

	// ErrInvalidToken means no stored digest matches the presented secret.
	ErrInvalidToken = errors.New("invalid API token")

	// ErrRevoked means the token matched but has been revoked.
	ErrRevoked = errors.New("token has been revoked")

	// ErrUnauthorized means the session credential is absent, malformed,
	// expired, or fails signature verification.
	ErrUnauthorized = errors.New("unauthorized")
)

// Identity is the result of a successful verification. TokenID is set only
// for the API token scheme.
type Identity struct {
	UserID  string
	TokenID string
}

// Verifier resolves bearer credentials to owning identities. It is safe for
// concurrent use.
type Verifier struct {
	DB *gorm.DB

	// JWTKey is the HMAC key the identity provider signs session tokens with.
	JWTKey []byte

	// TouchTimeout bounds the detached last_used_at update.
	TouchTimeout time.Duration
}

// NewVerifier constructs a Verifier over the given DB handle and signing key.
func NewVerifier(db *gorm.DB, jwtKey []byte) *Verifier {
	return &Verifier{DB: db, JWTKey: jwtKey, TouchTimeout: 5 * time.Second}
}

// VerifyAPIToken authenticates an API token secret. On success it resolves
// (user, token) and schedules a detached best-effort update of last_used_at;
// a failure of that update is logged and never affects the caller.
func (v *Verifier) VerifyAPIToken(ctx context.Context, cred string) (Identity, error) {
	if !IsAPITokenShaped(cred) {
		return Identity{}, ErrInvalidFormat
	}

	tok, err := repo.FindAPITokenByHash(ctx, v.DB, HashTokenSecret(cred))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Identity{}, ErrInvalidToken
		}
		return Identity{}, err
	}
	if tok.RevokedAt != nil {
		return Identity{}, ErrRevoked
	}

	// Fire-and-forget: the request must not wait for, or fail on, the touch.
	tokenID := tok.ID
	go func() {
		tctx, cancel := context.WithTimeout(context.Background(), v.touchTimeout())
		defer cancel()
		if err := repo.TouchAPITokenLastUsed(tctx, v.DB, tokenID); err != nil {
			log.Warn().Err(err).Str("token_id", tokenID).Msg("last_used_at touch failed")
		}
	}()

	return Identity{UserID: tok.UserID, TokenID: tok.ID}, nil
}

// VerifySession authenticates an end-user session token (HS256 JWT issued by
// the identity provider) and resolves the owning user from the subject claim.
func (v *Verifier) VerifySession(cred string) (Identity, error) {
	// Refuse to verify against an empty key: HMAC with a zero-length key is
	// well defined, so a forged token signed with "" would otherwise pass.
	if len(v.JWTKey) == 0 {
		return Identity{}, ErrUnauthorized
	}
	if !IsSessionShaped(cred) {
		return Identity{}, ErrUnauthorized
	}

	token, err := jwt.Parse(cred, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.JWTKey, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrUnauthorized
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, ErrUnauthorized
	}
	return Identity{UserID: sub}, nil
}

func (v *Verifier) touchTimeout() time.Duration {
	if v.TouchTimeout > 0 {
		return v.TouchTimeout
	}
	return 5 * time.Second
}
