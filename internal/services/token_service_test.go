package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jdekker/go-notes-backend/internal/auth"
	"github.com/jdekker/go-notes-backend/internal/domain"
)

func newTokenService(t *testing.T) *TokenService {
	t.Helper()
	return NewTokenService(newServiceDB(t), testTokenRepo{})
}

func TestTokenServiceCreate(t *testing.T) {
	svc := newTokenService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", "  Recorder badge  ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Token.Name != "Recorder badge" {
		t.Fatalf("name not trimmed: %q", created.Token.Name)
	}
	if !strings.HasPrefix(created.Secret, "dnk_") {
		t.Fatalf("secret missing prefix: %q", created.Secret)
	}

	// Only the digest may hit storage.
	var row domain.APIToken
	if err := svc.DB.First(&row, "id = ?", created.Token.ID).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.TokenHash != auth.HashTokenSecret(created.Secret) {
		t.Fatalf("stored hash does not match digest of secret")
	}
	if strings.Contains(row.TokenHash, created.Secret) {
		t.Fatalf("plaintext secret leaked into storage")
	}
}

func TestTokenServiceCreateValidation(t *testing.T) {
	svc := newTokenService(t)
	ctx := context.Background()

	cases := []struct {
		label string
		name  string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"too long", strings.Repeat("x", 101)},
	}
	for _, tc := range cases {
		if _, err := svc.Create(ctx, "u1", tc.name); !errors.Is(err, ErrTokenNameInvalid) {
			t.Errorf("%s: got %v, want ErrTokenNameInvalid", tc.label, err)
		}
	}

	// Rune length, not byte length: 100 multibyte runes are fine.
	if _, err := svc.Create(ctx, "u1", strings.Repeat("é", 100)); err != nil {
		t.Fatalf("100-rune name rejected: %v", err)
	}
}

func TestTokenServiceListAndRevoke(t *testing.T) {
	svc := newTokenService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, "u1", "first")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, "u2", "other user"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tokens, err := svc.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tokens) != 1 || tokens[0].ID != a.Token.ID {
		t.Fatalf("List returned %d tokens, want the one owned by u1", len(tokens))
	}
	if tokens[0].TokenHash != "" {
		t.Fatalf("List leaked token hash")
	}

	if err := svc.Revoke(ctx, "u1", a.Token.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	tokens, err = svc.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List after revoke: %v", err)
	}
	if len(tokens) != 1 || tokens[0].RevokedAt == nil {
		t.Fatalf("revoked token not marked in listing")
	}

	// Revoking again, or someone else's token, is a safe no-op.
	if err := svc.Revoke(ctx, "u1", a.Token.ID); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	if err := svc.Revoke(ctx, "u2", a.Token.ID); err != nil {
		t.Fatalf("cross-user Revoke: %v", err)
	}
}
