package auth

import (
	"context"

	"github.com/notapoint/backend/internal/models"
)

// Authenticator registers and signs in shoppers. Implementations decide what
// a credential is (password today).
type Authenticator interface {
	// Register creates an account. Emails are normalized before use.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate returns the user when the credential matches.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// Lookup returns the user for a token subject.
	Lookup(ctx context.Context, userID string) (*models.User, error)
}
