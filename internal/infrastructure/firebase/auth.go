package firebase

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
)

// AuthVerifier checks Firebase ID tokens and resolves them to a user id.
type AuthVerifier struct {
	client *auth.Client
}

func NewAuthVerifier(ctx context.Context, app *firebase.App) (*AuthVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth client: %w", err)
	}
	return &AuthVerifier{client: client}, nil
}

// VerifyToken returns the UID of a valid, unexpired ID token.
func (v *AuthVerifier) VerifyToken(ctx context.Context, idToken string) (string, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return "", fmt.Errorf("invalid id token: %w", err)
	}
	return token.UID, nil
}
