package firebase

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// Config selects credentials for the Firebase app. With no credentials file
// the application default credentials are used.
type Config struct {
	CredentialsFile string
	ProjectID       string
}

// NewApp initializes the Firebase app shared by messaging, auth and Firestore.
func NewApp(ctx context.Context, cfg Config) (*firebase.App, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	var appCfg *firebase.Config
	if cfg.ProjectID != "" {
		appCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, appCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	return app, nil
}

// NewFirestore returns a Firestore client for the app's project.
func NewFirestore(ctx context.Context, app *firebase.App) (*firestore.Client, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firestore client: %w", err)
	}
	return client, nil
}
