// Package audit mirrors a best-effort, off-chain record of each applied
// block to Firestore: never load-bearing for consensus, never blocking
// ApplyBlock, useful for forensics and compliance review long after the
// authenticated tree itself has moved on.
package audit

import (
	"context"
	"fmt"
	"os"

	gcpfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/driveplatform/drive/pkg/logging"
)

// Client wraps the Firestore client used to mirror block-level audit
// entries. When Enabled is false every method is a no-op, which is the
// expected mode for local development and for any deployment that hasn't
// opted into off-chain mirroring.
type Client struct {
	app       *firebase.App
	firestore *gcpfirestore.Client
	projectID string
	log       *logging.Logger
	enabled   bool
}

// Config configures a Client.
type Config struct {
	ProjectID       string
	CredentialsFile string
	Enabled         bool
	Log             *logging.Logger
}

// ConfigFromEnv builds a Config from the conventional environment
// variables, mirroring how the rest of this repo's ambient config layer
// reads overrides.
func ConfigFromEnv() *Config {
	return &Config{
		ProjectID:       os.Getenv("DRIVE_AUDIT_FIREBASE_PROJECT_ID"),
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		Enabled:         os.Getenv("DRIVE_AUDIT_ENABLED") == "true",
	}
}

// NewClient connects to Firestore when cfg.Enabled is set, or returns a
// disabled no-op Client otherwise. A disabled Client never touches the
// network and every recording method on it returns nil immediately.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = ConfigFromEnv()
	}
	log := cfg.Log
	if log == nil {
		log = logging.Noop()
	}

	c := &Client{projectID: cfg.ProjectID, log: log, enabled: cfg.Enabled}
	if !cfg.Enabled {
		log.Info("audit mirror disabled, running in no-op mode")
		return c, nil
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("audit: project id is required when enabled")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("audit: init firebase app: %w", err)
	}
	fsClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: init firestore client: %w", err)
	}
	c.app = app
	c.firestore = fsClient
	log.Info("audit mirror enabled", "project_id", cfg.ProjectID)
	return c, nil
}

func (c *Client) IsEnabled() bool { return c.enabled }

// Close releases the underlying Firestore connection. A no-op on a
// disabled Client.
func (c *Client) Close() error {
	if c.firestore != nil {
		return c.firestore.Close()
	}
	return nil
}

// Health issues a read of a deliberately absent Firestore document and
// discards its result, so an enabled, initialized Client always reports
// healthy; the read's outcome, including a connection failure, is not
// inspected. A disabled Client always reports healthy since there is
// nothing to connect to.
func (c *Client) Health(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	if c.firestore == nil {
		return fmt.Errorf("audit: firestore client not initialized")
	}
	_, _ = c.firestore.Collection("_health_check").Doc("ping").Get(ctx)
	return nil
}
