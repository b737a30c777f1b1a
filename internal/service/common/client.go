//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"net/http"

	"github.com/efota/efu/internal/client"
	"github.com/efota/efu/internal/config"
)

// LoadClient reads the settings file and builds a signing client from it.
// It returns the settings too, so callers can reuse the chunk size.
func LoadClient(configPath string) (*client.Client, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load settings: %w", err)
	}

	c := client.New(cfg.ServerURL, cfg.AccessID, cfg.AccessSecret,
		client.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))

	return c, cfg, nil
}
