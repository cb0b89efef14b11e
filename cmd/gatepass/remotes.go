package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/alfredjeanlab/gatepass/internal/client"
	"github.com/alfredjeanlab/gatepass/internal/model"
)

// RemotesConfig holds all named gatepass servers and tracks which one is active.
type RemotesConfig struct {
	Active  string            `toml:"active"`
	Remotes map[string]Remote `toml:"remotes"`
}

// Remote is a named server profile. URL is the HTTP base URL. Policy is
// the "<policyId>@<policyVersion>" the server reported at the last check.
type Remote struct {
	URL     string `toml:"url"`
	Token   string `toml:"token,omitempty"`
	NATSURL string `toml:"nats_url,omitempty"`
	Policy  string `toml:"policy,omitempty"`
}

func remoteConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "state", "gatepass")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "remotes.toml"), nil
}

func loadRemotesConfig() (RemotesConfig, error) {
	path, err := remoteConfigPath()
	if err != nil {
		return RemotesConfig{}, err
	}
	var cfg RemotesConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return RemotesConfig{Remotes: map[string]Remote{}}, nil
		}
		return RemotesConfig{}, err
	}
	if cfg.Remotes == nil {
		cfg.Remotes = map[string]Remote{}
	}
	return cfg, nil
}

func saveRemotesConfig(cfg RemotesConfig) error {
	path, err := remoteConfigPath()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Active remote values, loaded once per process.
var (
	remoteOnce   sync.Once
	activeRemote Remote
)

func loadActiveRemoteOnce() {
	remoteOnce.Do(func() {
		cfg, err := loadRemotesConfig()
		if err != nil || cfg.Active == "" {
			return
		}
		activeRemote = cfg.Remotes[cfg.Active]
	})
}

func activeRemoteURL() string {
	loadActiveRemoteOnce()
	return activeRemote.URL
}

func activeRemoteToken() string {
	loadActiveRemoteOnce()
	return activeRemote.Token
}

func activeRemoteNATSURL() string {
	loadActiveRemoteOnce()
	return activeRemote.NATSURL
}

// normalizeRemote checks that rawURL is an http(s) base URL and natsURL,
// when set, a NATS server URL. The HTTP URL is returned without a
// trailing slash.
func normalizeRemote(rawURL, natsURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid remote url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("remote url %q: scheme must be http or https", rawURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("remote url %q: missing host", rawURL)
	}
	if natsURL != "" {
		n, err := url.Parse(natsURL)
		if err != nil {
			return "", fmt.Errorf("invalid nats url: %w", err)
		}
		switch n.Scheme {
		case "nats", "tls", "ws", "wss":
		default:
			return "", fmt.Errorf("nats url %q: scheme must be nats, tls, ws or wss", natsURL)
		}
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// checkRemote asks r for its health and returns the policy it runs. With a
// token configured it also reads the forward-error history to confirm the
// server accepts the token.
func checkRemote(ctx context.Context, r Remote) (string, error) {
	c := client.NewHTTPClient(r.URL, r.Token)
	defer c.Close()

	h, err := c.Health(ctx)
	if err != nil {
		return "", fmt.Errorf("health: %w", err)
	}
	if h.Status != "ok" || h.PolicyID == "" {
		return "", fmt.Errorf("%s does not look like a gatepass server (status %q)", r.URL, h.Status)
	}
	if r.Token != "" {
		_, err := c.History(ctx, string(model.CategoryForwardError))
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			return "", fmt.Errorf("token rejected: %s", apiErr.Message)
		}
		if err != nil {
			return "", fmt.Errorf("history: %w", err)
		}
	}
	return h.PolicyID + "@" + h.PolicyVersion, nil
}
