// internal/vault/vault.go
//
// Vault-backed secret references for configuration options.
//
// Context
// -------
//   - Option values of the form `vault:<mount>/<path>#<key>` are resolved
//     through the HashiCorp Vault Go SDK at environment-resolution time.
//   - Per-reference caching keeps repeated resolutions cheap; odc-config
//     processes are short-lived, so there is no background token renewal.
//
// Public workflow
// ---------------
//  1. cli, err := vault.New()                       // during boot.
//  2. pw,  err := cli.ResolveSecret(ctx, ref)       // from the resolver.
//
// Environment expectations
// ------------------------
// • VAULT_ADDR   – scheme and host of the Vault server.
// • VAULT_TOKEN  – initial token (falls back to ~/.vault-token).
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
)

// refPrefix marks an option value as a Vault reference.
const refPrefix = "vault:"

// cacheTTL bounds how long a fetched secret is reused within one process.
const cacheTTL = 5 * time.Minute

// Client is safe for concurrent use.  Create once at startup and hand it to
// the resolver.  Zero value is invalid.
type Client struct {
	api *vault.Client

	cacheMu sync.RWMutex
	cache   map[string]cached // canonical path#key → value + expiry.
}

type cached struct {
	val string
	exp time.Time
}

// New constructs a Vault client from the standard VAULT_* environment.
func New() (*Client, error) {
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}

	apiCli, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}

	if tok := os.Getenv("VAULT_TOKEN"); tok != "" {
		apiCli.SetToken(tok)
	}

	return &Client{api: apiCli, cache: make(map[string]cached)}, nil
}

// ResolveSecret turns a `vault:<mount>/<path>#<key>` reference into the
// plain secret value.  Satisfies the resolver's SecretResolver contract.
func (c *Client) ResolveSecret(ctx context.Context, ref string) (string, error) {
	secretPath, key, err := parseRef(ref)
	if err != nil {
		return "", err
	}
	return c.getKV(ctx, secretPath, key)
}

// getKV fetches a single key from a KV-v2 secret, with short-lived caching.
func (c *Client) getKV(ctx context.Context, secretPath, key string) (string, error) {
	canonical := secretPath + "#" + key

	c.cacheMu.RLock()
	if cv, ok := c.cache[canonical]; ok && time.Now().Before(cv.exp) {
		c.cacheMu.RUnlock()
		return cv.val, nil
	}
	c.cacheMu.RUnlock()

	mount, rel := splitMount(secretPath)
	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}

	raw, ok := sec.Data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %q", key, secretPath)
	}

	sval, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value at %s#%s is not a string", secretPath, key)
	}

	c.cacheMu.Lock()
	c.cache[canonical] = cached{val: sval, exp: time.Now().Add(cacheTTL)}
	c.cacheMu.Unlock()

	return sval, nil
}

//
// Helpers
//

// parseRef splits `vault:<mount>/<path>#<key>` into its parts.
func parseRef(ref string) (secretPath, key string, err error) {
	body, ok := strings.CutPrefix(ref, refPrefix)
	if !ok {
		return "", "", fmt.Errorf("not a vault reference: %q", ref)
	}
	secretPath, key, ok = strings.Cut(body, "#")
	if !ok || secretPath == "" || key == "" {
		return "", "", errors.New("vault reference must look like vault:<mount>/<path>#<key>")
	}
	return secretPath, key, nil
}

func splitMount(p string) (mount, rel string) {
	parts := strings.SplitN(p, "/", 2)
	mount = parts[0]
	if len(parts) == 2 {
		rel = parts[1]
	}
	return
}
