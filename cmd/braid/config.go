package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/odvcencio/braid/pkg/object"
	"github.com/odvcencio/braid/pkg/remote"
	"github.com/odvcencio/braid/pkg/repo"
	"github.com/odvcencio/braid/pkg/storage"

	_ "github.com/odvcencio/braid/pkg/storage/disk"
	_ "github.com/odvcencio/braid/pkg/storage/gcs"
	_ "github.com/odvcencio/braid/pkg/storage/logging"
	_ "github.com/odvcencio/braid/pkg/storage/lru"
	_ "github.com/odvcencio/braid/pkg/storage/mem"
	_ "github.com/odvcencio/braid/pkg/storage/pg"
	_ "github.com/odvcencio/braid/pkg/storage/retry"
	_ "github.com/odvcencio/braid/pkg/storage/sqlite3"
)

// Config is a client's braid.toml.
type Config struct {
	// Client is this client's id. It names the client's published refs
	// in shared stores: refs/remotes/<client>/<branch>.
	Client         string `toml:"client"`
	Branch         string `toml:"branch"`
	Strategy       string `toml:"strategy"`
	ReflogRecovery bool   `toml:"reflog_recovery"`
	// Jobs bounds how many shared stores are talked to at once.
	Jobs int `toml:"jobs"`

	Author  AuthorConfig  `toml:"author"`
	Signing SigningConfig `toml:"signing"`
	Merge   MergeConfig   `toml:"merge"`

	// Local and each entry of Shared describe a storage backend: "type"
	// names a registered kind and the other keys are its parameters.
	Local  map[string]interface{}            `toml:"local"`
	Shared map[string]map[string]interface{} `toml:"shared"`

	dir string
}

type AuthorConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

type SigningConfig struct {
	Enabled bool `toml:"enabled"`
	// Key is an SSH private key path; empty means the first of
	// ~/.ssh/id_ed25519, id_ecdsa and id_rsa that exists.
	Key string `toml:"key"`
}

type MergeConfig struct {
	ConcatInsertions bool `toml:"concat_insertions"`
	ShowBase         bool `toml:"show_base"`
}

func defaultConfigPath() string {
	if p := os.Getenv("BRAID_CONFIG"); p != "" {
		return p
	}
	return "braid.toml"
}

// loadConfig reads path, applies environment overrides and defaults, and
// validates the result.
func loadConfig(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.dir = filepath.Dir(abs)

	cfg.loadFromEnv()
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("BRAID_CLIENT"); v != "" {
		c.Client = v
	}
	if v := os.Getenv("BRAID_BRANCH"); v != "" {
		c.Branch = v
	}
	if v := os.Getenv("BRAID_SIGNING_KEY"); v != "" {
		c.Signing.Key = v
		c.Signing.Enabled = true
	}
}

func (c *Config) setDefaults() {
	if c.Branch == "" {
		c.Branch = "main"
	}
	if c.Strategy == "" {
		c.Strategy = "fast"
	}
	if c.Jobs <= 0 {
		c.Jobs = 4
	}
}

func (c *Config) validate() error {
	if c.Client == "" {
		return fmt.Errorf("client is required")
	}
	if strings.Contains(c.Client, "/") {
		return fmt.Errorf("client %q must not contain '/'", c.Client)
	}
	if err := repo.ValidateRef(repo.RemoteRef(c.Client, c.Branch)); err != nil {
		return err
	}
	if _, err := remote.ParseStrategy(c.Strategy); err != nil {
		return err
	}
	if c.Local == nil {
		return fmt.Errorf("[local] store is required")
	}
	return nil
}

// person returns the configured author stamped with the current time.
func (c *Config) person() object.Person {
	name := c.Author.Name
	if name == "" {
		name = c.Client
	}
	return object.Person{Name: name, Email: c.Author.Email, When: object.DateFromTime(time.Now())}
}

func (c *Config) clientOptions(log *logrus.Entry) (remote.ClientOptions, error) {
	strategy, err := remote.ParseStrategy(c.Strategy)
	if err != nil {
		return remote.ClientOptions{}, err
	}
	return remote.ClientOptions{
		Self:   c.Client,
		Branch: c.Branch,
		RefOptions: remote.RefOptions{
			Strategy:       strategy,
			ReflogRecovery: c.ReflogRecovery,
			Person:         c.person(),
			Log:            log,
		},
	}, nil
}

// sharedNames returns the configured shared stores, sorted.
func (c *Config) sharedNames() []string {
	names := make([]string, 0, len(c.Shared))
	for name := range c.Shared {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// openLocal opens the client's own repository, initializing it if empty.
func (c *Config) openLocal(ctx context.Context, log *logrus.Entry) (*repo.Repo, error) {
	backend, err := c.backend(ctx, c.Local)
	if err != nil {
		return nil, fmt.Errorf("local store: %w", err)
	}
	return repo.InitOrOpen(ctx, backend, repo.WithLogger(log))
}

// openShared opens the named shared store, initializing it if empty.
func (c *Config) openShared(ctx context.Context, name string, log *logrus.Entry) (*repo.Repo, error) {
	conf, ok := c.Shared[name]
	if !ok {
		return nil, fmt.Errorf("no shared store named %q", name)
	}
	backend, err := c.backend(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("shared store %s: %w", name, err)
	}
	return repo.InitOrOpen(ctx, backend, repo.WithLogger(log.WithField("store", name)))
}

func (c *Config) backend(ctx context.Context, conf map[string]interface{}) (storage.Backend, error) {
	conf = c.resolvePaths(conf)
	kind, ok := conf["type"].(string)
	if !ok {
		return nil, fmt.Errorf(`missing "type" (one of %s)`, strings.Join(storage.Kinds(), ", "))
	}
	return storage.Create(ctx, kind, conf)
}

// resolvePaths copies conf, making relative disk roots relative to the
// config file, recursing into nested stores.
func (c *Config) resolvePaths(conf map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(conf))
	for k, v := range conf {
		out[k] = v
	}
	if kind, _ := out["type"].(string); kind == "disk" {
		root, _ := out["root"].(string)
		switch {
		case strings.HasPrefix(root, "~/"):
			if expanded, err := expandUserPath(root); err == nil {
				out["root"] = expanded
			}
		case root != "" && !filepath.IsAbs(root):
			out["root"] = filepath.Join(c.dir, root)
		}
	}
	if nested, ok := out["nested"].(map[string]interface{}); ok {
		out["nested"] = c.resolvePaths(nested)
	}
	return out
}

func newClientID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	b[6] = b[6]&0x0f | 0x40
	b[8] = b[8]&0x3f | 0x80
	h := hex.EncodeToString(b[:])
	return h[:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:], nil
}

const configTemplate = `# braid client configuration
client = %q
branch = "main"
# fast, deepen, verify, repair or shallow-top
strategy = "fast"
reflog_recovery = true
jobs = 4

[author]
name = %q
email = %q

[signing]
enabled = false
# key = "~/.ssh/id_ed25519"

[merge]
concat_insertions = false
show_base = false

[local]
type = "disk"
root = ".braid"

[shared.origin]
type = "disk"
root = %q
`
