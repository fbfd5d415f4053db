package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/odvcencio/braid/pkg/gitconfig"
	"github.com/odvcencio/braid/pkg/storage"
)

const (
	configPath = "config"
	objectsDir = "objects"
	refsDir    = "refs"
	logsDir    = "logs"

	// FormatVersion is the required core.repositoryformatversion.
	FormatVersion = "0"
	// StoreVersion is the required braid.storeversion.
	StoreVersion = "1"
)

var ErrBadRepo = errors.New("not a braid repository")

// BadRepoError reports a store whose metadata is missing or incompatible.
type BadRepoError struct {
	Reason string
	Err    error
}

func (e *BadRepoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrBadRepo, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrBadRepo, e.Reason)
}

func (e *BadRepoError) Unwrap() error { return e.Err }

func (e *BadRepoError) Is(target error) bool { return target == ErrBadRepo }

// Init writes repository metadata to an empty backend and opens it. It fails
// if the backend already holds a config.
func Init(ctx context.Context, backend storage.Backend, opts ...Option) (*Repo, error) {
	exists, err := backend.Exists(ctx, configPath)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("init: repository already exists")
	}

	for _, d := range []string{objectsDir, refsDir} {
		if err := backend.CreateDirectory(ctx, d); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	cfg := gitconfig.New()
	cfg.Set("core", "", "repositoryformatversion", FormatVersion)
	cfg.Set("core", "", "bare", "true")
	cfg.Set("braid", "", "storeversion", StoreVersion)
	if err := backend.Write(ctx, configPath, cfg.Encode()); err != nil {
		return nil, fmt.Errorf("init: write config: %w", err)
	}

	r := newRepo(backend, opts)
	r.log.Debug("initialized repository")
	return r, nil
}

// Open validates the repository metadata in backend and opens it.
func Open(ctx context.Context, backend storage.Backend, opts ...Option) (*Repo, error) {
	data, err := backend.Read(ctx, configPath)
	if storage.IsNotFound(err) {
		return nil, &BadRepoError{Reason: "missing config"}
	}
	if err != nil {
		return nil, fmt.Errorf("open: read config: %w", err)
	}

	cfg, err := gitconfig.Parse(data)
	if err != nil {
		return nil, &BadRepoError{Reason: "unreadable config", Err: err}
	}
	if v, ok := cfg.Get("core", "", "repositoryformatversion"); !ok || v != FormatVersion {
		return nil, &BadRepoError{Reason: fmt.Sprintf("unsupported core.repositoryformatversion %q", v)}
	}
	if v, ok := cfg.Get("braid", "", "storeversion"); !ok || v != StoreVersion {
		return nil, &BadRepoError{Reason: fmt.Sprintf("unsupported braid.storeversion %q", v)}
	}
	return newRepo(backend, opts), nil
}

// InitOrOpen opens the repository in backend, initializing it first if the
// backend has no config.
func InitOrOpen(ctx context.Context, backend storage.Backend, opts ...Option) (*Repo, error) {
	exists, err := backend.Exists(ctx, configPath)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if !exists {
		return Init(ctx, backend, opts...)
	}
	return Open(ctx, backend, opts...)
}
