// Package repo layers a git-compatible object and ref store on top of a
// storage.Backend.
//
// Objects live at objects/<2 hex>/<38 hex>, zlib-compressed. Refs live at
// their own name (refs/heads/main, refs/remotes/<uuid>/main) and reflogs at
// logs/<ref>. A Repo is meant for a single owner; callers wanting parallelism
// open independent Repos over a concurrency-safe backend.
package repo

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/odvcencio/braid/pkg/object"
	"github.com/odvcencio/braid/pkg/storage"
)

// DefaultCommitCacheSize is the number of decoded commits kept in memory.
const DefaultCommitCacheSize = 4096

// Repo is an opened repository.
type Repo struct {
	backend storage.Backend
	log     *logrus.Entry
	commits *lru.Cache // object.Hash -> *object.Commit
}

// Option configures a Repo.
type Option func(*options)

type options struct {
	log             *logrus.Entry
	commitCacheSize int
}

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(log *logrus.Entry) Option {
	return func(o *options) { o.log = log }
}

// WithCommitCacheSize sets how many decoded commits are cached. Zero or a
// negative size disables the cache.
func WithCommitCacheSize(n int) Option {
	return func(o *options) { o.commitCacheSize = n }
}

func newRepo(backend storage.Backend, opts []Option) *Repo {
	o := options{commitCacheSize: DefaultCommitCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logrus.NewEntry(logrus.StandardLogger())
	}
	r := &Repo{backend: backend, log: o.log}
	if o.commitCacheSize > 0 {
		// lru.New only fails for non-positive sizes.
		r.commits, _ = lru.New(o.commitCacheSize)
	}
	return r
}

// Backend returns the storage the repository is layered on.
func (r *Repo) Backend() storage.Backend { return r.backend }

// Logger returns the repository's logger.
func (r *Repo) Logger() *logrus.Entry { return r.log }

func (r *Repo) cachedCommit(h object.Hash) (*object.Commit, bool) {
	if r.commits == nil {
		return nil, false
	}
	v, ok := r.commits.Get(h)
	if !ok {
		return nil, false
	}
	return v.(*object.Commit), true
}

func (r *Repo) cacheCommit(h object.Hash, c *object.Commit) {
	if r.commits != nil {
		r.commits.Add(h, c)
	}
}
