// Package remote copies commits and their dependencies between
// repositories, and publishes or collects per-client branch refs through a
// shared repository.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/braid/pkg/object"
)

// ObjectStore is the object access a sync needs from each side. *repo.Repo
// implements it.
type ObjectStore interface {
	HasObject(ctx context.Context, h object.Hash) (bool, error)
	LoadRawObject(ctx context.Context, h object.Hash) ([]byte, error)
	SaveRawObject(ctx context.Context, raw []byte) (object.Hash, error)
}

// Stats counts the work a sync did.
type Stats struct {
	CommitsWritten int
	TreesWritten   int
	BlobsWritten   int
	// Truncated lists ancestors left out of a shallow sync because the
	// source lacks their data.
	Truncated []object.Hash
}

func (s *Stats) add(o Stats) {
	s.CommitsWritten += o.CommitsWritten
	s.TreesWritten += o.TreesWritten
	s.BlobsWritten += o.BlobsWritten
	s.Truncated = append(s.Truncated, o.Truncated...)
}

// Option configures a sync.
type Option func(*syncer)

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(log *logrus.Entry) Option {
	return func(s *syncer) { s.log = log }
}

// step is the outcome of a recursive sync step. A non-empty missing hash
// means the step stopped because that object is absent from the source;
// the caller decides whether that is fatal.
type step struct {
	missing object.Hash
}

var done = step{}

type commitAction int

const (
	// commitStop: trusted as-is; neither its tree nor its parents are walked.
	commitStop commitAction = iota
	// commitPresent: not written, but its parents are walked.
	commitPresent
	// commitWrite: written in the second pass, after its parents.
	commitWrite
)

type collected struct {
	raw     []byte
	parents []object.Hash
	action  commitAction
}

type syncer struct {
	src, dst ObjectStore
	strategy Strategy
	log      *logrus.Entry

	stats Stats
	// objects already handled this run, keyed by hash. The value is the
	// consistency level they were handled under.
	handled map[object.Hash]Consistency
}

// SyncCommit copies commit h and everything it depends on from src to dst
// under strategy. An object is never written to dst before the objects it
// references, so dst stays connected even if the sync is interrupted. The
// only exception is the boundary of a shallow sync, where a commit may be
// written without its parents.
func SyncCommit(ctx context.Context, src, dst ObjectStore, h object.Hash, strategy Strategy, opts ...Option) (Stats, error) {
	if err := object.ValidateHash(h); err != nil {
		return Stats{}, err
	}
	if err := strategy.Validate(); err != nil {
		return Stats{}, err
	}
	s := &syncer{
		src:      src,
		dst:      dst,
		strategy: strategy,
		handled:  make(map[object.Hash]Consistency),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	s.log = s.log.WithField("commit", h.Short()).WithField("strategy", strategy.String())

	if err := s.run(ctx, h); err != nil {
		return s.stats, err
	}
	s.log.WithFields(logrus.Fields{
		"commits":   s.stats.CommitsWritten,
		"trees":     s.stats.TreesWritten,
		"blobs":     s.stats.BlobsWritten,
		"truncated": len(s.stats.Truncated),
	}).Debug("synced commit")
	return s.stats, nil
}

type queued struct {
	hash object.Hash
	top  bool
}

func (s *syncer) run(ctx context.Context, top object.Hash) error {
	commits := make(map[object.Hash]*collected)
	seen := map[object.Hash]struct{}{top: {}}
	queue := []queued{{hash: top, top: true}}

	for len(queue) > 0 {
		q := queue[0]
		queue = queue[1:]

		mode := s.strategy.Ancestors
		if q.top {
			mode = s.strategy.Top
		}
		if mode == Skip {
			continue
		}

		c, st, err := s.visitCommit(ctx, q.hash, mode)
		if err != nil {
			return err
		}
		if st.missing != "" {
			if q.top || !s.strategy.AllowShallow {
				return fmt.Errorf("sync commit %s: %w", q.hash.Short(), &object.MissingObjectError{Hash: st.missing})
			}
			s.log.WithField("ancestor", q.hash.Short()).WithField("missing", st.missing.Short()).Debug("truncating shallow history")
			s.stats.Truncated = append(s.stats.Truncated, q.hash)
			continue
		}
		commits[q.hash] = c
		if c.action == commitStop {
			continue
		}
		for _, p := range c.parents {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			queue = append(queue, queued{hash: p})
		}
	}

	for _, h := range writeOrder(top, commits) {
		c := commits[h]
		if c.action != commitWrite {
			continue
		}
		if _, err := s.dst.SaveRawObject(ctx, c.raw); err != nil {
			return fmt.Errorf("sync commit %s: write: %w", h.Short(), err)
		}
		s.stats.CommitsWritten++
	}
	return nil
}

// writeOrder lists the collected commits reachable from top with every
// commit after all of its collected parents. A commit reached along several
// paths therefore lands before the first commit that depends on it.
func writeOrder(top object.Hash, commits map[object.Hash]*collected) []object.Hash {
	type frame struct {
		hash object.Hash
		next int
	}
	var out []object.Hash
	emitted := make(map[object.Hash]bool, len(commits))
	onStack := make(map[object.Hash]bool)

	if _, ok := commits[top]; !ok {
		return nil
	}
	stack := []frame{{hash: top}}
	onStack[top] = true
	for len(stack) > 0 {
		f := &stack[len(stack)-1]
		c := commits[f.hash]
		if f.next < len(c.parents) {
			p := c.parents[f.next]
			f.next++
			if _, ok := commits[p]; !ok || emitted[p] || onStack[p] {
				continue
			}
			onStack[p] = true
			stack = append(stack, frame{hash: p})
			continue
		}
		out = append(out, f.hash)
		emitted[f.hash] = true
		delete(onStack, f.hash)
		stack = stack[:len(stack)-1]
	}
	return out
}

// visitCommit syncs the tree of commit h under mode and decides what happens
// to the commit itself.
func (s *syncer) visitCommit(ctx context.Context, h object.Hash, mode Consistency) (*collected, step, error) {
	present, err := s.dst.HasObject(ctx, h)
	if err != nil {
		return nil, done, err
	}

	if present && mode != Pessimistic {
		if mode == AssumeTotalConnectivity {
			return &collected{action: commitStop}, done, nil
		}
		c, err := s.loadCommit(ctx, s.dst, h)
		if err == nil {
			if mode == AssumeObjectIntegrity {
				st, err := s.syncTree(ctx, c.Tree, mode)
				if err != nil || st.missing != "" {
					return nil, st, err
				}
			}
			return &collected{parents: c.Parents, action: commitPresent}, done, nil
		}
		if !errors.Is(err, object.ErrInvalidData) {
			return nil, done, err
		}
		// A corrupt destination copy is replaced from the source.
		s.log.WithField("object", h.Short()).Warn("destination commit is corrupt, recopying")
	}

	raw, st, err := s.loadSource(ctx, h)
	if err != nil || st.missing != "" {
		return nil, st, err
	}
	c, err := decodeCommit(h, raw)
	if err != nil {
		return nil, done, err
	}
	st, err = s.syncTree(ctx, c.Tree, mode)
	if err != nil || st.missing != "" {
		return nil, st, err
	}
	return &collected{raw: raw, parents: c.Parents, action: commitWrite}, done, nil
}

// syncTree copies tree h and its contents, children before the tree itself.
func (s *syncer) syncTree(ctx context.Context, h object.Hash, mode Consistency) (step, error) {
	if s.alreadyHandled(h, mode) {
		return done, nil
	}
	present, err := s.dst.HasObject(ctx, h)
	if err != nil {
		return done, err
	}

	var raw []byte
	write := true
	switch {
	case present && (mode == AssumeTotalConnectivity || mode == AssumeCommitTreeConnectivity):
		s.handled[h] = mode
		return done, nil

	case present && mode == AssumeObjectIntegrity:
		raw, err = s.dst.LoadRawObject(ctx, h)
		if err == nil {
			write = false
			break
		}
		if !errors.Is(err, object.ErrInvalidData) {
			return done, err
		}
		s.log.WithField("object", h.Short()).Warn("destination tree is corrupt, recopying")
		raw = nil
	}

	if raw == nil {
		var st step
		raw, st, err = s.loadSource(ctx, h)
		if err != nil || st.missing != "" {
			return st, err
		}
	}
	tr, err := decodeTree(h, raw)
	if err != nil {
		return done, err
	}
	for _, e := range tr.Entries {
		var st step
		switch {
		case e.Mode.IsSubmodule():
			continue
		case e.Mode.IsDir():
			st, err = s.syncTree(ctx, e.Hash, mode)
		default:
			st, err = s.syncBlob(ctx, e.Hash, mode)
		}
		if err != nil || st.missing != "" {
			return st, err
		}
	}
	if write {
		if _, err := s.dst.SaveRawObject(ctx, raw); err != nil {
			return done, fmt.Errorf("write tree %s: %w", h.Short(), err)
		}
		s.stats.TreesWritten++
	}
	s.handled[h] = mode
	return done, nil
}

func (s *syncer) syncBlob(ctx context.Context, h object.Hash, mode Consistency) (step, error) {
	if s.alreadyHandled(h, mode) {
		return done, nil
	}
	if mode != Pessimistic {
		present, err := s.dst.HasObject(ctx, h)
		if err != nil {
			return done, err
		}
		if present && mode != AssumeObjectIntegrity {
			s.handled[h] = mode
			return done, nil
		}
		if present {
			_, err := s.dst.LoadRawObject(ctx, h)
			if err == nil {
				s.handled[h] = mode
				return done, nil
			}
			if !errors.Is(err, object.ErrInvalidData) {
				return done, err
			}
			s.log.WithField("object", h.Short()).Warn("destination blob is corrupt, recopying")
		}
	}

	raw, st, err := s.loadSource(ctx, h)
	if err != nil || st.missing != "" {
		return st, err
	}
	if _, err := s.dst.SaveRawObject(ctx, raw); err != nil {
		return done, fmt.Errorf("write blob %s: %w", h.Short(), err)
	}
	s.stats.BlobsWritten++
	s.handled[h] = mode
	return done, nil
}

// alreadyHandled reports whether h was synced earlier in this run under a
// level at least as strict as mode.
func (s *syncer) alreadyHandled(h object.Hash, mode Consistency) bool {
	prev, ok := s.handled[h]
	return ok && prev >= mode
}

// loadSource reads h from the source, reporting absence as a step rather
// than an error.
func (s *syncer) loadSource(ctx context.Context, h object.Hash) ([]byte, step, error) {
	raw, err := s.src.LoadRawObject(ctx, h)
	if missing, ok := object.IsMissing(err); ok {
		return nil, step{missing: missing}, nil
	}
	if err != nil {
		return nil, done, fmt.Errorf("read source object %s: %w", h.Short(), err)
	}
	return raw, done, nil
}

func (s *syncer) loadCommit(ctx context.Context, store ObjectStore, h object.Hash) (*object.Commit, error) {
	raw, err := store.LoadRawObject(ctx, h)
	if err != nil {
		return nil, err
	}
	return decodeCommit(h, raw)
}

func decodeCommit(h object.Hash, raw []byte) (*object.Commit, error) {
	obj, err := object.Decode(raw)
	if err != nil {
		return nil, &object.InvalidDataError{What: "commit " + string(h), Err: err}
	}
	c, ok := obj.(*object.Commit)
	if !ok {
		return nil, &object.ObjectTypeMismatchError{Hash: h, Want: object.TypeCommit, Got: obj.Type()}
	}
	return c, nil
}

func decodeTree(h object.Hash, raw []byte) (*object.Tree, error) {
	obj, err := object.Decode(raw)
	if err != nil {
		return nil, &object.InvalidDataError{What: "tree " + string(h), Err: err}
	}
	tr, ok := obj.(*object.Tree)
	if !ok {
		return nil, &object.ObjectTypeMismatchError{Hash: h, Want: object.TypeTree, Got: obj.Type()}
	}
	return tr, nil
}
