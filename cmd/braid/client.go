package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/odvcencio/braid/pkg/object"
	"github.com/odvcencio/braid/pkg/repo"
)

// client is a loaded configuration with the local repository open.
type client struct {
	cfg   *Config
	log   *logrus.Entry
	local *repo.Repo
}

func openClient(cmd *cobra.Command) (*client, error) {
	cfg, err := loadConfig(rootFlags.Config)
	if err != nil {
		return nil, err
	}
	log := logrus.WithField("client", cfg.Client).WithField("branch", cfg.Branch)
	local, err := cfg.openLocal(cmd.Context(), log)
	if err != nil {
		return nil, err
	}
	log.Debug("opened local repository")
	return &client{cfg: cfg, log: log, local: local}, nil
}

func (c *client) headRef() string { return repo.HeadRef(c.cfg.Branch) }

func (c *client) signer() (repo.CommitSigner, error) {
	if !c.cfg.Signing.Enabled {
		return nil, nil
	}
	sign, path, err := newSSHSigner(c.cfg.Signing.Key)
	if err != nil {
		return nil, err
	}
	c.log.WithField("key", path).Debug("signing merge commits")
	return sign, nil
}

// resolveRev turns a revision into a commit hash. Accepted forms are a full
// hash, a full ref name, a branch name (refs/heads/<name>), a
// <client>/<branch> pair (refs/remotes/<client>/<branch>), or "" for the
// client's own head.
func (c *client) resolveRev(ctx context.Context, rev string) (object.Hash, error) {
	var candidates []string
	switch {
	case rev == "":
		candidates = []string{c.headRef()}
	case object.ValidateHash(object.Hash(rev)) == nil:
		return object.Hash(rev), nil
	case strings.HasPrefix(rev, "refs/"):
		candidates = []string{rev}
	case strings.Contains(rev, "/"):
		candidates = []string{repo.RemotesPrefix + rev, repo.HeadsPrefix + rev}
	default:
		candidates = []string{repo.HeadsPrefix + rev}
	}
	for _, ref := range candidates {
		if repo.ValidateRef(ref) != nil {
			continue
		}
		h, err := c.local.GetRef(ctx, ref)
		if err != nil {
			return "", err
		}
		if h != "" {
			return h, nil
		}
	}
	return "", fmt.Errorf("unknown revision %q", rev)
}
