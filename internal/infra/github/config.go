package github

import (
	"strings"
	"time"

	"github.com/vietddude/botrunner/internal/core/domain"
)

const (
	DefaultBranch        = "main"
	DefaultPath          = "Dodo.txt"
	DefaultCommitMessage = "Update Dodo.txt"
	DefaultInterval      = 30 * time.Second
)

// Config describes where mirrored content is written.
type Config struct {
	PushEnabled   bool   `yaml:"push_enabled"`
	Repo          string `yaml:"repo"` // owner/repo or a github.com URL
	Branch        string `yaml:"branch"`
	Path          string `yaml:"path"`
	Token         string `yaml:"token"`
	CommitMessage string `yaml:"commit_message"`
	BaseURL       string `yaml:"base_url"` // API root for GitHub Enterprise, empty for api.github.com

	// SourceFile is the local file watched and mirrored while running.
	SourceFile string        `yaml:"source_file"`
	Interval   time.Duration `yaml:"interval"`
}

// ApplyDefaults fills blank branch, path and commit message.
func (c *Config) ApplyDefaults() {
	c.Branch = strings.TrimSpace(c.Branch)
	if c.Branch == "" {
		c.Branch = DefaultBranch
	}
	c.Path = normalizePath(c.Path)
	if strings.TrimSpace(c.CommitMessage) == "" {
		c.CommitMessage = DefaultCommitMessage
	}
	if strings.TrimSpace(c.SourceFile) == "" {
		c.SourceFile = DefaultPath
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
}

// Target resolves the config into a concrete file location.
func (c Config) Target() (domain.RepoTarget, error) {
	owner, repo, err := ParseRepo(c.Repo)
	if err != nil {
		return domain.RepoTarget{}, err
	}

	cfg := c
	cfg.ApplyDefaults()
	return domain.RepoTarget{
		Owner:         owner,
		Repo:          repo,
		Branch:        cfg.Branch,
		Path:          cfg.Path,
		CommitMessage: cfg.CommitMessage,
		Token:         strings.TrimSpace(cfg.Token),
	}, nil
}

func normalizePath(p string) string {
	p = strings.TrimLeft(strings.TrimSpace(p), "/")
	if p == "" {
		return DefaultPath
	}
	return p
}
