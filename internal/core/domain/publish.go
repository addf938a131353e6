package domain

import (
	"fmt"
	"time"
)

// RepoTarget identifies a single file on a branch of a hosted repository.
type RepoTarget struct {
	Owner         string
	Repo          string
	Branch        string
	Path          string
	CommitMessage string
	Token         string
}

// String renders the target as owner/repo@branch:path.
func (t RepoTarget) String() string {
	return fmt.Sprintf("%s/%s@%s:%s", t.Owner, t.Repo, t.Branch, t.Path)
}

// RemoteFileState is what a read of the remote file discovered.
// An empty SHA means the file is absent.
type RemoteFileState struct {
	SHA string
}

func (s RemoteFileState) Exists() bool { return s.SHA != "" }

// PublishRecord is the history entry written after each mirror attempt.
type PublishRecord struct {
	ID          string    `json:"id"          db:"id"`
	Target      string    `json:"target"      db:"target"`
	Label       string    `json:"label"       db:"label"`
	Fingerprint string    `json:"fingerprint" db:"fingerprint"`
	Success     bool      `json:"success"     db:"success"`
	Skipped     bool      `json:"skipped"     db:"skipped"`
	CreatedAt   time.Time `json:"created_at"  db:"created_at"`
}
