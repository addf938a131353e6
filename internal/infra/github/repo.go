package github

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidRepo is returned when a repository identifier has no owner or repo.
var ErrInvalidRepo = errors.New("invalid repository identifier")

// ParseRepo accepts "owner/repo" or a github.com URL and returns its parts.
func ParseRepo(input string) (owner, repo string, err error) {
	s := strings.TrimSpace(input)

	if strings.Contains(strings.ToLower(s), "github.com") {
		if !strings.Contains(s, "://") {
			s = "https://" + s
		}
		u, perr := url.Parse(s)
		if perr != nil {
			return "", "", fmt.Errorf("%w: %q: %v", ErrInvalidRepo, input, perr)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) >= 2 {
			owner = parts[0]
			repo = parts[1]
			if strings.HasSuffix(strings.ToLower(repo), ".git") {
				repo = repo[:len(repo)-len(".git")]
			}
		}
	} else {
		parts := strings.Split(s, "/")
		if len(parts) == 2 {
			owner, repo = parts[0], parts[1]
		}
	}

	owner = strings.TrimSpace(owner)
	repo = strings.TrimSpace(repo)
	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepo, input)
	}
	return owner, repo, nil
}
