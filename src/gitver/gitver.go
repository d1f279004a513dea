// Package gitver reads source-control metadata for image labels.
package gitver

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// shortSHA is the abbreviated commit length used in labels.
const shortSHA = 7

// Info is the state of HEAD in the repository holding the configuration.
type Info struct {
	SHA    string // full commit hash
	Short  string
	Branch string // empty when HEAD is detached
	Dirty  bool
}

// ErrNotRepository is returned when dir is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// Detect opens the repository containing dir (searching parent
// directories) and resolves HEAD.
func Detect(dir string) (*Info, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNotRepository
		}
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, fmt.Errorf("repository has no commits")
		}
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	info := &Info{SHA: head.Hash().String()}
	info.Short = info.SHA[:shortSHA]
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}

	if wt, err := repo.Worktree(); err == nil {
		if status, err := wt.Status(); err == nil {
			info.Dirty = !status.IsClean()
		}
	}
	return info, nil
}
