package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/haatos/simple-release/internal"
	"github.com/haatos/simple-release/internal/types"
	"golang.org/x/mod/semver"
)

// VersionResolver turns a trigger reference such as "v1.2.3" or
// "refs/tags/v1.2.3" into a version.
type VersionResolver struct {
	prefix string
	strict bool
}

func NewVersionResolver(prefix string, strict bool) *VersionResolver {
	if prefix == "" {
		prefix = internal.DefaultTagPrefix
	}
	return &VersionResolver{prefix: prefix, strict: strict}
}

func (vr *VersionResolver) Resolve(triggerRef string) (types.Version, error) {
	ref := strings.TrimPrefix(strings.TrimSpace(triggerRef), "refs/tags/")
	body, ok := strings.CutPrefix(ref, vr.prefix)
	if !ok {
		return types.Version{}, types.NewInvalidVersionFormat(
			"trigger ref %q does not start with %q", triggerRef, vr.prefix,
		)
	}
	if body == "" {
		return types.Version{}, types.NewInvalidVersionFormat(
			"trigger ref %q has an empty version", triggerRef,
		)
	}
	if !internal.VersionPattern.MatchString(body) {
		return types.Version{}, types.NewInvalidVersionFormat(
			"version %q contains characters outside [0-9A-Za-z.+-]", body,
		)
	}
	if vr.strict && !semver.IsValid("v"+body) {
		return types.Version{}, types.NewInvalidVersionFormat(
			"version %q is not a semantic version", body,
		)
	}
	return types.NewVersion(body), nil
}

var ErrNoTagAtHead = errors.New("no release tag points at HEAD")

// ResolveFromRepository finds the release tags pointing at HEAD of the git
// repository containing projectRoot and returns the greatest one.
func (vr *VersionResolver) ResolveFromRepository(projectRoot string) (string, error) {
	repo, err := git.PlainOpenWithOptions(projectRoot, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	iter, err := repo.Tags()
	if err != nil {
		return "", fmt.Errorf("list tags: %w", err)
	}

	var candidates []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		hash := ref.Hash()
		if tag, err := repo.TagObject(hash); err == nil {
			commit, err := tag.Commit()
			if err != nil {
				return nil
			}
			hash = commit.Hash
		}
		if hash != head.Hash() {
			return nil
		}
		name := ref.Name().Short()
		if _, err := vr.Resolve(name); err == nil {
			candidates = append(candidates, name)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk tags: %w", err)
	}
	if len(candidates) == 0 {
		return "", ErrNoTagAtHead
	}

	sort.Slice(candidates, func(i, j int) bool {
		return compareTags(vr.prefix, candidates[i], candidates[j]) > 0
	})
	return candidates[0], nil
}

// compareTags orders semantic versions above anything else, falling back to
// lexical order.
func compareTags(prefix, a, b string) int {
	va := "v" + strings.TrimPrefix(a, prefix)
	vb := "v" + strings.TrimPrefix(b, prefix)
	okA, okB := semver.IsValid(va), semver.IsValid(vb)
	switch {
	case okA && okB:
		if c := semver.Compare(va, vb); c != 0 {
			return c
		}
	case okA:
		return 1
	case okB:
		return -1
	}
	return strings.Compare(a, b)
}
