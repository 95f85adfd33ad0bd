package service

import (
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/haatos/simple-release/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionResolver_Resolve(t *testing.T) {
	resolver := NewVersionResolver("v", false)

	t.Run("success - plain tag", func(t *testing.T) {
		// act
		v, err := resolver.Resolve("v1.2.3")

		// assert
		assert.NoError(t, err)
		assert.Equal(t, "1.2.3", v.String())
	})
	t.Run("success - full ref with pre-release and build metadata", func(t *testing.T) {
		// act
		v, err := resolver.Resolve("refs/tags/v1.2.3-rc.1+build.5")

		// assert
		assert.NoError(t, err)
		assert.Equal(t, "1.2.3-rc.1+build.5", v.String())
	})
	t.Run("success - non semver accepted when not strict", func(t *testing.T) {
		// act
		v, err := resolver.Resolve("v2024.01")

		// assert
		assert.NoError(t, err)
		assert.Equal(t, "2024.01", v.String())
	})
	t.Run("success - custom prefix", func(t *testing.T) {
		// arrange
		r := NewVersionResolver("release-", false)

		// act
		v, err := r.Resolve("release-0.4.0")

		// assert
		assert.NoError(t, err)
		assert.Equal(t, "0.4.0", v.String())
	})

	for _, ref := range []string{"v", "1.2.3", "release-1.0", "v1.2.3 beta", "v1.2/3", "v1.2.3_4", "", "v..", "v-", "v+", "v.1.2"} {
		t.Run("failure - invalid ref "+ref, func(t *testing.T) {
			// act
			v, err := resolver.Resolve(ref)

			// assert
			assert.True(t, v.IsZero())
			assert.Equal(t, types.KindInvalidVersionFormat, types.KindOf(err))
			assert.Equal(t, types.ExitInvalidTag, types.ExitCodeFor(err))
		})
	}

	t.Run("failure - strict mode rejects non semver", func(t *testing.T) {
		// arrange
		r := NewVersionResolver("v", true)

		// act
		_, err := r.Resolve("v1.2")

		// assert
		assert.Equal(t, types.KindInvalidVersionFormat, types.KindOf(err))
	})
	t.Run("success - strict mode accepts semver", func(t *testing.T) {
		// arrange
		r := NewVersionResolver("v", true)

		// act
		v, err := r.Resolve("v1.2.0-alpha")

		// assert
		assert.NoError(t, err)
		assert.Equal(t, "1.2.0-alpha", v.String())
	})
}

func TestVersionResolver_ResolveFromRepository(t *testing.T) {
	newRepo := func(t *testing.T) (string, *git.Repository) {
		dir := t.TempDir()
		repo, err := git.PlainInit(dir, false)
		require.NoError(t, err)
		wt, err := repo.Worktree()
		require.NoError(t, err)
		_, err = wt.Commit("initial", &git.CommitOptions{
			AllowEmptyCommits: true,
			Author:            &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
		})
		require.NoError(t, err)
		return dir, repo
	}

	t.Run("success - greatest tag at HEAD", func(t *testing.T) {
		// arrange
		dir, repo := newRepo(t)
		head, err := repo.Head()
		require.NoError(t, err)
		for _, tag := range []string{"v1.2.0", "v1.10.0", "v1.9.1", "unrelated"} {
			_, err := repo.CreateTag(tag, head.Hash(), nil)
			require.NoError(t, err)
		}

		// act
		ref, err := NewVersionResolver("v", false).ResolveFromRepository(dir)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, "v1.10.0", ref)
	})
	t.Run("success - annotated tag", func(t *testing.T) {
		// arrange
		dir, repo := newRepo(t)
		head, err := repo.Head()
		require.NoError(t, err)
		_, err = repo.CreateTag("v0.3.0", head.Hash(), &git.CreateTagOptions{
			Message: "release",
			Tagger:  &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
		})
		require.NoError(t, err)

		// act
		ref, err := NewVersionResolver("v", false).ResolveFromRepository(dir)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, "v0.3.0", ref)
	})
	t.Run("failure - no tag at HEAD", func(t *testing.T) {
		// arrange
		dir, _ := newRepo(t)

		// act
		_, err := NewVersionResolver("v", false).ResolveFromRepository(dir)

		// assert
		assert.ErrorIs(t, err, ErrNoTagAtHead)
	})
}
