// Package git provides adapters for interacting with local Git repositories.
// This package implements the domain.RepositoryReader interface using
// go-git/v5 and the domain.ApplyDelegate interface using the git binary.
package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/relops/pickwise/internal/domain"
)

// Logger defines the logging interface for the git adapters.
// This interface enables dependency injection and testability.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
}

// GoGitReader implements domain.RepositoryReader using go-git/v5. It is
// strictly read-only: nothing in this type touches the working tree, the
// index, or any ref.
type GoGitReader struct {
	repo   *gogit.Repository
	path   string
	logger Logger
}

// NewGoGitReader opens the repository at path. The path can be either a
// working directory or a bare repository. Returns
// domain.ErrRepositoryNotFound if the path is not a valid Git repository.
func NewGoGitReader(path string, log Logger) (*GoGitReader, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrRepositoryNotFound, path)
	}
	return &GoGitReader{repo: repo, path: path, logger: log}, nil
}

// Path returns the repository path the reader was opened on.
func (r *GoGitReader) Path() string { return r.path }

// ResolveRef resolves a branch name, tag, or revision expression to a full
// commit id.
func (r *GoGitReader) ResolveRef(_ context.Context, name string) (string, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(name))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", domain.ErrRefNotFound, name, err)
	}
	return hash.String(), nil
}

// Commit returns the commit with the given id. Abbreviated ids are accepted.
func (r *GoGitReader) Commit(ctx context.Context, id string) (domain.Commit, error) {
	c, err := r.commitObject(ctx, id)
	if err != nil {
		return domain.Commit{}, err
	}
	return toDomainCommit(c), nil
}

// Diff computes the file-level changes from one commit to another, with
// best-effort rename detection. An empty fromID diffs against the empty
// tree. Hunk line ranges come from parsing the generated unified diff, so
// they include the surrounding context lines, which gives region comparison
// the same margin a textual merge works with.
func (r *GoGitReader) Diff(ctx context.Context, fromID, toID string) ([]domain.FileChange, error) {
	patch, err := r.patch(ctx, fromID, toID)
	if err != nil {
		return nil, err
	}

	files, _, err := gitdiff.Parse(strings.NewReader(patch.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff %s..%s: %w", short(fromID), short(toID), err)
	}

	changes := make([]domain.FileChange, 0, len(files))
	for _, f := range files {
		changes = append(changes, toFileChange(f))
	}
	return changes, nil
}

// FileContent streams a file's content at a commit. Absence is a valid
// state, reported via the second return, not an error.
func (r *GoGitReader) FileContent(ctx context.Context, commitID, path string) ([]byte, bool, error) {
	c, err := r.commitObject(ctx, commitID)
	if err != nil {
		return nil, false, err
	}
	f, err := c.File(path)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read %s at %s: %w", path, short(commitID), err)
	}
	contents, err := f.Contents()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s at %s: %w", path, short(commitID), err)
	}
	return []byte(contents), true, nil
}

// WalkHistory walks commits reachable from ref in commit-time order, most
// recent first, up to maxCount.
func (r *GoGitReader) WalkHistory(ctx context.Context, ref string, maxCount int, fn func(domain.Commit) error) error {
	tip, err := r.ResolveRef(ctx, ref)
	if err != nil {
		return err
	}
	head, err := r.commitObject(ctx, tip)
	if err != nil {
		return err
	}

	seen := 0
	iter := object.NewCommitIterCTime(head, nil, nil)
	err = iter.ForEach(func(c *object.Commit) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if maxCount > 0 && seen >= maxCount {
			return storer.ErrStop
		}
		seen++
		if err := fn(toDomainCommit(c)); err != nil {
			if errors.Is(err, domain.ErrStopWalk) {
				return storer.ErrStop
			}
			return err
		}
		return nil
	})
	// ErrStop is expected when the walk ends early.
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return fmt.Errorf("failed to walk history from %q: %w", ref, err)
	}

	r.logger.Debug(ctx, "walked history", map[string]interface{}{
		"ref":       ref,
		"tip":       short(tip),
		"max_count": maxCount,
		"walked":    seen,
	})
	return nil
}

// ChangeText returns the unified diff a commit introduces relative to its
// first parent, for inspection display.
func (r *GoGitReader) ChangeText(ctx context.Context, commitID string) (string, error) {
	c, err := r.commitObject(ctx, commitID)
	if err != nil {
		return "", err
	}
	parentID := ""
	if c.NumParents() > 0 {
		parentID = c.ParentHashes[0].String()
	}
	patch, err := r.patch(ctx, parentID, c.Hash.String())
	if err != nil {
		return "", err
	}
	return patch.String(), nil
}

func (r *GoGitReader) commitObject(_ context.Context, id string) (*object.Commit, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrCommitNotFound, id)
	}
	c, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrCommitNotFound, id)
	}
	return c, nil
}

// patch builds a tree-to-tree patch. fromID == "" means the empty tree.
func (r *GoGitReader) patch(ctx context.Context, fromID, toID string) (*object.Patch, error) {
	toCommit, err := r.commitObject(ctx, toID)
	if err != nil {
		return nil, err
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load tree of %s: %w", short(toID), err)
	}

	var fromTree *object.Tree
	if fromID != "" {
		fromCommit, err := r.commitObject(ctx, fromID)
		if err != nil {
			return nil, err
		}
		fromTree, err = fromCommit.Tree()
		if err != nil {
			return nil, fmt.Errorf("failed to load tree of %s: %w", short(fromID), err)
		}
	}

	changes, err := object.DiffTreeWithOptions(ctx, fromTree, toTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s..%s: %w", short(fromID), short(toID), err)
	}
	patch, err := changes.PatchContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build patch %s..%s: %w", short(fromID), short(toID), err)
	}
	return patch, nil
}

func toDomainCommit(c *object.Commit) domain.Commit {
	parents := make([]string, 0, c.NumParents())
	for _, h := range c.ParentHashes {
		parents = append(parents, h.String())
	}
	return domain.Commit{
		ID:      c.Hash.String(),
		Parents: parents,
		Author:  fmt.Sprintf("%s <%s>", c.Author.Name, c.Author.Email),
		When:    c.Author.When,
		Message: c.Message,
	}
}

func toFileChange(f *gitdiff.File) domain.FileChange {
	fc := domain.FileChange{
		Path:    f.NewName,
		OldPath: f.OldName,
		Binary:  f.IsBinary,
	}
	switch {
	case f.IsNew:
		fc.Kind = domain.ChangeAdded
	case f.IsDelete:
		fc.Kind = domain.ChangeDeleted
		fc.Path = f.OldName
	case f.IsRename:
		fc.Kind = domain.ChangeRenamed
	default:
		fc.Kind = domain.ChangeModified
	}
	if fc.Path == "" {
		fc.Path = fc.OldPath
	}
	for _, frag := range f.TextFragments {
		fc.Hunks = append(fc.Hunks, domain.Hunk{
			Old: domain.LineRange{Start: int(frag.OldPosition), Lines: int(frag.OldLines)},
			New: domain.LineRange{Start: int(frag.NewPosition), Lines: int(frag.NewLines)},
		})
	}
	return fc
}

func short(id string) string {
	if len(id) <= domain.ShortIDLen {
		return id
	}
	return id[:domain.ShortIDLen]
}
