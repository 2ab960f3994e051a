// Package githubapi provides the metadata source adapter backed by the
// GitHub API. It implements domain.MetadataSource; the engine core only ever
// sees the joined domain.CandidateMetadata.
package githubapi

import (
	"context"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"github.com/relops/pickwise/internal/domain"
)

// Client fetches pull request metadata for candidate numbers.
type Client struct {
	gh    *gh.Client
	owner string
	repo  string
}

// NewClient creates a Client for the "owner/repo" repository. An empty token
// uses unauthenticated access, which is enough for public repositories at
// low request volume.
func NewClient(ctx context.Context, ownerRepo, token string) (*Client, error) {
	owner, repo, ok := strings.Cut(ownerRepo, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("invalid repository %q: expected owner/repo", ownerRepo)
	}

	var client *gh.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = gh.NewClient(oauth2.NewClient(ctx, ts))
	} else {
		client = gh.NewClient(nil)
	}

	return &Client{gh: client, owner: owner, repo: repo}, nil
}

// CandidateMetadata fetches title, author and merge state for one candidate
// number.
func (c *Client) CandidateMetadata(ctx context.Context, number int) (domain.CandidateMetadata, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return domain.CandidateMetadata{}, fmt.Errorf("failed to fetch PR #%d from %s/%s: %w", number, c.owner, c.repo, err)
	}
	return domain.CandidateMetadata{
		Number: number,
		Title:  pr.GetTitle(),
		Author: pr.GetUser().GetLogin(),
		Merged: pr.GetMerged(),
	}, nil
}
