package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	gh "github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_ValidatesSlug(t *testing.T) {
	ctx := context.Background()

	client, err := NewClient(ctx, "relops/pickwise", "")
	require.NoError(t, err)
	assert.Equal(t, "relops", client.owner)
	assert.Equal(t, "pickwise", client.repo)

	for _, slug := range []string{"", "pickwise", "/pickwise", "relops/"} {
		_, err := NewClient(ctx, slug, "")
		assert.Error(t, err, "slug %q", slug)
	}
}

func TestClient_CandidateMetadata(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/relops/pickwise/pulls/101", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"number":101,"title":"Handle empty buckets","merged":true,"user":{"login":"dev-a"}}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	ghc := gh.NewClient(nil)
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	ghc.BaseURL = base

	client := &Client{gh: ghc, owner: "relops", repo: "pickwise"}

	meta, err := client.CandidateMetadata(context.Background(), 101)
	require.NoError(t, err)
	assert.Equal(t, 101, meta.Number)
	assert.Equal(t, "Handle empty buckets", meta.Title)
	assert.Equal(t, "dev-a", meta.Author)
	assert.True(t, meta.Merged)

	_, err = client.CandidateMetadata(context.Background(), 999)
	require.Error(t, err)
}
