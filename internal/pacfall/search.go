package pacfall

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// SearchResult is one repository candidate from a hosting platform,
// shown to the user as "name - url".
type SearchResult struct {
	Name     string
	URL      string
	Platform string
}

// RepoSearcher queries the code-hosting search APIs. The platforms are
// asked one after another; a failing platform only loses its own results.
type RepoSearcher struct {
	Client *http.Client
	In     io.Reader

	// Base URLs, overridable in tests.
	GitHubAPI    string
	GitLabAPI    string
	BitbucketAPI string
}

func newRepoSearcher(client *http.Client, in io.Reader) *RepoSearcher {
	return &RepoSearcher{
		Client:       client,
		In:           in,
		GitHubAPI:    "https://api.github.com",
		GitLabAPI:    "https://gitlab.com/api/v4",
		BitbucketAPI: "https://api.bitbucket.org/2.0",
	}
}

// Search collects results from GitHub, GitLab and Bitbucket, in that
// order. Per-platform failures degrade to zero results for that platform.
func (s *RepoSearcher) Search(ctx context.Context, term string) []SearchResult {
	var results []SearchResult

	type platformQuery struct {
		name  string
		query func(context.Context, string) ([]SearchResult, error)
	}
	for _, p := range []platformQuery{
		{"GitHub", s.searchGitHub},
		{"GitLab", s.searchGitLab},
		{"Bitbucket", s.searchBitbucket},
	} {
		found, err := p.query(ctx, term)
		if err != nil {
			colWarn.Printf("Warning: %s search failed: %v\n", p.name, err)
			continue
		}
		results = append(results, found...)
	}
	return results
}

func (s *RepoSearcher) searchGitHub(ctx context.Context, term string) ([]SearchResult, error) {
	u := fmt.Sprintf("%s/search/repositories?q=%s&per_page=10", s.GitHubAPI, url.QueryEscape(term))
	resp, err := httpGet(ctx, s.Client, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Items []struct {
			FullName string `json:"full_name"`
			HTMLURL  string `json:"html_url"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}

	var out []SearchResult
	for _, item := range payload.Items {
		out = append(out, SearchResult{Name: item.FullName, URL: item.HTMLURL, Platform: "GitHub"})
	}
	return out, nil
}

func (s *RepoSearcher) searchGitLab(ctx context.Context, term string) ([]SearchResult, error) {
	u := fmt.Sprintf("%s/projects?search=%s&per_page=10", s.GitLabAPI, url.QueryEscape(term))
	resp, err := httpGet(ctx, s.Client, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload []struct {
		Path   string `json:"path_with_namespace"`
		WebURL string `json:"web_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}

	var out []SearchResult
	for _, item := range payload {
		out = append(out, SearchResult{Name: item.Path, URL: item.WebURL, Platform: "GitLab"})
	}
	return out, nil
}

func (s *RepoSearcher) searchBitbucket(ctx context.Context, term string) ([]SearchResult, error) {
	q := url.QueryEscape(fmt.Sprintf(`name~"%s"`, term))
	u := fmt.Sprintf("%s/repositories?q=%s&pagelen=10", s.BitbucketAPI, q)
	resp, err := httpGet(ctx, s.Client, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Values []struct {
			FullName string `json:"full_name"`
			Links    struct {
				HTML struct {
					Href string `json:"href"`
				} `json:"html"`
			} `json:"links"`
		} `json:"values"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}

	var out []SearchResult
	for _, item := range payload.Values {
		out = append(out, SearchResult{Name: item.FullName, URL: item.Links.HTML.Href, Platform: "Bitbucket"})
	}
	return out, nil
}

// Select numbers the results 1..N, prints them and reads one line of
// input: "q" cancels, an in-range integer picks that result, anything
// else is an invalid choice.
func (s *RepoSearcher) Select(results []SearchResult) (*SearchResult, error) {
	fmt.Printf("\nFound %d matching repositories:\n", len(results))
	for i, r := range results {
		fmt.Printf("%2d) %s - %s [%s]\n", i+1, r.Name, r.URL, r.Platform)
	}
	fmt.Printf(" q) cancel\n")

	interactiveMu.Lock()
	defer interactiveMu.Unlock()

	fmt.Printf("\nChoice [1-%d, q]: ", len(results))
	reader := bufio.NewReader(s.In)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return nil, errCancelled
	}
	line = strings.TrimSpace(strings.ToLower(line))

	if line == "q" {
		return nil, errCancelled
	}
	idx, err := strconv.Atoi(line)
	if err != nil || idx < 1 || idx > len(results) {
		colWarn.Println("Invalid selection.")
		return nil, errInvalidChoice
	}
	return &results[idx-1], nil
}
