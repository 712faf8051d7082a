package oauthflow

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
)

func TestGitHubFlow_FetchJSON_DecodesEmailList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"email":"secondary@example.com","primary":false,"verified":true},
			{"email":"primary@example.com","primary":true,"verified":true}
		]`))
	}))
	defer server.Close()

	f := &GitHubFlow{http: server.Client()}
	result, err := f.fetchJSON(t.Context(), &oauth2.Token{AccessToken: "tok"}, server.URL, &[]githubEmail{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	emails := *result.(*[]githubEmail)
	if len(emails) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(emails))
	}
}

func TestGitHubFlow_FetchJSON_RejectsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	f := &GitHubFlow{http: server.Client()}
	if _, err := f.fetchJSON(t.Context(), &oauth2.Token{AccessToken: "tok"}, server.URL, &githubUser{}); err == nil {
		t.Error("expected an error for a non-200 response")
	}
}
