package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type stubTokens struct {
	token        string
	tokenErr     error
	refreshed    string
	refreshErr   error
	tokenCalls   int
	refreshCalls int
}

func (s *stubTokens) Token(ctx context.Context) (string, error) {
	s.tokenCalls++
	return s.token, s.tokenErr
}

func (s *stubTokens) Refresh(ctx context.Context) (string, error) {
	s.refreshCalls++
	if s.refreshErr != nil {
		return "", s.refreshErr
	}
	return s.refreshed, nil
}

func newTestClient(url string, tokens TokenSource) *Client {
	return NewClient(url, 5*time.Second, tokens, zerolog.Nop())
}

func TestGetAttachesBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, &stubTokens{token: "tok-1"})
	var out struct {
		OK bool `json:"ok"`
	}
	if err := client.Get(context.Background(), "/products", &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("Authorization = %q, want %q", gotAuth, "Bearer tok-1")
	}
	if !out.OK {
		t.Fatalf("response not decoded")
	}
}

func TestGetWithoutTokenSourceSendsNoAuth(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	if err := client.Get(context.Background(), "/products", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotAuth != "" {
		t.Fatalf("unexpected Authorization header %q", gotAuth)
	}
}

func TestUnauthorizedRefreshesAndRetriesOnce(t *testing.T) {
	var auths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
		if r.Header.Get("Authorization") != "Bearer tok-new" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"id":"p-1"}`)
	}))
	defer server.Close()

	tokens := &stubTokens{token: "tok-old", refreshed: "tok-new"}
	client := newTestClient(server.URL, tokens)
	var out struct {
		ID string `json:"id"`
	}
	if err := client.Get(context.Background(), "/products/p-1", &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(auths) != 2 {
		t.Fatalf("server saw %d requests, want 2", len(auths))
	}
	if auths[1] != "Bearer tok-new" {
		t.Fatalf("retry Authorization = %q, want refreshed token", auths[1])
	}
	if tokens.refreshCalls != 1 {
		t.Fatalf("refreshCalls = %d, want 1", tokens.refreshCalls)
	}
	if out.ID != "p-1" {
		t.Fatalf("response not decoded after retry")
	}
}

func TestRetriedRequestIsNotRetriedAgain(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tokens := &stubTokens{token: "tok-old", refreshed: "tok-new"}
	client := newTestClient(server.URL, tokens)
	err := client.Get(context.Background(), "/orders", nil)
	if err == nil {
		t.Fatalf("expected error when retried request also fails")
	}
	if requests != 2 {
		t.Fatalf("server saw %d requests, want exactly 2", requests)
	}
	if tokens.refreshCalls != 1 {
		t.Fatalf("refreshCalls = %d, want 1", tokens.refreshCalls)
	}
	if KindOf(err) != KindAuthentication {
		t.Fatalf("KindOf = %v, want %v", KindOf(err), KindAuthentication)
	}
}

func TestFailedRefreshReturnsAuthenticationError(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tokens := &stubTokens{token: "tok-old", refreshErr: errors.New("session expired")}
	client := newTestClient(server.URL, tokens)
	err := client.Get(context.Background(), "/orders/my-orders", nil)
	if KindOf(err) != KindAuthentication {
		t.Fatalf("KindOf = %v, want %v", KindOf(err), KindAuthentication)
	}
	if requests != 1 {
		t.Fatalf("server saw %d requests, want 1 when refresh fails", requests)
	}
}

func TestErrorEnvelopeMessageSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Product not found"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	err := client.Get(context.Background(), "/products/missing", nil)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %T is not *Error", err)
	}
	if apiErr.Kind != KindNotFound {
		t.Fatalf("Kind = %v, want %v", apiErr.Kind, KindNotFound)
	}
	if apiErr.UserMessage() != "Product not found" {
		t.Fatalf("UserMessage = %q, want backend message", apiErr.UserMessage())
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
	}{
		{http.StatusBadRequest, KindValidation},
		{http.StatusUnprocessableEntity, KindValidation},
		{http.StatusForbidden, KindAuthorization},
		{http.StatusNotFound, KindNotFound},
		{http.StatusInternalServerError, KindServer},
		{http.StatusBadGateway, KindServer},
		{http.StatusTeapot, KindUnknown},
	}
	for _, tc := range cases {
		status := tc.status
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		err := newTestClient(server.URL, nil).Get(context.Background(), "/x", nil)
		server.Close()
		if got := KindOf(err); got != tc.kind {
			t.Fatalf("status %d: KindOf = %v, want %v", tc.status, got, tc.kind)
		}
	}
}

func TestUnreachableServerIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	err := newTestClient(server.URL, nil).Get(context.Background(), "/products", nil)
	if KindOf(err) != KindNetwork {
		t.Fatalf("KindOf = %v, want %v", KindOf(err), KindNetwork)
	}
}

func TestPostSendsJSONBody(t *testing.T) {
	var gotBody map[string]int
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	body := map[string]int{"p-1": 2}
	if err := client.Post(context.Background(), "/orders", body, nil); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if gotContentType != "application/json" {
		t.Fatalf("Content-Type = %q", gotContentType)
	}
	if gotBody["p-1"] != 2 {
		t.Fatalf("body = %v", gotBody)
	}
}
