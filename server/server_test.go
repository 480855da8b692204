package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"diskuto/backend"
	"diskuto/crypto"
	"diskuto/internal/testutil"
	"diskuto/model"
	"diskuto/pkg/config"
	"diskuto/server"
	"diskuto/store/sqlite"
)

func newTestApp(t *testing.T) *server.App {
	t.Helper()
	sandbox, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	t.Cleanup(func() { _ = sandbox.Cleanup() })

	b := &sqlite.Builder{Path: sandbox.Path("test.sqlite3")}
	ctx := context.Background()
	if err := b.Create(ctx); err != nil {
		t.Fatalf("Create: %v", err)
	}
	factory, err := b.Factory()
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}
	t.Cleanup(func() { _ = factory.Close() })

	cfg := config.Defaults()
	return server.NewApp(factory, &cfg)
}

func TestPutAndGetItemRoundTrip(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	ts := httptest.NewServer(app.Router())
	t.Cleanup(ts.Close)

	user, priv, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	conn, err := app.Factory.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()
	if err := conn.AddServerUser(context.Background(), backend.ServerUser{User: user, OnHomepage: true}); err != nil {
		t.Fatalf("AddServerUser: %v", err)
	}

	item := model.Item{Kind: model.KindPost, Timestamp: model.Now(), Post: &model.Post{}}
	itemBytes, err := item.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	sig, err := crypto.Sign(priv, itemBytes)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	putURL := ts.URL + "/diskuto/users/" + user.String() + "/items/" + sig.String()
	req, err := http.NewRequest(http.MethodPut, putURL, bytes.NewReader(itemBytes))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT item: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	getURL := ts.URL + "/diskuto/users/" + user.String() + "/items/" + sig.String()
	getResp, err := http.Get(getURL)
	if err != nil {
		t.Fatalf("GET item: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", getResp.StatusCode)
	}
	etag := getResp.Header.Get("ETag")
	if etag == "" {
		t.Fatalf("expected an ETag on a content-addressed item response")
	}

	req2, _ := http.NewRequest(http.MethodGet, getURL, nil)
	req2.Header.Set("If-None-Match", etag)
	cached, err := http.DefaultClient.Do(req2)
	if err != nil {
		t.Fatalf("conditional GET: %v", err)
	}
	cached.Body.Close()
	if cached.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304 on matching If-None-Match, got %d", cached.StatusCode)
	}

	homepageResp, err := http.Get(ts.URL + "/diskuto/homepage")
	if err != nil {
		t.Fatalf("GET homepage: %v", err)
	}
	defer homepageResp.Body.Close()
	var page struct {
		Items []json.RawMessage `json:"items"`
		More  bool              `json:"more"`
	}
	if err := json.NewDecoder(homepageResp.Body).Decode(&page); err != nil {
		t.Fatalf("decode homepage response: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected 1 homepage item, got %d", len(page.Items))
	}

	legacyURL := ts.URL + "/u/" + user.String() + "/items/" + sig.String()
	legacyResp, err := http.Get(legacyURL)
	if err != nil {
		t.Fatalf("GET legacy item: %v", err)
	}
	defer legacyResp.Body.Close()
	if legacyResp.StatusCode != http.StatusOK {
		t.Fatalf("expected legacy prefix to still serve the item, got %d", legacyResp.StatusCode)
	}

	legacyHomepageResp, err := http.Get(ts.URL + "/homepage")
	if err != nil {
		t.Fatalf("GET legacy homepage: %v", err)
	}
	legacyHomepageResp.Body.Close()
	if legacyHomepageResp.StatusCode != http.StatusOK {
		t.Fatalf("expected legacy homepage route to work, got %d", legacyHomepageResp.StatusCode)
	}
}

func TestGetUnknownItemReturnsNotFound(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	ts := httptest.NewServer(app.Router())
	t.Cleanup(ts.Close)

	user, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	var sig crypto.Signature

	resp, err := http.Get(ts.URL + "/diskuto/users/" + user.String() + "/items/" + sig.String())
	if err != nil {
		t.Fatalf("GET item: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if resp.Header.Get("ETag") != "" {
		t.Fatalf("a 404 must never be tagged as immutable, got ETag=%q", resp.Header.Get("ETag"))
	}
	if resp.Header.Get("Cache-Control") != "" {
		t.Fatalf("a 404 must never be cached, got Cache-Control=%q", resp.Header.Get("Cache-Control"))
	}
}
