package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"timebank/internal/blob"
	"timebank/internal/config"
	"timebank/internal/domain"
	"timebank/internal/http/handlers"
	"timebank/internal/metrics"
	"timebank/internal/repos"
	"timebank/internal/services"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testAPI struct {
	t     *testing.T
	app   *fiber.App
	store *repos.Store
	deps  *handlers.Deps
	clock *testClock
	media string
}

func testConfig(t *testing.T) config.Config {
	return config.Config{
		AppEnv:           "test",
		JWTSecret:        "test-secret",
		MediaDir:         t.TempDir(),
		DescriptionMax:   1000,
		ListingQuota:     300,
		ListingCooldown:  30 * time.Second,
		DisableRateLimit: true,
	}
}

func newAPI(t *testing.T, tweak ...func(*config.Config)) *testAPI {
	t.Helper()
	cfg := testConfig(t)
	for _, f := range tweak {
		f(&cfg)
	}
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := repos.NewStore(db)

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	clk := &testClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	deps := handlers.NewDeps(store, cfg, blob.NewLocalStore(cfg.MediaDir, "/media"), services.LogDeliverer{Log: quiet}, clk.Now)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(cfg.Production())})
	app.Use(requestid.New())
	app.Use(metrics.Middleware())
	handlers.Register(app, deps)
	return &testAPI{t: t, app: app, store: store, deps: deps, clock: clk, media: cfg.MediaDir}
}

// user creates an account with password "Passw0rd!" and returns its id and a bearer token.
func (a *testAPI) user(name string) (int64, string) {
	a.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Passw0rd!"), bcrypt.MinCost)
	require.NoError(a.t, err)
	u := &domain.User{Username: name, Email: name + "@timebank.test", Name: name, Hash: string(hash)}
	require.NoError(a.t, a.store.Users.Create(context.Background(), u))
	tok, err := a.deps.Tokens.Issue(u.ID)
	require.NoError(a.t, err)
	return u.ID, tok
}

func (a *testAPI) do(method, path string, body any, token string) *http.Response {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.send(req)
}

func (a *testAPI) send(req *http.Request) *http.Response {
	a.t.Helper()
	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func bodyString(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func listingBody(title, typ string) map[string]any {
	return map[string]any{
		"category":         "GROWTH",
		"title":            title,
		"description":      title + " for an hour",
		"listing_type":     typ,
		"duration_minutes": 60,
		"image":            "/media/listings/x.png",
	}
}

func (a *testAPI) createListing(token, title, typ string) domain.ListingView {
	a.t.Helper()
	resp := a.do("POST", "/api/v1/listings", listingBody(title, typ), token)
	raw := bodyString(a.t, resp)
	require.Equal(a.t, http.StatusCreated, resp.StatusCode, raw)
	var v domain.ListingView
	require.NoError(a.t, json.Unmarshal([]byte(raw), &v))
	return v
}

func path(parts ...any) string {
	var sb strings.Builder
	sb.WriteString("/api/v1")
	for _, p := range parts {
		sb.WriteByte('/')
		switch v := p.(type) {
		case int64:
			sb.WriteString(strconv.FormatInt(v, 10))
		case string:
			sb.WriteString(v)
		}
	}
	return sb.String()
}
