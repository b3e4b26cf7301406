package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fixmystuff/internal/cache"
	"fixmystuff/internal/config"
	"fixmystuff/internal/solution"
	"fixmystuff/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testJWTSecret     = "server-test-secret-at-least-32-characters"
	testPublicBaseURL = "https://fixmystuff.io"
)

// newTestServer wires a full Server over a temp sqlite database and miniredis.
func newTestServer(t *testing.T, mutate ...func(*config.Config)) (*Server, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() { _ = cache.Close() })

	cfg := &config.Config{
		JWTSecret:            testJWTSecret,
		Port:                 "0",
		Env:                  "test",
		AllowedOrigins:       "http://localhost:5173",
		ImageUploadDir:       t.TempDir(),
		ImageMaxUploadSizeMB: 5,
		PublicBaseURL:        testPublicBaseURL,
		SolutionProvider:     solution.ProviderTemplate,
	}
	for _, m := range mutate {
		m(cfg)
	}

	s, err := NewServerWithDeps(cfg, testutil.NewSQLiteDB(t), rdb)
	require.NoError(t, err)
	return s, mr
}

type apiResponse struct {
	Status int
	Header http.Header
	Raw    []byte
	Body   map[string]any
}

func (s *Server) do(t *testing.T, req *http.Request, token string) apiResponse {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := apiResponse{Status: resp.StatusCode, Header: resp.Header, Raw: raw}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out.Body), string(raw))
	}
	return out
}

func (s *Server) doJSON(t *testing.T, method, path, token string, body any) apiResponse {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.do(t, req, token)
}

func (s *Server) doMultipart(t *testing.T, path, token string, fields map[string]string, fileField, filename string, content []byte) apiResponse {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return s.do(t, req, token)
}

// signup creates an account and returns its access token and user id.
func (s *Server) signup(t *testing.T, email string) (string, uint) {
	t.Helper()
	resp := s.doJSON(t, http.MethodPost, "/api/auth/signup", "", fiber.Map{
		"email":    email,
		"password": "wrench123",
	})
	require.Equal(t, http.StatusCreated, resp.Status, string(resp.Raw))
	user := resp.Body["user"].(map[string]any)
	return resp.Body["token"].(string), uint(user["id"].(float64))
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	live := s.doJSON(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, live.Status)
	assert.Equal(t, "up", live.Body["status"])

	for _, path := range []string{"/health/ready", "/health", "/api/"} {
		ready := s.doJSON(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, ready.Status, path)
		assert.Equal(t, "healthy", ready.Body["status"], path)
		assert.Equal(t, map[string]any{"database": "healthy", "redis": "healthy"}, ready.Body["checks"], path)
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	s, _ := newTestServer(t)

	resp := s.doJSON(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Contains(t, resp.Body["error"], "Cannot GET")
}

func TestGetFeatureFlags(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.FeatureFlags = "gemini_solutions=users:1,dark_launch=on"
	})

	anon := s.doJSON(t, http.MethodGet, "/api/features", "", nil)
	require.Equal(t, http.StatusOK, anon.Status)
	assert.Equal(t, map[string]any{"gemini_solutions": false, "dark_launch": true}, anon.Body["evaluated"])

	token, userID := s.signup(t, "first@example.com")
	require.EqualValues(t, 1, userID)
	signedIn := s.doJSON(t, http.MethodGet, "/api/features", token, nil)
	assert.Equal(t, map[string]any{"gemini_solutions": true, "dark_launch": true}, signedIn.Body["evaluated"])
	assert.Equal(t, "users:1", signedIn.Body["raw"].(map[string]any)["gemini_solutions"])
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	s.doJSON(t, http.MethodGet, "/health/live", "", nil)

	resp := s.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil), "")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.True(t, strings.Contains(string(resp.Raw), "http_requests_total"))
}

func TestSwaggerDocument(t *testing.T) {
	s, _ := newTestServer(t)

	resp := s.do(t, httptest.NewRequest(http.MethodGet, "/api/swagger/doc.json", nil), "")
	require.Equal(t, http.StatusOK, resp.Status, string(resp.Raw))
	assert.Equal(t, "2.0", resp.Body["swagger"])

	info := resp.Body["info"].(map[string]any)
	assert.Equal(t, "fixmystuff API", info["title"])

	paths := resp.Body["paths"].(map[string]any)
	for _, p := range []string{"/api/auth/signup", "/api/users/me", "/api/fixes", "/functions/v1/generate-solution"} {
		assert.Contains(t, paths, p)
	}
}
