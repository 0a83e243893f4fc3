package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"whisperchain/internal/config"
	"whisperchain/internal/crypto"
	"whisperchain/internal/database"
	"whisperchain/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

type testServer struct {
	app    *fiber.App
	server *Server
	db     *gorm.DB
}

func setupTestServer(t *testing.T, opts ...func(*config.Config)) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		Env:                   "test",
		JWTSecret:             "test_secret",
		RoundLengthSeconds:    120,
		TokenLifetimeHours:    24,
		TokenEncryptionSecret: "test-token-secret",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	srv, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)

	app := fiber.New()
	srv.SetupMiddleware(app)
	srv.SetupRoutes(app)

	return &testServer{app: app, server: srv, db: db}
}

// createApprovedUser inserts an already-approved account and returns it with
// a valid bearer token. Registration flow tests create their own users.
func (ts *testServer) createApprovedUser(t *testing.T, username string, role models.UserRole) (*models.User, string) {
	t.Helper()

	publicKey, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	user := &models.User{
		Username:   username,
		Role:       role,
		IsApproved: true,
		Status:     models.StatusApproved,
		PublicKey:  publicKey,
	}
	require.NoError(t, ts.db.Create(user).Error)

	token, err := ts.server.generateToken(user.ID, user.Username, user.Role)
	require.NoError(t, err)
	return user, token
}

func (ts *testServer) request(t *testing.T, method, path, bearer string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func decodeJSONList(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}
