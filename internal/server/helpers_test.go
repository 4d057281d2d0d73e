package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"stashkeeper/internal/config"
	"stashkeeper/internal/evidence"
	"stashkeeper/internal/middleware"
	"stashkeeper/internal/models"
	"stashkeeper/internal/priority"
	"stashkeeper/internal/rowstore"
	"stashkeeper/internal/service"
	"stashkeeper/internal/session"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) (*Server, *fiber.App, *evidence.MemoryStore) {
	t.Helper()
	middleware.InitAuth(testSecret)

	catalog := models.DefaultCatalog()
	store := rowstore.NewAdapter(rowstore.NewMemoryTable(), rowstore.RetryPolicy{MaxAttempts: 1})
	directory := priority.NewDirectory(priority.NewFileBlobStore(t.TempDir()+"/priority.json"), 1)
	requests := service.NewRequestService(store, directory, catalog, nil, service.Options{})
	sessions := session.NewCoordinator(catalog, time.Minute)
	evidenceStore := evidence.NewMemoryStore()

	s := &Server{
		config:    &config.Config{JWTSecret: testSecret},
		requests:  requests,
		sessions:  sessions,
		directory: directory,
		evidence:  evidenceStore,
		catalog:   catalog,
	}

	app := fiber.New()
	s.SetupRoutes(app)
	return s, app, evidenceStore
}

func token(t *testing.T, sub string, roles ...string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":     sub,
		"display": sub,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	if len(roles) > 0 {
		anyRoles := make([]interface{}, len(roles))
		for i, r := range roles {
			anyRoles[i] = r
		}
		claims["roles"] = anyRoles
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, app *fiber.App, method, path, bearer string, body any) *http.Response {
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
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := app.Test(req, 10000)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func doMultipart(t *testing.T, app *fiber.App, path, bearer string, fields map[string]string, fileField, filename string, file []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	fw, err := w.CreateFormFile(fileField, filename)
	require.NoError(t, err)
	_, err = fw.Write(file)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+bearer)
	resp, err := app.Test(req, 10000)
	require.NoError(t, err)
	return resp
}
