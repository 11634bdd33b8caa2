package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vestra/internal/handlers"
	"vestra/internal/middleware"
	"vestra/internal/models"
	"vestra/internal/repositories"
	"vestra/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fakeMailer records the last confirmation code instead of sending mail,
// and can be told to fail delivery.
type fakeMailer struct {
	mu       sync.Mutex
	lastTo   string
	lastCode string
	fail     bool
}

func (m *fakeMailer) SendConfirmationCode(to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("delivery failed")
	}
	m.lastTo = to
	m.lastCode = code
	return nil
}

func (m *fakeMailer) last() (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTo, m.lastCode
}

var dbCounter int64

type testEnv struct {
	app   *fiber.App
	db    *gorm.DB
	mail  *fakeMailer
	store *repositories.MemoryPendingStore
}

// setupEnv builds a Fiber app over a fresh in-memory SQLite database with
// real GORM repositories, a recording mailer, and no event broker.
func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	// A uniquely named shared-cache DB so every pooled connection sees the
	// same tables but tests never see each other's rows.
	dsn := fmt.Sprintf("file:handlers_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.ConfirmationCode{}, &models.Session{}))

	userRepo := repositories.NewGORMUserRepository(db)
	codeRepo := repositories.NewGORMConfirmationCodeRepository(db)
	sessionRepo := repositories.NewGORMSessionRepository(db)
	store := repositories.NewMemoryPendingStore()
	mail := &fakeMailer{}

	authService := services.NewAuthService(userRepo, codeRepo, sessionRepo, store, mail, nil, bcrypt.MinCost)
	authHandler := handlers.NewAuthHandler(authService)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1)
	protected := apiV1.Group("", middleware.SessionRequired(authService))
	authHandler.RegisterProtectedRoutes(protected)

	return &testEnv{app: app, db: db, mail: mail, store: store}
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	jsonBody, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func getAuthed(t *testing.T, app *fiber.App, method, path, token string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	var parsed map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &parsed), "body: %s", raw)
	}
	return parsed
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

func TestRegisterConfirmLoginFlow(t *testing.T) {
	env := setupEnv(t)

	// Register
	resp, body := postJSON(t, env.app, "/api/v1/auth/register", map[string]string{
		"name":                  "Alice",
		"email":                 "a@b.com",
		"password":              "password123",
		"password_confirmation": "password123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["message"], "Confirmation email sent")

	to, code := env.mail.last()
	assert.Equal(t, "a@b.com", to)
	assert.Regexp(t, `^[0-9]{6}$`, code)

	// Confirm within the window
	resp, body = postJSON(t, env.app, "/api/v1/auth/confirm", map[string]string{
		"email":             "a@b.com",
		"confirmation_code": code,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "a@b.com", user["email"])
	assert.Equal(t, "Alice", user["name"])
	assert.NotEmpty(t, user["id"])
	// Never the password hash.
	_, hasPassword := user["password"]
	assert.False(t, hasPassword)

	// Login
	resp, body = postJSON(t, env.app, "/api/v1/auth/login", map[string]string{
		"email":    "a@b.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	token := body["session_token"].(string)
	assert.Len(t, token, 64)
	assert.NotEqual(t, code, token)

	// The token works as a bearer credential.
	resp, body = getAuthed(t, env.app, http.MethodGet, "/api/v1/auth/me", token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	me := body["user"].(map[string]interface{})
	assert.Equal(t, "a@b.com", me["email"])

	// Logout invalidates it.
	resp, _ = getAuthed(t, env.app, http.MethodPost, "/api/v1/auth/logout", token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = getAuthed(t, env.app, http.MethodGet, "/api/v1/auth/me", token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// A second registration for the now-existing email conflicts.
	resp, _ = postJSON(t, env.app, "/api/v1/auth/register", map[string]string{
		"email":                 "A@B.com",
		"password":              "password123",
		"password_confirmation": "password123",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRegisterValidation(t *testing.T) {
	env := setupEnv(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"MissingEmail", map[string]string{"password": "password123", "password_confirmation": "password123"}},
		{"MalformedEmail", map[string]string{"email": "not-an-email", "password": "password123", "password_confirmation": "password123"}},
		{"MissingPassword", map[string]string{"email": "a@b.com"}},
		{"ShortPassword", map[string]string{"email": "a@b.com", "password": "short12", "password_confirmation": "short12"}},
		{"MismatchedConfirmation", map[string]string{"email": "a@b.com", "password": "password123", "password_confirmation": "password456"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := postJSON(t, env.app, "/api/v1/auth/register", tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "Validation failed", body["message"])
		})
	}
}

func TestConfirmWrongCode(t *testing.T) {
	env := setupEnv(t)

	_, _ = postJSON(t, env.app, "/api/v1/auth/register", map[string]string{
		"email":                 "a@b.com",
		"password":              "password123",
		"password_confirmation": "password123",
	})
	_, code := env.mail.last()

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	// Wrong code for a registered email and any code for an unknown email
	// produce the same response.
	resp, body := postJSON(t, env.app, "/api/v1/auth/confirm", map[string]string{
		"email":             "a@b.com",
		"confirmation_code": wrong,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp2, body2 := postJSON(t, env.app, "/api/v1/auth/confirm", map[string]string{
		"email":             "never-registered@b.com",
		"confirmation_code": "123456",
	})
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
	assert.Equal(t, body["message"], body2["message"])
}

func TestConfirmExpiredCode(t *testing.T) {
	env := setupEnv(t)

	_, _ = postJSON(t, env.app, "/api/v1/auth/register", map[string]string{
		"email":                 "a@b.com",
		"password":              "password123",
		"password_confirmation": "password123",
	})
	_, code := env.mail.last()

	// Age the code past the 5-minute window.
	err := env.db.Exec("UPDATE confirmation_codes SET created_at = ? WHERE email = ?",
		time.Now().Add(-10*time.Minute), "a@b.com").Error
	require.NoError(t, err)

	resp, body := postJSON(t, env.app, "/api/v1/auth/confirm", map[string]string{
		"email":             "a@b.com",
		"confirmation_code": code,
	})
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	assert.Contains(t, body["message"], "expired")

	// The expired row is gone: resubmitting immediately is now merely an
	// invalid code, not another expiry.
	resp, _ = postJSON(t, env.app, "/api/v1/auth/confirm", map[string]string{
		"email":             "a@b.com",
		"confirmation_code": code,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var count int64
	env.db.Model(&models.ConfirmationCode{}).Where("email = ?", "a@b.com").Count(&count)
	assert.Zero(t, count)
}

func TestConfirmAfterRestart(t *testing.T) {
	env := setupEnv(t)

	_, _ = postJSON(t, env.app, "/api/v1/auth/register", map[string]string{
		"email":                 "a@b.com",
		"password":              "password123",
		"password_confirmation": "password123",
	})
	_, code := env.mail.last()

	// Pending registrations live in process memory only; dropping the
	// entry stands in for a restart between register and confirm.
	env.store.Delete("a@b.com")

	resp, body := postJSON(t, env.app, "/api/v1/auth/confirm", map[string]string{
		"email":             "a@b.com",
		"confirmation_code": code,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["message"], "Start the registration process again")
}

func TestConfirmTwice(t *testing.T) {
	env := setupEnv(t)

	_, _ = postJSON(t, env.app, "/api/v1/auth/register", map[string]string{
		"email":                 "a@b.com",
		"password":              "password123",
		"password_confirmation": "password123",
	})
	_, code := env.mail.last()

	resp, _ := postJSON(t, env.app, "/api/v1/auth/confirm", map[string]string{
		"email":             "a@b.com",
		"confirmation_code": code,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Second confirmation never creates a second account.
	resp, _ = postJSON(t, env.app, "/api/v1/auth/confirm", map[string]string{
		"email":             "a@b.com",
		"confirmation_code": code,
	})
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusConflict}, resp.StatusCode)

	var count int64
	env.db.Model(&models.User{}).Where("email = ?", "a@b.com").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestRegisterDeliveryFailure(t *testing.T) {
	env := setupEnv(t)
	env.mail.fail = true

	resp, body := postJSON(t, env.app, "/api/v1/auth/register", map[string]string{
		"email":                 "a@b.com",
		"password":              "password123",
		"password_confirmation": "password123",
	})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["message"], "Failed to send confirmation email")

	// No confirmable state remains.
	var count int64
	env.db.Model(&models.ConfirmationCode{}).Where("email = ?", "a@b.com").Count(&count)
	assert.Zero(t, count)
	_, ok := env.store.Get("a@b.com")
	assert.False(t, ok)
}

func TestLoginErrors(t *testing.T) {
	env := setupEnv(t)

	// Seed a confirmed user directly.
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	user := &models.User{ID: "user-1", Name: "Alice", Email: "a@b.com", Password: string(hash)}
	require.NoError(t, env.db.Create(user).Error)

	t.Run("WrongPassword", func(t *testing.T) {
		resp, body := postJSON(t, env.app, "/api/v1/auth/login", map[string]string{
			"email":    "a@b.com",
			"password": "wrongpassword",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		// Unknown email reads exactly the same.
		resp2, body2 := postJSON(t, env.app, "/api/v1/auth/login", map[string]string{
			"email":    "nobody@b.com",
			"password": "password123",
		})
		assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
		assert.Equal(t, body["message"], body2["message"])
	})

	t.Run("DisabledAccount", func(t *testing.T) {
		require.NoError(t, env.db.Delete(user).Error) // soft delete

		resp, body := postJSON(t, env.app, "/api/v1/auth/login", map[string]string{
			"email":    "a@b.com",
			"password": "password123",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "Account disabled", body["message"])
	})
}

func TestSessionMiddleware(t *testing.T) {
	env := setupEnv(t)

	t.Run("MissingHeader", func(t *testing.T) {
		resp, _ := getAuthed(t, env.app, http.MethodGet, "/api/v1/auth/me", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("UnknownToken", func(t *testing.T) {
		resp, _ := getAuthed(t, env.app, http.MethodGet, "/api/v1/auth/me", "deadbeef")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("ExpiredSession", func(t *testing.T) {
		hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
		require.NoError(t, env.db.Create(&models.User{ID: "user-2", Email: "c@d.com", Password: string(hash)}).Error)
		require.NoError(t, env.db.Create(&models.Session{
			ID: "sess-1", UserID: "user-2", Token: "expiredtoken", ExpiresAt: time.Now().Add(-time.Hour),
		}).Error)

		resp, _ := getAuthed(t, env.app, http.MethodGet, "/api/v1/auth/me", "expiredtoken")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		// The expired row was reaped lazily.
		var count int64
		env.db.Model(&models.Session{}).Where("token = ?", "expiredtoken").Count(&count)
		assert.Zero(t, count)
	})
}
