package controllers_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-storefront/storage"
	"go-storefront/utils"
)

func register(t *testing.T, app *testApp, name, email, password string) {
	t.Helper()
	rr := app.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func login(t *testing.T, app *testApp, email, password string) (string, map[string]interface{}) {
	t.Helper()
	rr := app.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode[map[string]interface{}](t, rr)
	return body["token"].(string), body["user"].(map[string]interface{})
}

func TestRegisterAndLogin(t *testing.T) {
	app := newTestApp(t)
	register(t, app, "Asha", "Asha@Example.com", "secret1")

	stored, err := app.users.FindOne(context.Background(), storage.Query{"email": "asha@example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.Password)
	assert.True(t, utils.CheckPassword(stored.Password, "secret1"))
	assert.False(t, stored.IsAdmin)

	tok, user := login(t, app, "asha@example.com", "secret1")
	assert.Equal(t, stored.ID, user["id"])
	assert.Equal(t, "Asha", user["name"])
	assert.Equal(t, false, user["isAdmin"])
	_, hasPassword := user["password"]
	assert.False(t, hasPassword)

	claims, err := utils.ParseJWT(tok)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, claims.UserID)

	assert.Eventually(t, func() bool { return len(app.mailer.Subjects()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestRegisterRejects(t *testing.T) {
	app := newTestApp(t)
	register(t, app, "Asha", "asha@example.com", "secret1")

	rr := app.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Other", "email": "ASHA@example.com", "password": "x",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "User already exists", errorMessage(t, rr))

	rr = app.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "b@example.com"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegisterAdminEmailGetsAdmin(t *testing.T) {
	app := newTestApp(t)
	register(t, app, "Boss", "admin@example.com", "whatever")

	_, user := login(t, app, "admin@example.com", "whatever")
	assert.Equal(t, true, user["isAdmin"])
}

func TestLoginInvalidCredentials(t *testing.T) {
	app := newTestApp(t)
	register(t, app, "Asha", "asha@example.com", "secret1")

	for _, creds := range []map[string]string{
		{"email": "asha@example.com", "password": "wrong"},
		{"email": "nobody@example.com", "password": "secret1"},
	} {
		rr := app.do(t, http.MethodPost, "/api/auth/login", "", creds)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid credentials", errorMessage(t, rr))
	}
}

func TestCheckAdminBootstrapsOnce(t *testing.T) {
	app := newTestApp(t)

	for i := 0; i < 2; i++ {
		rr := app.do(t, http.MethodGet, "/api/auth/check-admin", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		body := decode[map[string]interface{}](t, rr)
		assert.Equal(t, true, body["exists"])
		assert.Equal(t, "admin@example.com", body["adminEmail"])
	}

	n, err := app.users.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, user := login(t, app, "admin@example.com", "admin-pass")
	assert.Equal(t, true, user["isAdmin"])
}

func TestProfileAndPasswordChange(t *testing.T) {
	app := newTestApp(t)
	register(t, app, "Asha", "asha@example.com", "secret1")
	tok, _ := login(t, app, "asha@example.com", "secret1")

	rr := app.do(t, http.MethodGet, "/api/auth/profile", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	profile := decode[map[string]interface{}](t, rr)
	assert.Equal(t, "asha@example.com", profile["email"])
	_, hasPassword := profile["password"]
	assert.False(t, hasPassword)

	rr = app.do(t, http.MethodGet, "/api/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = app.do(t, http.MethodPut, "/api/auth/password", tok, map[string]string{"currentPassword": "wrong", "newPassword": "longenough"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = app.do(t, http.MethodPut, "/api/auth/password", tok, map[string]string{"currentPassword": "secret1", "newPassword": "short"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = app.do(t, http.MethodPut, "/api/auth/password", tok, map[string]string{"currentPassword": "secret1", "newPassword": "longenough"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	login(t, app, "asha@example.com", "longenough")
}
