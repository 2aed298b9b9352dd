package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"go-storefront/config"
	"go-storefront/controllers"
	"go-storefront/logging"
	"go-storefront/models"
	"go-storefront/routes"
	"go-storefront/storage"
	"go-storefront/utils"
)

type fakeMailer struct {
	mu       sync.Mutex
	subjects []string
}

func (m *fakeMailer) Send(_, _, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	return nil
}

func (m *fakeMailer) Subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.subjects...)
}

type fakeGateway struct {
	err   error
	calls int
}

func (g *fakeGateway) CreatePayment(_ context.Context, amount float64, userID string) (*models.Payment, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &models.Payment{PaymentMethod: "card", Amount: amount, Currency: "inr", Status: "requires_payment_method", IntentID: "pi_test", ClientSecret: "pi_test_secret"}, nil
}

type memBlobs struct {
	saved map[string][]byte
	err   error
}

func (b *memBlobs) Save(_ context.Context, data []byte, filename string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.saved[filename] = data
	return "/uploads/" + filename, nil
}

type testApp struct {
	router   *mux.Router
	dataDir  string
	products *storage.FileCollection[models.Product, *models.Product]
	users    *storage.FileCollection[models.User, *models.User]
	orders   *storage.FileCollection[models.Order, *models.Order]
	mailer   *fakeMailer
	gateway  *fakeGateway
	blobs    *memBlobs
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	dir := t.TempDir()

	users, err := storage.NewFileCollection[models.User](filepath.Join(dir, "users.json"), "user")
	require.NoError(t, err)
	users.Unique("email")
	products, err := storage.NewFileCollection[models.Product](filepath.Join(dir, "products.json"), "product")
	require.NoError(t, err)
	orders, err := storage.NewFileCollection[models.Order](filepath.Join(dir, "orders.json"), "order")
	require.NoError(t, err)

	logger := logging.Discard()
	fallbacks := map[string]controllers.PrimaryReporter{
		"users":    storage.NewFallback[models.User]("users", nil, users, nil, logger, nil),
		"products": storage.NewFallback[models.Product]("products", nil, products, nil, logger, nil),
		"orders":   storage.NewFallback[models.Order]("orders", nil, orders, nil, logger, nil),
	}
	stores := storage.Stores{Users: users, Products: products, Orders: orders}

	app := &testApp{
		router:   mux.NewRouter(),
		dataDir:  dir,
		products: products,
		users:    users,
		orders:   orders,
		mailer:   &fakeMailer{},
		gateway:  &fakeGateway{},
		blobs:    &memBlobs{saved: map[string][]byte{}},
	}
	emailService := utils.NewEmailServiceWith(app.mailer, logger)
	auth := config.AuthConfig{AdminEmail: "admin@example.com", AdminPassword: "admin-pass", AdminName: "Admin User"}

	routes.RegisterRoutes(app.router, routes.Controllers{
		Users:    controllers.NewUserController(stores.Users, emailService, auth, logger),
		Products: controllers.NewProductController(stores.Products, logger),
		Orders:   controllers.NewOrderController(stores, emailService, app.gateway, nil, logger),
		Uploads:  controllers.NewUploadController(app.blobs, logger),
		Health:   controllers.NewHealthController(fallbacks),
	}, routes.Options{})
	return app
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func token(t *testing.T, userID string, isAdmin bool) string {
	t.Helper()
	tok, err := utils.GenerateJWT(userID, isAdmin)
	require.NoError(t, err)
	return tok
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, rr)["error"]
}

func (a *testApp) seedProduct(t *testing.T, p models.Product) *models.Product {
	t.Helper()
	created, err := a.products.Create(context.Background(), p)
	require.NoError(t, err)
	return created
}

var errGateway = errors.New("card declined")
