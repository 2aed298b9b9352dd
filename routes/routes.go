package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"go-storefront/controllers"
	"go-storefront/middleware"
	"go-storefront/utils"
)

// Controllers bundles every handler set the router wires
type Controllers struct {
	Users    *controllers.UserController
	Products *controllers.ProductController
	Orders   *controllers.OrderController
	Uploads  *controllers.UploadController
	Health   *controllers.HealthController
}

// Options holds the optional extra endpoints
type Options struct {
	Metrics   http.Handler // served at /metrics when set
	UploadDir string       // served at UploadURL when set
	UploadURL string
}

// RegisterRoutes sets up all the routes for the application
func RegisterRoutes(router *mux.Router, c Controllers, opts Options) {
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondError(w, "Not found", http.StatusNotFound)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	router.HandleFunc("/health", c.Health.Health).Methods("GET")
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics).Methods("GET")
	}
	if opts.UploadDir != "" && opts.UploadURL != "" {
		prefix := opts.UploadURL + "/"
		router.PathPrefix(prefix).Handler(http.StripPrefix(prefix, http.FileServer(http.Dir(opts.UploadDir)))).Methods("GET")
	}

	api := router.PathPrefix("/api").Subrouter()

	// Public routes
	api.HandleFunc("/auth/register", c.Users.Register).Methods("POST")
	api.HandleFunc("/auth/login", c.Users.Login).Methods("POST")
	api.HandleFunc("/auth/check-admin", c.Users.CheckAdmin).Methods("GET")
	api.HandleFunc("/products", c.Products.GetProducts).Methods("GET")
	api.HandleFunc("/products/{id}", c.Products.GetProductByID).Methods("GET")

	// Protected routes
	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.AuthMiddleware)
	protected.HandleFunc("/auth/profile", c.Users.GetProfile).Methods("GET")
	protected.HandleFunc("/auth/password", c.Users.ChangePassword).Methods("PUT")
	protected.HandleFunc("/orders", c.Orders.CreateOrder).Methods("POST")
	protected.HandleFunc("/orders", c.Orders.GetOrders).Methods("GET")
	protected.HandleFunc("/orders/{id}", c.Orders.GetOrderByID).Methods("GET")

	// Admin routes
	admin := api.NewRoute().Subrouter()
	admin.Use(middleware.AuthMiddleware)
	admin.Use(middleware.AdminMiddleware)
	admin.HandleFunc("/products", c.Products.CreateProduct).Methods("POST")
	admin.HandleFunc("/products/reorder", c.Products.ReorderProducts).Methods("PUT")
	admin.HandleFunc("/products/{id}", c.Products.UpdateProduct).Methods("PUT")
	admin.HandleFunc("/products/{id}", c.Products.DeleteProduct).Methods("DELETE")
	admin.HandleFunc("/orders/{id}/pay", c.Orders.MarkOrderPaid).Methods("PUT")
	admin.HandleFunc("/orders/{id}/deliver", c.Orders.MarkOrderDelivered).Methods("PUT")
	admin.HandleFunc("/upload", c.Uploads.Upload).Methods("POST")

	api.HandleFunc("/upload", c.Uploads.MethodNotAllowed)
}
