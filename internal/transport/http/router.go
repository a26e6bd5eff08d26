package http

import (
	"log/slog"
	"net/http"

	"github.com/carlosjeferson/e-commerce/internal/domain"
)

// Deps are the services behind the public API.
type Deps struct {
	Catalog  CatalogService
	Accounts AccountService
	Checkout CheckoutHandler
	Orders   OrderQueries
	Verifier TokenVerifier

	// Metrics and MetricsHandler are optional.
	Metrics        RequestObserver
	MetricsHandler http.Handler

	Logger      *slog.Logger
	CORSOrigins []string
}

// NewRouter registers the API routes and wraps them with the shared middleware.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()
	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, Instrument(name, d.Metrics, h))
	}
	admin := func(h http.Handler) http.Handler {
		return RequireRole(domain.RoleAdmin, h)
	}

	mux.HandleFunc("GET /health", HealthHandler)
	if d.MetricsHandler != nil {
		mux.Handle("GET /metrics", d.MetricsHandler)
	}

	route("POST /api/auth/register", "register", HandleRegister(d.Accounts))
	route("POST /api/auth/login", "login", HandleLogin(d.Accounts))

	route("GET /api/products", "list_products", HandleListProducts(d.Catalog))
	route("GET /api/products/{id}", "get_product", HandleGetProduct(d.Catalog))
	route("POST /api/products", "create_product", admin(HandleCreateProduct(d.Catalog)))
	route("PUT /api/products/{id}", "update_product", admin(HandleUpdateProduct(d.Catalog)))
	route("DELETE /api/products/{id}", "delete_product", admin(HandleDeleteProduct(d.Catalog)))

	route("POST /api/checkout", "checkout", RequireAuth(HandleCheckout(d.Checkout)))
	route("GET /api/orders", "list_orders", RequireAuth(HandleListOrders(d.Orders)))
	route("GET /api/orders/{id}", "get_order", RequireAuth(HandleGetOrder(d.Orders)))

	mux.Handle("/", NotFoundHandler())

	var h http.Handler = Authenticate(d.Verifier, mux)
	h = CORS(d.CORSOrigins, h)
	h = RequestLogger(h, d.Logger)
	return RequestID(h)
}

// HealthHandler reports basic liveness for the service.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// NotFoundHandler returns a JSON 404 response for unknown routes.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	})
}
