package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bhavik262/pizza-delivery/internal/admin"
	"github.com/bhavik262/pizza-delivery/internal/auth"
	"github.com/bhavik262/pizza-delivery/internal/catalog"
	"github.com/bhavik262/pizza-delivery/internal/inventory"
	"github.com/bhavik262/pizza-delivery/internal/order"
	"github.com/bhavik262/pizza-delivery/internal/pricing"
	"github.com/bhavik262/pizza-delivery/internal/user"
)

const requestTimeout = 30 * time.Second

// Guards are the access middlewares handlers attach to protected routes.
type Guards struct {
	Authenticated func(http.Handler) http.Handler
	Admin         func(http.Handler) http.Handler
}

type RouterDeps struct {
	Users       user.Service
	Catalog     catalog.Service
	Pricing     *pricing.Engine
	Orders      order.Service
	Inventory   inventory.Service
	Dashboard   admin.Service
	Hub         Upgrader
	FrontendURL string
	Production  bool
	// TrustProxy takes the client address from forwarding headers.
	TrustProxy bool
}

func NewRouter(d RouterDeps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if d.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CORS(d.FrontendURL))

	b := newBase(d.Production)
	g := Guards{
		Authenticated: b.Authenticate(d.Users),
		Admin:         b.RequireRole(auth.RoleAdmin),
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondOK(w, http.StatusOK, "OK", map[string]string{"status": "healthy"})
	})
	r.Handle("/ws", NewWSHandler(d.Users, d.Hub, d.Production))

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(requestTimeout))
		api.Route("/auth", func(sub chi.Router) {
			NewUserHandler(d.Users, d.Production).RegisterRoutes(sub, g)
		})
		api.Route("/pizza", func(sub chi.Router) {
			NewPizzaHandler(d.Catalog, d.Pricing, d.Production).RegisterRoutes(sub, g)
		})
		api.Route("/orders", func(sub chi.Router) {
			NewOrderHandler(d.Orders, d.Production).RegisterRoutes(sub, g)
		})
		api.Route("/admin", func(sub chi.Router) {
			NewAdminHandler(d.Dashboard, d.Orders, d.Production).RegisterRoutes(sub, g)
		})
		api.Route("/inventory", func(sub chi.Router) {
			NewInventoryHandler(d.Inventory, d.Production).RegisterRoutes(sub, g)
		})
	})

	return r
}
