package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dinemate-pos/api/internal/config"
	"github.com/dinemate-pos/api/internal/database"
	"github.com/dinemate-pos/api/internal/handler"
	mw "github.com/dinemate-pos/api/internal/middleware"
	"github.com/dinemate-pos/api/internal/printer"
	"github.com/dinemate-pos/api/internal/service"
	"github.com/dinemate-pos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and outlet scoping middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, spooler *printer.Spooler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "https://pos.dinemate.in", "https://kds.dinemate.in"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/outlets/{oid}/events", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Services share one effects bundle and one store constructor.
	effects := &service.Effects{Hub: hub, Printer: spooler}
	newStore := func(db database.DBTX) service.Store {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, newStore, effects)
	ticketService := service.NewTicketService(pool, newStore, effects)
	billingService := service.NewBillingService(pool, newStore, effects)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/outlets/{oid}", func(r chi.Router) {
			r.Use(mw.RequireOutlet)

			orderHandler := handler.NewOrderHandler(orderService, billingService, queries, queries)
			ticketHandler := handler.NewTicketHandler(ticketService, queries)
			invoiceHandler := handler.NewInvoiceHandler(billingService, queries, queries)

			r.Route("/orders", func(r chi.Router) {
				orderHandler.RegisterRoutes(r)
				ticketHandler.RegisterOrderRoutes(r)
				invoiceHandler.RegisterOrderRoutes(r)
			})
			r.Route("/tickets", ticketHandler.RegisterRoutes)
			r.Route("/invoices", invoiceHandler.RegisterRoutes)
		})
	})

	return r
}
