package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ruralpay/escrow/internal/metrics"
	mW "github.com/ruralpay/escrow/internal/middleware"
	"github.com/ruralpay/escrow/internal/services"
)

// NewRouter mounts the escrow API under /api/v1. Everything but /health and
// /metrics requires a bearer token.
func NewRouter(engine *services.Engine, auth *mW.Authenticator, m *metrics.Metrics) chi.Router {
	accounts := NewAccountHandler(engine)
	offers := NewOfferHandler(engine)
	arbitration := NewArbitrationHandler(engine)
	admin := NewAdminHandler(engine)
	qr := NewQRHandler(services.NewQRService(engine))
	sessions := NewSessionHandler(engine, auth)

	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(m.Middleware)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	r.Handle("/metrics", m.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Post("/sessions/logout", sessions.Logout)

		r.Post("/users", accounts.UpsertUser)
		r.Get("/users/{account}", accounts.GetUser)
		r.Get("/users/{account}/stats", accounts.GetStats)
		r.Get("/stats", accounts.RankStats)

		r.Get("/balances/{account}", accounts.GetBalance)
		r.Post("/withdrawals", accounts.Withdraw)
		r.Get("/deposits/instructions", qr.DepositInstructions)
		r.Post("/custody/deposits", accounts.ReceiveDeposit)

		r.Get("/offers", offers.ListOffers)
		r.Get("/offers/{id}", offers.GetOffer)
		r.Post("/offers/sell", offers.CreateSellOffer)
		r.Delete("/offers/sell/{id}", offers.CancelSellOffer)
		r.Get("/offers/sell/{id}/children", offers.Children)
		r.Post("/offers/buy", offers.CreateBuyOffer)
		r.Post("/offers/buy/{id}/accept", offers.Accept())
		r.Post("/offers/buy/{id}/reject", offers.Reject())
		r.Post("/offers/buy/{id}/cancel", offers.Cancel())
		r.Post("/offers/buy/{id}/pay", offers.Pay())
		r.Post("/offers/buy/{id}/confirm", offers.Confirm())
		r.Post("/offers/buy/{id}/arbitration", offers.InitiateArbitration)

		r.Get("/arbitration", arbitration.ListCases)
		r.Get("/arbitration/{id}", arbitration.GetCase)
		r.Post("/arbitration/{id}/assign", arbitration.Assign)
		r.Post("/arbitration/{id}/resolve-seller", arbitration.ResolveForSeller)
		r.Post("/arbitration/{id}/resolve-buyer", arbitration.ResolveForBuyer)
		r.Post("/arbitration/{id}/contact", arbitration.RecordContact)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/tokens", sessions.IssueToken)
			r.Post("/arbiters/{account}", admin.AddArbiter)
			r.Delete("/arbiters/{account}", admin.RemoveArbiter)
			r.Get("/params", admin.ListParams)
			r.Put("/params/{key}", admin.SetParam)
			r.Post("/prices", admin.PublishPrice)
			r.Post("/reset", admin.Reset)
		})
	})

	return r
}
