package handlers

import (
	"net/http"
	"strings"

	"lending/internal/config"
	"lending/internal/db"
	"lending/internal/middleware"
	"lending/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// Deps are the collaborators a Handler serves requests with.
type Deps struct {
	TxRunner  db.TxRunner
	Admins    AdminStore
	Audit     AuditStore
	Borrowers BorrowerService
	Loans     LoanService
	Payments  PaymentService
	Capital   CapitalService
	Reports   ReportService
	Hub       *websocket.Hub
}

type Handler struct {
	cfg       config.Config
	logger    logrus.FieldLogger
	txRunner  db.TxRunner
	admins    AdminStore
	audit     AuditStore
	borrowers BorrowerService
	loans     LoanService
	payments  PaymentService
	capital   CapitalService
	reports   ReportService
	hub       *websocket.Hub
}

func New(cfg config.Config, logger logrus.FieldLogger, deps Deps) *Handler {
	return &Handler{
		cfg:       cfg,
		logger:    logger,
		txRunner:  deps.TxRunner,
		admins:    deps.Admins,
		audit:     deps.Audit,
		borrowers: deps.Borrowers,
		loans:     deps.Loans,
		payments:  deps.Payments,
		capital:   deps.Capital,
		reports:   deps.Reports,
		hub:       deps.Hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestLogger(h.logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(h.cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/me", h.Me)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Post("/change-password", h.ChangePassword)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Use(middleware.RequireAdmin(h.admins, ""))

		r.Get("/ws/capital", h.WSCapital)

		r.Route("/admins", func(r chi.Router) {
			r.Use(middleware.RequireSuper(h.admins))
			r.Get("/", h.ListAdmins)
			r.Post("/", h.CreateAdmin)
			r.Post("/{id}/roles", h.GrantRole)
		})

		r.Route("/borrowers", func(r chi.Router) {
			r.Get("/", h.ListBorrowers)
			r.Post("/", h.CreateBorrower)
			r.Get("/list", h.BorrowerOptions)
			r.Get("/{id}", h.GetBorrower)
			r.Put("/{id}", h.UpdateBorrower)
			r.Delete("/{id}", h.DeleteBorrower)
		})

		r.Route("/loans", func(r chi.Router) {
			r.Get("/", h.ListLoans)
			r.Post("/", h.ReleaseLoan)
			r.Post("/calculate", h.CalculateLoan)
			r.Get("/{id}", h.GetLoan)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.ListPayments)
			r.Post("/", h.RecordPayment)
			r.Get("/{id}", h.GetPayment)
			r.Put("/{id}", h.EditPayment)
			r.Delete("/{id}", h.DeletePayment)
		})

		r.Route("/capital", func(r chi.Router) {
			r.Get("/", h.ListCapital)
			r.Get("/balance", h.CapitalBalance)
			r.With(middleware.RequireAdmin(h.admins, middleware.RoleCapital)).Post("/deposit", h.Deposit)
			r.With(middleware.RequireAdmin(h.admins, middleware.RoleCapital)).Post("/withdraw", h.Withdraw)
			r.With(middleware.RequireAdmin(h.admins, middleware.RoleCapital)).Get("/verify", h.VerifyCapital)
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/", h.Dashboard)
			r.Get("/chart", h.MonthlyChart)
			r.Get("/recent", h.RecentActivity)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/daily", h.DailyCollections)
			r.Get("/monthly", h.MonthlyIncome)
			r.Get("/borrowers/{id}", h.BorrowerLedger)
			r.Get("/overdue", h.OverdueAccounts)
			r.Get("/export/daily", h.ExportDailyCollections)
			r.Get("/export/overdue", h.ExportOverdue)
		})

		r.With(middleware.RequireAdmin(h.admins, middleware.RoleAudit)).Get("/audit", h.ListAuditLogs)
	})
	return router
}
