package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/kilcode/kilcode/docs"
	authhandlers "github.com/kilcode/kilcode/internal/handlers/auth"
	codeshandlers "github.com/kilcode/kilcode/internal/handlers/codes"
	wallethandlers "github.com/kilcode/kilcode/internal/handlers/wallet"
	webhookhandlers "github.com/kilcode/kilcode/internal/handlers/webhook"
	wshandlers "github.com/kilcode/kilcode/internal/handlers/ws"
	"github.com/kilcode/kilcode/internal/notify"
	"github.com/kilcode/kilcode/internal/service"
	"github.com/kilcode/kilcode/pkg/auth"
)

type AuthHandler interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
}

type CodeHandler interface {
	AddCode(w http.ResponseWriter, r *http.Request)
	GetCodes(w http.ResponseWriter, r *http.Request)
	GetPendingCodes(w http.ResponseWriter, r *http.Request)
	AnalyzeCode(w http.ResponseWriter, r *http.Request)
	VerifyCode(w http.ResponseWriter, r *http.Request)
	BulkVerify(w http.ResponseWriter, r *http.Request)
}

type WalletHandler interface {
	GetBalance(w http.ResponseWriter, r *http.Request)
	Withdraw(w http.ResponseWriter, r *http.Request)
	GetWithdrawals(w http.ResponseWriter, r *http.Request)
	VerifyPayment(w http.ResponseWriter, r *http.Request)
	Reconcile(w http.ResponseWriter, r *http.Request)
	GetPendingWithdrawals(w http.ResponseWriter, r *http.Request)
}

type WebhookHandler interface {
	HandlePaystack(w http.ResponseWriter, r *http.Request)
}

type WSHandler interface {
	AdminSocket(w http.ResponseWriter, r *http.Request)
	UserSocket(w http.ResponseWriter, r *http.Request)
}

type Handlers struct {
	AuthHandler    AuthHandler
	CodeHandler    CodeHandler
	WalletHandler  WalletHandler
	WebhookHandler WebhookHandler
	WSHandler      WSHandler

	jwtService auth.JWTServiceInterface
}

func New(s *service.Services, registry *notify.Registry, webhookSecret string) *Handlers {
	return &Handlers{
		AuthHandler:    authhandlers.New(s.AuthService),
		CodeHandler:    codeshandlers.New(s.CodeService),
		WalletHandler:  wallethandlers.New(s.LedgerService, s.PaymentService),
		WebhookHandler: webhookhandlers.New(s.Reconciler, webhookSecret),
		WSHandler:      wshandlers.New(registry, s.JWTService),
		jwtService:     s.JWTService,
	}
}

func (h *Handlers) InitRoutes(r chi.Router) chi.Router {
	r.Use(
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
	)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("doc.json"),
	))

	r.Post("/webhooks/paystack", h.WebhookHandler.HandlePaystack)

	r.Get("/ws", h.WSHandler.UserSocket)
	r.Get("/ws/admin/{country}", h.WSHandler.AdminSocket)

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.AuthHandler.Register)
		r.Post("/login", h.AuthHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.AuthMiddleware(h.jwtService))
			r.Route("/codes", func(r chi.Router) {
				r.Post("/", h.CodeHandler.AddCode)
				r.Get("/", h.CodeHandler.GetCodes)
			})
			r.Route("/balance", func(r chi.Router) {
				r.Get("/", h.WalletHandler.GetBalance)
				r.Post("/withdraw", h.WalletHandler.Withdraw)
			})
			r.Get("/withdrawals", h.WalletHandler.GetWithdrawals)
			r.Post("/payments/{reference}/verify", h.WalletHandler.VerifyPayment)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(auth.AuthMiddleware(h.jwtService), auth.AdminMiddleware)
		r.Get("/codes/pending", h.CodeHandler.GetPendingCodes)
		r.Post("/codes/{id}/analyze", h.CodeHandler.AnalyzeCode)
		r.Post("/codes/{id}/verify", h.CodeHandler.VerifyCode)
		r.Post("/codes/bulk-verify", h.CodeHandler.BulkVerify)
		r.Post("/users/{id}/reconcile", h.WalletHandler.Reconcile)
		r.Get("/withdrawals/pending", h.WalletHandler.GetPendingWithdrawals)
	})

	return r
}
