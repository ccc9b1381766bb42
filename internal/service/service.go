package service

import (
	authhandlers "github.com/kilcode/kilcode/internal/handlers/auth"
	"github.com/kilcode/kilcode/internal/handlers/codes"
	"github.com/kilcode/kilcode/internal/handlers/wallet"
	"github.com/kilcode/kilcode/internal/handlers/webhook"

	pkgauth "github.com/kilcode/kilcode/pkg/auth"
	"github.com/kilcode/kilcode/pkg/clients"

	"github.com/kilcode/kilcode/internal/config"
	"github.com/kilcode/kilcode/internal/notify"
	"github.com/kilcode/kilcode/internal/pg"
	"github.com/kilcode/kilcode/internal/repo"
	"github.com/kilcode/kilcode/internal/service/authservice"
	"github.com/kilcode/kilcode/internal/service/codeservice"
	"github.com/kilcode/kilcode/internal/service/ledgerservice"
	"github.com/kilcode/kilcode/internal/service/paymentservice"
)

type Services struct {
	AuthService    authhandlers.Service
	CodeService    codes.Service
	LedgerService  wallet.LedgerService
	PaymentService wallet.PaymentService
	Reconciler     webhook.PaymentService
	JWTService     pkgauth.JWTServiceInterface
}

func New(repo *repo.Repositories, txManager pg.TXManager, bus *notify.Bus, cfg *config.Config) *Services {
	jwtService := pkgauth.NewJWTService(cfg.JWTSecret)
	provider := clients.NewPaystack(cfg.PaystackAddress, cfg.PaystackSecret, cfg.ProviderTimeout)

	ledgerService := ledgerservice.New(repo.UserRepo, repo.TransactionRepo, txManager, bus)
	codeService := codeservice.New(repo.CodeRepo, repo.UserRepo, ledgerService, txManager, bus, cfg.DailyCodeLimit)
	paymentService := paymentservice.New(repo.TransactionRepo, repo.PaymentRepo, repo.UserRepo, ledgerService, provider, txManager, bus)
	authService := authservice.New(repo.UserRepo, &pkgauth.HashService{}, jwtService)

	return &Services{
		AuthService:    authService,
		CodeService:    codeService,
		LedgerService:  ledgerService,
		PaymentService: paymentService,
		Reconciler:     paymentService,
		JWTService:     jwtService,
	}
}
