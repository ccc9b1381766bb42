package repo

import (
	"github.com/kilcode/kilcode/internal/pg"
	coderepo "github.com/kilcode/kilcode/internal/repo/code-repo"
	paymentrepo "github.com/kilcode/kilcode/internal/repo/payment-repo"
	transactionrepo "github.com/kilcode/kilcode/internal/repo/transaction-repo"
	userrepo "github.com/kilcode/kilcode/internal/repo/user-repo"
)

type Repositories struct {
	UserRepo        *userrepo.Repository
	TransactionRepo *transactionrepo.Repository
	CodeRepo        *coderepo.Repository
	PaymentRepo     *paymentrepo.Repository
}

func New(conn pg.Database, txManager pg.TXManager) *Repositories {
	return &Repositories{
		UserRepo:        userrepo.New(conn, txManager),
		TransactionRepo: transactionrepo.New(conn, txManager),
		CodeRepo:        coderepo.New(conn, txManager),
		PaymentRepo:     paymentrepo.New(conn, txManager),
	}
}
