// Package operations owns the pre-approval and visit state machines.
// Every mutation runs as a short unit of work whose status change is a
// compare-and-swap, so concurrent decisions on the same entity cannot
// both succeed.
package operations

import (
	"gatepass/visits/internal/db"
	"gatepass/visits/internal/directory"
	"gatepass/visits/internal/notify"
	"gatepass/visits/internal/token"
)

type Service struct {
	Store     *db.Store
	Directory *directory.Directory
	Issuer    *token.Issuer
	Index     *token.Index
	Notify    *notify.Engine
}

func NewService(store *db.Store, dir *directory.Directory, issuer *token.Issuer, index *token.Index, engine *notify.Engine) *Service {
	return &Service{
		Store:     store,
		Directory: dir,
		Issuer:    issuer,
		Index:     index,
		Notify:    engine,
	}
}
