package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/taxvoice/internal/dbx"
	"github.com/dmitrijs2005/taxvoice/internal/server/repositories/conversations"
	"github.com/dmitrijs2005/taxvoice/internal/server/repositories/logintokens"
	"github.com/dmitrijs2005/taxvoice/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can use
// the same repositories inside and outside transactions.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Conversations(db dbx.DBTX) conversations.Repository
	LoginTokens(db dbx.DBTX) logintokens.Repository
}
