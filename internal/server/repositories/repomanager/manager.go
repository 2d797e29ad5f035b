package repomanager

import (
	"context"
	"database/sql"

	"github.com/avdeev/usersvc/internal/dbx"
	"github.com/avdeev/usersvc/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to a DB handle or an open
// transaction, and runs schema migrations.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
}
