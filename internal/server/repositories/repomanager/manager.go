// Package repomanager vends repository implementations bound to a DBTX, so
// services can run an operation against *sql.DB or join a transaction with
// the same code path.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/avbaranovs/schoolcast/internal/dbx"
	"github.com/avbaranovs/schoolcast/internal/server/repositories/accounts"
	"github.com/avbaranovs/schoolcast/internal/server/repositories/videos"
)

type RepositoryManager interface {
	Accounts(db dbx.DBTX) accounts.Repository
	Videos(db dbx.DBTX) videos.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
