package repomanager

import (
	"context"
	"database/sql"

	"github.com/avbaranovs/schoolcast/internal/dbx"
	"github.com/avbaranovs/schoolcast/internal/server/repositories/accounts"
	"github.com/avbaranovs/schoolcast/internal/server/repositories/videos"
)

// MemoryRepositoryManager vends the in-memory repositories. Unlike the
// Postgres manager it ignores the DBTX argument and always returns the same
// instances, so state survives across calls within one manager.
type MemoryRepositoryManager struct {
	accounts *accounts.MemoryRepository
	videos   *videos.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		accounts: accounts.NewMemoryRepository(),
		videos:   videos.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) Accounts(db dbx.DBTX) accounts.Repository {
	return m.accounts
}

func (m *MemoryRepositoryManager) Videos(db dbx.DBTX) videos.Repository {
	return m.videos
}

func (m *MemoryRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return nil
}
