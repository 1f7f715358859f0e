package chunks

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/avbaranovs/schoolcast/internal/common"
	"github.com/avbaranovs/schoolcast/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestInsert_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+chunks\s*\(file_id,\s*seq,\s*data,\s*length\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*$`
	mock.ExpectExec(q).
		WithArgs("f-1", 0, []byte("payload"), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Insert(context.Background(), &models.Chunk{FileID: "f-1", Seq: 0, Data: []byte("payload"), Length: 7})
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}
}

func TestInsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+chunks`).WillReturnError(errors.New("db down"))

	err := repo.Insert(context.Background(), &models.Chunk{FileID: "f-1"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)SELECT\s+file_id,\s*seq,\s*data,\s*length\s+FROM\s+chunks\s+WHERE\s+file_id\s*=\s*\$1\s+AND\s+seq\s*=\s*\$2`
	rows := sqlmock.NewRows([]string{"file_id", "seq", "data", "length"}).
		AddRow("f-1", 2, []byte("payload"), 7)
	mock.ExpectQuery(q).WithArgs("f-1", 2).WillReturnRows(rows)

	chunk, err := repo.Get(context.Background(), "f-1", 2)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if chunk.Seq != 2 || string(chunk.Data) != "payload" || chunk.Length != 7 {
		t.Fatalf("unexpected chunk: %+v", chunk)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+file_id,\s*seq,\s*data,\s*length\s+FROM\s+chunks`).
		WithArgs("f-1", 9).WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "f-1", 9)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)SELECT\s+COUNT\(\*\),\s*COALESCE\(SUM\(length\),\s*0\)\s+FROM\s+chunks\s+WHERE\s+file_id\s*=\s*\$1`
	mock.ExpectQuery(q).WithArgs("f-1").
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum"}).AddRow(3, int64(700)))

	stats, err := repo.Stats(context.Background(), "f-1")
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.ChunkCount != 3 || stats.TotalLength != 700 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestDeleteAll(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)DELETE\s+FROM\s+chunks\s+WHERE\s+file_id\s*=\s*\$1`).
		WithArgs("f-1").WillReturnResult(sqlmock.NewResult(0, 3))

	if err := repo.DeleteAll(context.Background(), "f-1"); err != nil {
		t.Fatalf("DeleteAll error: %v", err)
	}
}

func TestListStale(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cutoff := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	q := `(?s)SELECT\s+file_id\s+FROM\s+chunks\s+GROUP\s+BY\s+file_id\s+HAVING\s+MAX\(created_at\)\s*<\s*\$1`
	rows := sqlmock.NewRows([]string{"file_id"}).AddRow("f-1").AddRow("f-2")
	mock.ExpectQuery(q).WithArgs(cutoff).WillReturnRows(rows)

	stale, err := repo.ListStale(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ListStale error: %v", err)
	}
	if len(stale) != 2 || stale[0] != "f-1" || stale[1] != "f-2" {
		t.Fatalf("unexpected result: %v", stale)
	}
}
