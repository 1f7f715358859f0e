package accounts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

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

const (
	qInsertAccount  = `(?s)INSERT\s+INTO\s+accounts\s*\(id,\s*email,\s*password_hash,\s*first_name,\s*account_type,\s*school_name,\s*license_key\)`
	qInsertCode     = `(?s)INSERT\s+INTO\s+account_class_codes\s*\(account_id,\s*code\).*ON\s+CONFLICT\s+DO\s+NOTHING`
	qSelectAccount  = `(?s)SELECT\s+id,\s*email,\s*password_hash,\s*first_name,\s*account_type,\s*school_name,\s*license_key\s+FROM\s+accounts\s+WHERE\s+email\s*=\s*\$1`
	qSelectCodes    = `(?s)SELECT\s+code\s+FROM\s+account_class_codes\s+WHERE\s+account_id\s*=\s*\$1`
	qSelectID       = `(?s)SELECT\s+id\s+FROM\s+accounts\s+WHERE\s+email\s*=\s*\$1`
	qReserveSlot    = `(?s)INSERT\s+INTO\s+license_usage.*ON\s+CONFLICT\s*\(license_key\).*RETURNING\s+used`
	qReleaseSlot    = `(?s)UPDATE\s+license_usage\s+SET\s+used\s*=\s*GREATEST\(used\s*-\s*1,\s*0\)`
	qDeleteCode     = `(?s)DELETE\s+FROM\s+account_class_codes\s+WHERE\s+account_id\s*=\s*\$1\s+AND\s+code\s*=\s*\$2`
	qDeleteAccount  = `(?s)DELETE\s+FROM\s+accounts\s+WHERE\s+email\s*=\s*\$1`
	qEmailExists    = `(?s)SELECT\s+EXISTS\s*\(SELECT\s+1\s+FROM\s+accounts\s+WHERE\s+email\s*=\s*\$1\)`
)

func sampleAccount() *models.Account {
	return &models.Account{
		ID:           "a-1",
		Email:        "alex@example.com",
		PasswordHash: "$2a$10$hash",
		FirstName:    "Alex",
		AccountType:  models.AccountTypeStudent,
		SchoolName:   "Burnside High School",
		LicenseKey:   "STUDENT_KEY_1",
		ClassCodes:   []string{"MA101", "PH202"},
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	account := sampleAccount()

	mock.ExpectExec(qInsertAccount).
		WithArgs(account.ID, account.Email, account.PasswordHash, account.FirstName,
			account.AccountType, account.SchoolName, account.LicenseKey).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(qInsertCode).WithArgs(account.ID, "MA101").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(qInsertCode).WithArgs(account.ID, "PH202").WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Create(context.Background(), account)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "a-1" {
		t.Fatalf("unexpected account: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	account := sampleAccount()
	account.ClassCodes = nil

	mock.ExpectExec(qInsertAccount).
		WithArgs(account.ID, account.Email, account.PasswordHash, account.FirstName,
			account.AccountType, account.SchoolName, account.LicenseKey).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), account)
	if !errors.Is(err, common.ErrDuplicateEmail) {
		t.Fatalf("want common.ErrDuplicateEmail, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	account := sampleAccount()
	account.ClassCodes = nil

	mock.ExpectExec(qInsertAccount).
		WithArgs(account.ID, account.Email, account.PasswordHash, account.FirstName,
			account.AccountType, account.SchoolName, account.LicenseKey).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), account)
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "first_name", "account_type", "school_name", "license_key"}).
		AddRow("a-1", "alex@example.com", "$2a$10$hash", "Alex", "student", "Burnside High School", "STUDENT_KEY_1")
	mock.ExpectQuery(qSelectAccount).WithArgs("alex@example.com").WillReturnRows(rows)

	codeRows := sqlmock.NewRows([]string{"code"}).AddRow("MA101").AddRow("PH202")
	mock.ExpectQuery(qSelectCodes).WithArgs("a-1").WillReturnRows(codeRows)

	got, err := repo.GetByEmail(context.Background(), "alex@example.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if got.ID != "a-1" || got.AccountType != models.AccountTypeStudent {
		t.Fatalf("unexpected account: %+v", got)
	}
	if len(got.ClassCodes) != 2 || got.ClassCodes[0] != "MA101" {
		t.Fatalf("unexpected class codes: %v", got.ClassCodes)
	}
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelectAccount).WithArgs("ghost@example.com").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@example.com")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestEmailExists(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qEmailExists).WithArgs("alex@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.EmailExists(context.Background(), "alex@example.com")
	if err != nil {
		t.Fatalf("EmailExists error: %v", err)
	}
	if !exists {
		t.Fatal("expected true")
	}
}

func TestAddClassCode(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelectID).WithArgs("alex@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a-1"))
	mock.ExpectExec(qInsertCode).WithArgs("a-1", "CH303").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.AddClassCode(context.Background(), "alex@example.com", "CH303"); err != nil {
		t.Fatalf("AddClassCode error: %v", err)
	}
}

func TestAddClassCode_UnknownAccount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelectID).WithArgs("ghost@example.com").WillReturnError(sql.ErrNoRows)

	err := repo.AddClassCode(context.Background(), "ghost@example.com", "CH303")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestRemoveClassCode_NotMember(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelectID).WithArgs("alex@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a-1"))
	mock.ExpectExec(qDeleteCode).WithArgs("a-1", "CH303").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RemoveClassCode(context.Background(), "alex@example.com", "CH303")
	if !errors.Is(err, common.ErrNotMember) {
		t.Fatalf("want common.ErrNotMember, got %v", err)
	}
}

func TestRemoveClassCode_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelectID).WithArgs("alex@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a-1"))
	mock.ExpectExec(qDeleteCode).WithArgs("a-1", "MA101").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RemoveClassCode(context.Background(), "alex@example.com", "MA101"); err != nil {
		t.Fatalf("RemoveClassCode error: %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(qDeleteAccount).WithArgs("ghost@example.com").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "ghost@example.com")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestReserveLicenseSlot_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qReserveSlot).WithArgs("STUDENT_KEY_1", 10).
		WillReturnRows(sqlmock.NewRows([]string{"used"}).AddRow(3))

	if err := repo.ReserveLicenseSlot(context.Background(), "STUDENT_KEY_1", 10); err != nil {
		t.Fatalf("ReserveLicenseSlot error: %v", err)
	}
}

func TestReserveLicenseSlot_QuotaExceeded(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	// the conditional update matches no row once the counter hits the limit
	mock.ExpectQuery(qReserveSlot).WithArgs("STUDENT_KEY_1", 10).WillReturnError(sql.ErrNoRows)

	err := repo.ReserveLicenseSlot(context.Background(), "STUDENT_KEY_1", 10)
	if !errors.Is(err, common.ErrQuotaExceeded) {
		t.Fatalf("want common.ErrQuotaExceeded, got %v", err)
	}
}

func TestReleaseLicenseSlot(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(qReleaseSlot).WithArgs("STUDENT_KEY_1").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.ReleaseLicenseSlot(context.Background(), "STUDENT_KEY_1"); err != nil {
		t.Fatalf("ReleaseLicenseSlot error: %v", err)
	}
}
