package repository

import (
	"context"
	"testing"
	"time"

	"lims/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	return db, mock
}

func TestTokenDeleteByValueReportsRowCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)

	mock.ExpectExec(`DELETE FROM "refresh_tokens"`).
		WithArgs("some-token").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "refresh_tokens"`).
		WithArgs("some-token").
		WillReturnResult(sqlmock.NewResult(0, 0))

	// First caller consumes the row, the second observes zero rows. The row
	// count is what rotation races on.
	n, err := repo.DeleteByValue(context.Background(), "some-token")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Fatalf("winner must see 1 row, got %d", n)
	}

	n, err = repo.DeleteByValue(context.Background(), "some-token")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 0 {
		t.Fatalf("loser must see 0 rows, got %d", n)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenDeleteExpiredUsesCutoff(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)

	cutoff := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(`DELETE FROM "refresh_tokens" WHERE expires_at <=`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows, got %d", n)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuditAppendSurvivesCancelledContext(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db)

	id := uuid.New()
	mock.ExpectQuery(`INSERT INTO "audit_log"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	userID := uuid.New()
	entry := &model.AuditLog{UserID: &userID, Action: "login_failed", Details: `{"failures":1}`}
	if err := repo.Append(ctx, entry); err != nil {
		t.Fatalf("append under cancelled context must still commit: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuditAnnotateUnknownEntry(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db)

	id := uuid.New()
	mock.ExpectExec(`UPDATE "audit_log" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Annotate(context.Background(), id, `{"note":"x"}`)
	if err != gorm.ErrRecordNotFound {
		t.Fatalf("expected ErrRecordNotFound for missing entry, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
