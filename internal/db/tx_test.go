package db

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "postgres"), mock
}

func TestInTx_Commit(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE pins").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewTxRunner(db).InTx(context.Background(), func(ctx context.Context) error {
		if _, ok := Conn(ctx, db).(*sqlx.Tx); !ok {
			t.Error("Conn() inside InTx is not the transaction")
		}
		_, err := Conn(ctx, db).ExecContext(ctx, "UPDATE pins SET like_count = 0")
		return err
	})
	if err != nil {
		t.Fatalf("InTx() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInTx_RollbackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := NewTxRunner(db).InTx(context.Background(), func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInTx_NestedReusesTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	runner := NewTxRunner(db)
	err := runner.InTx(context.Background(), func(ctx context.Context) error {
		return runner.InTx(ctx, func(context.Context) error { return nil })
	})
	if err != nil {
		t.Fatalf("InTx() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestConn_WithoutTransaction(t *testing.T) {
	db, _ := newMockDB(t)
	if Conn(context.Background(), db) != Queryer(db) {
		t.Error("Conn() without transaction should return the pool")
	}
}

func TestRunMigrations_InvalidDirection(t *testing.T) {
	if err := RunMigrations(nil, "sideways"); err == nil {
		t.Error("expected error for invalid direction")
	}
}
