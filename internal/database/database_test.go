// internal/database/database_test.go
//
// Unit-tests for the connection glue, using sqlmock so no postgres server
// is required.

package database

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func TestCheck(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT 1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	if err := Check(sqlx.NewDb(db, "sqlmock")); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCheckPropagatesError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT 1").WillReturnError(boom)

	if err := Check(sqlx.NewDb(db, "sqlmock")); !errors.Is(err, boom) {
		t.Fatalf("Check err = %v, want %v", err, boom)
	}
}
