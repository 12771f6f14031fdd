package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestIsLockTimeout(t *testing.T) {
	t.Parallel()

	pgErr := &pgconn.PgError{
		Severity: "ERROR",
		Code:     "55P03",
		Message:  "canceling statement due to lock timeout",
	}
	if !IsLockTimeout(pgErr) {
		t.Errorf("55P03 not recognized")
	}
	if !IsLockTimeout(fmt.Errorf("settlement tx: %w", pgErr)) {
		t.Errorf("wrapped 55P03 not recognized")
	}
	if !IsLockTimeout(errors.New("lock timeout while settling")) {
		t.Errorf("lock timeout message not recognized")
	}
	if IsLockTimeout(nil) {
		t.Errorf("nil reported as lock timeout")
	}
	if IsLockTimeout(errors.New("connection refused")) {
		t.Errorf("unrelated error reported as lock timeout")
	}
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	if !IsNotFound(gorm.ErrRecordNotFound) {
		t.Errorf("sentinel not recognized")
	}
	if !IsNotFound(fmt.Errorf("loading wallet: %w", gorm.ErrRecordNotFound)) {
		t.Errorf("wrapped sentinel not recognized")
	}
	if IsNotFound(errors.New("boom")) {
		t.Errorf("unrelated error reported as not found")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	err := errors.New(`duplicate key value violates unique constraint "participations_pkey"`)
	if !IsUniqueViolation(err, "") {
		t.Errorf("duplicate key message not recognized")
	}
	if !IsUniqueViolation(err, "participations_pkey") {
		t.Errorf("named constraint not recognized")
	}
	if IsUniqueViolation(err, "orders_pkey") {
		t.Errorf("wrong constraint name matched")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: wallets.user_id"), "") {
		t.Errorf("sqlite wording not recognized")
	}
	if IsUniqueViolation(nil, "") {
		t.Errorf("nil reported as unique violation")
	}
}
