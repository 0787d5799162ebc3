package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"record not found", gorm.ErrRecordNotFound, KindNotFound},
		{"wrapped not found", fmt.Errorf("query: %w", gorm.ErrRecordNotFound), KindNotFound},
		{"unique violation", &pgconn.PgError{Code: pgUniqueViolation}, KindConflict},
		{"foreign key violation", &pgconn.PgError{Code: pgForeignKeyViolation}, KindValidation},
		{"check violation", &pgconn.PgError{Code: pgCheckViolation}, KindValidation},
		{"not null violation", &pgconn.PgError{Code: pgNotNullViolation}, KindValidation},
		{"other pg error", &pgconn.PgError{Code: "57P01"}, KindUnavailable},
		{"deadline", context.DeadlineExceeded, KindUnavailable},
		{"canceled", context.Canceled, KindUnavailable},
		{"plain error", errors.New("boom"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrapNilPassesThrough(t *testing.T) {
	if err := wrap("noop", nil); err != nil {
		t.Fatalf("wrap(nil) = %v, want nil", err)
	}
}

func TestKindOf(t *testing.T) {
	err := wrap("get visit", gorm.ErrRecordNotFound)
	if KindOf(err) != KindNotFound {
		t.Errorf("KindOf = %v, want KindNotFound", KindOf(err))
	}
	if KindOf(fmt.Errorf("handler: %w", err)) != KindNotFound {
		t.Error("KindOf should see through wrapping")
	}
	if KindOf(errors.New("boom")) != KindUnknown {
		t.Error("plain error should be KindUnknown")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := &pgconn.PgError{Code: pgUniqueViolation}
	err := wrap("create visit", cause)

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Fatal("underlying pg error should stay reachable")
	}
	var se *Error
	if !errors.As(err, &se) || se.Op != "create visit" {
		t.Errorf("store error op lost: %+v", se)
	}
}

func TestValidationErr(t *testing.T) {
	err := validationErr("create client", "call_frequency must be at least 1")
	if KindOf(err) != KindValidation {
		t.Errorf("KindOf = %v, want KindValidation", KindOf(err))
	}
	if err.Error() != "store: create client: call_frequency must be at least 1" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}
