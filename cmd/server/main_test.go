package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"autoexit/pkg/retry"

	"github.com/lib/pq"
)

func fastPolicy() retry.Config {
	return retry.Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
	}
}

func TestPingDatabase(t *testing.T) {
	authErr := &pq.Error{Code: "28P01", Message: "password authentication failed"}
	noDBErr := &pq.Error{Code: "3D000", Message: "database \"autoexit\" does not exist"}
	startingErr := &pq.Error{Code: "57P03", Message: "the database system is starting up"}
	refused := errors.New("dial tcp: connection refused")

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{"успех сразу", []error{nil}, 1, nil},
		{"сеть поднялась со второй попытки", []error{refused, nil}, 2, nil},
		{"неверный пароль не повторяется", []error{authErr, nil}, 1, authErr},
		{"нет базы не повторяется", []error{noDBErr, nil}, 1, noDBErr},
		{"старт сервера повторяется", []error{startingErr, startingErr, startingErr}, 3, startingErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			ping := func(ctx context.Context) error {
				err := tt.errs[calls]
				calls++
				return err
			}

			err := pingDatabase(context.Background(), ping, fastPolicy())

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if calls != tt.wantCalls {
				t.Errorf("expected %d ping calls, got %d", tt.wantCalls, calls)
			}
		})
	}
}

func TestPermanentPingError(t *testing.T) {
	if err := permanentPingError(nil); err != nil {
		t.Errorf("nil should stay nil, got %v", err)
	}
	if retry.IsPermanent(permanentPingError(errors.New("timeout"))) {
		t.Error("plain network error must stay retryable")
	}
	if !retry.IsPermanent(permanentPingError(&pq.Error{Code: "28000"})) {
		t.Error("invalid authorization must be permanent")
	}
}
