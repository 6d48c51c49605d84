package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// pollLock
// ──────────────────────────────────────────────────────────────────────────────

func TestPollLock_ObtieneTrasReintentos(t *testing.T) {
	attempts := 0
	unlocked := false

	unlock, err := pollLock(context.Background(), time.Millisecond, 2*time.Millisecond,
		func(context.Context) (func(), bool, error) {
			attempts++
			if attempts < 4 {
				return nil, false, nil
			}
			return func() { unlocked = true }, true, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 4, attempts)
	unlock()
	assert.True(t, unlocked)
}

func TestPollLock_TiempoDeEspera(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	attempts := 0

	_, err := pollLock(ctx, time.Millisecond, 5*time.Millisecond, func(context.Context) (func(), bool, error) {
		attempts++
		return nil, false, nil
	})

	assert.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, attempts, 1)
}

func TestPollLock_ErrorDeAlmacenamiento(t *testing.T) {
	boom := errors.New("conexión rechazada")

	_, err := pollLock(context.Background(), time.Millisecond, time.Millisecond, func(context.Context) (func(), bool, error) {
		return nil, false, boom
	})

	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.ErrorIs(t, err, boom)
}

// Un error de la consulta con el ctx ya vencido cuenta como espera agotada.
func TestPollLock_ErrorConContextoVencido(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	_, err := pollLock(ctx, time.Millisecond, time.Millisecond, func(context.Context) (func(), bool, error) {
		cancel()
		return nil, false, errors.New("consulta cancelada")
	})

	assert.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.NotErrorIs(t, err, domain.ErrStorageUnavailable)
}

// ──────────────────────────────────────────────────────────────────────────────
// finishUnlock
// ──────────────────────────────────────────────────────────────────────────────

func TestFinishUnlock(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		released bool
		closed   bool
	}{
		{"liberado", nil, true, false},
		{"error en la consulta", errors.New("conexión perdida"), false, true},
		{"bloqueo no retenido", nil, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls []string

			closed := finishUnlock(tc.err, tc.released,
				func() { calls = append(calls, "close") },
				func() { calls = append(calls, "release") })

			assert.Equal(t, tc.closed, closed)
			if tc.closed {
				assert.Equal(t, []string{"close", "release"}, calls)
			} else {
				assert.Equal(t, []string{"release"}, calls)
			}
		})
	}
}
