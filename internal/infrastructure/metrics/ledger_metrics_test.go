package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

func TestClassifyOutcome(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"ok", nil, OutcomeOK},
		{"invalid", domain.ErrInvalidMovement, OutcomeInvalid},
		{"not_found", domain.ErrNotFound, OutcomeNotFound},
		{"storage", fmt.Errorf("put: %w: %w", domain.ErrStorageUnavailable, errors.New("conn reset")), OutcomeStorage},
		{"conflict", fmt.Errorf("put: %w", domain.ErrConcurrentModification), OutcomeConflict},
		{"lock", fmt.Errorf("lock: %w", domain.ErrLockTimeout), OutcomeLockTimeout},
		{"propagation", fmt.Errorf("%w: %w", domain.ErrPropagationIncomplete, domain.ErrStorageUnavailable), OutcomePropagation},
		{"unknown", errors.New("boom"), OutcomeUnknownError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyOutcome(tc.err))
		})
	}
}

func TestLedgerMetrics_Contadores(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg, "test_ledger")

	m.ObserveOperation("record_movement", nil, 10*time.Millisecond)
	m.ObserveOperation("record_movement", nil, 12*time.Millisecond)
	m.ObserveOperation("record_movement", domain.ErrInvalidMovement, time.Millisecond)
	m.AddPeriodsPropagated(3)
	m.AddPeriodsPropagated(0)
	m.AddRepairCorrections(2)
	m.AddClampedEntries(1)
	m.ObserveLockWait(time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.operations.WithLabelValues("record_movement", OutcomeOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.operations.WithLabelValues("record_movement", OutcomeInvalid)))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.periodsPropagated))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.repairCorrections))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.clampedEntries))
	assert.Equal(t, 1, testutil.CollectAndCount(m.lockWait))
}
