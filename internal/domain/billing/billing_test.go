package billing

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saas-billing/internal/domain/plans"
)

func TestErrorKinds(t *testing.T) {
	wrapped := fmt.Errorf("checkout: %w", Conflict("User already has an active subscription"))
	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.Equal(t, "User already has an active subscription", MessageOf(wrapped))

	plain := errors.New("connection reset")
	assert.Equal(t, KindInternal, KindOf(plain))
	assert.Equal(t, "An internal error occurred. Please try again later.", MessageOf(plain))

	internal := Internal("failed to store event", plain)
	assert.ErrorIs(t, internal, plain)
	assert.Equal(t, "An internal error occurred. Please try again later.", MessageOf(internal))

	assert.Equal(t, KindMissingSignature, KindOf(MissingSignature()))
}

func TestParseStatus(t *testing.T) {
	st, ok := ParseStatus("incomplete_expired")
	assert.True(t, ok)
	assert.Equal(t, StatusIncompleteExpired, st)
	assert.False(t, st.Live())

	_, ok = ParseStatus("paused")
	assert.False(t, ok)

	assert.True(t, StatusTrialing.Live())

	assert.True(t, StatusUnpaid.Lapsed())
	assert.True(t, StatusCanceled.Lapsed())
	assert.False(t, StatusPastDue.Lapsed())
	assert.False(t, StatusIncomplete.Lapsed())
}

func TestSubscriptionPatchColumns(t *testing.T) {
	assert.True(t, SubscriptionPatch{}.Empty())

	plan := plans.Pro
	status := StatusActive
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	p := SubscriptionPatch{
		Plan:             &plan,
		Status:           &status,
		CurrentPeriodEnd: &end,
		CancelAt:         NullTime(nil),
		CanceledAt:       NullTime(&end),
	}

	cols := p.Columns()
	require.Len(t, cols, 5)
	assert.Equal(t, plans.Pro, cols["plan"])
	assert.Equal(t, StatusActive, cols["status"])
	assert.Equal(t, end, cols["current_period_end"])
	assert.Nil(t, cols["cancel_at"])
	assert.Contains(t, cols, "cancel_at")
	assert.Equal(t, end, cols["canceled_at"])
	assert.False(t, p.Empty())
}
