package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentMethodsAreClosedSet(t *testing.T) {
	assert.ElementsMatch(t,
		[]PaymentMethod{"cash", "card", "pix", "transfer", "check"},
		PaymentMethods())

	for _, method := range PaymentMethods() {
		assert.True(t, method.IsValid(), method)
		assert.NotEmpty(t, method.Label(), method)
	}

	assert.False(t, PaymentMethod("crypto").IsValid())
	assert.Empty(t, PaymentMethod("crypto").Label())
}

func TestParsePaymentMethod(t *testing.T) {
	method, err := ParsePaymentMethod(" PIX ")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodPix, method)

	_, err = ParsePaymentMethod("boleto")
	assert.Error(t, err)
}

func TestPaymentStatusesAreClosedSet(t *testing.T) {
	assert.ElementsMatch(t,
		[]PaymentStatus{"pending", "paid", "overdue"},
		PaymentStatuses())

	for _, status := range PaymentStatuses() {
		assert.NotEmpty(t, status.Label(), status)
	}

	_, err := ParsePaymentStatus("refunded")
	assert.Error(t, err)
}

func TestPaymentStatusTransitions(t *testing.T) {
	for _, item := range []struct {
		from, to PaymentStatus
		allowed  bool
	}{
		{PaymentStatusPending, PaymentStatusPaid, true},
		{PaymentStatusPending, PaymentStatusOverdue, true},
		{PaymentStatusOverdue, PaymentStatusPaid, true},
		{PaymentStatusPending, PaymentStatusPending, false},
		{PaymentStatusOverdue, PaymentStatusPending, false},
		{PaymentStatusPaid, PaymentStatusPending, false},
		{PaymentStatusPaid, PaymentStatusOverdue, false},
		{PaymentStatusPaid, PaymentStatusPaid, false},
	} {
		assert.Equal(t, item.allowed, item.from.CanTransitionTo(item.to), "%s -> %s", item.from, item.to)
	}
}

func TestComputeSessionTotals(t *testing.T) {
	movements := []CashMovement{
		{Type: MovementIncome, Amount: 200},
		{Type: MovementIncome, Amount: 50},
		{Type: MovementExpense, Amount: 30},
		{Type: MovementWithdrawal, Amount: 100},
		{Type: MovementDeposit, Amount: 20},
	}

	totals := ComputeSessionTotals(100, movements)

	assert.Equal(t, 250.0, totals.Income)
	assert.Equal(t, 30.0, totals.Expense)
	assert.Equal(t, 100.0, totals.Withdrawals)
	assert.Equal(t, 20.0, totals.Deposits)
	assert.Equal(t, 240.0, totals.Balance)
}

func TestExpenseIsOverdueAt(t *testing.T) {
	now := time.Date(2030, 6, 15, 18, 0, 0, 0, time.UTC)
	yesterday := time.Date(2030, 6, 14, 0, 0, 0, 0, time.UTC)
	today := time.Date(2030, 6, 15, 0, 0, 0, 0, time.UTC)

	assert.True(t, (&Expense{PaymentStatus: PaymentStatusPending, DueDate: &yesterday}).IsOverdueAt(now))
	assert.False(t, (&Expense{PaymentStatus: PaymentStatusPending, DueDate: &today}).IsOverdueAt(now))
	assert.False(t, (&Expense{PaymentStatus: PaymentStatusPaid, DueDate: &yesterday}).IsOverdueAt(now))
	assert.False(t, (&Expense{PaymentStatus: PaymentStatusPending}).IsOverdueAt(now))
}

func TestDefaultExpenseCategoriesAreComplete(t *testing.T) {
	require.Len(t, DefaultExpenseCategories, 8)
	seen := map[string]bool{}
	for _, category := range DefaultExpenseCategories {
		assert.NotEmpty(t, category.Color)
		assert.NotEmpty(t, category.Icon)
		assert.False(t, seen[category.Name], "duplicate %s", category.Name)
		seen[category.Name] = true
	}
}

func TestMovementEnumsHaveLabels(t *testing.T) {
	for _, movementType := range []CashMovementType{MovementIncome, MovementExpense, MovementWithdrawal, MovementDeposit} {
		assert.True(t, movementType.IsValid())
		assert.NotEmpty(t, movementType.Label())
	}
	for _, category := range []CashMovementCategory{
		MovementCategoryProcedure, MovementCategorySale, MovementCategorySubscription,
		MovementCategoryExpense, MovementCategoryOther,
	} {
		assert.True(t, category.IsValid())
		assert.NotEmpty(t, category.Label())
	}
	for _, frequency := range []RecurringFrequency{RecurringDaily, RecurringWeekly, RecurringMonthly, RecurringYearly} {
		assert.True(t, frequency.IsValid())
		assert.NotEmpty(t, frequency.Label())
	}
	assert.False(t, CashMovementType("refund").IsValid())
}

func TestMentorshipPatchIsEmpty(t *testing.T) {
	assert.True(t, MentorshipPatch{}.IsEmpty())
	active := false
	assert.False(t, MentorshipPatch{IsActive: &active}.IsEmpty())
	assert.True(t, IsValidID(NewID()))
	assert.False(t, IsValidID("42"))
}
