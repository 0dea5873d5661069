package models

import (
	"fmt"
	"strings"
	"time"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodPix      PaymentMethod = "pix"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodCheck    PaymentMethod = "check"
)

var paymentMethodLabels = map[PaymentMethod]string{
	PaymentMethodCash:     "Dinheiro",
	PaymentMethodCard:     "Cartão",
	PaymentMethodPix:      "PIX",
	PaymentMethodTransfer: "Transferência",
	PaymentMethodCheck:    "Cheque",
}

func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		PaymentMethodCash,
		PaymentMethodCard,
		PaymentMethodPix,
		PaymentMethodTransfer,
		PaymentMethodCheck,
	}
}

func (m PaymentMethod) IsValid() bool {
	_, ok := paymentMethodLabels[m]
	return ok
}

func (m PaymentMethod) Label() string {
	return paymentMethodLabels[m]
}

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	method := PaymentMethod(strings.ToLower(strings.TrimSpace(raw)))
	if !method.IsValid() {
		return "", fmt.Errorf("unknown payment method %q", raw)
	}
	return method, nil
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusOverdue PaymentStatus = "overdue"
)

var paymentStatusLabels = map[PaymentStatus]string{
	PaymentStatusPending: "Pendente",
	PaymentStatusPaid:    "Pago",
	PaymentStatusOverdue: "Vencido",
}

func PaymentStatuses() []PaymentStatus {
	return []PaymentStatus{PaymentStatusPending, PaymentStatusPaid, PaymentStatusOverdue}
}

func (s PaymentStatus) IsValid() bool {
	_, ok := paymentStatusLabels[s]
	return ok
}

func (s PaymentStatus) Label() string {
	return paymentStatusLabels[s]
}

// CanTransitionTo reports whether a payment may move from s to next.
// paid is terminal.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return next == PaymentStatusPaid || next == PaymentStatusOverdue
	case PaymentStatusOverdue:
		return next == PaymentStatusPaid
	default:
		return false
	}
}

func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	status := PaymentStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.IsValid() {
		return "", fmt.Errorf("unknown payment status %q", raw)
	}
	return status, nil
}

type RecurringFrequency string

const (
	RecurringDaily   RecurringFrequency = "daily"
	RecurringWeekly  RecurringFrequency = "weekly"
	RecurringMonthly RecurringFrequency = "monthly"
	RecurringYearly  RecurringFrequency = "yearly"
)

var recurringFrequencyLabels = map[RecurringFrequency]string{
	RecurringDaily:   "Diário",
	RecurringWeekly:  "Semanal",
	RecurringMonthly: "Mensal",
	RecurringYearly:  "Anual",
}

func (f RecurringFrequency) IsValid() bool {
	_, ok := recurringFrequencyLabels[f]
	return ok
}

func (f RecurringFrequency) Label() string {
	return recurringFrequencyLabels[f]
}

type CashMovementType string

const (
	MovementIncome     CashMovementType = "income"
	MovementExpense    CashMovementType = "expense"
	MovementWithdrawal CashMovementType = "withdrawal"
	MovementDeposit    CashMovementType = "deposit"
)

var movementTypeLabels = map[CashMovementType]string{
	MovementIncome:     "Entrada",
	MovementExpense:    "Saída",
	MovementWithdrawal: "Sangria",
	MovementDeposit:    "Reforço",
}

func (t CashMovementType) IsValid() bool {
	_, ok := movementTypeLabels[t]
	return ok
}

func (t CashMovementType) Label() string {
	return movementTypeLabels[t]
}

type CashMovementCategory string

const (
	MovementCategoryProcedure    CashMovementCategory = "procedure"
	MovementCategorySale         CashMovementCategory = "sale"
	MovementCategorySubscription CashMovementCategory = "subscription"
	MovementCategoryExpense      CashMovementCategory = "expense"
	MovementCategoryOther        CashMovementCategory = "other"
)

var movementCategoryLabels = map[CashMovementCategory]string{
	MovementCategoryProcedure:    "Procedimento",
	MovementCategorySale:         "Venda",
	MovementCategorySubscription: "Mensalidade",
	MovementCategoryExpense:      "Despesa",
	MovementCategoryOther:        "Outro",
}

func (c CashMovementCategory) IsValid() bool {
	_, ok := movementCategoryLabels[c]
	return ok
}

func (c CashMovementCategory) Label() string {
	return movementCategoryLabels[c]
}

type CashSessionStatus string

const (
	CashSessionOpen   CashSessionStatus = "open"
	CashSessionClosed CashSessionStatus = "closed"
)

type ExpenseCategory struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Color       string    `json:"color"`
	Icon        string    `json:"icon"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ExpenseAttachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

type Expense struct {
	ID                 string              `json:"id"`
	UserID             int64               `json:"user_id"`
	CategoryID         *string             `json:"category_id,omitempty"`
	CategoryName       string              `json:"category_name"`
	Description        string              `json:"description"`
	Amount             float64             `json:"amount"`
	PaymentMethod      PaymentMethod       `json:"payment_method"`
	PaymentStatus      PaymentStatus       `json:"payment_status"`
	DueDate            *time.Time          `json:"due_date,omitempty"`
	PaidAt             *time.Time          `json:"paid_at,omitempty"`
	IsRecurring        bool                `json:"is_recurring"`
	RecurringFrequency *RecurringFrequency `json:"recurring_frequency,omitempty"`
	RecurringDay       *int                `json:"recurring_day,omitempty"`
	RecurringEndDate   *time.Time          `json:"recurring_end_date,omitempty"`
	ParentExpenseID    *string             `json:"parent_expense_id,omitempty"`
	Attachments        []ExpenseAttachment `json:"attachments"`
	Notes              *string             `json:"notes,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// IsOverdueAt reports whether a pending expense is past its due date at now.
// Due dates are whole days: an expense due today is not overdue yet.
func (e *Expense) IsOverdueAt(now time.Time) bool {
	if e == nil || e.PaymentStatus != PaymentStatusPending || e.DueDate == nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	due := time.Date(e.DueDate.Year(), e.DueDate.Month(), e.DueDate.Day(), 0, 0, 0, 0, time.UTC)
	return due.Before(today)
}

type CashRegister struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type CashSession struct {
	ID              string            `json:"id"`
	UserID          int64             `json:"user_id"`
	CashRegisterID  string            `json:"cash_register_id"`
	OpenedAt        time.Time         `json:"opened_at"`
	OpeningBalance  float64           `json:"opening_balance"`
	OpeningNotes    *string           `json:"opening_notes,omitempty"`
	ClosedAt        *time.Time        `json:"closed_at,omitempty"`
	ClosingBalance  *float64          `json:"closing_balance,omitempty"`
	ExpectedBalance *float64          `json:"expected_balance,omitempty"`
	Difference      *float64          `json:"difference,omitempty"`
	ClosingNotes    *string           `json:"closing_notes,omitempty"`
	Status          CashSessionStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type CashMovement struct {
	ID             string               `json:"id"`
	UserID         int64                `json:"user_id"`
	CashSessionID  string               `json:"cash_session_id"`
	CashRegisterID string               `json:"cash_register_id"`
	Type           CashMovementType     `json:"type"`
	Category       CashMovementCategory `json:"category"`
	Amount         float64              `json:"amount"`
	PaymentMethod  PaymentMethod        `json:"payment_method"`
	ReferenceType  *string              `json:"reference_type,omitempty"`
	ReferenceID    *string              `json:"reference_id,omitempty"`
	Description    string               `json:"description"`
	Notes          *string              `json:"notes,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

type CashSessionTotals struct {
	Income      float64 `json:"income"`
	Expense     float64 `json:"expense"`
	Withdrawals float64 `json:"withdrawals"`
	Deposits    float64 `json:"deposits"`
	Balance     float64 `json:"balance"`
}

// ComputeSessionTotals sums movements by type. Balance is the expected drawer
// amount: opening + income - expense - withdrawals + deposits.
func ComputeSessionTotals(openingBalance float64, movements []CashMovement) CashSessionTotals {
	totals := CashSessionTotals{}
	for _, movement := range movements {
		switch movement.Type {
		case MovementIncome:
			totals.Income += movement.Amount
		case MovementExpense:
			totals.Expense += movement.Amount
		case MovementWithdrawal:
			totals.Withdrawals += movement.Amount
		case MovementDeposit:
			totals.Deposits += movement.Amount
		}
	}
	totals.Balance = openingBalance + totals.Income - totals.Expense - totals.Withdrawals + totals.Deposits
	return totals
}

type CashSessionDetail struct {
	CashSession
	Totals CashSessionTotals `json:"totals"`
}

type DefaultExpenseCategory struct {
	Name        string
	Description string
	Color       string
	Icon        string
}

var DefaultExpenseCategories = []DefaultExpenseCategory{
	{Name: "Aluguel", Description: "Aluguel do imóvel", Color: "#EF4444", Icon: "Home"},
	{Name: "Salários", Description: "Folha de pagamento", Color: "#F59E0B", Icon: "Users"},
	{Name: "Fornecedores", Description: "Compra de produtos e insumos", Color: "#10B981", Icon: "ShoppingCart"},
	{Name: "Água/Luz/Internet", Description: "Contas de consumo", Color: "#3B82F6", Icon: "Zap"},
	{Name: "Manutenção", Description: "Reparos e manutenções", Color: "#8B5CF6", Icon: "Wrench"},
	{Name: "Marketing", Description: "Publicidade e marketing", Color: "#EC4899", Icon: "Megaphone"},
	{Name: "Impostos", Description: "Tributos e impostos", Color: "#6B7280", Icon: "FileText"},
	{Name: "Outros", Description: "Outras despesas", Color: "#94A3B8", Icon: "MoreHorizontal"},
}

type CashSummary struct {
	Registers       []CashRegister `json:"registers"`
	OpenSessions    []CashSession  `json:"open_sessions"`
	PendingExpenses []Expense      `json:"pending_expenses"`
	PendingTotal    float64        `json:"pending_total"`
	Warnings        []string       `json:"warnings,omitempty"`
}
