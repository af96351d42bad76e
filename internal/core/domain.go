package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	Pending TransactionStatus = "pending"
	Paid    TransactionStatus = "paid"

	Lent     LoanDirection = "lent"
	Borrowed LoanDirection = "borrowed"

	LoanActive  LoanStatus = "active"
	LoanSettled LoanStatus = "settled"

	Equities    InvestmentCategory = "equities"
	Funds       InvestmentCategory = "funds"
	Crypto      InvestmentCategory = "crypto"
	FixedIncome InvestmentCategory = "fixed-income"
	RealEstate  InvestmentCategory = "real-estate"
	OtherAsset  InvestmentCategory = "other"

	InvestmentActive InvestmentStatus = "active"
	InvestmentClosed InvestmentStatus = "closed"
)

const maxDescriptionLength = 200

type (
	TransactionType    string
	TransactionStatus  string
	LoanDirection      string
	LoanStatus         string
	InvestmentCategory string
	InvestmentStatus   string

	Transaction struct {
		ID          int64             `json:"id"`
		Type        TransactionType   `json:"type"`
		Category    string            `json:"category"`
		Description string            `json:"description"`
		Amount      decimal.Decimal   `json:"amount"`
		Date        Date              `json:"date"`
		Status      TransactionStatus `json:"status"`
	}

	Loan struct {
		ID           int64           `json:"id"`
		Direction    LoanDirection   `json:"direction"`
		Counterparty string          `json:"counterparty"`
		Principal    decimal.Decimal `json:"principal"`
		InterestRate decimal.Decimal `json:"interest_rate"` // percentage
		StartDate    Date            `json:"start_date"`
		DueDate      Date            `json:"due_date"`
		Status       LoanStatus      `json:"status"`
	}

	Investment struct {
		ID                  int64              `json:"id"`
		Name                string             `json:"name"`
		Category            InvestmentCategory `json:"category"`
		InitialAmount       decimal.Decimal    `json:"initial_amount"`
		CurrentAmount       decimal.Decimal    `json:"current_amount"`
		TargetReturnPercent decimal.Decimal    `json:"target_return_percent"`
		StartDate           Date               `json:"start_date"`
		Status              InvestmentStatus   `json:"status"`
	}

	// Category is a label registry entry. Transactions reference it by name
	// only, so removing a category leaves existing transactions untouched.
	Category struct {
		ID    int64           `json:"id"`
		Name  string          `json:"name"`
		Color string          `json:"color"`
		Type  TransactionType `json:"type"`
	}

	RecurringTransaction struct {
		ID                int64           `json:"id"`
		Description       string          `json:"description"`
		Amount            decimal.Decimal `json:"amount"`
		Category          string          `json:"category"`
		Type              TransactionType `json:"type"`
		DayOfMonth        int             `json:"day_of_month"`
		LastGeneratedDate Date            `json:"last_generated_date"` // zero when never generated
		Active            bool            `json:"active"`
	}

	// MarkerUpdate moves a recurring definition's last-generated marker.
	MarkerUpdate struct {
		RecurringID       int64 `json:"recurring_id"`
		LastGeneratedDate Date  `json:"last_generated_date"`
	}
)

var (
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidRate       = errors.New("invalid interest rate")
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidDirection  = errors.New("invalid loan direction")
	ErrInvalidCategory   = errors.New("invalid investment category")
	ErrInvalidDayOfMonth = errors.New("day of month must be between 1 and 31")
	ErrEmptyDescription  = errors.New("empty description")
	ErrEmptyCategory     = errors.New("empty category")
	ErrEmptyName         = errors.New("empty name")
	ErrEmptyCounterparty = errors.New("empty counterparty")
	ErrDescriptionLength = fmt.Errorf("description too long (max %d characters)", maxDescriptionLength)
)

func (t TransactionType) Valid() bool { return t == Income || t == Expense }

func (s TransactionStatus) Valid() bool { return s == Pending || s == Paid }

func (d LoanDirection) Valid() bool { return d == Lent || d == Borrowed }

func (s LoanStatus) Valid() bool { return s == LoanActive || s == LoanSettled }

func (s InvestmentStatus) Valid() bool { return s == InvestmentActive || s == InvestmentClosed }

func (c InvestmentCategory) Valid() bool {
	switch c {
	case Equities, Funds, Crypto, FixedIncome, RealEstate, OtherAsset:
		return true
	}
	return false
}

func validateDescription(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrEmptyDescription
	}
	if len(s) > maxDescriptionLength {
		return ErrDescriptionLength
	}
	return nil
}

func validateNonNegative(d decimal.Decimal) error {
	if d.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if err := validateDescription(t.Description); err != nil {
		return err
	}
	if err := validateNonNegative(t.Amount); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

func (l Loan) Validate() error {
	if !l.Direction.Valid() {
		return ErrInvalidDirection
	}
	if strings.TrimSpace(l.Counterparty) == "" {
		return ErrEmptyCounterparty
	}
	if err := validateNonNegative(l.Principal); err != nil {
		return err
	}
	if l.InterestRate.IsNegative() {
		return ErrInvalidRate
	}
	if err := l.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if err := l.DueDate.Validate(); err != nil {
		return fmt.Errorf("invalid due date: %w", err)
	}
	if l.DueDate.Before(l.StartDate.Time) {
		return errors.New("due date must not be before start date")
	}
	if !l.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

func (i Investment) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return ErrEmptyName
	}
	if !i.Category.Valid() {
		return ErrInvalidCategory
	}
	if !i.InitialAmount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := validateNonNegative(i.CurrentAmount); err != nil {
		return err
	}
	if err := i.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if !i.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (r RecurringTransaction) Validate() error {
	if err := validateDescription(r.Description); err != nil {
		return err
	}
	if err := validateNonNegative(r.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if !r.Type.Valid() {
		return ErrInvalidType
	}
	if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
		return ErrInvalidDayOfMonth
	}
	if !r.LastGeneratedDate.IsZero() {
		if err := r.LastGeneratedDate.Validate(); err != nil {
			return fmt.Errorf("invalid last generated date: %w", err)
		}
	}
	return nil
}

// Materialize builds the pending transaction a recurring definition produces on the given day.
func (r RecurringTransaction) Materialize(on Date) Transaction {
	return Transaction{
		Type:        r.Type,
		Category:    r.Category,
		Description: r.Description,
		Amount:      r.Amount,
		Date:        on,
		Status:      Pending,
	}
}

// TotalDue is principal plus interest: principal × (1 + rate/100).
func (l Loan) TotalDue() decimal.Decimal {
	return l.Principal.Mul(decimal.NewFromInt(1).Add(l.InterestRate.Div(hundred)))
}

// ReturnPercent is (current − initial) / initial × 100, or zero when nothing was invested.
func (i Investment) ReturnPercent() decimal.Decimal {
	return percentChange(i.InitialAmount, i.CurrentAmount)
}

var hundred = decimal.NewFromInt(100)

func percentChange(base, current decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return current.Sub(base).Mul(hundred).Div(base)
}

// Today returns the current calendar date in the local timezone.
func Today() Date {
	return DateOf(time.Now())
}
