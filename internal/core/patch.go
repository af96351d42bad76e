package core

import "github.com/shopspring/decimal"

// Patches carry partial edits. Nil fields are left untouched by Apply.
type (
	TransactionPatch struct {
		Type        *TransactionType   `json:"type,omitempty"`
		Category    *string            `json:"category,omitempty"`
		Description *string            `json:"description,omitempty"`
		Amount      *decimal.Decimal   `json:"amount,omitempty"`
		Date        *Date              `json:"date,omitempty"`
		Status      *TransactionStatus `json:"status,omitempty"`
	}

	LoanPatch struct {
		Direction    *LoanDirection   `json:"direction,omitempty"`
		Counterparty *string          `json:"counterparty,omitempty"`
		Principal    *decimal.Decimal `json:"principal,omitempty"`
		InterestRate *decimal.Decimal `json:"interest_rate,omitempty"`
		StartDate    *Date            `json:"start_date,omitempty"`
		DueDate      *Date            `json:"due_date,omitempty"`
		Status       *LoanStatus      `json:"status,omitempty"`
	}

	InvestmentPatch struct {
		Name                *string             `json:"name,omitempty"`
		Category            *InvestmentCategory `json:"category,omitempty"`
		InitialAmount       *decimal.Decimal    `json:"initial_amount,omitempty"`
		CurrentAmount       *decimal.Decimal    `json:"current_amount,omitempty"`
		TargetReturnPercent *decimal.Decimal    `json:"target_return_percent,omitempty"`
		StartDate           *Date               `json:"start_date,omitempty"`
		Status              *InvestmentStatus   `json:"status,omitempty"`
	}

	CategoryPatch struct {
		Name  *string          `json:"name,omitempty"`
		Color *string          `json:"color,omitempty"`
		Type  *TransactionType `json:"type,omitempty"`
	}

	RecurringPatch struct {
		Description       *string          `json:"description,omitempty"`
		Amount            *decimal.Decimal `json:"amount,omitempty"`
		Category          *string          `json:"category,omitempty"`
		Type              *TransactionType `json:"type,omitempty"`
		DayOfMonth        *int             `json:"day_of_month,omitempty"`
		LastGeneratedDate *Date            `json:"last_generated_date,omitempty"`
		Active            *bool            `json:"active,omitempty"`
	}
)

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (p TransactionPatch) Apply(t Transaction) Transaction {
	set(&t.Type, p.Type)
	set(&t.Category, p.Category)
	set(&t.Description, p.Description)
	set(&t.Amount, p.Amount)
	set(&t.Date, p.Date)
	set(&t.Status, p.Status)
	return t
}

func (p LoanPatch) Apply(l Loan) Loan {
	set(&l.Direction, p.Direction)
	set(&l.Counterparty, p.Counterparty)
	set(&l.Principal, p.Principal)
	set(&l.InterestRate, p.InterestRate)
	set(&l.StartDate, p.StartDate)
	set(&l.DueDate, p.DueDate)
	set(&l.Status, p.Status)
	return l
}

func (p InvestmentPatch) Apply(i Investment) Investment {
	set(&i.Name, p.Name)
	set(&i.Category, p.Category)
	set(&i.InitialAmount, p.InitialAmount)
	set(&i.CurrentAmount, p.CurrentAmount)
	set(&i.TargetReturnPercent, p.TargetReturnPercent)
	set(&i.StartDate, p.StartDate)
	set(&i.Status, p.Status)
	return i
}

func (p CategoryPatch) Apply(c Category) Category {
	set(&c.Name, p.Name)
	set(&c.Color, p.Color)
	set(&c.Type, p.Type)
	return c
}

func (p RecurringPatch) Apply(r RecurringTransaction) RecurringTransaction {
	set(&r.Description, p.Description)
	set(&r.Amount, p.Amount)
	set(&r.Category, p.Category)
	set(&r.Type, p.Type)
	set(&r.DayOfMonth, p.DayOfMonth)
	set(&r.LastGeneratedDate, p.LastGeneratedDate)
	set(&r.Active, p.Active)
	return r
}

// Patch is the patch a MarkerUpdate applies to its definition.
func (u MarkerUpdate) Patch() RecurringPatch {
	d := u.LastGeneratedDate
	return RecurringPatch{LastGeneratedDate: &d}
}
