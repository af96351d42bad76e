package http

import (
	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/validator"
)

const defaultCategoryColor = "#3B82F6"

// Request bodies. Amounts arrive as numbers or strings with a dot or comma
// separator and are parsed into decimals only after validation.
type (
	transactionCreate struct {
		Type        string           `json:"type" validate:"required,transaction_type"`
		Category    string           `json:"category" validate:"required,max=100"`
		Description string           `json:"description" validate:"required,max=200"`
		Amount      validator.Number `json:"amount" validate:"required,amount"`
		Date        string           `json:"date" validate:"required,datetime=2006-01-02"`
		Status      string           `json:"status" validate:"omitempty,oneof=pending paid"`
	}

	transactionUpdate struct {
		Type        *string           `json:"type" validate:"omitempty,transaction_type"`
		Category    *string           `json:"category" validate:"omitempty,max=100"`
		Description *string           `json:"description" validate:"omitempty,max=200"`
		Amount      *validator.Number `json:"amount" validate:"omitempty,amount"`
		Date        *string           `json:"date" validate:"omitempty,datetime=2006-01-02"`
		Status      *string           `json:"status" validate:"omitempty,oneof=pending paid"`
	}

	loanCreate struct {
		Direction    string           `json:"direction" validate:"required,oneof=lent borrowed"`
		Counterparty string           `json:"counterparty" validate:"required,max=100"`
		Principal    validator.Number `json:"principal" validate:"required,amount"`
		InterestRate validator.Number `json:"interest_rate" validate:"omitempty,amount"`
		StartDate    string           `json:"start_date" validate:"required,datetime=2006-01-02"`
		DueDate      string           `json:"due_date" validate:"required,datetime=2006-01-02"`
		Status       string           `json:"status" validate:"omitempty,oneof=active settled"`
	}

	loanUpdate struct {
		Direction    *string           `json:"direction" validate:"omitempty,oneof=lent borrowed"`
		Counterparty *string           `json:"counterparty" validate:"omitempty,max=100"`
		Principal    *validator.Number `json:"principal" validate:"omitempty,amount"`
		InterestRate *validator.Number `json:"interest_rate" validate:"omitempty,amount"`
		StartDate    *string           `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
		DueDate      *string           `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
		Status       *string           `json:"status" validate:"omitempty,oneof=active settled"`
	}

	investmentCreate struct {
		Name                string           `json:"name" validate:"required,max=100"`
		Category            string           `json:"category" validate:"required,investment_category"`
		InitialAmount       validator.Number `json:"initial_amount" validate:"required,amount"`
		CurrentAmount       validator.Number `json:"current_amount" validate:"omitempty,amount"`
		TargetReturnPercent validator.Number `json:"target_return_percent" validate:"omitempty,rate"`
		StartDate           string           `json:"start_date" validate:"required,datetime=2006-01-02"`
		Status              string           `json:"status" validate:"omitempty,oneof=active closed"`
	}

	investmentUpdate struct {
		Name                *string           `json:"name" validate:"omitempty,max=100"`
		Category            *string           `json:"category" validate:"omitempty,investment_category"`
		InitialAmount       *validator.Number `json:"initial_amount" validate:"omitempty,amount"`
		CurrentAmount       *validator.Number `json:"current_amount" validate:"omitempty,amount"`
		TargetReturnPercent *validator.Number `json:"target_return_percent" validate:"omitempty,rate"`
		StartDate           *string           `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
		Status              *string           `json:"status" validate:"omitempty,oneof=active closed"`
	}

	categoryCreate struct {
		Name  string `json:"name" validate:"required,max=50"`
		Color string `json:"color" validate:"omitempty,hex_color"`
		Type  string `json:"type" validate:"required,transaction_type"`
	}

	recurringCreate struct {
		Description string           `json:"description" validate:"required,max=200"`
		Amount      validator.Number `json:"amount" validate:"required,amount"`
		Category    string           `json:"category" validate:"required,max=100"`
		Type        string           `json:"type" validate:"required,transaction_type"`
		DayOfMonth  int              `json:"day_of_month" validate:"required,min=1,max=31"`
		Active      *bool            `json:"active"`
	}

	recurringUpdate struct {
		Description *string           `json:"description" validate:"omitempty,max=200"`
		Amount      *validator.Number `json:"amount" validate:"omitempty,amount"`
		Category    *string           `json:"category" validate:"omitempty,max=100"`
		Type        *string           `json:"type" validate:"omitempty,transaction_type"`
		DayOfMonth  *int              `json:"day_of_month" validate:"omitempty,min=1,max=31"`
		Active      *bool             `json:"active"`
	}
)

func (in transactionCreate) toEntity() (core.Transaction, error) {
	amount, err := core.ParseAmount(string(in.Amount))
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		Type:        core.TransactionType(in.Type),
		Category:    in.Category,
		Description: in.Description,
		Amount:      amount,
		Date:        date,
		Status:      core.TransactionStatus(orDefault(in.Status, string(core.Pending))),
	}, nil
}

func (in transactionUpdate) toPatch() (core.TransactionPatch, error) {
	var p core.TransactionPatch
	var err error
	if p.Amount, err = optAmount(in.Amount); err != nil {
		return p, err
	}
	if p.Date, err = optDate(in.Date); err != nil {
		return p, err
	}
	p.Type = optEnum[core.TransactionType](in.Type)
	p.Category = in.Category
	p.Description = in.Description
	p.Status = optEnum[core.TransactionStatus](in.Status)
	return p, nil
}

func (in loanCreate) toEntity() (core.Loan, error) {
	principal, err := core.ParseAmount(string(in.Principal))
	if err != nil {
		return core.Loan{}, err
	}
	rate := decimal.Zero
	if in.InterestRate != "" {
		if rate, err = core.ParseRate(string(in.InterestRate)); err != nil {
			return core.Loan{}, err
		}
	}
	start, err := core.ParseDate(in.StartDate)
	if err != nil {
		return core.Loan{}, err
	}
	due, err := core.ParseDate(in.DueDate)
	if err != nil {
		return core.Loan{}, err
	}
	return core.Loan{
		Direction:    core.LoanDirection(in.Direction),
		Counterparty: in.Counterparty,
		Principal:    principal,
		InterestRate: rate,
		StartDate:    start,
		DueDate:      due,
		Status:       core.LoanStatus(orDefault(in.Status, string(core.LoanActive))),
	}, nil
}

func (in loanUpdate) toPatch() (core.LoanPatch, error) {
	var p core.LoanPatch
	var err error
	if p.Principal, err = optAmount(in.Principal); err != nil {
		return p, err
	}
	if p.InterestRate, err = optRate(in.InterestRate); err != nil {
		return p, err
	}
	if p.StartDate, err = optDate(in.StartDate); err != nil {
		return p, err
	}
	if p.DueDate, err = optDate(in.DueDate); err != nil {
		return p, err
	}
	p.Direction = optEnum[core.LoanDirection](in.Direction)
	p.Counterparty = in.Counterparty
	p.Status = optEnum[core.LoanStatus](in.Status)
	return p, nil
}

func (in investmentCreate) toEntity() (core.Investment, error) {
	initial, err := core.ParseAmount(string(in.InitialAmount))
	if err != nil {
		return core.Investment{}, err
	}
	current := initial
	if in.CurrentAmount != "" {
		if current, err = core.ParseAmount(string(in.CurrentAmount)); err != nil {
			return core.Investment{}, err
		}
	}
	target := decimal.Zero
	if in.TargetReturnPercent != "" {
		if target, err = core.ParseRate(string(in.TargetReturnPercent)); err != nil {
			return core.Investment{}, err
		}
	}
	start, err := core.ParseDate(in.StartDate)
	if err != nil {
		return core.Investment{}, err
	}
	return core.Investment{
		Name:                in.Name,
		Category:            core.InvestmentCategory(in.Category),
		InitialAmount:       initial,
		CurrentAmount:       current,
		TargetReturnPercent: target,
		StartDate:           start,
		Status:              core.InvestmentStatus(orDefault(in.Status, string(core.InvestmentActive))),
	}, nil
}

func (in investmentUpdate) toPatch() (core.InvestmentPatch, error) {
	var p core.InvestmentPatch
	var err error
	if p.InitialAmount, err = optAmount(in.InitialAmount); err != nil {
		return p, err
	}
	if p.CurrentAmount, err = optAmount(in.CurrentAmount); err != nil {
		return p, err
	}
	if p.TargetReturnPercent, err = optRate(in.TargetReturnPercent); err != nil {
		return p, err
	}
	if p.StartDate, err = optDate(in.StartDate); err != nil {
		return p, err
	}
	p.Name = in.Name
	p.Category = optEnum[core.InvestmentCategory](in.Category)
	p.Status = optEnum[core.InvestmentStatus](in.Status)
	return p, nil
}

func (in categoryCreate) toEntity() (core.Category, error) {
	return core.Category{
		Name:  in.Name,
		Color: orDefault(in.Color, defaultCategoryColor),
		Type:  core.TransactionType(in.Type),
	}, nil
}

func (in recurringCreate) toEntity() (core.RecurringTransaction, error) {
	amount, err := core.ParseAmount(string(in.Amount))
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	return core.RecurringTransaction{
		Description: in.Description,
		Amount:      amount,
		Category:    in.Category,
		Type:        core.TransactionType(in.Type),
		DayOfMonth:  in.DayOfMonth,
		Active:      active,
	}, nil
}

func (in recurringUpdate) toPatch() (core.RecurringPatch, error) {
	var p core.RecurringPatch
	var err error
	if p.Amount, err = optAmount(in.Amount); err != nil {
		return p, err
	}
	p.Description = in.Description
	p.Category = in.Category
	p.Type = optEnum[core.TransactionType](in.Type)
	p.DayOfMonth = in.DayOfMonth
	p.Active = in.Active
	return p, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func optEnum[T ~string](s *string) *T {
	if s == nil {
		return nil
	}
	v := T(*s)
	return &v
}

func optAmount(n *validator.Number) (*decimal.Decimal, error) {
	return optParse(n, core.ParseAmount)
}

func optRate(n *validator.Number) (*decimal.Decimal, error) {
	return optParse(n, core.ParseRate)
}

func optParse(n *validator.Number, parse func(string) (decimal.Decimal, error)) (*decimal.Decimal, error) {
	if n == nil {
		return nil, nil
	}
	d, err := parse(string(*n))
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func optDate(s *string) (*core.Date, error) {
	if s == nil {
		return nil, nil
	}
	d, err := core.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
