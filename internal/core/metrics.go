package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Metrics is the flat KPI record shown on the dashboard.
type Metrics struct {
	Income                   decimal.Decimal `json:"income"`
	Expenses                 decimal.Decimal `json:"expenses"`
	PendingIncome            decimal.Decimal `json:"pending_income"`
	PendingExpenses          decimal.Decimal `json:"pending_expenses"`
	Balance                  decimal.Decimal `json:"balance"`
	ProjectedBalance         decimal.Decimal `json:"projected_balance"`
	LoansOutstandingLent     decimal.Decimal `json:"loans_outstanding_lent"`
	LoansOutstandingBorrowed decimal.Decimal `json:"loans_outstanding_borrowed"`
	TotalInvested            decimal.Decimal `json:"total_invested"`
	CurrentInvestmentValue   decimal.Decimal `json:"current_investment_value"`
	InvestmentReturnPercent  decimal.Decimal `json:"investment_return_percent"`
}

// ComputeMetrics reduces the three mutable collections into the KPI record.
// It never fails and never rounds; malformed values flow through arithmetically.
func ComputeMetrics(transactions []Transaction, loans []Loan, investments []Investment) Metrics {
	m := Metrics{
		Income:                   decimal.Zero,
		Expenses:                 decimal.Zero,
		PendingIncome:            decimal.Zero,
		PendingExpenses:          decimal.Zero,
		LoansOutstandingLent:     decimal.Zero,
		LoansOutstandingBorrowed: decimal.Zero,
		TotalInvested:            decimal.Zero,
		CurrentInvestmentValue:   decimal.Zero,
	}

	for _, t := range transactions {
		switch {
		case t.Type == Income && t.Status == Paid:
			m.Income = m.Income.Add(t.Amount)
		case t.Type == Expense && t.Status == Paid:
			m.Expenses = m.Expenses.Add(t.Amount)
		case t.Type == Income && t.Status == Pending:
			m.PendingIncome = m.PendingIncome.Add(t.Amount)
		case t.Type == Expense && t.Status == Pending:
			m.PendingExpenses = m.PendingExpenses.Add(t.Amount)
		}
	}

	for _, l := range loans {
		if l.Status != LoanActive {
			continue
		}
		switch l.Direction {
		case Lent:
			m.LoansOutstandingLent = m.LoansOutstandingLent.Add(l.TotalDue())
		case Borrowed:
			m.LoansOutstandingBorrowed = m.LoansOutstandingBorrowed.Add(l.TotalDue())
		}
	}

	for _, i := range investments {
		if i.Status != InvestmentActive {
			continue
		}
		m.TotalInvested = m.TotalInvested.Add(i.InitialAmount)
		m.CurrentInvestmentValue = m.CurrentInvestmentValue.Add(i.CurrentAmount)
	}

	m.Balance = m.Income.Sub(m.Expenses)
	m.ProjectedBalance = m.Balance.Add(m.PendingIncome).Sub(m.PendingExpenses)
	m.InvestmentReturnPercent = percentChange(m.TotalInvested, m.CurrentInvestmentValue)
	return m
}

// MonthFlow is one bucket of the cash-flow view.
type MonthFlow struct {
	Year     int             `json:"year"`
	Month    int             `json:"month"` // 1-12
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

// CashFlowByMonth buckets paid transactions by calendar month over the
// trailing window of n months ending with today's month, oldest first.
// Months without transactions are present with zero totals.
func CashFlowByMonth(transactions []Transaction, today Date, n int) []MonthFlow {
	if n <= 0 {
		return nil
	}
	first := today.AddMonths(-(n - 1))
	flows := make([]MonthFlow, n)
	index := make(map[[2]int]int, n)
	for i := range flows {
		d := first.AddMonths(i)
		flows[i] = MonthFlow{Year: d.Year(), Month: d.Month(), Income: decimal.Zero, Expenses: decimal.Zero}
		index[[2]int{d.Year(), d.Month()}] = i
	}

	for _, t := range transactions {
		if t.Status != Paid {
			continue
		}
		i, ok := index[[2]int{t.Date.Year(), t.Date.Month()}]
		if !ok {
			continue
		}
		switch t.Type {
		case Income:
			flows[i].Income = flows[i].Income.Add(t.Amount)
		case Expense:
			flows[i].Expenses = flows[i].Expenses.Add(t.Amount)
		}
	}

	for i := range flows {
		flows[i].Net = flows[i].Income.Sub(flows[i].Expenses)
	}
	return flows
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// ExpensesByCategory groups paid expenses by category string, largest first.
// Ties are ordered by name so the output is stable.
func ExpensesByCategory(transactions []Transaction) []CategoryAmount {
	sums := map[string]decimal.Decimal{}
	for _, t := range transactions {
		if t.Type != Expense || t.Status != Paid {
			continue
		}
		sums[t.Category] = sums[t.Category].Add(t.Amount)
	}

	out := make([]CategoryAmount, 0, len(sums))
	for name, amount := range sums {
		out = append(out, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Performance describes a single investment against its target.
type Performance struct {
	ReturnValue   decimal.Decimal `json:"return_value"`
	ReturnPercent decimal.Decimal `json:"return_percent"`
	TargetGap     decimal.Decimal `json:"target_gap"`
	ReachedTarget bool            `json:"reached_target"`
}

func InvestmentPerformance(i Investment) Performance {
	pct := i.ReturnPercent()
	gap := pct.Sub(i.TargetReturnPercent)
	return Performance{
		ReturnValue:   i.CurrentAmount.Sub(i.InitialAmount),
		ReturnPercent: pct,
		TargetGap:     gap,
		ReachedTarget: !gap.IsNegative(),
	}
}
