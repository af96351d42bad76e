package storage

import "ledger/internal/core"

// Amounts are stored as decimal text and dates as YYYY-MM-DD text;
// decimal.Decimal and core.Date implement the sql interfaces themselves.

var transactionMapper = mapper[core.Transaction]{
	table:   "transactions",
	columns: []string{"type", "category", "description", "amount", "date", "status"},
	orderBy: "date DESC, id DESC",
	id:      func(t *core.Transaction) *int64 { return &t.ID },
	values: func(t core.Transaction) []any {
		return []any{string(t.Type), t.Category, t.Description, t.Amount, t.Date, string(t.Status)}
	},
	dest: func(t *core.Transaction) []any {
		return []any{&t.Type, &t.Category, &t.Description, &t.Amount, &t.Date, &t.Status}
	},
}

var loanMapper = mapper[core.Loan]{
	table:   "loans",
	columns: []string{"direction", "counterparty", "principal", "interest_rate", "start_date", "due_date", "status"},
	orderBy: "id",
	id:      func(l *core.Loan) *int64 { return &l.ID },
	values: func(l core.Loan) []any {
		return []any{string(l.Direction), l.Counterparty, l.Principal, l.InterestRate, l.StartDate, l.DueDate, string(l.Status)}
	},
	dest: func(l *core.Loan) []any {
		return []any{&l.Direction, &l.Counterparty, &l.Principal, &l.InterestRate, &l.StartDate, &l.DueDate, &l.Status}
	},
}

var investmentMapper = mapper[core.Investment]{
	table:   "investments",
	columns: []string{"name", "category", "initial_amount", "current_amount", "target_return_percent", "start_date", "status"},
	orderBy: "id",
	id:      func(i *core.Investment) *int64 { return &i.ID },
	values: func(i core.Investment) []any {
		return []any{i.Name, string(i.Category), i.InitialAmount, i.CurrentAmount, i.TargetReturnPercent, i.StartDate, string(i.Status)}
	},
	dest: func(i *core.Investment) []any {
		return []any{&i.Name, &i.Category, &i.InitialAmount, &i.CurrentAmount, &i.TargetReturnPercent, &i.StartDate, &i.Status}
	},
}

var categoryMapper = mapper[core.Category]{
	table:   "categories",
	columns: []string{"name", "color", "type"},
	orderBy: "id",
	id:      func(c *core.Category) *int64 { return &c.ID },
	values: func(c core.Category) []any {
		return []any{c.Name, c.Color, string(c.Type)}
	},
	dest: func(c *core.Category) []any {
		return []any{&c.Name, &c.Color, &c.Type}
	},
}

var recurringMapper = mapper[core.RecurringTransaction]{
	table:   "recurring_transactions",
	columns: []string{"description", "amount", "category", "type", "day_of_month", "last_generated_date", "active"},
	orderBy: "id",
	id:      func(r *core.RecurringTransaction) *int64 { return &r.ID },
	values: func(r core.RecurringTransaction) []any {
		return []any{r.Description, r.Amount, r.Category, string(r.Type), r.DayOfMonth, r.LastGeneratedDate, r.Active}
	},
	dest: func(r *core.RecurringTransaction) []any {
		return []any{&r.Description, &r.Amount, &r.Category, &r.Type, &r.DayOfMonth, &r.LastGeneratedDate, &r.Active}
	},
}
