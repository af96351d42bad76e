package services

import "ledger/internal/core"

// Materialization is the outcome of one due computation: the transactions
// to insert and the markers to move once they are stored. The two slices
// are index-aligned.
type Materialization struct {
	UserID          string              `json:"user_id"`
	Today           core.Date           `json:"today"`
	NewTransactions []core.Transaction  `json:"new_transactions"`
	MarkerUpdates   []core.MarkerUpdate `json:"marker_updates"`
}

// NewMaterialization returns a materialization with nothing due. Its
// slices are empty rather than nil so it encodes as [] in JSON.
func NewMaterialization(userID string, today core.Date) Materialization {
	return Materialization{
		UserID:          userID,
		Today:           today,
		NewTransactions: []core.Transaction{},
		MarkerUpdates:   []core.MarkerUpdate{},
	}
}

// Empty reports whether nothing is due.
func (m Materialization) Empty() bool {
	return len(m.NewTransactions) == 0
}

// RecurrenceEngine decides which recurring definitions are due. It performs
// no I/O and reads no clock; callers inject today.
type RecurrenceEngine struct {
	checker DuenessChecker
}

func NewRecurrenceEngine(checker DuenessChecker) *RecurrenceEngine {
	if checker == nil {
		checker = ObservedChecker{}
	}
	return &RecurrenceEngine{checker: checker}
}

// NewRecurrenceEngineForPolicy resolves policy through the strategy registry.
func NewRecurrenceEngineForPolicy(policy DayPolicy) (*RecurrenceEngine, error) {
	checker, err := GetDuenessChecker(policy)
	if err != nil {
		return nil, err
	}
	return NewRecurrenceEngine(checker), nil
}

// ComputeDue returns one pending transaction dated today and one marker
// update for every due definition, in input order.
func (e *RecurrenceEngine) ComputeDue(userID string, defs []core.RecurringTransaction, today core.Date) Materialization {
	m := NewMaterialization(userID, today)
	for _, def := range defs {
		if !e.checker.IsDue(def, today) {
			continue
		}
		m.NewTransactions = append(m.NewTransactions, def.Materialize(today))
		m.MarkerUpdates = append(m.MarkerUpdates, core.MarkerUpdate{RecurringID: def.ID, LastGeneratedDate: today})
	}
	return m
}

// ComputeDueRecurrences applies the observed day policy.
func ComputeDueRecurrences(defs []core.RecurringTransaction, today core.Date) Materialization {
	return NewRecurrenceEngine(ObservedChecker{}).ComputeDue("", defs, today)
}

// ApplyMarkers returns a copy of defs with the given markers applied.
func ApplyMarkers(defs []core.RecurringTransaction, updates []core.MarkerUpdate) []core.RecurringTransaction {
	byID := make(map[int64]core.Date, len(updates))
	for _, u := range updates {
		byID[u.RecurringID] = u.LastGeneratedDate
	}
	out := make([]core.RecurringTransaction, len(defs))
	for i, def := range defs {
		if d, ok := byID[def.ID]; ok {
			def.LastGeneratedDate = d
		}
		out[i] = def
	}
	return out
}
