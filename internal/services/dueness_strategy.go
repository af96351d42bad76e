// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurring transaction dueness.
// A recurring definition fires at most once per calendar month, on or after
// its day of month. Strategies differ only in how they treat days of month
// that a short month lacks (29-31).
package services

import (
	"fmt"

	"ledger/internal/core"
)

// DayPolicy names a dueness strategy.
type DayPolicy string

const (
	// PolicyObserved never fires in months that lack the target day.
	PolicyObserved DayPolicy = "observed"
	// PolicyClamp fires on the month's last day when the target day is missing.
	PolicyClamp DayPolicy = "clamp"
)

// DuenessChecker is the strategy interface for checking if a recurring
// definition must materialize on the given day.
type DuenessChecker interface {
	IsDue(def core.RecurringTransaction, today core.Date) bool
}

// ObservedChecker compares the day of month literally: a definition for the
// 31st stays silent through February, April, June, September and November.
type ObservedChecker struct{}

func (ObservedChecker) IsDue(def core.RecurringTransaction, today core.Date) bool {
	if !pendingThisMonth(def, today) {
		return false
	}
	return today.Day() >= def.DayOfMonth
}

// ClampChecker treats a target day past the end of the month as the last day.
type ClampChecker struct{}

func (ClampChecker) IsDue(def core.RecurringTransaction, today core.Date) bool {
	if !pendingThisMonth(def, today) {
		return false
	}
	target := min(def.DayOfMonth, today.DaysInMonth())
	return today.Day() >= target
}

// pendingThisMonth reports whether an active definition has not produced
// its occurrence for today's calendar month yet.
func pendingThisMonth(def core.RecurringTransaction, today core.Date) bool {
	if !def.Active {
		return false
	}
	if def.LastGeneratedDate.IsZero() {
		return true
	}
	return def.LastGeneratedDate.BeforeMonthOf(today)
}

// duenessStrategies maps day policies to their corresponding checkers.
var duenessStrategies = map[DayPolicy]DuenessChecker{
	PolicyObserved: ObservedChecker{},
	PolicyClamp:    ClampChecker{},
}

// GetDuenessChecker returns the checker registered for a policy.
// Returns an error if the policy is not supported.
func GetDuenessChecker(policy DayPolicy) (DuenessChecker, error) {
	checker, ok := duenessStrategies[policy]
	if !ok {
		return nil, fmt.Errorf("unknown day policy: %s", policy)
	}
	return checker, nil
}

// RegisterDuenessChecker allows registering custom checkers for new policies.
func RegisterDuenessChecker(policy DayPolicy, checker DuenessChecker) {
	duenessStrategies[policy] = checker
}
