// Package calendar provides the simulation's monotonic month counter.
// One tick of the simulator advances the world by exactly one MonthStamp.
package calendar

import "fmt"

// MonthsPerYear is fixed; the world has no leap months.
const MonthsPerYear = 12

// January is the month at which yearly maintenance phases run
// (derived-relation refresh, dead cleanup, phenomenon rotation).
const January = 1

// MonthStamp counts months since the world epoch (year 0, month 1).
// It is totally ordered and never decreases during a run.
type MonthStamp int

// New builds a stamp from a year and a 1-based month.
func New(year, month int) MonthStamp {
	return MonthStamp(year*MonthsPerYear + (month - 1))
}

// Year returns the calendar year of the stamp.
func (m MonthStamp) Year() int {
	return int(m) / MonthsPerYear
}

// Month returns the 1-based month (1..12) of the stamp.
func (m MonthStamp) Month() int {
	return int(m)%MonthsPerYear + 1
}

// Add returns the stamp advanced by n months.
func (m MonthStamp) Add(n int) MonthStamp {
	return m + MonthStamp(n)
}

// YearsSince returns whole years elapsed since the earlier stamp.
// Negative if earlier is actually later.
func (m MonthStamp) YearsSince(earlier MonthStamp) int {
	return int(m-earlier) / MonthsPerYear
}

// MonthsSince returns months elapsed since the earlier stamp.
func (m MonthStamp) MonthsSince(earlier MonthStamp) int {
	return int(m - earlier)
}

// IsJanuary reports whether the stamp falls on the yearly maintenance month.
func (m MonthStamp) IsJanuary() bool {
	return m.Month() == January
}

func (m MonthStamp) String() string {
	return fmt.Sprintf("Year %d, Month %d", m.Year(), m.Month())
}
