package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidUnit     = errors.New("invalid duration unit")
	ErrNonPositiveTerm = errors.New("term length must be positive")
)

// DurationUnit is the calendar unit of a loan term.
type DurationUnit uint8

const (
	UnitHour DurationUnit = iota + 1
	UnitDay
	UnitMonth
	UnitYear
)

// ParseDurationUnit normalizes singular and plural unit names.
func ParseDurationUnit(s string) (DurationUnit, error) {
	switch strings.ToLower(strings.TrimSuffix(strings.TrimSpace(s), "s")) {
	case "hour":
		return UnitHour, nil
	case "day":
		return UnitDay, nil
	case "month":
		return UnitMonth, nil
	case "year":
		return UnitYear, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidUnit, s)
	}
}

func (u DurationUnit) String() string {
	switch u {
	case UnitHour:
		return "hour"
	case UnitDay:
		return "day"
	case UnitMonth:
		return "month"
	case UnitYear:
		return "year"
	default:
		return "unknown"
	}
}

// Code returns the fixed one-byte encoding used in commitment hashing.
func (u DurationUnit) Code() uint8 { return uint8(u) }

// TimeInterval is an immutable relative duration, e.g. "3 months".
type TimeInterval struct {
	amount int
	unit   DurationUnit
}

func NewTimeInterval(amount int, unit DurationUnit) (TimeInterval, error) {
	if amount <= 0 {
		return TimeInterval{}, ErrNonPositiveTerm
	}
	switch unit {
	case UnitHour, UnitDay, UnitMonth, UnitYear:
	default:
		return TimeInterval{}, fmt.Errorf("%w: %d", ErrInvalidUnit, unit)
	}
	return TimeInterval{amount: amount, unit: unit}, nil
}

// ParseTimeInterval builds an interval from an amount and a unit name.
func ParseTimeInterval(amount int, unit string) (TimeInterval, error) {
	u, err := ParseDurationUnit(unit)
	if err != nil {
		return TimeInterval{}, err
	}
	return NewTimeInterval(amount, u)
}

func (i TimeInterval) Amount() int        { return i.amount }
func (i TimeInterval) Unit() DurationUnit { return i.unit }

// EndOf returns the absolute timestamp at which the interval, started at
// ref, elapses. Months and years use calendar-aware addition: adding one
// month to Jan 31 lands on Mar 2/3, never on a fixed 30-day approximation.
func (i TimeInterval) EndOf(ref time.Time) time.Time {
	switch i.unit {
	case UnitHour:
		return ref.Add(time.Duration(i.amount) * time.Hour)
	case UnitDay:
		return ref.AddDate(0, 0, i.amount)
	case UnitMonth:
		return ref.AddDate(0, i.amount, 0)
	case UnitYear:
		return ref.AddDate(i.amount, 0, 0)
	default:
		return ref
	}
}

func (i TimeInterval) Equal(o TimeInterval) bool {
	return i.amount == o.amount && i.unit == o.unit
}

func (i TimeInterval) String() string {
	if i.amount == 1 {
		return fmt.Sprintf("1 %s", i.unit)
	}
	return fmt.Sprintf("%d %ss", i.amount, i.unit)
}
