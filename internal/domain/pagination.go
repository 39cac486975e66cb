package domain

// DefaultLimit is the page size used when none is specified.
const DefaultLimit = 100

// MaxLimit is the maximum allowed page size.
const MaxLimit = 1000

// PageRequest holds skip/limit pagination parameters for list operations.
type PageRequest struct {
	Skip  int
	Limit int
}

// EffectiveLimit returns the page size clamped to [1, MaxLimit].
func (p PageRequest) EffectiveLimit() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}
	if p.Limit > MaxLimit {
		return MaxLimit
	}
	return p.Limit
}

// Offset returns the number of rows to skip, never negative.
func (p PageRequest) Offset() int {
	if p.Skip < 0 {
		return 0
	}
	return p.Skip
}
