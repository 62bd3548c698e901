package schedule

// Interval — полуоткрытый интервал минут [Start, End) внутри суток.
type Interval struct {
	Start int
	End   int
}

// Overlaps — пересечение полуоткрытых интервалов:
// a.Start < b.End && b.Start < a.End.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// Contains — лежит ли b целиком внутри a.
func (a Interval) Contains(b Interval) bool {
	return a.Start <= b.Start && b.End <= a.End
}
