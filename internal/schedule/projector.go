package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/medcenter-kg/booking-core/internal/model"
)

var (
	ErrInvalidWorkWindow = errors.New("work window start must be before end")
	ErrInvalidBreak      = errors.New("break must lie inside the work window")
	ErrInvalidDayOfWeek  = errors.New("day of week must be 1..7")
	ErrNoDefinitions     = errors.New("template has no slot definitions")
)

// ValidateTemplate проверяет форму шаблона: рабочее окно, перерыв,
// день недели, горизонт.
func ValidateTemplate(tpl *model.ScheduleTemplate) error {
	if tpl.DayOfWeek < 1 || tpl.DayOfWeek > 7 {
		return ErrInvalidDayOfWeek
	}
	if tpl.StartMin >= tpl.EndMin {
		return ErrInvalidWorkWindow
	}
	if (tpl.BreakStartMin == nil) != (tpl.BreakEndMin == nil) {
		return ErrInvalidBreak
	}
	if tpl.HasBreak() {
		br := Interval{Start: *tpl.BreakStartMin, End: *tpl.BreakEndMin}
		if br.Start >= br.End {
			return ErrInvalidBreak
		}
		work := Interval{Start: tpl.StartMin, End: tpl.EndMin}
		if !work.Contains(br) {
			return ErrInvalidBreak
		}
	}
	if tpl.HorizonDays < 1 || tpl.HorizonDays > 365 {
		return fmt.Errorf("generation horizon must be 1..365 days, got %d", tpl.HorizonDays)
	}
	return nil
}

// ValidateDefinitions проверяет определения слотов шаблона:
//   - тип известен, длительность равна фиксированной для типа;
//   - минута начала совпадает с выравниванием типа;
//   - слот заканчивается не позже конца рабочего окна;
//   - слот не начинается в перерыве;
//   - определения попарно не пересекаются.
//
// Шаблон к этому моменту должен быть валиден сам по себе.
func ValidateDefinitions(tpl *model.ScheduleTemplate, defs []model.TemplateSlot) error {
	if len(defs) == 0 {
		return ErrNoDefinitions
	}

	for i := range defs {
		d := &defs[i]
		if !d.Type.Valid() {
			return fmt.Errorf("definition %s: unknown slot type %q", FormatClock(d.StartMin), d.Type)
		}
		if d.DurationMin != d.Type.DurationMin() {
			return fmt.Errorf("definition %s: %s duration must be %d minutes",
				FormatClock(d.StartMin), d.Type, d.Type.DurationMin())
		}
		if d.StartMin%60 != d.Type.StartAlignMinute() {
			return fmt.Errorf("definition %s: %s must start at XX:%02d",
				FormatClock(d.StartMin), d.Type, d.Type.StartAlignMinute())
		}
		if d.StartMin < tpl.StartMin || d.EndMin() > tpl.EndMin {
			return fmt.Errorf("definition %s: slot must fit into the work window %s–%s",
				FormatClock(d.StartMin), FormatClock(tpl.StartMin), FormatClock(tpl.EndMin))
		}
		if tpl.HasBreak() && d.StartMin >= *tpl.BreakStartMin && d.StartMin < *tpl.BreakEndMin {
			return fmt.Errorf("definition %s: slot must not start inside the break", FormatClock(d.StartMin))
		}
	}

	sorted := make([]model.TemplateSlot, len(defs))
	copy(sorted, defs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartMin < sorted[j].StartMin })
	for i := 1; i < len(sorted); i++ {
		prev, cur := &sorted[i-1], &sorted[i]
		a := Interval{Start: prev.StartMin, End: prev.EndMin()}
		b := Interval{Start: cur.StartMin, End: cur.EndMin()}
		if a.Overlaps(b) {
			return fmt.Errorf("definitions %s and %s overlap",
				FormatClock(prev.StartMin), FormatClock(cur.StartMin))
		}
	}

	return nil
}

// Candidate — кандидат на создание слота в рамках одного дня.
type Candidate struct {
	StartMin    int
	DurationMin int
	Type        model.SlotType
}

// Candidates разворачивает определения шаблона в кандидатов одного дня
// по возрастанию времени начала. Кандидаты, чей интервал пересекает
// перерыв (полуоткрытый тест: start < breakEnd && end > breakStart),
// отбрасываются.
func Candidates(tpl *model.ScheduleTemplate, defs []model.TemplateSlot) []Candidate {
	out := make([]Candidate, 0, len(defs))
	for i := range defs {
		d := &defs[i]
		if tpl.HasBreak() {
			br := Interval{Start: *tpl.BreakStartMin, End: *tpl.BreakEndMin}
			if (Interval{Start: d.StartMin, End: d.EndMin()}).Overlaps(br) {
				continue
			}
		}
		out = append(out, Candidate{
			StartMin:    d.StartMin,
			DurationMin: d.DurationMin,
			Type:        d.Type,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartMin < out[j].StartMin })
	return out
}

// TemplateDates перечисляет по возрастанию даты из [from, to],
// приходящиеся на день недели шаблона (ISO 1..7).
func TemplateDates(from, to time.Time, isoWeekday int) []time.Time {
	start := time.Time(DateOf(from))
	end := time.Time(DateOf(to))

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if ISOWeekday(d) == isoWeekday {
			dates = append(dates, d)
		}
	}
	return dates
}
