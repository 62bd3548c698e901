package schedule

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

var ErrInvalidClock = errors.New("invalid clock value")

// ParseClock разбирает время суток "HH:MM" в минуты от полуночи.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return h*60 + m, nil
}

// FormatClock форматирует минуты от полуночи в "HH:MM".
func FormatClock(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// MinutesOfDay — минуты от полуночи для момента t в его локации.
func MinutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// DateOf нормализует момент t в чистую дату: полночь UTC того
// календарного дня, который t представляет в своей локации. Все даты
// в леджере хранятся в этом виде, иначе ключ (врач, дата, время)
// перестаёт совпадать при поиске.
func DateOf(t time.Time) datatypes.Date {
	y, m, d := t.Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// ISOWeekday — день недели 1 (понедельник) ... 7 (воскресенье).
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// StartPassed отвечает, прошло ли начало слота (date, startMin)
// относительно момента now. Начало ровно "сейчас" считается прошедшим.
func StartPassed(date datatypes.Date, startMin int, now time.Time) bool {
	today := time.Time(DateOf(now))
	day := time.Time(date)
	if day.Before(today) {
		return true
	}
	if day.After(today) {
		return false
	}
	return startMin <= MinutesOfDay(now)
}
