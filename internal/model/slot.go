package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Тип слота. Длительность и выравнивание минуты начала определяются
// типом, а не задаются независимо.
type SlotType string

const (
	// Консультация: 15 минут, начало в XX:40.
	SlotTypeConsultation SlotType = "consultation"
	// Лечение: 40 минут, начало в XX:00.
	SlotTypeTreatment SlotType = "treatment"
)

func (t SlotType) Valid() bool {
	return t == SlotTypeConsultation || t == SlotTypeTreatment
}

// DurationMin — фиксированная длительность типа в минутах.
func (t SlotType) DurationMin() int {
	switch t {
	case SlotTypeConsultation:
		return 15
	case SlotTypeTreatment:
		return 40
	default:
		return 0
	}
}

// StartAlignMinute — обязательная минута начала (XX:40 или XX:00).
func (t SlotType) StartAlignMinute() int {
	switch t {
	case SlotTypeConsultation:
		return 40
	default:
		return 0
	}
}

// time_slots
//
// Конкретный бронируемый слот: (врач, дата, время начала, тип).
// Уникален по (doctor_id, date, start_min). Мягкое удаление через
// is_deleted: строка остаётся ради истории и стабильной идентичности
// при повторной генерации.
type TimeSlot struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	DoctorID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:ux_doctor_date_start,priority:1"`
	TemplateID *uuid.UUID `gorm:"type:uuid;index"`

	Date     datatypes.Date `gorm:"type:date;not null;uniqueIndex:ux_doctor_date_start,priority:2"`
	StartMin int            `gorm:"type:smallint;not null;uniqueIndex:ux_doctor_date_start,priority:3"`

	Type        SlotType `gorm:"type:varchar(20);not null"`
	DurationMin int      `gorm:"type:smallint;not null"`

	IsAvailable bool `gorm:"not null;default:true;index"`
	IsDeleted   bool `gorm:"not null;default:false;index"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Template *ScheduleTemplate `gorm:"foreignKey:TemplateID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Doctor   *Doctor           `gorm:"foreignKey:DoctorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (s *TimeSlot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// EndMin — минута окончания, полуоткрытый интервал [StartMin, EndMin).
func (s *TimeSlot) EndMin() int {
	return s.StartMin + s.DurationMin
}

// StartsAt — момент начала слота (дата хранится как полночь UTC).
func (s *TimeSlot) StartsAt() time.Time {
	return time.Time(s.Date).Add(time.Duration(s.StartMin) * time.Minute)
}
