package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// schedule_templates
//
// Недельный шаблон доступности врача: один день недели, рабочее окно,
// необязательный перерыв и набор типизированных определений слотов.
// Активный шаблон на пару (врач, день недели) может быть только один.
type ScheduleTemplate struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	DoctorID uuid.UUID `gorm:"type:uuid;not null;index:ix_tpl_doctor_dow,priority:1"`

	// ISO: 1 = понедельник ... 7 = воскресенье.
	DayOfWeek int `gorm:"type:smallint;not null;index:ix_tpl_doctor_dow,priority:2"`

	// Рабочее окно и перерыв — минуты от полуночи, полуоткрытые интервалы.
	StartMin      int  `gorm:"type:smallint;not null"`
	EndMin        int  `gorm:"type:smallint;not null"`
	BreakStartMin *int `gorm:"type:smallint"`
	BreakEndMin   *int `gorm:"type:smallint"`

	IsActive bool `gorm:"not null;default:true;index"`

	// Горизонт генерации и водяной знак последней генерации.
	HorizonDays    int             `gorm:"type:smallint;not null;default:31"`
	LastGeneration *datatypes.Date `gorm:"type:date"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Doctor      *Doctor        `gorm:"foreignKey:DoctorID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Definitions []TemplateSlot `gorm:"foreignKey:TemplateID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (t *ScheduleTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// HasBreak — задан ли перерыв (обе границы).
func (t *ScheduleTemplate) HasBreak() bool {
	return t.BreakStartMin != nil && t.BreakEndMin != nil
}

// template_slots
//
// Определение слота внутри шаблона: смещение от начала суток и тип.
// Уникально по (template_id, start_min).
type TemplateSlot struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	TemplateID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_tpl_slot_start,priority:1"`
	StartMin   int       `gorm:"type:smallint;not null;uniqueIndex:ux_tpl_slot_start,priority:2"`

	Type        SlotType `gorm:"type:varchar(20);not null"`
	DurationMin int      `gorm:"type:smallint;not null"`
}

func (d *TemplateSlot) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

func (d *TemplateSlot) EndMin() int {
	return d.StartMin + d.DurationMin
}

// schedules
//
// Денормализованная проекция «текущее расписание» для показа по дням:
// одна строка на (врач, день недели), апсертится при каждом сохранении
// шаблона.
type Schedule struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	DoctorID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_schedule_doctor_dow,priority:1"`
	DayOfWeek int       `gorm:"type:smallint;not null;uniqueIndex:ux_schedule_doctor_dow,priority:2"`

	StartMin      int  `gorm:"type:smallint;not null"`
	EndMin        int  `gorm:"type:smallint;not null"`
	BreakStartMin *int `gorm:"type:smallint"`
	BreakEndMin   *int `gorm:"type:smallint"`

	IsActive bool `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (s *Schedule) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
