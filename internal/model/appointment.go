package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled          AppointmentStatus = "scheduled"
	AppointmentStatusVisited            AppointmentStatus = "visited"
	AppointmentStatusNoShow             AppointmentStatus = "no_show"
	AppointmentStatusCancelledByPatient AppointmentStatus = "cancelled_by_patient"
	AppointmentStatusCancelledByAdmin   AppointmentStatus = "cancelled_by_admin"
)

// IsOpen: только открытая запись удерживает слот.
func (s AppointmentStatus) IsOpen() bool {
	return s == AppointmentStatusScheduled
}

// appointments
//
// Запись на приём, ключуется слотом. Частичный уникальный индекс по
// slot_id для открытых записей гарантирует не более одной активной
// записи на слот; отменённые строки остаются и не мешают повторному
// бронированию.
type Appointment struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	DoctorID  uuid.UUID `gorm:"type:uuid;not null;index"`
	SlotID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_appointment_slot_open,where:status = 'scheduled'"`
	PatientID uuid.UUID `gorm:"type:uuid;not null;index"`

	Status  AppointmentStatus `gorm:"type:varchar(32);not null;default:'scheduled';index"`
	Comment string            `gorm:"type:text"`

	CancelledAt *time.Time `gorm:"type:timestamp with time zone"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Doctor  *Doctor   `gorm:"foreignKey:DoctorID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Slot    *TimeSlot `gorm:"foreignKey:SlotID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Patient *Patient  `gorm:"foreignKey:PatientID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
