package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingCreated — событие успешного бронирования. Доставка и
// форматирование — забота внешнего диспетчера.
type BookingCreated struct {
	AppointmentID uuid.UUID
	DoctorID      uuid.UUID
	PatientID     uuid.UUID
	SlotID        uuid.UUID
	StartsAt      time.Time
}

type Notifier interface {
	BookingCreated(ctx context.Context, ev BookingCreated)
}

// LogNotifier пишет событие в структурный лог. Подменяется реальным
// диспетчером (email/WhatsApp) на проде.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) BookingCreated(ctx context.Context, ev BookingCreated) {
	n.log.Info().
		Str("appointment_id", ev.AppointmentID.String()).
		Str("doctor_id", ev.DoctorID.String()).
		Str("patient_id", ev.PatientID.String()).
		Str("slot_id", ev.SlotID.String()).
		Time("starts_at", ev.StartsAt).
		Msg("booking created")
}
