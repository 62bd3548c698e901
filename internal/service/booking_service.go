package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/medcenter-kg/booking-core/internal/model"
	"github.com/medcenter-kg/booking-core/internal/notify"
	"github.com/medcenter-kg/booking-core/internal/repository"
	"github.com/medcenter-kg/booking-core/internal/schedule"
)

// Кыргызский мобильный номер: +996 и девять цифр.
var phonePattern = regexp.MustCompile(`^\+996\d{9}$`)

// BookRequest — заявка на бронирование слота.
type BookRequest struct {
	TimeSlotID   uuid.UUID `json:"time_slot_id" binding:"required"`
	PatientPhone string    `json:"patient_phone" binding:"required"`
	PatientName  string    `json:"patient_name" binding:"required"`
	Comment      string    `json:"comment"`
}

// BookingService — аллокатор: выдаёт слот ровно одной записи.
// Единственная точка координации — транзакции хранилища; окно
// check-and-claim закрывается блокировкой строки слота, а не
// предварительным чтением.
type BookingService struct {
	db           *gorm.DB
	appointments repository.AppointmentRepository
	patients     repository.PatientRepository
	notifier     notify.Notifier
	log          zerolog.Logger
	now          func() time.Time
	lockRetries  int
}

func NewBookingService(
	db *gorm.DB,
	appointments repository.AppointmentRepository,
	patients repository.PatientRepository,
	notifier notify.Notifier,
	log zerolog.Logger,
	now func() time.Time,
) *BookingService {
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		db:           db,
		appointments: appointments,
		patients:     patients,
		notifier:     notifier,
		log:          log,
		now:          now,
		lockRetries:  3,
	}
}

// Book бронирует слот для пациента: claim-or-fail, никакого частично
// видимого состояния. Протокол:
//
//  1. блокировка строки слота (SELECT ... FOR UPDATE);
//  2. перепроверка is_available и «не в прошлом» уже под блокировкой;
//  3. защитная проверка отсутствия открытой записи на слот — проигрыш
//     гонки на уникальности трактуется как ErrSlotTaken, не как сбой;
//  4. создание записи и is_available=false в той же транзакции.
//
// Откат транзакции по любой причине оставляет слот доступным.
func (s *BookingService) Book(ctx context.Context, doctorID uuid.UUID, req *BookRequest) (*model.Appointment, error) {
	phone := strings.ReplaceAll(strings.TrimSpace(req.PatientPhone), " ", "")
	if !phonePattern.MatchString(phone) {
		return nil, fmt.Errorf("%w: phone must be +996 followed by 9 digits", ErrValidation)
	}
	name := strings.TrimSpace(req.PatientName)
	if name == "" {
		return nil, fmt.Errorf("%w: patient name is required", ErrValidation)
	}

	// Справочник пациентов — внешний коллаборатор; карточку получаем
	// до транзакции бронирования.
	patient, err := s.patients.UpsertByPhone(ctx, phone, name, true)
	if err != nil {
		return nil, fmt.Errorf("resolve patient: %w", err)
	}

	var appt *model.Appointment
	for attempt := 0; ; attempt++ {
		appt, err = s.claim(ctx, doctorID, patient.ID, req)
		if err == nil {
			break
		}
		if isLockBusy(err) && attempt < s.lockRetries {
			s.log.Info().
				Str("slot_id", req.TimeSlotID.String()).
				Int("attempt", attempt+1).
				Msg("slot row locked, retrying claim")
			time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
			continue
		}
		if isLockBusy(err) {
			return nil, ErrLockTimeout
		}
		return nil, err
	}

	s.notifier.BookingCreated(ctx, notify.BookingCreated{
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		PatientID:     appt.PatientID,
		SlotID:        appt.SlotID,
		StartsAt:      appt.Slot.StartsAt(),
	})

	return appt, nil
}

func (s *BookingService) claim(
	ctx context.Context,
	doctorID, patientID uuid.UUID,
	req *BookRequest,
) (*model.Appointment, error) {
	var appt *model.Appointment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			// Ограниченное ожидание блокировки вместо бесконечного.
			if err := tx.Exec("SET LOCAL lock_timeout = '3s'").Error; err != nil {
				return err
			}
		}

		slot, err := repository.LockForUpdate(tx, req.TimeSlotID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSlotNotFound
			}
			return err
		}
		if slot.IsDeleted || slot.DoctorID != doctorID {
			return ErrSlotNotFound
		}
		if !slot.IsAvailable {
			return ErrSlotTaken
		}
		if schedule.StartPassed(slot.Date, slot.StartMin, s.now()) {
			return ErrSlotInPast
		}

		open, err := repository.CountOpenForSlot(tx, slot.ID)
		if err != nil {
			return err
		}
		if open > 0 {
			return ErrSlotTaken
		}

		a := &model.Appointment{
			DoctorID:  slot.DoctorID,
			SlotID:    slot.ID,
			PatientID: patientID,
			Status:    model.AppointmentStatusScheduled,
			Comment:   strings.TrimSpace(req.Comment),
		}
		if err := tx.Create(a).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrSlotTaken
			}
			return err
		}

		res := tx.Model(&model.TimeSlot{}).
			Where("id = ? AND is_available = ?", slot.ID, true).
			Update("is_available", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrSlotTaken
		}

		a.Slot = slot
		appt = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// Cancel отменяет запись и синхронно освобождает слот в той же
// транзакции. Слот с прошедшим началом остаётся недоступным: истёкшее
// время заново не предлагается.
func (s *BookingService) Cancel(ctx context.Context, appointmentID uuid.UUID, byStaff bool) error {
	status := model.AppointmentStatusCancelledByPatient
	if byStaff {
		status = model.AppointmentStatusCancelledByAdmin
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a model.Appointment
		if err := tx.First(&a, "id = ?", appointmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAppointmentNotFound
			}
			return err
		}
		if !a.Status.IsOpen() {
			// Уже закрыта; отмена идемпотентна.
			return nil
		}

		cancelledAt := s.now()
		err := tx.Model(&a).Updates(map[string]any{
			"status":       status,
			"cancelled_at": cancelledAt,
		}).Error
		if err != nil {
			return err
		}

		slot, err := repository.LockForUpdate(tx, a.SlotID)
		if err != nil {
			return err
		}
		if slot.IsDeleted || schedule.StartPassed(slot.Date, slot.StartMin, s.now()) {
			return nil
		}
		return tx.Model(&model.TimeSlot{}).
			Where("id = ?", slot.ID).
			Update("is_available", true).
			Error
	})
}

// RecordOutcome фиксирует исход приёма: пациент пришёл или нет.
// Допустимо только для открытой записи; слот не трогается, его время
// к этому моменту уже прошло.
func (s *BookingService) RecordOutcome(ctx context.Context, appointmentID uuid.UUID, status model.AppointmentStatus) error {
	if status != model.AppointmentStatusVisited && status != model.AppointmentStatusNoShow {
		return fmt.Errorf("%w: outcome must be %q or %q",
			ErrValidation, model.AppointmentStatusVisited, model.AppointmentStatusNoShow)
	}

	a, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAppointmentNotFound
		}
		return err
	}
	if !a.Status.IsOpen() {
		return fmt.Errorf("%w: appointment is already closed with status %q", ErrValidation, a.Status)
	}

	return s.appointments.UpdateStatus(ctx, appointmentID, status, nil)
}

// PatientHistory возвращает записи пациента, новые сверху.
func (s *BookingService) PatientHistory(
	ctx context.Context,
	patientID uuid.UUID,
	limit, offset int,
) ([]model.Appointment, int64, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrPatientNotFound
		}
		return nil, 0, err
	}
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

// GetAppointment возвращает запись по ID.
func (s *BookingService) GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return a, nil
}

// isLockBusy распознаёт истечение ожидания блокировки у поддерживаемых
// диалектов (postgres 55P03, sqlite busy).
func isLockBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "lock timeout") ||
		strings.Contains(msg, "55P03") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
