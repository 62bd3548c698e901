package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medcenter-kg/booking-core/internal/model"
)

type AppointmentRepository interface {
	// Получить запись по ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	// Записи пациента, новые сверху.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]model.Appointment, int64, error)
	// Обновить статус записи (например, при отмене).
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus, cancelledAt *time.Time) error
}

// Реализация на GORM.
type GormAppointmentRepository struct {
	db *gorm.DB
}

func NewGormAppointmentRepository(db *gorm.DB) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db}
}

func (r *GormAppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var a model.Appointment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAppointmentRepository) ListByPatient(
	ctx context.Context,
	patientID uuid.UUID,
	limit, offset int,
) ([]model.Appointment, int64, error) {
	var (
		appts []model.Appointment
		total int64
	)

	q := r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("patient_id = ?", patientID)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Preload("Slot").Order("created_at DESC").Find(&appts).Error; err != nil {
		return nil, 0, err
	}

	return appts, total, nil
}

func (r *GormAppointmentRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status model.AppointmentStatus,
	cancelledAt *time.Time,
) error {
	update := map[string]any{
		"status": status,
	}
	if cancelledAt != nil {
		update["cancelled_at"] = *cancelledAt
	}
	return r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("id = ?", id).
		Updates(update).
		Error
}

// CountOpenForSlot считает открытые записи на слот внутри транзакции tx.
// Аллокатор вызывает это под блокировкой строки слота.
func CountOpenForSlot(tx *gorm.DB, slotID uuid.UUID) (int64, error) {
	var n int64
	err := tx.Model(&model.Appointment{}).
		Where("slot_id = ?", slotID).
		Where("status = ?", model.AppointmentStatusScheduled).
		Count(&n).Error
	return n, err
}
