package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/medcenter-kg/booking-core/internal/model"
	"github.com/medcenter-kg/booking-core/internal/schedule"
)

// SlotQuery — представление леджера для чтения. Live() отфильтровывает
// мягко удалённые строки, All() видит всё; выбор представления —
// явный параметр вызывающего, а не неявный фильтр по умолчанию.
type SlotQuery interface {
	// Найти слот по ID.
	Get(ctx context.Context, id uuid.UUID) (*model.TimeSlot, error)
	// Найти слот по ключу (врач, дата, время начала).
	FindByKey(ctx context.Context, doctorID uuid.UUID, date datatypes.Date, startMin int) (*model.TimeSlot, error)
	// Доступные слоты врача за интервал дат включительно, по (date, start_min).
	ListAvailable(ctx context.Context, doctorID uuid.UUID, from, to datatypes.Date) ([]model.TimeSlot, error)
}

type SlotRepository interface {
	Live() SlotQuery
	All() SlotQuery

	// Создать слот. Пересечение с доступным неудалённым слотом того же
	// врача/даты — ошибка ErrSlotOverlap; нарушение уникальности ключа
	// транслируется в gorm.ErrDuplicatedKey.
	Create(ctx context.Context, slot *model.TimeSlot) error
	// Восстановить мягко удалённый слот: is_deleted=false, is_available=true.
	RestoreOne(ctx context.Context, id uuid.UUID) error
	// Мягко удалить набор слотов, вернуть число затронутых.
	SoftDelete(ctx context.Context, ids []uuid.UUID) (int64, error)
	// Снять мягкое удаление с набора слотов.
	Restore(ctx context.Context, ids []uuid.UUID) (int64, error)
	// Пометить недоступными слоты, чьё начало уже прошло. Условный
	// UPDATE: конкурентный захват слота не перетирается.
	ExpirePast(ctx context.Context, now time.Time) (int64, error)
	// Есть ли у шаблона доступные слоты начиная с сегодняшнего дня.
	CountAvailableFuture(ctx context.Context, templateID uuid.UUID, today datatypes.Date) (int64, error)
}

// ErrSlotOverlap: интервал кандидата пересекает доступный неудалённый
// слот того же врача и даты.
var ErrSlotOverlap = errors.New("slot overlaps an existing available slot")

type GormSlotRepository struct {
	db *gorm.DB
}

func NewGormSlotRepository(db *gorm.DB) *GormSlotRepository {
	return &GormSlotRepository{db: db}
}

type gormSlotQuery struct {
	db          *gorm.DB
	withDeleted bool
}

func (r *GormSlotRepository) Live() SlotQuery {
	return &gormSlotQuery{db: r.db}
}

func (r *GormSlotRepository) All() SlotQuery {
	return &gormSlotQuery{db: r.db, withDeleted: true}
}

func (q *gormSlotQuery) scope(ctx context.Context) *gorm.DB {
	tx := q.db.WithContext(ctx).Model(&model.TimeSlot{})
	if !q.withDeleted {
		tx = tx.Where("is_deleted = ?", false)
	}
	return tx
}

func (q *gormSlotQuery) Get(ctx context.Context, id uuid.UUID) (*model.TimeSlot, error) {
	var slot model.TimeSlot
	if err := q.scope(ctx).First(&slot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

func (q *gormSlotQuery) FindByKey(
	ctx context.Context,
	doctorID uuid.UUID,
	date datatypes.Date,
	startMin int,
) (*model.TimeSlot, error) {
	var slot model.TimeSlot
	err := q.scope(ctx).
		Where("doctor_id = ?", doctorID).
		Where("date = ?", date).
		Where("start_min = ?", startMin).
		First(&slot).Error
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (q *gormSlotQuery) ListAvailable(
	ctx context.Context,
	doctorID uuid.UUID,
	from, to datatypes.Date,
) ([]model.TimeSlot, error) {
	var slots []model.TimeSlot
	err := q.scope(ctx).
		Where("doctor_id = ?", doctorID).
		Where("is_available = ?", true).
		Where("date >= ? AND date <= ?", from, to).
		Order("date ASC, start_min ASC").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *GormSlotRepository) Create(ctx context.Context, slot *model.TimeSlot) error {
	overlapping, err := r.hasOverlap(ctx, slot)
	if err != nil {
		return err
	}
	if overlapping {
		return ErrSlotOverlap
	}
	return r.db.WithContext(ctx).Create(slot).Error
}

// hasOverlap: пересекается ли интервал кандидата с каким-либо доступным
// неудалённым слотом того же врача и даты.
func (r *GormSlotRepository) hasOverlap(ctx context.Context, slot *model.TimeSlot) (bool, error) {
	var others []model.TimeSlot
	err := r.db.WithContext(ctx).
		Model(&model.TimeSlot{}).
		Where("doctor_id = ?", slot.DoctorID).
		Where("date = ?", slot.Date).
		Where("is_available = ? AND is_deleted = ?", true, false).
		Where("id <> ?", slot.ID).
		Where("start_min < ?", slot.EndMin()).
		Find(&others).Error
	if err != nil {
		return false, err
	}
	cand := schedule.Interval{Start: slot.StartMin, End: slot.EndMin()}
	for i := range others {
		o := schedule.Interval{Start: others[i].StartMin, End: others[i].EndMin()}
		if cand.Overlaps(o) {
			return true, nil
		}
	}
	return false, nil
}

func (r *GormSlotRepository) RestoreOne(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.TimeSlot{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_deleted": false, "is_available": true}).
		Error
}

func (r *GormSlotRepository) SoftDelete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.TimeSlot{}).
		Where("id IN ?", ids).
		Where("is_deleted = ?", false).
		Update("is_deleted", true)
	return res.RowsAffected, res.Error
}

func (r *GormSlotRepository) Restore(ctx context.Context, ids []uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.TimeSlot{}).
		Where("id IN ?", ids).
		Where("is_deleted = ?", true).
		Updates(map[string]any{"is_deleted": false, "is_available": true})
	return res.RowsAffected, res.Error
}

func (r *GormSlotRepository) ExpirePast(ctx context.Context, now time.Time) (int64, error) {
	today := schedule.DateOf(now)
	nowMin := schedule.MinutesOfDay(now)

	res := r.db.WithContext(ctx).
		Model(&model.TimeSlot{}).
		Where("is_available = ? AND is_deleted = ?", true, false).
		Where("date < ? OR (date = ? AND start_min <= ?)", today, today, nowMin).
		Update("is_available", false)
	return res.RowsAffected, res.Error
}

func (r *GormSlotRepository) CountAvailableFuture(
	ctx context.Context,
	templateID uuid.UUID,
	today datatypes.Date,
) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.TimeSlot{}).
		Where("template_id = ?", templateID).
		Where("is_available = ? AND is_deleted = ?", true, false).
		Where("date >= ?", today).
		Count(&n).Error
	return n, err
}

// LockForUpdate берёт эксклюзивную блокировку строки слота внутри
// транзакции tx. Используется аллокатором для закрытия окна
// check-and-claim.
func LockForUpdate(tx *gorm.DB, id uuid.UUID) (*model.TimeSlot, error) {
	var slot model.TimeSlot
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&slot, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &slot, nil
}
