package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/medcenter-kg/booking-core/internal/model"
)

type TemplateRepository interface {
	// Найти шаблон по ID вместе с определениями.
	GetByID(ctx context.Context, id uuid.UUID) (*model.ScheduleTemplate, error)
	// Активный шаблон на (врач, день недели), кроме excludeID.
	FindActiveConflict(ctx context.Context, doctorID uuid.UUID, dayOfWeek int, excludeID uuid.UUID) (*model.ScheduleTemplate, error)
	// Все активные шаблоны с определениями.
	ListActive(ctx context.Context) ([]model.ScheduleTemplate, error)
	// Активные шаблоны с отсутствующим или устаревшим водяным знаком.
	ListNeedingGeneration(ctx context.Context, today datatypes.Date) ([]model.ScheduleTemplate, error)
	// Шаблоны врача (любые) с определениями.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]model.ScheduleTemplate, error)
	// Сохранить шаблон и заменить его определения целиком, в одной
	// транзакции.
	SaveWithDefinitions(ctx context.Context, tpl *model.ScheduleTemplate, defs []model.TemplateSlot) error
	// Продвинуть водяной знак последней генерации.
	SetLastGeneration(ctx context.Context, id uuid.UUID, day datatypes.Date) error
	// Апсерт денормализованной проекции «текущее расписание».
	UpsertScheduleProjection(ctx context.Context, tpl *model.ScheduleTemplate) error
}

type GormTemplateRepository struct {
	db *gorm.DB
}

func NewGormTemplateRepository(db *gorm.DB) *GormTemplateRepository {
	return &GormTemplateRepository{db: db}
}

func (r *GormTemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ScheduleTemplate, error) {
	var tpl model.ScheduleTemplate
	err := r.db.WithContext(ctx).
		Preload("Definitions", func(db *gorm.DB) *gorm.DB { return db.Order("start_min ASC") }).
		First(&tpl, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *GormTemplateRepository) FindActiveConflict(
	ctx context.Context,
	doctorID uuid.UUID,
	dayOfWeek int,
	excludeID uuid.UUID,
) (*model.ScheduleTemplate, error) {
	var tpl model.ScheduleTemplate
	err := r.db.WithContext(ctx).
		Where("doctor_id = ?", doctorID).
		Where("day_of_week = ?", dayOfWeek).
		Where("is_active = ?", true).
		Where("id <> ?", excludeID).
		First(&tpl).Error
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *GormTemplateRepository) ListActive(ctx context.Context) ([]model.ScheduleTemplate, error) {
	var tpls []model.ScheduleTemplate
	err := r.db.WithContext(ctx).
		Preload("Definitions", func(db *gorm.DB) *gorm.DB { return db.Order("start_min ASC") }).
		Where("is_active = ?", true).
		Order("doctor_id, day_of_week").
		Find(&tpls).Error
	if err != nil {
		return nil, err
	}
	return tpls, nil
}

func (r *GormTemplateRepository) ListNeedingGeneration(
	ctx context.Context,
	today datatypes.Date,
) ([]model.ScheduleTemplate, error) {
	var tpls []model.ScheduleTemplate
	err := r.db.WithContext(ctx).
		Preload("Definitions", func(db *gorm.DB) *gorm.DB { return db.Order("start_min ASC") }).
		Where("is_active = ?", true).
		Where("last_generation IS NULL OR last_generation < ?", today).
		Order("doctor_id, day_of_week").
		Find(&tpls).Error
	if err != nil {
		return nil, err
	}
	return tpls, nil
}

func (r *GormTemplateRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]model.ScheduleTemplate, error) {
	var tpls []model.ScheduleTemplate
	err := r.db.WithContext(ctx).
		Preload("Definitions", func(db *gorm.DB) *gorm.DB { return db.Order("start_min ASC") }).
		Where("doctor_id = ?", doctorID).
		Order("day_of_week").
		Find(&tpls).Error
	if err != nil {
		return nil, err
	}
	return tpls, nil
}

func (r *GormTemplateRepository) SaveWithDefinitions(
	ctx context.Context,
	tpl *model.ScheduleTemplate,
	defs []model.TemplateSlot,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(tpl).Error; err != nil {
			return err
		}
		if err := tx.Where("template_id = ?", tpl.ID).Delete(&model.TemplateSlot{}).Error; err != nil {
			return err
		}
		for i := range defs {
			defs[i].ID = uuid.Nil
			defs[i].TemplateID = tpl.ID
		}
		return tx.Create(&defs).Error
	})
}

func (r *GormTemplateRepository) SetLastGeneration(ctx context.Context, id uuid.UUID, day datatypes.Date) error {
	return r.db.WithContext(ctx).
		Model(&model.ScheduleTemplate{}).
		Where("id = ?", id).
		Update("last_generation", day).
		Error
}

func (r *GormTemplateRepository) UpsertScheduleProjection(ctx context.Context, tpl *model.ScheduleTemplate) error {
	sched := model.Schedule{
		DoctorID:      tpl.DoctorID,
		DayOfWeek:     tpl.DayOfWeek,
		StartMin:      tpl.StartMin,
		EndMin:        tpl.EndMin,
		BreakStartMin: tpl.BreakStartMin,
		BreakEndMin:   tpl.BreakEndMin,
		IsActive:      tpl.IsActive,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "doctor_id"}, {Name: "day_of_week"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"start_min", "end_min", "break_start_min", "break_end_min", "is_active", "updated_at",
			}),
		}).
		Create(&sched).Error
}
