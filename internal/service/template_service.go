package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/medcenter-kg/booking-core/internal/model"
	"github.com/medcenter-kg/booking-core/internal/repository"
	"github.com/medcenter-kg/booking-core/internal/schedule"
)

// DefinitionInput — определение слота шаблона во входном виде.
// Длительность не передаётся: она фиксирована типом.
type DefinitionInput struct {
	Start string         `json:"start" binding:"required"`
	Type  model.SlotType `json:"type" binding:"required"`
}

// TemplateInput — вход апсерта шаблона. Времена — "HH:MM".
type TemplateInput struct {
	ID          *uuid.UUID        `json:"id"`
	DoctorID    uuid.UUID         `json:"doctor_id" binding:"required"`
	DayOfWeek   int               `json:"day_of_week" binding:"required,min=1,max=7"`
	Start       string            `json:"start" binding:"required"`
	End         string            `json:"end" binding:"required"`
	BreakStart  *string           `json:"break_start"`
	BreakEnd    *string           `json:"break_end"`
	IsActive    bool              `json:"is_active"`
	HorizonDays int               `json:"horizon_days"`
	Definitions []DefinitionInput `json:"definitions" binding:"required"`
}

// TemplateService — хранилище шаблонов: валидация, апсерт с заменой
// определений, единственность активного шаблона на (врач, день недели),
// проекция «текущее расписание» и синхронная генерация при сохранении
// активного шаблона.
type TemplateService struct {
	templates repository.TemplateRepository
	doctors   repository.DoctorRepository
	gen       *GenerationService
	log       zerolog.Logger
}

func NewTemplateService(
	templates repository.TemplateRepository,
	doctors repository.DoctorRepository,
	gen *GenerationService,
	log zerolog.Logger,
) *TemplateService {
	return &TemplateService{
		templates: templates,
		doctors:   doctors,
		gen:       gen,
		log:       log,
	}
}

// buildTemplate переводит вход в модель. Чистая функция над входом,
// хранилище не трогает.
func buildTemplate(in *TemplateInput) (*model.ScheduleTemplate, []model.TemplateSlot, error) {
	startMin, err := schedule.ParseClock(in.Start)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: start: %v", ErrValidation, err)
	}
	endMin, err := schedule.ParseClock(in.End)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: end: %v", ErrValidation, err)
	}

	tpl := &model.ScheduleTemplate{
		DoctorID:    in.DoctorID,
		DayOfWeek:   in.DayOfWeek,
		StartMin:    startMin,
		EndMin:      endMin,
		IsActive:    in.IsActive,
		HorizonDays: in.HorizonDays,
	}
	if in.ID != nil {
		tpl.ID = *in.ID
	}
	if tpl.HorizonDays == 0 {
		tpl.HorizonDays = 31
	}

	if (in.BreakStart == nil) != (in.BreakEnd == nil) {
		return nil, nil, fmt.Errorf("%w: break requires both start and end", ErrValidation)
	}
	if in.BreakStart != nil {
		bs, err := schedule.ParseClock(*in.BreakStart)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: break_start: %v", ErrValidation, err)
		}
		be, err := schedule.ParseClock(*in.BreakEnd)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: break_end: %v", ErrValidation, err)
		}
		tpl.BreakStartMin = &bs
		tpl.BreakEndMin = &be
	}

	defs := make([]model.TemplateSlot, 0, len(in.Definitions))
	for _, d := range in.Definitions {
		start, err := schedule.ParseClock(d.Start)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: definition start: %v", ErrValidation, err)
		}
		defs = append(defs, model.TemplateSlot{
			StartMin:    start,
			Type:        d.Type,
			DurationMin: d.Type.DurationMin(),
		})
	}

	if err := schedule.ValidateTemplate(tpl); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := schedule.ValidateDefinitions(tpl, defs); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	return tpl, defs, nil
}

// Upsert валидирует и сохраняет шаблон, затем апсертит проекцию
// расписания и, если шаблон активен, синхронно генерирует слоты на
// горизонт. Конфликт с другим активным шаблоном отклоняется: явная
// деактивация — обязанность вызывающего, неявного понижения нет.
func (s *TemplateService) Upsert(ctx context.Context, in *TemplateInput) (*model.ScheduleTemplate, error) {
	tpl, defs, err := buildTemplate(in)
	if err != nil {
		return nil, err
	}

	if _, err := s.doctors.GetByID(ctx, tpl.DoctorID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	if tpl.IsActive {
		_, err := s.templates.FindActiveConflict(ctx, tpl.DoctorID, tpl.DayOfWeek, tpl.ID)
		switch {
		case err == nil:
			return nil, ErrActiveTemplateExists
		case errors.Is(err, gorm.ErrRecordNotFound):
			// конфликтов нет
		default:
			return nil, fmt.Errorf("check active conflict: %w", err)
		}
	}

	// Водяной знак существующего шаблона сохраняем, определения меняются
	// — генерация всё равно идёт сразу после сохранения.
	if tpl.ID != uuid.Nil {
		if existing, err := s.templates.GetByID(ctx, tpl.ID); err == nil {
			tpl.LastGeneration = existing.LastGeneration
			tpl.CreatedAt = existing.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load template: %w", err)
		}
	}

	if err := s.templates.SaveWithDefinitions(ctx, tpl, defs); err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}
	tpl.Definitions = defs

	if err := s.templates.UpsertScheduleProjection(ctx, tpl); err != nil {
		return nil, fmt.Errorf("upsert schedule projection: %w", err)
	}

	if tpl.IsActive {
		if _, err := s.gen.GenerateHorizon(ctx, tpl); err != nil {
			// Шаблон сохранён; слоты догенерирует периодический обход.
			s.log.Error().Err(err).Str("template_id", tpl.ID.String()).Msg("synchronous generation failed")
		}
	}

	return tpl, nil
}

// ListByDoctor возвращает шаблоны врача с определениями.
func (s *TemplateService) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]model.ScheduleTemplate, error) {
	return s.templates.ListByDoctor(ctx, doctorID)
}

// ActiveTemplates возвращает все активные шаблоны.
func (s *TemplateService) ActiveTemplates(ctx context.Context) ([]model.ScheduleTemplate, error) {
	return s.templates.ListActive(ctx)
}
