package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/medcenter-kg/booking-core/internal/model"
	"github.com/medcenter-kg/booking-core/internal/repository"
	"github.com/medcenter-kg/booking-core/internal/schedule"
)

// GenerationStats — счётчики одного прогона проектора.
type GenerationStats struct {
	Created  int `json:"created"`
	Restored int `json:"restored"`
	Skipped  int `json:"skipped"`
}

func (s GenerationStats) add(o GenerationStats) GenerationStats {
	return GenerationStats{
		Created:  s.Created + o.Created,
		Restored: s.Restored + o.Restored,
		Skipped:  s.Skipped + o.Skipped,
	}
}

// SweepStats — итог обхода всех шаблонов.
type SweepStats struct {
	Templates int `json:"templates"`
	Failed    int `json:"failed"`
	GenerationStats
}

// GenerationService — проектор слотов и триггер регенерации.
// Материализует недельные шаблоны в конкретные слоты на скользящем
// горизонте, сверяясь с леджером (включая мягко удалённые строки),
// и решает, каким шаблонам генерация нужна.
type GenerationService struct {
	templates repository.TemplateRepository
	slots     repository.SlotRepository
	log       zerolog.Logger
	now       func() time.Time
}

func NewGenerationService(
	templates repository.TemplateRepository,
	slots repository.SlotRepository,
	log zerolog.Logger,
	now func() time.Time,
) *GenerationService {
	if now == nil {
		now = time.Now
	}
	return &GenerationService{
		templates: templates,
		slots:     slots,
		log:       log,
		now:       now,
	}
}

// GenerateForTemplate сверяет шаблон с леджером на [from, to] и создаёт
// недостающие слоты. Сверка по ключу, не delete-and-recreate: живой
// слот может держать запись, трогать его нельзя.
//
//   - слота нет → создать доступным;
//   - слот мягко удалён → восстановить (restored);
//   - слот жив → не трогать (skipped), включая занятые.
//
// Врач не указан или определений нет — жёсткая ошибка; отказ одного
// кандидата (проигранная гонка создания) логируется и идёт в skipped.
func (s *GenerationService) GenerateForTemplate(
	ctx context.Context,
	tpl *model.ScheduleTemplate,
	from, to time.Time,
) (GenerationStats, error) {
	var stats GenerationStats

	if tpl.DoctorID == uuid.Nil {
		return stats, fmt.Errorf("template %s: no slots generated: doctor is not set", tpl.ID)
	}
	defs := tpl.Definitions
	if len(defs) == 0 {
		return stats, fmt.Errorf("template %s: no slots generated: %w", tpl.ID, schedule.ErrNoDefinitions)
	}

	candidates := schedule.Candidates(tpl, defs)
	dates := schedule.TemplateDates(from, to, tpl.DayOfWeek)

	log := s.log.With().
		Str("template_id", tpl.ID.String()).
		Str("doctor_id", tpl.DoctorID.String()).
		Time("from", from).
		Time("to", to).
		Logger()

	for _, day := range dates {
		date := schedule.DateOf(day)
		for _, cand := range candidates {
			existing, err := s.slots.All().FindByKey(ctx, tpl.DoctorID, date, cand.StartMin)
			switch {
			case err == nil && existing.IsDeleted:
				if err := s.slots.RestoreOne(ctx, existing.ID); err != nil {
					log.Error().Err(err).
						Time("date", day).
						Str("start", schedule.FormatClock(cand.StartMin)).
						Msg("restore slot")
					stats.Skipped++
					continue
				}
				stats.Restored++
			case err == nil:
				// Живой слот (в том числе занятый) остаётся как есть.
				stats.Skipped++
			case errors.Is(err, gorm.ErrRecordNotFound):
				tplID := tpl.ID
				slot := &model.TimeSlot{
					DoctorID:    tpl.DoctorID,
					TemplateID:  &tplID,
					Date:        date,
					StartMin:    cand.StartMin,
					Type:        cand.Type,
					DurationMin: cand.DurationMin,
					IsAvailable: true,
				}
				if err := s.slots.Create(ctx, slot); err != nil {
					// Параллельный прогон успел создать тот же слот —
					// штатный исход, считаем пропуском.
					if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, repository.ErrSlotOverlap) {
						stats.Skipped++
						continue
					}
					log.Error().Err(err).
						Time("date", day).
						Str("start", schedule.FormatClock(cand.StartMin)).
						Msg("create slot")
					stats.Skipped++
					continue
				}
				stats.Created++
			default:
				return stats, fmt.Errorf("lookup slot %s %s: %w",
					day.Format("2006-01-02"), schedule.FormatClock(cand.StartMin), err)
			}
		}
	}

	log.Info().
		Int("created", stats.Created).
		Int("restored", stats.Restored).
		Int("skipped", stats.Skipped).
		Msg("slot generation finished")

	return stats, nil
}

// GenerateHorizon — генерация для шаблона от сегодняшнего дня на его
// горизонт, с продвижением водяного знака при created+restored > 0.
func (s *GenerationService) GenerateHorizon(ctx context.Context, tpl *model.ScheduleTemplate) (GenerationStats, error) {
	now := s.now()
	from := time.Time(schedule.DateOf(now))
	to := from.AddDate(0, 0, tpl.HorizonDays)

	stats, err := s.GenerateForTemplate(ctx, tpl, from, to)
	if err != nil {
		return stats, err
	}

	if stats.Created+stats.Restored > 0 {
		if err := s.templates.SetLastGeneration(ctx, tpl.ID, schedule.DateOf(now)); err != nil {
			return stats, fmt.Errorf("advance watermark for template %s: %w", tpl.ID, err)
		}
	}
	return stats, nil
}

// RegenerateDue обходит активные шаблоны и генерирует слоты тем, кому
// это нужно: водяной знак отсутствует или старше сегодняшнего дня, либо
// у шаблона не осталось доступных будущих слотов (защитная перепроверка
// на случай внешней чистки). Отказ одного шаблона не прерывает обход.
func (s *GenerationService) RegenerateDue(ctx context.Context) (SweepStats, error) {
	var sweep SweepStats

	now := s.now()
	today := schedule.DateOf(now)

	due, err := s.templates.ListNeedingGeneration(ctx, today)
	if err != nil {
		return sweep, fmt.Errorf("list templates needing generation: %w", err)
	}
	dueIDs := make(map[uuid.UUID]struct{}, len(due))
	for i := range due {
		dueIDs[due[i].ID] = struct{}{}
	}

	active, err := s.templates.ListActive(ctx)
	if err != nil {
		return sweep, fmt.Errorf("list active templates: %w", err)
	}
	for i := range active {
		tpl := &active[i]
		if _, ok := dueIDs[tpl.ID]; ok {
			continue
		}
		n, err := s.slots.CountAvailableFuture(ctx, tpl.ID, today)
		if err != nil {
			s.log.Error().Err(err).Str("template_id", tpl.ID.String()).Msg("count future slots")
			sweep.Failed++
			continue
		}
		if n == 0 {
			due = append(due, *tpl)
		}
	}

	for i := range due {
		tpl := &due[i]
		if len(tpl.Definitions) == 0 {
			s.log.Warn().Str("template_id", tpl.ID.String()).Msg("template has no slot definitions, skipping")
			continue
		}
		sweep.Templates++
		stats, err := s.GenerateHorizon(ctx, tpl)
		if err != nil {
			s.log.Error().Err(err).
				Str("template_id", tpl.ID.String()).
				Str("doctor_id", tpl.DoctorID.String()).
				Msg("template regeneration failed")
			sweep.Failed++
			continue
		}
		sweep.GenerationStats = sweep.GenerationStats.add(stats)
	}

	if sweep.Failed > 0 {
		return sweep, fmt.Errorf("regeneration sweep: %d of %d templates failed", sweep.Failed, sweep.Templates)
	}
	return sweep, nil
}

// GenerateForDoctors — административная массовая генерация за диапазон
// дат по выбранным врачам. Возвращает счётчики на врача.
func (s *GenerationService) GenerateForDoctors(
	ctx context.Context,
	doctorIDs []uuid.UUID,
	from, to time.Time,
) (map[uuid.UUID]GenerationStats, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end date before start date", ErrValidation)
	}

	active, err := s.templates.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active templates: %w", err)
	}

	wanted := make(map[uuid.UUID]struct{}, len(doctorIDs))
	for _, id := range doctorIDs {
		wanted[id] = struct{}{}
	}

	result := make(map[uuid.UUID]GenerationStats, len(doctorIDs))
	for _, id := range doctorIDs {
		result[id] = GenerationStats{}
	}

	for i := range active {
		tpl := &active[i]
		if _, ok := wanted[tpl.DoctorID]; !ok {
			continue
		}
		stats, err := s.GenerateForTemplate(ctx, tpl, from, to)
		if err != nil {
			s.log.Error().Err(err).
				Str("template_id", tpl.ID.String()).
				Msg("bulk generation: template failed")
			continue
		}
		result[tpl.DoctorID] = result[tpl.DoctorID].add(stats)
	}

	return result, nil
}

// ExpirePast помечает недоступными слоты, чьё начало прошло.
func (s *GenerationService) ExpirePast(ctx context.Context) (int64, error) {
	n, err := s.slots.ExpirePast(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("expire past slots: %w", err)
	}
	if n > 0 {
		s.log.Info().Int64("expired", n).Msg("past slots marked unavailable")
	}
	return n, nil
}
