package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medcenter-kg/booking-core/internal/model"
	"github.com/medcenter-kg/booking-core/internal/schedule"
	"github.com/medcenter-kg/booking-core/internal/service"
)

// TemplateHandler — управление шаблонами расписания (только персонал).
type TemplateHandler struct {
	templates *service.TemplateService
}

func NewTemplateHandler(templates *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

type definitionView struct {
	Start string         `json:"start"`
	End   string         `json:"end"`
	Type  model.SlotType `json:"type"`
}

type templateView struct {
	ID             string           `json:"id"`
	DoctorID       string           `json:"doctor_id"`
	DayOfWeek      int              `json:"day_of_week"`
	Start          string           `json:"start"`
	End            string           `json:"end"`
	BreakStart     *string          `json:"break_start,omitempty"`
	BreakEnd       *string          `json:"break_end,omitempty"`
	IsActive       bool             `json:"is_active"`
	HorizonDays    int              `json:"horizon_days"`
	LastGeneration *string          `json:"last_generation,omitempty"`
	Definitions    []definitionView `json:"definitions"`
}

func toTemplateView(t *model.ScheduleTemplate) templateView {
	v := templateView{
		ID:          t.ID.String(),
		DoctorID:    t.DoctorID.String(),
		DayOfWeek:   t.DayOfWeek,
		Start:       schedule.FormatClock(t.StartMin),
		End:         schedule.FormatClock(t.EndMin),
		IsActive:    t.IsActive,
		HorizonDays: t.HorizonDays,
	}
	if t.HasBreak() {
		bs := schedule.FormatClock(*t.BreakStartMin)
		be := schedule.FormatClock(*t.BreakEndMin)
		v.BreakStart = &bs
		v.BreakEnd = &be
	}
	if t.LastGeneration != nil {
		lg := time.Time(*t.LastGeneration).Format("2006-01-02")
		v.LastGeneration = &lg
	}
	for i := range t.Definitions {
		d := &t.Definitions[i]
		v.Definitions = append(v.Definitions, definitionView{
			Start: schedule.FormatClock(d.StartMin),
			End:   schedule.FormatClock(d.EndMin()),
			Type:  d.Type,
		})
	}
	return v
}

// UpsertTemplate: POST /api/templates. Валидация целиком до записи;
// активный шаблон сразу материализует слоты на горизонт.
func (h *TemplateHandler) UpsertTemplate(c *gin.Context) {
	var in service.TemplateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, err.Error())
		return
	}

	tpl, err := h.templates.Upsert(c.Request.Context(), &in)
	if err != nil {
		ServiceError(c, err)
		return
	}

	Created(c, "template saved", toTemplateView(tpl))
}

// ListTemplates: GET /api/templates?doctor_id=...
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Query("doctor_id"))
	if err != nil {
		BadRequest(c, "doctor_id query parameter is required")
		return
	}

	tpls, err := h.templates.ListByDoctor(c.Request.Context(), doctorID)
	if err != nil {
		InternalServerError(c, "list templates: "+err.Error())
		return
	}

	out := make([]templateView, 0, len(tpls))
	for i := range tpls {
		out = append(out, toTemplateView(&tpls[i]))
	}
	Success(c, "templates", out)
}
