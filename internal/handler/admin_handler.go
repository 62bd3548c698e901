package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medcenter-kg/booking-core/internal/model"
	"github.com/medcenter-kg/booking-core/internal/repository"
	"github.com/medcenter-kg/booking-core/internal/service"
)

// AdminHandler — административные операции: массовая работа со
// слотами, исходы приёмов и история пациента.
type AdminHandler struct {
	gen      *service.GenerationService
	slots    repository.SlotRepository
	bookings *service.BookingService
}

func NewAdminHandler(gen *service.GenerationService, slots repository.SlotRepository, bookings *service.BookingService) *AdminHandler {
	return &AdminHandler{gen: gen, slots: slots, bookings: bookings}
}

type generateRequest struct {
	DoctorIDs []uuid.UUID `json:"doctor_ids" binding:"required"`
	StartDate string      `json:"start_date" binding:"required"`
	EndDate   string      `json:"end_date" binding:"required"`
}

// GenerateSlots: POST /api/admin/slots/generate — прогнать проектор по
// выбранным врачам за диапазон дат, вернуть счётчики на врача.
func (h *AdminHandler) GenerateSlots(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	from, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		BadRequest(c, "invalid start_date, expected YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		BadRequest(c, "invalid end_date, expected YYYY-MM-DD")
		return
	}

	stats, err := h.gen.GenerateForDoctors(c.Request.Context(), req.DoctorIDs, from, to)
	if err != nil {
		ServiceError(c, err)
		return
	}

	out := make(map[string]service.GenerationStats, len(stats))
	for id, s := range stats {
		out[id.String()] = s
	}
	Success(c, "slots generated", out)
}

type slotIDsRequest struct {
	SlotIDs []uuid.UUID `json:"slot_ids" binding:"required"`
}

// SoftDeleteSlots: POST /api/admin/slots/delete — мягкое удаление.
// Строки остаются ради истории и восстанавливаются регенерацией.
func (h *AdminHandler) SoftDeleteSlots(c *gin.Context) {
	var req slotIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	n, err := h.slots.SoftDelete(c.Request.Context(), req.SlotIDs)
	if err != nil {
		InternalServerError(c, "soft delete slots: "+err.Error())
		return
	}
	Success(c, "slots deleted", gin.H{"affected": n})
}

// RestoreSlots: POST /api/admin/slots/restore.
func (h *AdminHandler) RestoreSlots(c *gin.Context) {
	var req slotIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	n, err := h.slots.Restore(c.Request.Context(), req.SlotIDs)
	if err != nil {
		InternalServerError(c, "restore slots: "+err.Error())
		return
	}
	Success(c, "slots restored", gin.H{"affected": n})
}

type outcomeRequest struct {
	Status string `json:"status" binding:"required"`
}

// RecordOutcome: PATCH /api/admin/appointments/:id/outcome —
// отметить visited или no_show после приёма.
func (h *AdminHandler) RecordOutcome(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid appointment id")
		return
	}
	var req outcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	err = h.bookings.RecordOutcome(c.Request.Context(), id, model.AppointmentStatus(req.Status))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, "outcome recorded", nil)
}

// PatientAppointments: GET /api/admin/patients/:id/appointments —
// история записей пациента, новые сверху.
func (h *AdminHandler) PatientAppointments(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid patient id")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	appts, total, err := h.bookings.PatientHistory(c.Request.Context(), id, limit, offset)
	if err != nil {
		ServiceError(c, err)
		return
	}

	out := make([]appointmentView, 0, len(appts))
	for i := range appts {
		a := &appts[i]
		v := appointmentView{
			ID:        a.ID.String(),
			DoctorID:  a.DoctorID.String(),
			SlotID:    a.SlotID.String(),
			PatientID: a.PatientID.String(),
			Status:    string(a.Status),
		}
		if a.Slot != nil {
			v.StartsAt = a.Slot.StartsAt()
		}
		out = append(out, v)
	}
	Success(c, "patient appointments", gin.H{"total": total, "items": out})
}
