package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medcenter-kg/booking-core/internal/middleware"
	"github.com/medcenter-kg/booking-core/internal/service"
)

// BookingHandler — запись на приём и отмена.
type BookingHandler struct {
	bookings *service.BookingService
}

func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

type appointmentView struct {
	ID        string    `json:"id"`
	DoctorID  string    `json:"doctor_id"`
	SlotID    string    `json:"time_slot_id"`
	PatientID string    `json:"patient_id"`
	Status    string    `json:"status"`
	StartsAt  time.Time `json:"starts_at"`
}

// CreateAppointment: POST /api/doctors/:id/appointments.
// 201 — успех; 404 — слота нет; 409 — занят или в прошлом; 503 —
// не дождались блокировки.
func (h *BookingHandler) CreateAppointment(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid doctor id")
		return
	}

	var req service.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	appt, err := h.bookings.Book(c.Request.Context(), doctorID, &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	Created(c, "appointment created", appointmentView{
		ID:        appt.ID.String(),
		DoctorID:  appt.DoctorID.String(),
		SlotID:    appt.SlotID.String(),
		PatientID: appt.PatientID.String(),
		Status:    string(appt.Status),
		StartsAt:  appt.Slot.StartsAt(),
	})
}

// CancelAppointment: DELETE /api/appointments/:id. Слот освобождается
// синхронно, если его время ещё не прошло.
func (h *BookingHandler) CancelAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid appointment id")
		return
	}

	byStaff := middleware.IsStaff(c)
	if err := h.bookings.Cancel(c.Request.Context(), id, byStaff); err != nil {
		ServiceError(c, err)
		return
	}

	Success(c, "appointment cancelled", nil)
}
