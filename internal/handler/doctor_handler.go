package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medcenter-kg/booking-core/internal/model"
	"github.com/medcenter-kg/booking-core/internal/repository"
	"github.com/medcenter-kg/booking-core/internal/schedule"
)

// DoctorHandler отвечает за чтение врачей и их свободных слотов.
type DoctorHandler struct {
	doctors repository.DoctorRepository
	slots   repository.SlotRepository
}

func NewDoctorHandler(doctors repository.DoctorRepository, slots repository.SlotRepository) *DoctorHandler {
	return &DoctorHandler{doctors: doctors, slots: slots}
}

type doctorView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	RoomNumber string `json:"room_number,omitempty"`
}

// ListDoctors возвращает активных врачей с именами в запрошенной локали.
func (h *DoctorHandler) ListDoctors(c *gin.Context) {
	locale := localeFromRequest(c)

	doctors, err := h.doctors.ListActive(c.Request.Context())
	if err != nil {
		InternalServerError(c, "list doctors: "+err.Error())
		return
	}

	out := make([]doctorView, 0, len(doctors))
	for i := range doctors {
		d := &doctors[i]
		out = append(out, doctorView{
			ID:         d.ID.String(),
			Name:       d.DisplayName(locale),
			RoomNumber: d.RoomNumber,
		})
	}
	Success(c, "doctors", out)
}

type slotView struct {
	ID       string         `json:"id"`
	Date     string         `json:"date"`
	Start    string         `json:"start"`
	End      string         `json:"end"`
	Type     model.SlotType `json:"type"`
	Duration int            `json:"duration_min"`
}

// AvailableSlots возвращает живые доступные слоты врача за день
// (?date=YYYY-MM-DD) либо за месяц (?year=&month=), сортировка по
// (дата, время начала).
func (h *DoctorHandler) AvailableSlots(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid doctor id")
		return
	}

	from, to, err := parseSlotRange(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	slots, err := h.slots.Live().ListAvailable(
		c.Request.Context(),
		doctorID,
		schedule.DateOf(from),
		schedule.DateOf(to),
	)
	if err != nil {
		InternalServerError(c, "list slots: "+err.Error())
		return
	}

	out := make([]slotView, 0, len(slots))
	for i := range slots {
		s := &slots[i]
		out = append(out, slotView{
			ID:       s.ID.String(),
			Date:     time.Time(s.Date).Format("2006-01-02"),
			Start:    schedule.FormatClock(s.StartMin),
			End:      schedule.FormatClock(s.EndMin()),
			Type:     s.Type,
			Duration: s.DurationMin,
		})
	}
	Success(c, "available slots", out)
}

func parseSlotRange(c *gin.Context) (time.Time, time.Time, error) {
	if dateStr := c.Query("date"); dateStr != "" {
		day, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid date, expected YYYY-MM-DD")
		}
		return day, day, nil
	}

	var year, month int
	if _, err := fmt.Sscan(c.Query("year"), &year); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("date or year+month query parameters are required")
	}
	if _, err := fmt.Sscan(c.Query("month"), &month); err != nil || month < 1 || month > 12 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month")
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first, last, nil
}
