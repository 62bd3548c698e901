package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/medcenter-kg/booking-core/internal/middleware"
)

// Handlers — набор обработчиков для маршрутизации.
type Handlers struct {
	Doctors   *DoctorHandler
	Bookings  *BookingHandler
	Templates *TemplateHandler
	Admin     *AdminHandler
}

// SetupRoutes регистрирует маршруты API. Чтение врачей и слотов
// открыто (гостевое бронирование) и триггерит ленивую регенерацию;
// управление шаблонами и массовые операции — только персонал.
func SetupRoutes(r *gin.Engine, h Handlers, jwtSecret string, lazyRegen gin.HandlerFunc) {
	api := r.Group("/api")

	public := api.Group("")
	public.Use(lazyRegen)
	{
		public.GET("/doctors", h.Doctors.ListDoctors)
		public.GET("/doctors/:id/available-slots", h.Doctors.AvailableSlots)
	}

	api.POST("/doctors/:id/appointments", h.Bookings.CreateAppointment)
	api.DELETE("/appointments/:id", h.Bookings.CancelAppointment)

	staff := api.Group("")
	staff.Use(middleware.Auth(jwtSecret), middleware.RequireStaff())
	{
		staff.POST("/templates", h.Templates.UpsertTemplate)
		staff.GET("/templates", h.Templates.ListTemplates)

		staff.POST("/admin/slots/generate", h.Admin.GenerateSlots)
		staff.POST("/admin/slots/delete", h.Admin.SoftDeleteSlots)
		staff.POST("/admin/slots/restore", h.Admin.RestoreSlots)

		staff.PATCH("/admin/appointments/:id/outcome", h.Admin.RecordOutcome)
		staff.GET("/admin/patients/:id/appointments", h.Admin.PatientAppointments)
	}
}
