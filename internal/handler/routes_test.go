package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/medcenter-kg/booking-core/internal/middleware"
	"github.com/medcenter-kg/booking-core/internal/model"
	"github.com/medcenter-kg/booking-core/internal/notify"
	"github.com/medcenter-kg/booking-core/internal/repository"
	"github.com/medcenter-kg/booking-core/internal/schedule"
	"github.com/medcenter-kg/booking-core/internal/service"
)

const testJWTSecret = "test-secret"

var handlerNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?_busy_timeout=5000"), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	// Minimal schema for the query/update logic (sqlite-friendly).
	schemaDDL := []string{
		`CREATE TABLE doctors (
			id TEXT PRIMARY KEY,
			full_name_ru TEXT NOT NULL,
			full_name_ky TEXT,
			room_number TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE patients (
			id TEXT PRIMARY KEY,
			full_name TEXT NOT NULL,
			phone TEXT NOT NULL UNIQUE,
			is_guest BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE schedule_templates (
			id TEXT PRIMARY KEY,
			doctor_id TEXT NOT NULL,
			day_of_week INTEGER NOT NULL,
			start_min INTEGER NOT NULL,
			end_min INTEGER NOT NULL,
			break_start_min INTEGER,
			break_end_min INTEGER,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			horizon_days INTEGER NOT NULL DEFAULT 31,
			last_generation DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE template_slots (
			id TEXT PRIMARY KEY,
			template_id TEXT NOT NULL,
			start_min INTEGER NOT NULL,
			type TEXT NOT NULL,
			duration_min INTEGER NOT NULL,
			UNIQUE (template_id, start_min)
		);`,
		`CREATE TABLE schedules (
			id TEXT PRIMARY KEY,
			doctor_id TEXT NOT NULL,
			day_of_week INTEGER NOT NULL,
			start_min INTEGER NOT NULL,
			end_min INTEGER NOT NULL,
			break_start_min INTEGER,
			break_end_min INTEGER,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME,
			updated_at DATETIME,
			UNIQUE (doctor_id, day_of_week)
		);`,
		`CREATE TABLE time_slots (
			id TEXT PRIMARY KEY,
			doctor_id TEXT NOT NULL,
			template_id TEXT,
			date DATETIME NOT NULL,
			start_min INTEGER NOT NULL,
			type TEXT NOT NULL,
			duration_min INTEGER NOT NULL,
			is_available BOOLEAN NOT NULL DEFAULT 1,
			is_deleted BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME,
			UNIQUE (doctor_id, date, start_min)
		);`,
		`CREATE TABLE appointments (
			id TEXT PRIMARY KEY,
			doctor_id TEXT NOT NULL,
			slot_id TEXT NOT NULL,
			patient_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'scheduled',
			comment TEXT,
			cancelled_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE UNIQUE INDEX ux_appointment_slot_open
			ON appointments (slot_id) WHERE status = 'scheduled';`,
	}
	for _, stmt := range schemaDDL {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	log := zerolog.Nop()
	now := func() time.Time { return handlerNow }

	slots := repository.NewGormSlotRepository(db)
	templates := repository.NewGormTemplateRepository(db)
	doctors := repository.NewGormDoctorRepository(db)
	patients := repository.NewGormPatientRepository(db)
	appointments := repository.NewGormAppointmentRepository(db)

	gen := service.NewGenerationService(templates, slots, log, now)
	booking := service.NewBookingService(db, appointments, patients, notify.NewLogNotifier(log), log, now)
	tplSvc := service.NewTemplateService(templates, doctors, gen, log)

	r := gin.New()
	noRegen := func(c *gin.Context) { c.Next() }
	SetupRoutes(r, Handlers{
		Doctors:   NewDoctorHandler(doctors, slots),
		Bookings:  NewBookingHandler(booking),
		Templates: NewTemplateHandler(tplSvc),
		Admin:     NewAdminHandler(gen, slots, booking),
	}, testJWTSecret, noRegen)

	return r, db
}

func seedDoctorAndSlot(t *testing.T, db *gorm.DB) (*model.Doctor, *model.TimeSlot) {
	t.Helper()
	doc := &model.Doctor{
		FullNameRU: "Асанова Айгуль Болотовна",
		FullNameKY: "Асанова Айгүл Болотовна",
		RoomNumber: "14",
		IsActive:   true,
	}
	if err := db.Create(doc).Error; err != nil {
		t.Fatalf("create doctor: %v", err)
	}
	slot := &model.TimeSlot{
		DoctorID:    doc.ID,
		Date:        schedule.DateOf(handlerNow.AddDate(0, 0, 1)),
		StartMin:    9 * 60,
		Type:        model.SlotTypeTreatment,
		DurationMin: 40,
		IsAvailable: true,
	}
	if err := db.Create(slot).Error; err != nil {
		t.Fatalf("create slot: %v", err)
	}
	return doc, slot
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func staffToken(t *testing.T) string {
	t.Helper()
	claims := middleware.Claims{
		UserID: "admin-1",
		Role:   middleware.RoleStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			// Срок жизни считается от реальных часов проверки токена.
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestListDoctors_Localized(t *testing.T) {
	r, db := newTestRouter(t)
	seedDoctorAndSlot(t, db)

	w := doJSON(t, r, http.MethodGet, "/api/doctors", nil, map[string]string{"Accept-Language": "ky-KG,ky;q=0.9"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Name != "Асанова Айгүл Болотовна" {
		t.Fatalf("unexpected doctors payload: %s", w.Body.String())
	}
}

func TestAvailableSlots_ByDate(t *testing.T) {
	r, db := newTestRouter(t)
	doc, slot := seedDoctorAndSlot(t, db)

	date := time.Time(slot.Date).Format("2006-01-02")
	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/doctors/%s/available-slots?date=%s", doc.ID, date), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data []struct {
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Start != "09:00" || resp.Data[0].End != "09:40" {
		t.Fatalf("unexpected slots payload: %s", w.Body.String())
	}

	// Без параметров диапазона — 400.
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/doctors/%s/available-slots", doc.ID), nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing range: status = %d, want 400", w.Code)
	}
}

func TestCreateAppointment_Statuses(t *testing.T) {
	r, db := newTestRouter(t)
	doc, slot := seedDoctorAndSlot(t, db)

	body := map[string]any{
		"time_slot_id":  slot.ID.String(),
		"patient_phone": "+996555123456",
		"patient_name":  "Иванова Мария",
	}
	path := fmt.Sprintf("/api/doctors/%s/appointments", doc.ID)

	w := doJSON(t, r, http.MethodPost, path, body, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("first booking: status = %d, want 201: %s", w.Code, w.Body.String())
	}

	// Повторное бронирование того же слота — конфликт.
	body["patient_phone"] = "+996700654321"
	w = doJSON(t, r, http.MethodPost, path, body, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("second booking: status = %d, want 409: %s", w.Code, w.Body.String())
	}

	// Неполное тело — 400.
	w = doJSON(t, r, http.MethodPost, path, map[string]any{"patient_phone": "+996555123456"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("incomplete body: status = %d, want 400", w.Code)
	}
}

func TestStaffRoutes_RequireAuth(t *testing.T) {
	r, db := newTestRouter(t)
	doc, _ := seedDoctorAndSlot(t, db)

	tplBody := map[string]any{
		"doctor_id":   doc.ID.String(),
		"day_of_week": 1,
		"start":       "08:00",
		"end":         "17:00",
		"is_active":   true,
		"definitions": []map[string]any{
			{"start": "09:00", "type": "treatment"},
		},
	}

	w := doJSON(t, r, http.MethodPost, "/api/templates", tplBody, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", w.Code)
	}

	headers := map[string]string{"Authorization": "Bearer " + staffToken(t)}
	w = doJSON(t, r, http.MethodPost, "/api/templates", tplBody, headers)
	if w.Code != http.StatusCreated {
		t.Fatalf("staff token: status = %d, want 201: %s", w.Code, w.Body.String())
	}
}
