package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/medcenter-kg/booking-core/internal/model"
	"github.com/medcenter-kg/booking-core/internal/notify"
	"github.com/medcenter-kg/booking-core/internal/repository"
	"github.com/medcenter-kg/booking-core/internal/schedule"
)

// Фиксированный «сейчас» для тестов: понедельник, 10:00 UTC.
var testNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

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
	// Одно соединение: иначе каждая горутина пула получит отдельную
	// пустую in-memory базу.
	sqlDB.SetMaxOpenConns(1)

	// Minimal schema for the query/update logic (sqlite-friendly).
	schema := []string{
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
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

// testEnv собирает сервисы поверх одной in-memory базы.
type testEnv struct {
	db        *gorm.DB
	slots     repository.SlotRepository
	templates repository.TemplateRepository
	gen       *GenerationService
	booking   *BookingService
	tplSvc    *TemplateService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := openTestDB(t)
	log := zerolog.Nop()

	slots := repository.NewGormSlotRepository(db)
	templates := repository.NewGormTemplateRepository(db)
	doctors := repository.NewGormDoctorRepository(db)
	patients := repository.NewGormPatientRepository(db)
	appointments := repository.NewGormAppointmentRepository(db)

	gen := NewGenerationService(templates, slots, log, fixedNow)
	booking := NewBookingService(db, appointments, patients, notify.NewLogNotifier(log), log, fixedNow)
	tplSvc := NewTemplateService(templates, doctors, gen, log)

	return &testEnv{
		db:        db,
		slots:     slots,
		templates: templates,
		gen:       gen,
		booking:   booking,
		tplSvc:    tplSvc,
	}
}

func (e *testEnv) createDoctor(t *testing.T) *model.Doctor {
	t.Helper()
	d := &model.Doctor{
		FullNameRU: "Асанова Айгуль Болотовна",
		FullNameKY: "Асанова Айгүл Болотовна",
		RoomNumber: "14",
		IsActive:   true,
	}
	if err := e.db.Create(d).Error; err != nil {
		t.Fatalf("create doctor: %v", err)
	}
	return d
}

// createTemplate сохраняет шаблон с определениями напрямую через
// репозиторий, минуя сервисную валидацию.
func (e *testEnv) createTemplate(
	t *testing.T,
	doctorID uuid.UUID,
	dayOfWeek int,
	defs []model.TemplateSlot,
) *model.ScheduleTemplate {
	t.Helper()
	tpl := &model.ScheduleTemplate{
		DoctorID:      doctorID,
		DayOfWeek:     dayOfWeek,
		StartMin:      8 * 60,
		EndMin:        17 * 60,
		BreakStartMin: intPtr(12 * 60),
		BreakEndMin:   intPtr(13 * 60),
		IsActive:      true,
		HorizonDays:   14,
	}
	if err := e.templates.SaveWithDefinitions(context.Background(), tpl, defs); err != nil {
		t.Fatalf("save template: %v", err)
	}
	tpl.Definitions = defs
	return tpl
}

// createSlot вставляет слот напрямую, в обход проектора.
func (e *testEnv) createSlot(
	t *testing.T,
	doctorID uuid.UUID,
	date datatypes.Date,
	startMin int,
	typ model.SlotType,
) *model.TimeSlot {
	t.Helper()
	slot := &model.TimeSlot{
		DoctorID:    doctorID,
		Date:        date,
		StartMin:    startMin,
		Type:        typ,
		DurationMin: typ.DurationMin(),
		IsAvailable: true,
	}
	if err := e.db.Create(slot).Error; err != nil {
		t.Fatalf("create slot: %v", err)
	}
	return slot
}

func (e *testEnv) reloadSlot(t *testing.T, id uuid.UUID) *model.TimeSlot {
	t.Helper()
	var slot model.TimeSlot
	if err := e.db.First(&slot, "id = ?", id).Error; err != nil {
		t.Fatalf("reload slot: %v", err)
	}
	return &slot
}

func intPtr(v int) *int { return &v }

func today() datatypes.Date { return schedule.DateOf(testNow) }

func daysFromNow(n int) datatypes.Date {
	return schedule.DateOf(testNow.AddDate(0, 0, n))
}

func consultationDef(startMin int) model.TemplateSlot {
	return model.TemplateSlot{
		StartMin:    startMin,
		Type:        model.SlotTypeConsultation,
		DurationMin: model.SlotTypeConsultation.DurationMin(),
	}
}

func treatmentDef(startMin int) model.TemplateSlot {
	return model.TemplateSlot{
		StartMin:    startMin,
		Type:        model.SlotTypeTreatment,
		DurationMin: model.SlotTypeTreatment.DurationMin(),
	}
}
