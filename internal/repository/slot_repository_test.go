package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/medcenter-kg/booking-core/internal/model"
	"github.com/medcenter-kg/booking-core/internal/schedule"
)

func openSlotDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Minimal schema for the query/update logic (sqlite-friendly).
	err = db.Exec(`CREATE TABLE time_slots (
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
	);`).Error
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func slotFixture(doctorID uuid.UUID, day time.Time, startMin int) *model.TimeSlot {
	return &model.TimeSlot{
		DoctorID:    doctorID,
		Date:        schedule.DateOf(day),
		StartMin:    startMin,
		Type:        model.SlotTypeTreatment,
		DurationMin: 40,
		IsAvailable: true,
	}
}

func TestSlotCreate_RejectsOverlap(t *testing.T) {
	db := openSlotDB(t)
	repo := NewGormSlotRepository(db)
	ctx := context.Background()

	doctorID := uuid.New()
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	if err := repo.Create(ctx, slotFixture(doctorID, day, 9*60)); err != nil {
		t.Fatalf("create: %v", err)
	}

	// 09:20 пересекает [09:00, 09:40).
	err := repo.Create(ctx, slotFixture(doctorID, day, 9*60+20))
	if !errors.Is(err, ErrSlotOverlap) {
		t.Fatalf("overlapping create: got %v, want ErrSlotOverlap", err)
	}

	// Стык впритык не пересечение.
	if err := repo.Create(ctx, slotFixture(doctorID, day, 9*60+40)); err != nil {
		t.Fatalf("back-to-back create: %v", err)
	}

	// Тот же интервал у другого врача — не пересечение.
	if err := repo.Create(ctx, slotFixture(uuid.New(), day, 9*60+20)); err != nil {
		t.Fatalf("other doctor: %v", err)
	}

	// Дубликат ключа (врач, дата, начало) транслируется gorm-ом.
	nextWeek := slotFixture(doctorID, day.AddDate(0, 0, 7), 9*60)
	if err := repo.Create(ctx, nextWeek); err != nil {
		t.Fatalf("next week: %v", err)
	}
	// Занятый слот проверка пересечений не видит, уникальный ключ ловит.
	if err := db.Model(nextWeek).Update("is_available", false).Error; err != nil {
		t.Fatalf("mark unavailable: %v", err)
	}
	dup := slotFixture(doctorID, day.AddDate(0, 0, 7), 9*60)
	if err := repo.Create(ctx, dup); !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("duplicate key: got %v, want gorm.ErrDuplicatedKey", err)
	}
}

func TestSlotSoftDeleteRestore(t *testing.T) {
	db := openSlotDB(t)
	repo := NewGormSlotRepository(db)
	ctx := context.Background()

	doctorID := uuid.New()
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	a := slotFixture(doctorID, day, 9*60)
	b := slotFixture(doctorID, day, 10*60)
	for _, s := range []*model.TimeSlot{a, b} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	n, err := repo.SoftDelete(ctx, []uuid.UUID{a.ID, b.ID})
	if err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if n != 2 {
		t.Fatalf("soft deleted %d, want 2", n)
	}

	// Повторное удаление ничего не трогает.
	if n, _ = repo.SoftDelete(ctx, []uuid.UUID{a.ID, b.ID}); n != 0 {
		t.Fatalf("repeated soft delete touched %d rows", n)
	}

	// Live-представление удалённых не видит, All — видит.
	if _, err := repo.Live().Get(ctx, a.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("live view returned deleted slot: %v", err)
	}
	got, err := repo.All().Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("all view: %v", err)
	}
	if !got.IsDeleted {
		t.Fatalf("slot must be marked deleted")
	}

	n, err = repo.Restore(ctx, []uuid.UUID{a.ID})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if n != 1 {
		t.Fatalf("restored %d, want 1", n)
	}
	got, err = repo.Live().Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("live view after restore: %v", err)
	}
	if !got.IsAvailable {
		t.Fatalf("restored slot must be available")
	}
}
