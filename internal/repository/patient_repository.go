package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medcenter-kg/booking-core/internal/model"
)

type PatientRepository interface {
	// UpsertByPhone возвращает пациента по телефону, создавая карточку
	// при первом обращении и обновляя имя при повторном.
	UpsertByPhone(ctx context.Context, phone, fullName string, guest bool) (*model.Patient, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Patient, error)
}

type GormPatientRepository struct {
	db *gorm.DB
}

func NewGormPatientRepository(db *gorm.DB) *GormPatientRepository {
	return &GormPatientRepository{db: db}
}

func (r *GormPatientRepository) UpsertByPhone(
	ctx context.Context,
	phone, fullName string,
	guest bool,
) (*model.Patient, error) {
	var p model.Patient
	err := r.db.WithContext(ctx).First(&p, "phone = ?", phone).Error
	switch {
	case err == nil:
		if fullName != "" && fullName != p.FullName {
			p.FullName = fullName
			if err := r.db.WithContext(ctx).Model(&p).Update("full_name", fullName).Error; err != nil {
				return nil, err
			}
		}
		return &p, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		p = model.Patient{Phone: phone, FullName: fullName, IsGuest: guest}
		if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
			// Гонка двух параллельных регистраций одного номера: второй
			// Create падает на уникальности, перечитываем.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				var again model.Patient
				if err2 := r.db.WithContext(ctx).First(&again, "phone = ?", phone).Error; err2 == nil {
					return &again, nil
				}
			}
			return nil, err
		}
		return &p, nil
	default:
		return nil, err
	}
}

func (r *GormPatientRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	var p model.Patient
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}
