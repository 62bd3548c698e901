package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// patients
//
// Справочник пациентов ключуется телефоном: повторная запись с тем же
// номером переиспользует существующую карточку. Гостевые записи (без
// регистрации) помечаются IsGuest.
type Patient struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	FullName string `gorm:"type:varchar(64);not null"`
	Phone    string `gorm:"type:varchar(16);not null;uniqueIndex"`
	IsGuest  bool   `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (p *Patient) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
