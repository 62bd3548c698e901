package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// doctors
type Doctor struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	// Имя врача в двух локалях. Выбор поля делается явным параметром
	// locale на пути чтения, без глобального состояния.
	FullNameRU string `gorm:"type:varchar(128);not null"`
	FullNameKY string `gorm:"type:varchar(128)"`

	RoomNumber string `gorm:"type:varchar(16)"`
	IsActive   bool   `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (d *Doctor) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// DisplayName возвращает имя для запрошенной локали ("ru" | "ky").
// Для "ky" без перевода откатываемся на русское имя.
func (d *Doctor) DisplayName(locale string) string {
	if locale == "ky" && d.FullNameKY != "" {
		return d.FullNameKY
	}
	return d.FullNameRU
}
