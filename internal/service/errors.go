package service

import "errors"

// Таксономия ошибок ядра. Гоночные исходы (ErrSlotTaken, ErrLockTimeout)
// штатны и не считаются сбоем системы.
var (
	// Нарушение формы входных данных; отклоняется целиком до записи.
	ErrValidation = errors.New("validation error")

	// Активный шаблон на (врач, день недели) уже существует; вызывающий
	// обязан сначала деактивировать его явно.
	ErrActiveTemplateExists = errors.New("an active template for this doctor and weekday already exists")

	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrTemplateNotFound    = errors.New("template not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// Слот не существует или скрыт мягким удалением.
	ErrSlotNotFound = errors.New("slot not found")
	// Слот уже занят: проигрыш гонки бронирования. Не ретраится тем же
	// запросом — вызывающий перечитывает список свободных слотов.
	ErrSlotTaken = errors.New("slot is no longer available")
	// Начало слота уже прошло.
	ErrSlotInPast = errors.New("slot is in the past")
	// Ограниченное ожидание блокировки истекло; транзиентная ошибка,
	// отличимая от ErrSlotTaken, чтобы вызывающий мог повторить попытку.
	ErrLockTimeout = errors.New("slot is locked by another request, try again")
)
