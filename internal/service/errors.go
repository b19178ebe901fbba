package service

import "errors"

// Ошибки уровня сервисов. Хендлеры сопоставляют их машиночитаемым кодам протокола.
var (
	// ErrInvalidDuration - длительность сопровождения должна быть положительной
	ErrInvalidDuration = errors.New("invalid escort duration")
	// ErrSessionAlreadyActive - у пользователя уже есть активная сессия сопровождения
	ErrSessionAlreadyActive = errors.New("escort session already active")
	// ErrSessionNotActive - сессия уже в терминальном состоянии; в том числе после
	// авто-эскалации, о которой вызывающий должен узнать явно
	ErrSessionNotActive = errors.New("escort session not active")
	// ErrSessionNotFound - сессия с таким id неизвестна
	ErrSessionNotFound = errors.New("escort session not found")
	// ErrAlertNotFound - оповещение с таким id неизвестно
	ErrAlertNotFound = errors.New("alert not found")
	// ErrAlertNotActive - переход допустим только из состояния active
	ErrAlertNotActive = errors.New("alert not active")
	// ErrInvalidAlertSpec - некорректные параметры оповещения
	ErrInvalidAlertSpec = errors.New("invalid alert spec")
)
