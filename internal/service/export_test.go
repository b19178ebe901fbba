package service

import "time"

// SetDeadlineUnit заменяет единицу измерения дедлайна (минуту) в тестах,
// чтобы не ждать настоящие минуты срабатывания таймеров
func SetDeadlineUnit(s EscortService, unit time.Duration) {
	s.(*escortService).minute = unit
}

// PurgeTerminal вызывает уборку терминальных сессий с заданным "текущим" временем
func PurgeTerminal(s EscortService, now time.Time) {
	s.(*escortService).purgeTerminal(now)
}
