package models

import (
	"time"
)

// LocationSample представляет координаты субъекта в момент времени.
// Неизменяемый: новый сэмпл вытесняет старый, хаб хранит только последний.
type LocationSample struct {
	SubjectID  string    `json:"subject_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	CapturedAt time.Time `json:"captured_at"`
}
