package geo

import (
	"math"

	"github.com/shenikar/guardian_tracking_system/internal/models"
)

// Радиус Земли в метрах
const earthRadiusMeters = 6371000.0

// DistanceMeters возвращает расстояние между двумя точками в метрах.
// Используется эквидистантная (планарная) аппроксимация: на масштабе кампуса
// (радиусы до нескольких километров) ошибка относительно большого круга
// заведомо меньше погрешности GPS.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	latRad := (lat1 + lat2) / 2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180 * math.Cos(latRad)
	return earthRadiusMeters * math.Sqrt(dLat*dLat+dLon*dLon)
}

// Contains проверяет, накрывает ли зона оповещения точку.
// Зона campus-wide накрывает любую точку.
func Contains(scope models.AlertScope, lat, lon float64) bool {
	if scope.CampusWide {
		return true
	}
	if scope.RadiusMeters <= 0 {
		return false
	}
	return DistanceMeters(scope.Latitude, scope.Longitude, lat, lon) <= float64(scope.RadiusMeters)
}
