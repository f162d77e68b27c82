package geo

import (
	"github.com/golang/geo/s2"
)

// CalculateGreatCircleDistance. great-circle distance in km on the s2 sphere.
// Slightly more expensive than the haversine formula but numerically stable
// for antipodal and very short separations.
func CalculateGreatCircleDistance(latOne, longOne, latTwo, longTwo float64) float64 {
	pointOne := s2.LatLngFromDegrees(latOne, longOne)
	pointTwo := s2.LatLngFromDegrees(latTwo, longTwo)
	return pointOne.Distance(pointTwo).Radians() * earthRadiusKM
}

// ChordDistanceKM. distance in km recovered from the chord angle against a
// fixed point, cheaper when many distances from the same query point are
// needed.
func ChordDistanceKM(fixed s2.Point, lat, lon float64) float64 {
	p := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
	return s2.ChordAngleBetweenPoints(fixed, p).Angle().Radians() * earthRadiusKM
}

// PointFromCoordinate converts to the s2 unit-sphere representation.
func PointFromCoordinate(c Coordinate) s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(c.Lat, c.Lon))
}
