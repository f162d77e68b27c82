package geo

import (
	"math"
	"testing"
)

func TestDistancesAgreeAtMetroScale(t *testing.T) {
	// census tract centroids a few km apart: all three metrics must agree to
	// well under one percent at this scale.
	testCases := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKM                 float64
	}{
		{
			name: "chicago loop to hyde park",
			lat1: 41.8781, lon1: -87.6298,
			lat2: 41.7943, lon2: -87.5907,
			wantKM: 9.87,
		},
		{
			name: "same point",
			lat1: 41.8781, lon1: -87.6298,
			lat2: 41.8781, lon2: -87.6298,
			wantKM: 0,
		},
		{
			name: "one degree of longitude at the equator",
			lat1: 0, lon1: 0,
			lat2: 0, lon2: 1,
			wantKM: 111.19,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			hav := CalculateHaversineDistance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			eqr := CalculateEuclidianDistanceEquirectangularProj(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			gc := CalculateGreatCircleDistance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)

			if math.Abs(hav-tt.wantKM) > 0.05 {
				t.Errorf("haversine: got %v, want %v", hav, tt.wantKM)
			}
			if math.Abs(eqr-tt.wantKM) > 0.1 {
				t.Errorf("equirectangular: got %v, want %v", eqr, tt.wantKM)
			}
			if math.Abs(gc-hav) > 0.01 {
				t.Errorf("s2 great circle %v disagrees with haversine %v", gc, hav)
			}
		})
	}
}

func TestGetDestinationPointRoundTrip(t *testing.T) {
	lat, lon := 41.8781, -87.6298
	dist := 5.0

	destLat, destLon := GetDestinationPoint(lat, lon, 45, dist)
	back := CalculateHaversineDistance(lat, lon, destLat, destLon)
	if math.Abs(back-dist) > 1e-6 {
		t.Errorf("destination point is %v km away, want %v", back, dist)
	}
}

func TestDistanceByName(t *testing.T) {
	for _, name := range []string{"haversine", "equirectangular", "s2"} {
		fn, err := DistanceByName(name)
		if err != nil {
			t.Fatalf("metric %s: %v", name, err)
		}
		if fn == nil {
			t.Fatalf("metric %s: nil function", name)
		}
	}

	if _, err := DistanceByName("manhattan"); err == nil {
		t.Error("unknown metric must fail")
	}
}
