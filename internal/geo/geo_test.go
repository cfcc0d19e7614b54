package geo

import (
	"math"
	"math/rand"
	"testing"
)

var (
	saoPaulo = Coordinate{Latitude: -23.5505, Longitude: -46.6333}
	rio      = Coordinate{Latitude: -22.9068, Longitude: -43.1729}
)

func TestDistanceKnownPair(t *testing.T) {
	d := Distance(saoPaulo, rio)
	if d < 355 || d > 362 {
		t.Errorf("Expected São Paulo -> Rio around 357km, got %.2f", d)
	}
}

func TestDistanceSamePointIsZero(t *testing.T) {
	points := []Coordinate{
		saoPaulo,
		rio,
		{Latitude: 0, Longitude: 0},
		{Latitude: 90, Longitude: 180},
		{Latitude: -89.999, Longitude: -179.5},
	}
	for _, p := range points {
		if d := Distance(p, p); d != 0 {
			t.Errorf("Expected zero distance for %+v, got %v", p, d)
		}
	}
}

func TestDistanceSymmetricAndNonNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		a := Coordinate{Latitude: rng.Float64()*180 - 90, Longitude: rng.Float64()*360 - 180}
		b := Coordinate{Latitude: rng.Float64()*180 - 90, Longitude: rng.Float64()*360 - 180}

		ab := Distance(a, b)
		ba := Distance(b, a)
		if ab < 0 {
			t.Fatalf("Negative distance %v for %+v -> %+v", ab, a, b)
		}
		if math.Abs(ab-ba) > 1e-9 {
			t.Fatalf("Asymmetric distance: %v vs %v for %+v, %+v", ab, ba, a, b)
		}
		if ab > math.Pi*EarthRadiusKm+1e-6 {
			t.Fatalf("Distance %v exceeds half circumference", ab)
		}
	}
}

func TestDistanceAntipodal(t *testing.T) {
	d := Distance(Coordinate{Latitude: 0, Longitude: 0}, Coordinate{Latitude: 0, Longitude: 180})
	want := math.Pi * EarthRadiusKm
	if math.Abs(d-want) > 1e-3 {
		t.Errorf("Expected %v, got %v", want, d)
	}
}
