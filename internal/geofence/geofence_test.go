package geofence

import "testing"

func TestWithinCampus(t *testing.T) {
	campus := Boundary{
		Center:   Point{Lat: 17.384, Lon: 78.456},
		RadiusKm: 1.0,
	}

	tests := []struct {
		name     string
		point    Point
		boundary Boundary
		expected bool
	}{
		{"exact center", Point{Lat: 17.384, Lon: 78.456}, campus, true},
		{"0.5 km north", Point{Lat: 17.384 + 0.5/111.0, Lon: 78.456}, campus, true},
		{"0.5 km east", Point{Lat: 17.384, Lon: 78.456 + 0.5/111.0}, campus, true},
		{"just inside the boundary", Point{Lat: 17.384 + 0.99/111.0, Lon: 78.456}, campus, true},
		{"just outside", Point{Lat: 17.384 + 1.01/111.0, Lon: 78.456}, campus, false},
		{"50 km away", Point{Lat: 17.384 + 50.0/111.0, Lon: 78.456}, campus, false},
		{"diagonal inside", Point{Lat: 17.384 + 0.5/111.0, Lon: 78.456 + 0.5/111.0}, campus, true},
		{"diagonal outside", Point{Lat: 17.384 + 0.8/111.0, Lon: 78.456 + 0.8/111.0}, campus, false},
		{
			"zero radius accepts center",
			Point{Lat: 17.384, Lon: 78.456},
			Boundary{Center: Point{Lat: 17.384, Lon: 78.456}},
			true,
		},
		{
			"zero radius rejects anything else",
			Point{Lat: 17.3841, Lon: 78.456},
			Boundary{Center: Point{Lat: 17.384, Lon: 78.456}},
			false,
		},
		{
			"big radius covers a city",
			Point{Lat: 18.0, Lon: 79.0},
			Boundary{Center: Point{Lat: 17.384, Lon: 78.456}, RadiusKm: 200.0},
			true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := WithinCampus(tc.point, tc.boundary)
			if got != tc.expected {
				t.Errorf("WithinCampus(%+v, %+v) = %v; want %v",
					tc.point, tc.boundary, got, tc.expected)
			}
		})
	}
}
