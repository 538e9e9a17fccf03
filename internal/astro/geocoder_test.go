package astro

import (
	"errors"
	"testing"

	geo "github.com/codingsince1985/geo-golang"

	"github.com/Rajan093/VastuAi/internal/core"
	"github.com/Rajan093/VastuAi/internal/models"
)

type fakeGeoProvider struct {
	loc *geo.Location
	err error
}

func (f *fakeGeoProvider) Geocode(address string) (*geo.Location, error) {
	return f.loc, f.err
}

func (f *fakeGeoProvider) ReverseGeocode(lat, lng float64) (*geo.Address, error) {
	return nil, nil
}

type fakeTzFinder struct{ name string }

func (f *fakeTzFinder) GetTimezoneName(lng, lat float64) string { return f.name }

func TestResolveFillsCoordinatesAndTimezone(t *testing.T) {
	g := &Geocoder{
		geocoder: &fakeGeoProvider{loc: &geo.Location{Lat: 26.9124, Lng: 75.7873}},
		tz:       &fakeTzFinder{name: "Asia/Kolkata"},
	}

	b := models.BirthDetails{Date: "1990-05-15", Time: "14:30", Place: "Jaipur, India"}
	if err := g.Resolve(&b); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if b.Latitude != 26.9124 || b.Longitude != 75.7873 {
		t.Errorf("coordinates = %f, %f", b.Latitude, b.Longitude)
	}
	if b.Timezone != "Asia/Kolkata" {
		t.Errorf("timezone = %q", b.Timezone)
	}
	if b.UTCOffset != 5.5 {
		t.Errorf("utc offset = %f, want 5.5", b.UTCOffset)
	}
}

func TestResolveNotFound(t *testing.T) {
	g := &Geocoder{
		geocoder: &fakeGeoProvider{loc: nil},
		tz:       &fakeTzFinder{name: "Asia/Kolkata"},
	}

	b := models.BirthDetails{Date: "1990-05-15", Time: "14:30", Place: "Atlantis"}
	err := g.Resolve(&b)

	var resErr *core.ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("got %v, want ResolutionError", err)
	}
	if resErr.Place != "Atlantis" {
		t.Errorf("place = %q", resErr.Place)
	}
}

func TestResolveServiceFailure(t *testing.T) {
	g := &Geocoder{
		geocoder: &fakeGeoProvider{err: errors.New("nominatim timeout")},
		tz:       &fakeTzFinder{name: "Asia/Kolkata"},
	}

	b := models.BirthDetails{Place: "Jaipur"}
	var resErr *core.ResolutionError
	if err := g.Resolve(&b); !errors.As(err, &resErr) {
		t.Fatalf("got %v, want ResolutionError", err)
	}
}

func TestResolveEmptyPlace(t *testing.T) {
	g := &Geocoder{geocoder: &fakeGeoProvider{}, tz: &fakeTzFinder{}}

	b := models.BirthDetails{}
	var resErr *core.ResolutionError
	if err := g.Resolve(&b); !errors.As(err, &resErr) {
		t.Fatalf("got %v, want ResolutionError", err)
	}
}

func TestResolveNoTimezone(t *testing.T) {
	g := &Geocoder{
		geocoder: &fakeGeoProvider{loc: &geo.Location{Lat: 0, Lng: -160}},
		tz:       &fakeTzFinder{name: ""},
	}

	b := models.BirthDetails{Place: "middle of the Pacific"}
	var resErr *core.ResolutionError
	if err := g.Resolve(&b); !errors.As(err, &resErr) {
		t.Fatalf("got %v, want ResolutionError", err)
	}
}
