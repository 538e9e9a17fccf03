package astro

import (
	"fmt"
	"time"

	geo "github.com/codingsince1985/geo-golang"
	"github.com/codingsince1985/geo-golang/openstreetmap"
	"github.com/ringsaturn/tzf"

	"github.com/Rajan093/VastuAi/internal/core"
	"github.com/Rajan093/VastuAi/internal/models"
)

// timezoneFinder is the subset of tzf used here, split out so tests can fake it.
type timezoneFinder interface {
	GetTimezoneName(lng, lat float64) string
}

// Geocoder resolves a birth place name to coordinates and a timezone.
// Nominatim (OpenStreetMap) for coordinates, tzf for the IANA zone.
type Geocoder struct {
	geocoder geo.Geocoder
	tz       timezoneFinder
}

// NewGeocoder builds a geocoder against the public Nominatim instance, or
// against nominatimURL when set.
func NewGeocoder(nominatimURL string) (*Geocoder, error) {
	finder, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, fmt.Errorf("init timezone finder: %w", err)
	}
	gc := openstreetmap.Geocoder()
	if nominatimURL != "" {
		gc = openstreetmap.GeocoderWithURL(nominatimURL)
	}
	return &Geocoder{geocoder: gc, tz: finder}, nil
}

// Resolve fills Latitude, Longitude, Timezone and UTCOffset on the birth
// details. Failures come back as a ResolutionError so the caller can ask the
// user to re-enter the location.
func (g *Geocoder) Resolve(b *models.BirthDetails) error {
	if b.Place == "" {
		return &core.ResolutionError{Place: b.Place, Err: fmt.Errorf("empty place name")}
	}

	loc, err := g.geocoder.Geocode(b.Place)
	if err != nil {
		return &core.ResolutionError{Place: b.Place, Err: err}
	}
	if loc == nil {
		return &core.ResolutionError{Place: b.Place}
	}
	b.Latitude = loc.Lat
	b.Longitude = loc.Lng

	name := g.tz.GetTimezoneName(loc.Lng, loc.Lat)
	if name == "" {
		return &core.ResolutionError{Place: b.Place, Err: fmt.Errorf("no timezone for %.4f, %.4f", loc.Lat, loc.Lng)}
	}
	zone, err := time.LoadLocation(name)
	if err != nil {
		return &core.ResolutionError{Place: b.Place, Err: fmt.Errorf("load timezone %q: %w", name, err)}
	}

	// The UTC offset is taken at the birth moment, not now; some zones have
	// changed offset or observed DST historically.
	at, err := time.ParseInLocation("2006-01-02 15:04", b.Date+" "+b.Time, zone)
	if err != nil {
		at = time.Now().In(zone)
	}
	_, offsetSec := at.Zone()

	b.Timezone = name
	b.UTCOffset = float64(offsetSec) / 3600.0
	return nil
}
