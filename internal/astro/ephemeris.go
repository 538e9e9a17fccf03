package astro

import (
	"fmt"
	"math"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/meeus/v3/elliptic"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/nutation"
	"github.com/soniakeys/meeus/v3/planetposition"
	"github.com/soniakeys/meeus/v3/solar"
)

// Ephemeris supplies geocentric tropical ecliptic longitudes for the classical
// bodies at a Julian day. The calculator stays a pure function of this.
type Ephemeris interface {
	TropicalLongitude(body string, jd float64) (float64, error)
}

// MeeusEphemeris computes positions from VSOP87 theory (pure Go, no external
// ephemeris files beyond the VSOP87 data set loaded at startup).
type MeeusEphemeris struct {
	earth   *planetposition.V87Planet
	planets map[string]*planetposition.V87Planet
}

// NewMeeusEphemeris loads the VSOP87 data for Earth and the five true planets.
// The data directory is resolved by the library from the VSOP87 env var.
func NewMeeusEphemeris() (*MeeusEphemeris, error) {
	earth, err := planetposition.LoadPlanet(planetposition.Earth)
	if err != nil {
		return nil, fmt.Errorf("load VSOP87 earth: %w", err)
	}
	ids := map[string]int{
		"Mercury": planetposition.Mercury,
		"Venus":   planetposition.Venus,
		"Mars":    planetposition.Mars,
		"Jupiter": planetposition.Jupiter,
		"Saturn":  planetposition.Saturn,
	}
	planets := make(map[string]*planetposition.V87Planet, len(ids))
	for name, id := range ids {
		p, err := planetposition.LoadPlanet(id)
		if err != nil {
			return nil, fmt.Errorf("load VSOP87 %s: %w", name, err)
		}
		planets[name] = p
	}
	return &MeeusEphemeris{earth: earth, planets: planets}, nil
}

func (e *MeeusEphemeris) TropicalLongitude(body string, jd float64) (float64, error) {
	switch body {
	case "Sun":
		return normalizeDeg(solar.ApparentLongitude(base.J2000Century(jd)).Deg()), nil
	case "Moon":
		lam, _, _ := moonposition.Position(jd)
		return normalizeDeg(lam.Deg()), nil
	case "Rahu":
		return meanLunarNode(jd), nil
	case "Ketu":
		// Ketu sits diametrically opposite Rahu.
		return normalizeDeg(meanLunarNode(jd) + 180), nil
	default:
		p, ok := e.planets[body]
		if !ok {
			return 0, fmt.Errorf("unknown body %q", body)
		}
		ra, dec := elliptic.Position(p, e.earth, jd)
		se, ce := math.Sincos(nutation.MeanObliquity(jd).Rad())
		lon, _ := coord.EqToEcl(ra, dec, se, ce)
		return normalizeDeg(lon.Deg()), nil
	}
}

// meanLunarNode is the longitude of the Moon's mean ascending node
// (Meeus, Astronomical Algorithms ch. 47).
func meanLunarNode(jd float64) float64 {
	t := base.J2000Century(jd)
	om := 125.0445479 - 1934.1362891*t + 0.0020754*t*t + t*t*t/467441 - t*t*t*t/60616000
	return normalizeDeg(om)
}

func normalizeDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}
