package astro

import (
	"fmt"
	"math"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/nutation"
	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/unit"

	"github.com/Rajan093/VastuAi/internal/core"
	"github.com/Rajan093/VastuAi/internal/models"
)

// VSOP87 is only trustworthy within a few millennia of J2000; the service
// bounds birth years well inside that.
const (
	minYear = 1800
	maxYear = 2200
)

const (
	HouseSystemEqual     = "equal"      // houses counted 30 degrees from the ascendant, Lal Kitab style
	HouseSystemWholeSign = "whole-sign" // the ascendant's sign is the whole first house
)

// Calculator turns resolved birth details into a sidereal chart. Pure: the
// same input always yields the same chart, up to the ephemeris' precision.
type Calculator struct {
	eph         Ephemeris
	houseSystem string
}

func NewCalculator(eph Ephemeris, houseSystem string) (*Calculator, error) {
	switch houseSystem {
	case HouseSystemEqual, HouseSystemWholeSign:
	default:
		return nil, fmt.Errorf("unknown house system %q", houseSystem)
	}
	return &Calculator{eph: eph, houseSystem: houseSystem}, nil
}

// Calculate computes sidereal (Lahiri) longitudes and house placements for
// all nine bodies. Unresolved locations and out-of-range dates come back as
// a CalculationError.
func (c *Calculator) Calculate(b models.BirthDetails) (*models.Horoscope, error) {
	if b.Timezone == "" {
		return nil, &core.CalculationError{Reason: "birth place has not been resolved"}
	}

	utc, err := b.BirthTimeUTC()
	if err != nil {
		return nil, &core.CalculationError{Reason: "invalid birth date or time", Err: err}
	}
	if y := utc.Year(); y < minYear || y > maxYear {
		return nil, &core.CalculationError{
			Reason: fmt.Sprintf("birth year %d outside supported range %d..%d", y, minYear, maxYear),
		}
	}

	jd := julian.TimeToJD(utc)
	ayan := LahiriAyanamsa(jd)
	asc := normalizeDeg(tropicalAscendant(jd, b.Latitude, b.Longitude) - ayan)

	positions := make(map[string]models.PlanetPosition, len(models.Bodies))
	for _, body := range models.Bodies {
		tropical, err := c.eph.TropicalLongitude(body, jd)
		if err != nil {
			return nil, &core.CalculationError{Reason: "ephemeris lookup for " + body, Err: err}
		}
		lon := normalizeDeg(tropical - ayan)
		positions[body] = models.PlanetPosition{
			Longitude: lon,
			House:     houseFor(lon, asc, c.houseSystem),
		}
	}

	return &models.Horoscope{
		Ascendant:   asc,
		HouseSystem: c.houseSystem,
		Positions:   positions,
	}, nil
}

// LahiriAyanamsa approximates the Lahiri (Chitrapaksha) ayanamsa in degrees:
// 23°51'08" at J2000, advancing ~50.27 arcseconds per year.
func LahiriAyanamsa(jd float64) float64 {
	const j2000 = 2451545.0
	years := (jd - j2000) / 365.25
	return 23.85236 + years*(50.2719/3600.0)
}

// houseFor maps a sidereal longitude to a house number (1..12) relative to
// the ascendant.
func houseFor(lon, asc float64, system string) int {
	if system == HouseSystemWholeSign {
		ascSign := int(asc / 30)
		sign := int(lon / 30)
		return (sign-ascSign+12)%12 + 1
	}
	return int(normalizeDeg(lon-asc)/30) + 1
}

// tropicalAscendant derives the rising degree from the apparent sidereal time
// at Greenwich, the birth longitude (east positive) and the obliquity.
func tropicalAscendant(jd, latDeg, lonDeg float64) float64 {
	var gst unit.Time = sidereal.Apparent(jd) // seconds of time, 240 per degree
	ramc := normalizeDeg(gst.Sec()/240+lonDeg) * math.Pi / 180

	eps := nutation.MeanObliquity(jd).Rad()
	phi := latDeg * math.Pi / 180

	asc := math.Atan2(math.Cos(ramc), -(math.Sin(ramc)*math.Cos(eps) + math.Tan(phi)*math.Sin(eps)))
	return normalizeDeg(asc * 180 / math.Pi)
}
