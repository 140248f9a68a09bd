/*
Copyright © 2026 the MTpy authors.
This file is part of MTpy.

MTpy is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

MTpy is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with MTpy.  If not, see <http://www.gnu.org/licenses/>.
*/

package modem

import (
	"fmt"
	"math"
	"strconv"
)

// EllipsoidWGS84 is the reference ellipsoid index used throughout the
// package unless a caller asks for another one.
const EllipsoidWGS84 = 23

// utmK0 is the transverse Mercator scale factor on the central meridian.
const utmK0 = 0.9996

// ellipsoid is a reference ellipsoid for the transverse Mercator
// conversions.
type ellipsoid struct {
	name string
	a    float64 // equatorial radius, meters
	ecc2 float64 // eccentricity squared
}

// ellipsoids is the classic indexed ellipsoid table; index 23 is WGS-84.
var ellipsoids = []ellipsoid{
	{"Placeholder", 0, 0},
	{"Airy", 6377563, 0.00667054},
	{"Australian National", 6378160, 0.006694542},
	{"Bessel 1841", 6377397, 0.006674372},
	{"Bessel 1841 (Nambia)", 6377484, 0.006674372},
	{"Clarke 1866", 6378206, 0.006768658},
	{"Clarke 1880", 6378249, 0.006803511},
	{"Everest", 6377276, 0.006637847},
	{"Fischer 1960 (Mercury)", 6378166, 0.006693422},
	{"Fischer 1968", 6378150, 0.006693422},
	{"GRS 1967", 6378160, 0.006694605},
	{"GRS 1980", 6378137, 0.00669438},
	{"Helmert 1906", 6378200, 0.006693422},
	{"Hough", 6378270, 0.00672267},
	{"International", 6378388, 0.00672267},
	{"Krassovsky", 6378245, 0.006693422},
	{"Modified Airy", 6377340, 0.00667054},
	{"Modified Everest", 6377304, 0.006637847},
	{"Modified Fischer 1960", 6378155, 0.006693422},
	{"South American 1969", 6378160, 0.006694542},
	{"WGS 60", 6378165, 0.006693422},
	{"WGS 66", 6378145, 0.006694542},
	{"WGS-72", 6378135, 0.006694318},
	{"WGS-84", 6378137, 0.00669438},
}

// utmZoneLetters orders the UTM latitude band letters south to north.
var utmZoneLetters = map[byte]int{
	'C': 0, 'D': 1, 'E': 2, 'F': 3, 'G': 4, 'H': 5, 'J': 6, 'K': 7,
	'L': 8, 'M': 9, 'N': 10, 'P': 11, 'Q': 12, 'R': 13, 'S': 14,
	'T': 15, 'U': 16, 'V': 17, 'W': 18, 'X': 19,
}

// utmLetterDesignator returns the UTM latitude band letter for lat, or
// 'Z' outside the UTM limits of 84N to 80S.
func utmLetterDesignator(lat float64) byte {
	switch {
	case 84 >= lat && lat >= 72:
		return 'X'
	case 72 > lat && lat >= 64:
		return 'W'
	case 64 > lat && lat >= 56:
		return 'V'
	case 56 > lat && lat >= 48:
		return 'U'
	case 48 > lat && lat >= 40:
		return 'T'
	case 40 > lat && lat >= 32:
		return 'S'
	case 32 > lat && lat >= 24:
		return 'R'
	case 24 > lat && lat >= 16:
		return 'Q'
	case 16 > lat && lat >= 8:
		return 'P'
	case 8 > lat && lat >= 0:
		return 'N'
	case 0 > lat && lat >= -8:
		return 'M'
	case -8 > lat && lat >= -16:
		return 'L'
	case -16 > lat && lat >= -24:
		return 'K'
	case -24 > lat && lat >= -32:
		return 'J'
	case -32 > lat && lat >= -40:
		return 'H'
	case -40 > lat && lat >= -48:
		return 'G'
	case -48 > lat && lat >= -56:
		return 'F'
	case -56 > lat && lat >= -64:
		return 'E'
	case -64 > lat && lat >= -72:
		return 'D'
	case -72 > lat && lat >= -80:
		return 'C'
	default:
		return 'Z'
	}
}

// LatLonToUTM converts a geographic position on the given reference
// ellipsoid to UTM easting and northing in meters, choosing the zone
// from the longitude. The returned zone is the zone number followed by
// the latitude band letter, e.g. "55K". East longitudes are positive,
// west negative; latitudes and longitudes are in decimal degrees.
func LatLonToUTM(ellipsoidIdx int, lat, lon float64) (zone string, easting, northing float64, err error) {
	if ellipsoidIdx < 1 || ellipsoidIdx >= len(ellipsoids) {
		return "", 0, 0, fmt.Errorf("modem: invalid ellipsoid index %d", ellipsoidIdx)
	}
	el := ellipsoids[ellipsoidIdx]
	a, ecc2 := el.a, el.ecc2
	eccPrime2 := ecc2 / (1 - ecc2)

	// Normalize longitude to (-180, 180].
	lonTemp := lon + 180 - math.Floor((lon+180)/360)*360 - 180

	zoneNumber := int((lonTemp+180)/6) + 1
	if lat >= 56 && lat < 64 && lonTemp >= 3 && lonTemp < 12 {
		zoneNumber = 32
	}
	// Svalbard zone exceptions.
	if lat >= 72 && lat < 84 {
		switch {
		case lonTemp >= 0 && lonTemp < 9:
			zoneNumber = 31
		case lonTemp >= 9 && lonTemp < 21:
			zoneNumber = 33
		case lonTemp >= 21 && lonTemp < 33:
			zoneNumber = 35
		case lonTemp >= 33 && lonTemp < 42:
			zoneNumber = 37
		}
	}

	lonOrigin := float64((zoneNumber-1)*6 - 180 + 3)
	latRad := lat * math.Pi / 180
	lonRad := lonTemp * math.Pi / 180
	lonOriginRad := lonOrigin * math.Pi / 180

	n := a / math.Sqrt(1-ecc2*math.Sin(latRad)*math.Sin(latRad))
	t := math.Tan(latRad) * math.Tan(latRad)
	c := eccPrime2 * math.Cos(latRad) * math.Cos(latRad)
	bigA := math.Cos(latRad) * (lonRad - lonOriginRad)

	m := a * ((1-ecc2/4-3*ecc2*ecc2/64-5*ecc2*ecc2*ecc2/256)*latRad -
		(3*ecc2/8+3*ecc2*ecc2/32+45*ecc2*ecc2*ecc2/1024)*math.Sin(2*latRad) +
		(15*ecc2*ecc2/256+45*ecc2*ecc2*ecc2/1024)*math.Sin(4*latRad) -
		(35*ecc2*ecc2*ecc2/3072)*math.Sin(6*latRad))

	easting = utmK0*n*(bigA+(1-t+c)*bigA*bigA*bigA/6+
		(5-18*t+t*t+72*c-58*eccPrime2)*math.Pow(bigA, 5)/120) + 500000
	northing = utmK0 * (m + n*math.Tan(latRad)*
		(bigA*bigA/2+(5-t+9*c+4*c*c)*math.Pow(bigA, 4)/24+
			(61-58*t+t*t+600*c-330*eccPrime2)*math.Pow(bigA, 6)/720))
	if lat < 0 {
		northing += 1e7 // southern hemisphere false northing
	}
	zone = fmt.Sprintf("%d%c", zoneNumber, utmLetterDesignator(lat))
	return zone, easting, northing, nil
}

// UTMToLatLon converts UTM coordinates in the given zone (e.g. "55K")
// back to geographic coordinates on the given reference ellipsoid.
func UTMToLatLon(ellipsoidIdx int, zone string, easting, northing float64) (lat, lon float64, err error) {
	if ellipsoidIdx < 1 || ellipsoidIdx >= len(ellipsoids) {
		return 0, 0, fmt.Errorf("modem: invalid ellipsoid index %d", ellipsoidIdx)
	}
	zoneNumber, zoneLetter, err := splitUTMZone(zone)
	if err != nil {
		return 0, 0, err
	}
	el := ellipsoids[ellipsoidIdx]
	a, ecc2 := el.a, el.ecc2
	eccPrime2 := ecc2 / (1 - ecc2)
	e1 := (1 - math.Sqrt(1-ecc2)) / (1 + math.Sqrt(1-ecc2))

	x := easting - 500000
	y := northing
	if zoneLetter < 'N' {
		y -= 1e7
	}
	lonOrigin := float64((zoneNumber-1)*6 - 180 + 3)

	m := y / utmK0
	mu := m / (a * (1 - ecc2/4 - 3*ecc2*ecc2/64 - 5*ecc2*ecc2*ecc2/256))

	phi1 := mu + (3*e1/2-27*e1*e1*e1/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*e1*e1*e1*e1/32)*math.Sin(4*mu) +
		(151*e1*e1*e1/96)*math.Sin(6*mu)

	n1 := a / math.Sqrt(1-ecc2*math.Sin(phi1)*math.Sin(phi1))
	t1 := math.Tan(phi1) * math.Tan(phi1)
	c1 := eccPrime2 * math.Cos(phi1) * math.Cos(phi1)
	r1 := a * (1 - ecc2) / math.Pow(1-ecc2*math.Sin(phi1)*math.Sin(phi1), 1.5)
	d := x / (n1 * utmK0)

	latRad := phi1 - (n1*math.Tan(phi1)/r1)*
		(d*d/2-(5+3*t1+10*c1-4*c1*c1-9*eccPrime2)*math.Pow(d, 4)/24+
			(61+90*t1+298*c1+45*t1*t1-252*eccPrime2-3*c1*c1)*math.Pow(d, 6)/720)
	lonRad := (d - (1+2*t1+c1)*d*d*d/6 +
		(5-2*c1+28*t1-3*c1*c1+8*eccPrime2+24*t1*t1)*math.Pow(d, 5)/120) /
		math.Cos(phi1)

	lat = latRad * 180 / math.Pi
	lon = lonOrigin + lonRad*180/math.Pi
	return lat, lon, nil
}

// splitUTMZone splits a zone designation like "55K" into its number and
// band letter.
func splitUTMZone(zone string) (number int, letter byte, err error) {
	if len(zone) < 2 {
		return 0, 0, fmt.Errorf("modem: invalid UTM zone %q", zone)
	}
	letter = zone[len(zone)-1]
	if _, ok := utmZoneLetters[letter]; !ok {
		return 0, 0, fmt.Errorf("modem: invalid UTM zone letter in %q", zone)
	}
	number, err = strconv.Atoi(zone[:len(zone)-1])
	if err != nil {
		return 0, 0, fmt.Errorf("modem: invalid UTM zone number in %q: %v", zone, err)
	}
	return number, letter, nil
}

// epsgProj4 returns a PROJ.4 definition for the EPSG codes the package
// recognizes: geographic WGS-84 and GDA-94, the WGS-84 and GDA-94 /
// MGA projected UTM zone families, and the GA Lambert national grid.
func epsgProj4(code int) (string, error) {
	switch {
	case code == 4326:
		return "+proj=longlat +datum=WGS84 +no_defs", nil
	case code == 4283:
		return "+proj=longlat +ellps=GRS80 +no_defs", nil
	case code == 3112:
		return "+proj=lcc +lat_1=-18 +lat_2=-36 +lat_0=0 +lon_0=134 " +
			"+x_0=0 +y_0=0 +ellps=GRS80 +units=m +no_defs", nil
	case code >= 32601 && code <= 32660:
		return fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs",
			code-32600), nil
	case code >= 32701 && code <= 32760:
		return fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs",
			code-32700), nil
	case code >= 28348 && code <= 28358: // GDA94 / MGA zones
		return fmt.Sprintf("+proj=utm +zone=%d +south +ellps=GRS80 +units=m +no_defs",
			code-28300), nil
	default:
		return "", fmt.Errorf("modem: unrecognized EPSG code %d", code)
	}
}
