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

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/sirupsen/logrus"
)

// UTM zone tile sizes used to stitch a survey that crosses zone
// boundaries into the coordinate frame of its dominant zone.
const (
	utmTileNorth = 888960.0
	utmTileEast  = 640000.0
)

const longLatProj = "+proj=longlat +datum=WGS84 +no_defs"

// ProjectStations converts the geographic position of every station to
// projected easting and northing. If EPSG is set the named projection
// is used for all stations; otherwise each station is projected to its
// own UTM zone on WGS-84 and the zones are reconciled afterwards.
// Stations with a zero latitude and longitude are left untouched.
func (d *Data) ProjectStations() error {
	if d.EPSG != 0 {
		return d.projectStationsEPSG()
	}
	if err := d.projectStationsUTM(); err != nil {
		return err
	}
	d.reconcileUTMZones()
	return nil
}

func (d *Data) projectStationsUTM() error {
	for _, s := range d.Stations {
		if s.Lat == 0 && s.Lon == 0 {
			continue
		}
		zone, east, north, err := LatLonToUTM(EllipsoidWGS84, s.Lat, s.Lon)
		if err != nil {
			return fmt.Errorf("modem: projecting station %s: %v", s.Name, err)
		}
		s.Zone, s.East, s.North = zone, east, north
	}
	return nil
}

func (d *Data) projectStationsEPSG() error {
	trans, err := d.newTransform(longLatProjDef, d.EPSG)
	if err != nil {
		return err
	}
	for _, s := range d.Stations {
		if s.Lat == 0 && s.Lon == 0 {
			continue
		}
		g, err := geom.Point{X: s.Lon, Y: s.Lat}.Transform(trans)
		if err != nil {
			return fmt.Errorf("modem: projecting station %s to EPSG %d: %v",
				s.Name, d.EPSG, err)
		}
		p := g.(geom.Point)
		s.East, s.North = p.X, p.Y
		s.Zone = fmt.Sprintf("EPSG:%d", d.EPSG)
	}
	return nil
}

// longLatProjDef marks the geographic WGS-84 system in newTransform.
const longLatProjDef = 0

// newTransform builds a coordinate transform between two systems, each
// given as an EPSG code or longLatProjDef for geographic WGS-84.
func (d *Data) newTransform(from, to int) (proj.Transformer, error) {
	defFor := func(code int) (string, error) {
		if code == longLatProjDef {
			return longLatProj, nil
		}
		return epsgProj4(code)
	}
	fromDef, err := defFor(from)
	if err != nil {
		return nil, err
	}
	toDef, err := defFor(to)
	if err != nil {
		return nil, err
	}
	fromSR, err := proj.Parse(fromDef)
	if err != nil {
		return nil, fmt.Errorf("modem: parsing projection %q: %v", fromDef, err)
	}
	toSR, err := proj.Parse(toDef)
	if err != nil {
		return nil, fmt.Errorf("modem: parsing projection %q: %v", toDef, err)
	}
	trans, err := fromSR.NewTransform(toSR)
	if err != nil {
		return nil, fmt.Errorf("modem: creating transform: %v", err)
	}
	return trans, nil
}

// reconcileUTMZones shifts stations that fall outside the survey's
// dominant UTM zone into that zone's coordinate frame, in whole
// multiples of the zone tile size.
func (d *Data) reconcileUTMZones() {
	counts := map[string]int{}
	for _, s := range d.Stations {
		if s.Zone != "" {
			counts[s.Zone]++
		}
	}
	if len(counts) == 0 {
		return
	}
	main := ""
	for zone, n := range counts {
		if main == "" || n > counts[main] || (n == counts[main] && zone < main) {
			main = zone
		}
	}
	d.UTMZone = main
	if len(counts) == 1 {
		return
	}

	mainNum, mainLetter, err := splitUTMZone(main)
	if err != nil {
		d.log().WithFields(logrus.Fields{"zone": main}).Warn(err)
		return
	}
	for _, s := range d.Stations {
		if s.Zone == "" || s.Zone == main {
			continue
		}
		num, letter, err := splitUTMZone(s.Zone)
		if err != nil {
			d.log().WithFields(logrus.Fields{
				"station": s.Name, "zone": s.Zone,
			}).Warn(err)
			continue
		}
		d.log().WithFields(logrus.Fields{
			"station": s.Name, "zone": s.Zone, "main": main,
		}).Info("station outside dominant UTM zone; shifting")

		bandShift := 1 - int(math.Abs(float64(utmZoneLetters[letter]-utmZoneLetters[mainLetter])))
		if bandShift > 1 {
			s.North += utmTileNorth * float64(bandShift)
		} else if bandShift < -1 {
			s.North -= utmTileNorth * float64(bandShift)
		}

		if num != mainNum {
			shift := utmTileEast * math.Abs(float64(num-mainNum))
			if num > mainNum {
				s.East += shift
			} else {
				s.East -= shift
			}
		}
	}
}

// ComputeRelativeLocations projects the stations, sets the survey
// center to the middle of their bounding box, and derives grid-relative
// station coordinates. If a rotation angle is set the relative
// coordinates are rotated so the mesh can stay axis-aligned.
func (d *Data) ComputeRelativeLocations() error {
	if len(d.Stations) == 0 {
		return fmt.Errorf("modem: no stations to locate")
	}
	if err := d.ProjectStations(); err != nil {
		return err
	}

	eMin, eMax := d.Stations[0].East, d.Stations[0].East
	nMin, nMax := d.Stations[0].North, d.Stations[0].North
	for _, s := range d.Stations[1:] {
		eMin = math.Min(eMin, s.East)
		eMax = math.Max(eMax, s.East)
		nMin = math.Min(nMin, s.North)
		nMax = math.Max(nMax, s.North)
	}
	d.CenterEastNorth = [2]float64{(eMin + eMax) / 2, (nMin + nMax) / 2}
	d.updateCenterLonLat()

	for _, s := range d.Stations {
		s.RelEast = s.East - d.CenterEastNorth[0]
		s.RelNorth = s.North - d.CenterEastNorth[1]
	}

	if d.RotationAngle != 0 {
		rad := d.RotationAngle * math.Pi / 180
		c, sn := math.Cos(rad), math.Sin(rad)
		for _, s := range d.Stations {
			e, n := s.RelEast, s.RelNorth
			s.RelEast = c*e + sn*n
			s.RelNorth = -sn*e + c*n
		}
		d.log().WithFields(logrus.Fields{"angle": d.RotationAngle}).
			Info("rotated station locations clockwise from N")
	}
	return nil
}

// updateCenterLonLat recomputes the geographic survey center from
// CenterEastNorth. Failures are logged rather than returned because
// the geographic center is informational.
func (d *Data) updateCenterLonLat() {
	if d.EPSG != 0 {
		trans, err := d.newTransform(d.EPSG, longLatProjDef)
		if err != nil {
			d.log().Warn(err)
			return
		}
		g, err := geom.Point{X: d.CenterEastNorth[0], Y: d.CenterEastNorth[1]}.Transform(trans)
		if err != nil {
			d.log().Warnf("modem: inverse-projecting survey center: %v", err)
			return
		}
		p := g.(geom.Point)
		d.CenterLonLat = [2]float64{p.X, p.Y}
		return
	}
	if d.UTMZone == "" {
		return
	}
	lat, lon, err := UTMToLatLon(EllipsoidWGS84, d.UTMZone,
		d.CenterEastNorth[0], d.CenterEastNorth[1])
	if err != nil {
		d.log().Warnf("modem: inverse-projecting survey center: %v", err)
		return
	}
	d.CenterLonLat = [2]float64{lon, lat}
}
