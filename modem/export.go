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

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
)

// WriteStationShapefile writes the stations as a point shapefile in
// geographic coordinates, with the station name, elevation, and
// grid-relative position as attributes.
func (d *Data) WriteStationShapefile(fileName string) error {
	fields := []goshp.Field{
		goshp.StringField("station", 10),
		goshp.FloatField("elev", 14, 3),
		goshp.FloatField("rel_east", 14, 3),
		goshp.FloatField("rel_north", 14, 3),
	}
	shape, err := shp.NewEncoderFromFields(fileName, goshp.POINT, fields...)
	if err != nil {
		return fmt.Errorf("modem: creating station shapefile: %v", err)
	}
	defer shape.Close()
	for _, s := range d.Stations {
		err = shape.EncodeFields(geom.Point{X: s.Lon, Y: s.Lat},
			s.Name, s.Elev, s.RelEast, s.RelNorth)
		if err != nil {
			return fmt.Errorf("modem: writing station %s to shapefile: %v", s.Name, err)
		}
	}
	return nil
}

// WriteRMSShapefile writes the per-station misfits as a point
// shapefile in geographic coordinates, for mapping where an inversion
// fits poorly.
func (r *Residual) WriteRMSShapefile(fileName string) error {
	if r.StationRMS == nil {
		if err := r.CalcRMS(); err != nil {
			return err
		}
	}
	fields := []goshp.Field{
		goshp.StringField("station", 10),
		goshp.FloatField("rms", 14, 3),
		goshp.FloatField("rms_z", 14, 3),
		goshp.FloatField("rms_tip", 14, 3),
	}
	shape, err := shp.NewEncoderFromFields(fileName, goshp.POINT, fields...)
	if err != nil {
		return fmt.Errorf("modem: creating rms shapefile: %v", err)
	}
	defer shape.Close()
	for _, s := range r.StationRMS {
		err = shape.EncodeFields(geom.Point{X: s.Station.Lon, Y: s.Station.Lat},
			s.Station.Name, s.RMS, s.RMSZ, s.RMSTip)
		if err != nil {
			return fmt.Errorf("modem: writing station %s to shapefile: %v",
				s.Station.Name, err)
		}
	}
	return nil
}
