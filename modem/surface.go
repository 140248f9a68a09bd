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
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// Interpolation methods for sampling a surface onto the model grid.
const (
	InterpNearest = "nearest"
	InterpLinear  = "linear"
)

// Surface is a regular geographic elevation grid: a digital elevation
// model or any other horizon. Elevations are in meters, positive up,
// relative to sea level. Row 0 of Elev is the southernmost row and
// column 0 the westernmost, matching ascending Lat and Lon axes.
type Surface struct {
	Lon, Lat []float64
	Elev     *sparse.DenseArray // dimensions (lat, lon)
}

// Max returns the largest elevation on the surface.
func (s *Surface) Max() float64 {
	max := math.Inf(-1)
	for _, v := range s.Elev.Elements {
		if v > max {
			max = v
		}
	}
	return max
}

// Sample returns the surface elevation at (lon, lat) using the given
// interpolation method. Points outside the surface are clamped to its
// edge.
func (s *Surface) Sample(lon, lat float64, method string) (float64, error) {
	switch method {
	case InterpNearest:
		i := nearestIndex(s.Lon, lon)
		j := nearestIndex(s.Lat, lat)
		return s.Elev.Get(j, i), nil
	case InterpLinear:
		i0, i1, fx := bracket(s.Lon, lon)
		j0, j1, fy := bracket(s.Lat, lat)
		v00 := s.Elev.Get(j0, i0)
		v01 := s.Elev.Get(j0, i1)
		v10 := s.Elev.Get(j1, i0)
		v11 := s.Elev.Get(j1, i1)
		return (v00*(1-fx)+v01*fx)*(1-fy) + (v10*(1-fx)+v11*fx)*fy, nil
	default:
		return 0, fmt.Errorf("modem: unrecognized interpolation method %q", method)
	}
}

func nearestIndex(xs []float64, x float64) int {
	k := sort.SearchFloat64s(xs, x)
	if k == 0 {
		return 0
	}
	if k == len(xs) {
		return len(xs) - 1
	}
	if x-xs[k-1] < xs[k]-x {
		return k - 1
	}
	return k
}

// bracket returns the indices surrounding x in ascending xs and the
// fractional position between them, clamped to the ends.
func bracket(xs []float64, x float64) (lo, hi int, frac float64) {
	k := sort.SearchFloat64s(xs, x)
	if k == 0 {
		return 0, 0, 0
	}
	if k == len(xs) {
		return len(xs) - 1, len(xs) - 1, 0
	}
	return k - 1, k, (x - xs[k-1]) / (xs[k] - xs[k-1])
}

// ReadSurfaceASCIIFile reads an ESRI ASCII grid DEM from path.
func ReadSurfaceASCIIFile(path string) (*Surface, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("modem: opening surface file: %v", err)
	}
	defer f.Close()
	return ReadSurfaceASCII(f)
}

// ReadSurfaceASCII reads an ESRI ASCII grid: a six-line header of
// ncols, nrows, xllcorner, yllcorner, cellsize, and NODATA_value
// key-value pairs, followed by rows of elevations running west to east,
// the first row northernmost. The rows are flipped on read so the
// returned surface runs south to north.
func ReadSurfaceASCII(r io.Reader) (*Surface, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	hdr := map[string]float64{}
	for len(hdr) < 6 {
		if !scanner.Scan() {
			return nil, fmt.Errorf("modem: surface header ends early: %v", scanner.Err())
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			return nil, fmt.Errorf("modem: malformed surface header line %q", scanner.Text())
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("modem: malformed surface header value %q: %v",
				fields[1], err)
		}
		hdr[strings.ToLower(fields[0])] = v
	}
	for _, key := range []string{"ncols", "nrows", "xllcorner", "yllcorner", "cellsize"} {
		if _, ok := hdr[key]; !ok {
			return nil, fmt.Errorf("modem: surface header missing %s", key)
		}
	}
	nx := int(hdr["ncols"])
	ny := int(hdr["nrows"])
	x0 := hdr["xllcorner"]
	y0 := hdr["yllcorner"]
	cs := hdr["cellsize"]
	noData, haveNoData := hdr["nodata_value"]

	elev := sparse.ZerosDense(ny, nx)
	row := 0
	col := 0
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		for _, f := range fields {
			if row >= ny {
				return nil, fmt.Errorf("modem: surface has more than %d rows of data", ny)
			}
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("modem: malformed elevation %q: %v", f, err)
			}
			if haveNoData && v == noData {
				v = math.NaN()
			}
			// File rows run north to south.
			elev.Set(v, ny-1-row, col)
			col++
			if col == nx {
				col = 0
				row++
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("modem: reading surface: %v", err)
	}
	if row != ny || col != 0 {
		return nil, fmt.Errorf("modem: surface data ends at row %d of %d", row, ny)
	}

	s := &Surface{
		Lon:  make([]float64, nx),
		Lat:  make([]float64, ny),
		Elev: elev,
	}
	for i := range s.Lon {
		s.Lon[i] = x0 + cs*float64(i)
	}
	for j := range s.Lat {
		s.Lat[j] = y0 + cs*float64(j)
	}
	return s, nil
}

// ReadSurfaceNetCDF reads an elevation surface from a COARDS-style
// NetCDF file holding one-dimensional "lat" and "lon" coordinate
// variables and a two-dimensional elevation variable with dimensions
// [lat, lon]. If elevVar is empty the first such variable is used.
func ReadSurfaceNetCDF(f cdf.ReaderWriterAt, elevVar string) (*Surface, error) {
	nc, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("modem: opening NetCDF surface: %v", err)
	}
	if elevVar == "" {
		for _, v := range nc.Header.Variables() {
			dims := nc.Header.Dimensions(v)
			if len(dims) == 2 && dims[0] == "lat" && dims[1] == "lon" {
				elevVar = v
				break
			}
		}
		if elevVar == "" {
			return nil, fmt.Errorf("modem: no [lat, lon] variable in NetCDF surface")
		}
	}
	lons, err := readNetCDFVar(nc, "lon")
	if err != nil {
		return nil, err
	}
	lats, err := readNetCDFVar(nc, "lat")
	if err != nil {
		return nil, err
	}
	elev, err := readNetCDFVar(nc, elevVar)
	if err != nil {
		return nil, err
	}
	if len(elev) != len(lats)*len(lons) {
		return nil, fmt.Errorf("modem: NetCDF variable %s has %d values, want %d",
			elevVar, len(elev), len(lats)*len(lons))
	}

	s := &Surface{
		Lon:  lons,
		Lat:  lats,
		Elev: sparse.ZerosDense(len(lats), len(lons)),
	}
	copy(s.Elev.Elements, elev)
	// Flip to ascending latitude if the file runs north to south.
	if len(s.Lat) > 1 && s.Lat[0] > s.Lat[1] {
		ny, nx := len(s.Lat), len(s.Lon)
		for j := 0; j < ny/2; j++ {
			s.Lat[j], s.Lat[ny-1-j] = s.Lat[ny-1-j], s.Lat[j]
			for i := 0; i < nx; i++ {
				a, b := s.Elev.Get(j, i), s.Elev.Get(ny-1-j, i)
				s.Elev.Set(b, j, i)
				s.Elev.Set(a, ny-1-j, i)
			}
		}
	}
	return s, nil
}

func readNetCDFVar(nc *cdf.File, v string) ([]float64, error) {
	r := nc.Reader(v, nil, nil)
	dataI := r.Zero(-1)
	if _, err := r.Read(dataI); err != nil {
		return nil, fmt.Errorf("modem: reading NetCDF variable %s: %v", v, err)
	}
	switch data := dataI.(type) {
	case []float64:
		return data, nil
	case []float32:
		out := make([]float64, len(data))
		for i, val := range data {
			out[i] = float64(val)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(data))
		for i, val := range data {
			out[i] = float64(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("modem: NetCDF variable %s has unsupported type %T", v, dataI)
	}
}
