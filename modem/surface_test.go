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
	"io"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

const asciiGrid = `ncols 3
nrows 2
xllcorner 149.0
yllcorner -35.0
cellsize 0.5
NODATA_value -9999
100 200 300
400 -9999 600
`

func TestReadSurfaceASCII(t *testing.T) {
	s, err := ReadSurfaceASCII(strings.NewReader(asciiGrid))
	if err != nil {
		t.Fatal(err)
	}
	wantLon := []float64{149.0, 149.5, 150.0}
	for i, want := range wantLon {
		if s.Lon[i] != want {
			t.Errorf("Lon = %v, want %v", s.Lon, wantLon)
		}
	}
	wantLat := []float64{-35.0, -34.5}
	for j, want := range wantLat {
		if s.Lat[j] != want {
			t.Errorf("Lat = %v, want %v", s.Lat, wantLat)
		}
	}
	// The first file row is the northernmost; rows are flipped so row 0
	// of the surface is the southernmost.
	if got := s.Elev.Get(1, 0); got != 100 {
		t.Errorf("northern row first value = %g, want 100", got)
	}
	if got := s.Elev.Get(0, 0); got != 400 {
		t.Errorf("southern row first value = %g, want 400", got)
	}
	if got := s.Elev.Get(0, 1); !math.IsNaN(got) {
		t.Errorf("nodata value = %g, want NaN", got)
	}
}

func TestReadSurfaceASCIITruncated(t *testing.T) {
	short := strings.Join(strings.Split(asciiGrid, "\n")[:7], "\n")
	if _, err := ReadSurfaceASCII(strings.NewReader(short)); err == nil {
		t.Error("a truncated grid should be rejected")
	}
}

func TestSurfaceSample(t *testing.T) {
	s := &Surface{
		Lon:  []float64{149.0, 150.0},
		Lat:  []float64{-35.0, -34.0},
		Elev: sparse.ZerosDense(2, 2),
	}
	s.Elev.Set(0, 0, 0)
	s.Elev.Set(100, 0, 1)
	s.Elev.Set(200, 1, 0)
	s.Elev.Set(300, 1, 1)

	got, err := s.Sample(149.1, -34.9, InterpNearest)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("nearest = %g, want 0", got)
	}

	got, err = s.Sample(149.5, -34.5, InterpLinear)
	if err != nil {
		t.Fatal(err)
	}
	if got != 150 {
		t.Errorf("bilinear midpoint = %g, want 150", got)
	}

	// Points outside the surface clamp to its edge.
	got, err = s.Sample(148.0, -36.0, InterpLinear)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("clamped = %g, want 0", got)
	}

	if _, err := s.Sample(149.5, -34.5, "cubic"); err == nil {
		t.Error("unrecognized interpolation method should be rejected")
	}
}

func TestSurfaceMax(t *testing.T) {
	s := &Surface{Elev: sparse.ZerosDense(2, 2)}
	s.Elev.Set(-40, 0, 0)
	s.Elev.Set(12, 1, 1)
	if got := s.Max(); got != 12 {
		t.Errorf("got %g, want 12", got)
	}
}

func TestReadSurfaceNetCDF(t *testing.T) {
	dir, err := ioutil.TempDir("", "surface")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "topo.nc")

	h := cdf.NewHeader([]string{"lat", "lon"}, []int{2, 3})
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddVariable("elevation", []string{"lat", "lon"}, []float64{0})
	h.Define()
	ff, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	f, err := cdf.Create(ff, h)
	if err != nil {
		t.Fatal(err)
	}
	// Latitudes run north to south, as GMT-style DEM exports do.
	for _, v := range []struct {
		name string
		data []float64
	}{
		{"lat", []float64{-34.5, -35.0}},
		{"lon", []float64{149.0, 149.5, 150.0}},
		{"elevation", []float64{100, 200, 300, 400, 500, 600}},
	} {
		w := f.Writer(v.name, nil, nil)
		// The cdf library returns io.EOF on a write that exactly fills a
		// non-record variable.
		if _, err := w.Write(v.data); err != nil && err != io.EOF {
			t.Fatal(err)
		}
	}
	if err := ff.Close(); err != nil {
		t.Fatal(err)
	}

	rf, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer rf.Close()
	s, err := ReadSurfaceNetCDF(rf, "")
	if err != nil {
		t.Fatal(err)
	}
	wantLat := []float64{-35.0, -34.5}
	for j, want := range wantLat {
		if s.Lat[j] != want {
			t.Errorf("Lat = %v, want %v", s.Lat, wantLat)
		}
	}
	// Row 0 of the surface is the southernmost file row.
	if got := s.Elev.Get(0, 0); got != 400 {
		t.Errorf("southern row first value = %g, want 400", got)
	}
	if got := s.Elev.Get(1, 2); got != 300 {
		t.Errorf("northern row last value = %g, want 300", got)
	}
}
