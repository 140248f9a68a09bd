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
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"sort"
	"strconv"
	"strings"
)

// Impedance and vertical transfer-function component codes as they
// appear in ModEM data files.
const (
	CompZXX = "ZXX"
	CompZXY = "ZXY"
	CompZYX = "ZYX"
	CompZYY = "ZYY"
	CompTX  = "TX"
	CompTY  = "TY"
)

// compIndex maps a component code to its row and column in the
// impedance tensor or tipper vector.
var compIndex = map[string][2]int{
	CompZXX: {0, 0},
	CompZXY: {0, 1},
	CompZYX: {1, 0},
	CompZYY: {1, 1},
	CompTX:  {0, 0},
	CompTY:  {0, 1},
}

// FrequencyResponse holds the magnetotelluric transfer functions of one
// station, sampled at a set of periods. Periods are in seconds and
// ascending. A zero impedance or tipper element means no measurement
// exists at that period.
type FrequencyResponse struct {
	Periods []float64

	// Z is the 2x2 complex impedance tensor at each period, and ZErr
	// the corresponding absolute error.
	Z    [][2][2]complex128
	ZErr [][2][2]float64

	// Tip is the vertical magnetic transfer function (tipper) at each
	// period, and TipErr its absolute error.
	Tip    [][2]complex128
	TipErr [][2]float64
}

// NewFrequencyResponse allocates an empty response at the given periods.
func NewFrequencyResponse(periods []float64) *FrequencyResponse {
	n := len(periods)
	fr := &FrequencyResponse{
		Periods: make([]float64, n),
		Z:       make([][2][2]complex128, n),
		ZErr:    make([][2][2]float64, n),
		Tip:     make([][2]complex128, n),
		TipErr:  make([][2]float64, n),
	}
	copy(fr.Periods, periods)
	return fr
}

// HasImpedance reports whether any impedance element is set.
func (fr *FrequencyResponse) HasImpedance() bool {
	for _, z := range fr.Z {
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				if z[i][j] != 0 {
					return true
				}
			}
		}
	}
	return false
}

// HasTipper reports whether any tipper element is set.
func (fr *FrequencyResponse) HasTipper() bool {
	for _, t := range fr.Tip {
		if t[0] != 0 || t[1] != 0 {
			return true
		}
	}
	return false
}

// Rotate rotates the impedance tensor and tipper by angle degrees
// clockwise from north. Errors are propagated as the magnitude-weighted
// combination of the rotated elements.
func (fr *FrequencyResponse) Rotate(angle float64) {
	if angle == 0 {
		return
	}
	rad := angle * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	for p := range fr.Periods {
		z := fr.Z[p]
		ze := fr.ZErr[p]
		// R Z Rᵀ with R = [[c, s], [-s, c]].
		var rz [2][2]complex128
		var rze [2][2]float64
		rz[0][0] = complex(c*c, 0)*z[0][0] + complex(c*s, 0)*(z[0][1]+z[1][0]) + complex(s*s, 0)*z[1][1]
		rz[0][1] = complex(c*c, 0)*z[0][1] - complex(s*s, 0)*z[1][0] + complex(c*s, 0)*(z[1][1]-z[0][0])
		rz[1][0] = complex(c*c, 0)*z[1][0] - complex(s*s, 0)*z[0][1] + complex(c*s, 0)*(z[1][1]-z[0][0])
		rz[1][1] = complex(c*c, 0)*z[1][1] - complex(c*s, 0)*(z[0][1]+z[1][0]) + complex(s*s, 0)*z[0][0]
		rze[0][0] = math.Abs(c*c)*ze[0][0] + math.Abs(c*s)*(ze[0][1]+ze[1][0]) + math.Abs(s*s)*ze[1][1]
		rze[0][1] = math.Abs(c*c)*ze[0][1] + math.Abs(s*s)*ze[1][0] + math.Abs(c*s)*(ze[1][1]+ze[0][0])
		rze[1][0] = math.Abs(c*c)*ze[1][0] + math.Abs(s*s)*ze[0][1] + math.Abs(c*s)*(ze[1][1]+ze[0][0])
		rze[1][1] = math.Abs(c*c)*ze[1][1] + math.Abs(c*s)*(ze[0][1]+ze[1][0]) + math.Abs(s*s)*ze[0][0]
		fr.Z[p] = rz
		fr.ZErr[p] = rze

		t := fr.Tip[p]
		te := fr.TipErr[p]
		fr.Tip[p] = [2]complex128{
			complex(c, 0)*t[0] + complex(s, 0)*t[1],
			complex(-s, 0)*t[0] + complex(c, 0)*t[1],
		}
		fr.TipErr[p] = [2]float64{
			math.Abs(c)*te[0] + math.Abs(s)*te[1],
			math.Abs(s)*te[0] + math.Abs(c)*te[1],
		}
	}
}

// Interpolate resamples the response onto newPeriods by linear
// interpolation of the real and imaginary parts of each element.
// Periods outside the measured range are left empty. If buffer is
// positive it is a multiplicative factor: a requested period whose
// ratio to the nearest measured period (in either direction) reaches
// buffer is also left empty rather than filled from distant
// measurements.
func (fr *FrequencyResponse) Interpolate(newPeriods []float64, buffer float64) *FrequencyResponse {
	out := NewFrequencyResponse(newPeriods)
	if len(fr.Periods) == 0 {
		return out
	}
	pmin, pmax := fr.Periods[0], fr.Periods[len(fr.Periods)-1]
	for ip, per := range newPeriods {
		if per < pmin || per > pmax {
			continue
		}
		if buffer > 0 {
			nearest := nearestValue(fr.Periods, per)
			r := per / nearest
			if r >= buffer || r <= 1/buffer {
				continue
			}
		}
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				out.Z[ip][i][j] = interpComplex(fr.Periods, fr.Z, i, j, per)
				out.ZErr[ip][i][j] = interpZErr(fr.Periods, fr.ZErr, i, j, per)
			}
			out.Tip[ip][i] = interpTip(fr.Periods, fr.Tip, i, per)
			out.TipErr[ip][i] = interpTipErr(fr.Periods, fr.TipErr, i, per)
		}
	}
	return out
}

func nearestValue(xs []float64, x float64) float64 {
	best := xs[0]
	for _, v := range xs[1:] {
		if math.Abs(v-x) < math.Abs(best-x) {
			best = v
		}
	}
	return best
}

// interp1 linearly interpolates y(x) on ascending xs. The caller
// guarantees xs[0] <= x <= xs[len-1].
func interp1(xs, ys []float64, x float64) float64 {
	k := sort.SearchFloat64s(xs, x)
	if k < len(xs) && xs[k] == x {
		return ys[k]
	}
	// xs[k-1] < x < xs[k]
	f := (x - xs[k-1]) / (xs[k] - xs[k-1])
	return ys[k-1] + f*(ys[k]-ys[k-1])
}

func interpComplex(xs []float64, zs [][2][2]complex128, i, j int, x float64) complex128 {
	re := make([]float64, len(xs))
	im := make([]float64, len(xs))
	for k := range xs {
		re[k] = real(zs[k][i][j])
		im[k] = imag(zs[k][i][j])
	}
	return complex(interp1(xs, re, x), interp1(xs, im, x))
}

func interpZErr(xs []float64, es [][2][2]float64, i, j int, x float64) float64 {
	ys := make([]float64, len(xs))
	for k := range xs {
		ys[k] = es[k][i][j]
	}
	return interp1(xs, ys, x)
}

func interpTip(xs []float64, ts [][2]complex128, i int, x float64) complex128 {
	re := make([]float64, len(xs))
	im := make([]float64, len(xs))
	for k := range xs {
		re[k] = real(ts[k][i])
		im[k] = imag(ts[k][i])
	}
	return complex(interp1(xs, re, x), interp1(xs, im, x))
}

func interpTipErr(xs []float64, es [][2]float64, i int, x float64) float64 {
	ys := make([]float64, len(xs))
	for k := range xs {
		ys[k] = es[k][i]
	}
	return interp1(xs, ys, x)
}

// Station is one magnetotelluric measurement site.
type Station struct {
	Name string

	// Geographic position in decimal degrees and elevation in meters.
	Lat, Lon, Elev float64

	// Projected position in the survey coordinate system, meters.
	East, North float64

	// UTM zone the projected position refers to, e.g. "55K".
	Zone string

	// Position relative to the survey center, meters. RelNorth follows
	// the ModEM x axis (positive north), RelEast the y axis (positive
	// east).
	RelEast, RelNorth float64

	Response *FrequencyResponse
}

// StationList is a set of stations ordered by name.
type StationList []*Station

// Sort orders the list by station name.
func (sl StationList) Sort() {
	sort.Slice(sl, func(i, j int) bool { return sl[i].Name < sl[j].Name })
}

// Find returns the station with the given name, or nil.
func (sl StationList) Find(name string) *Station {
	for _, s := range sl {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Bounds returns the minimum and maximum relative to-grid coordinates
// of the stations.
func (sl StationList) Bounds() (eastMin, eastMax, northMin, northMax float64, err error) {
	if len(sl) == 0 {
		return 0, 0, 0, 0, fmt.Errorf("modem: station list is empty")
	}
	eastMin, eastMax = sl[0].RelEast, sl[0].RelEast
	northMin, northMax = sl[0].RelNorth, sl[0].RelNorth
	for _, s := range sl[1:] {
		eastMin = math.Min(eastMin, s.RelEast)
		eastMax = math.Max(eastMax, s.RelEast)
		northMin = math.Min(northMin, s.RelNorth)
		northMax = math.Max(northMax, s.RelNorth)
	}
	return
}

// Periods returns the sorted union of all measured periods across the
// list. Duplicate periods closer than a relative 1e-9 are merged.
func (sl StationList) Periods() []float64 {
	var all []float64
	for _, s := range sl {
		if s.Response != nil {
			all = append(all, s.Response.Periods...)
		}
	}
	sort.Float64s(all)
	var out []float64
	for _, p := range all {
		if len(out) == 0 || p-out[len(out)-1] > 1e-9*p {
			out = append(out, p)
		}
	}
	return out
}

// ReadStationCSV reads a station table with a header line naming at
// least the station, lat, and lon columns; an elev column is optional.
// Responses are left nil.
func ReadStationCSV(r io.Reader) (StationList, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("modem: reading station table header: %v", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, need := range []string{"station", "lat", "lon"} {
		if _, ok := cols[need]; !ok {
			return nil, fmt.Errorf("modem: station table missing %q column", need)
		}
	}

	var out StationList
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("modem: reading station table: %v", err)
		}
		s := &Station{Name: strings.TrimSpace(rec[cols["station"]])}
		if s.Lat, err = strconv.ParseFloat(strings.TrimSpace(rec[cols["lat"]]), 64); err != nil {
			return nil, fmt.Errorf("modem: station %s: malformed lat: %v", s.Name, err)
		}
		if s.Lon, err = strconv.ParseFloat(strings.TrimSpace(rec[cols["lon"]]), 64); err != nil {
			return nil, fmt.Errorf("modem: station %s: malformed lon: %v", s.Name, err)
		}
		if i, ok := cols["elev"]; ok {
			if s.Elev, err = strconv.ParseFloat(strings.TrimSpace(rec[i]), 64); err != nil {
				return nil, fmt.Errorf("modem: station %s: malformed elev: %v", s.Name, err)
			}
		}
		out = append(out, s)
	}
	out.Sort()
	return out, nil
}

// geometricMean returns sqrt(|Zxy*Zyx|) for the egbert error policy.
func geometricMean(z [2][2]complex128) float64 {
	return math.Sqrt(cmplx.Abs(z[0][1] * z[1][0]))
}
