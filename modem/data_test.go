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
	"bytes"
	"math"
	"math/cmplx"
	"strings"
	"testing"
)

func testData() *Data {
	d := NewData()
	d.Periods = []float64{0.01, 1}
	d.CenterLonLat = [2]float64{149.1, -34.55}

	for _, name := range []string{"MT001", "MT002"} {
		st := &Station{
			Name: name,
			Lat:  -34.5, Lon: 149.0, Elev: 380.0,
			RelEast: 1500.0, RelNorth: -2500.0,
		}
		fr := NewFrequencyResponse(d.Periods)
		for p := range fr.Periods {
			scale := complex(float64(p+1), 0)
			fr.Z[p] = [2][2]complex128{
				{complex(1, 1) * scale, complex(10, -10) * scale},
				{complex(-10, 10) * scale, complex(-1, -1) * scale},
			}
			for i := 0; i < 2; i++ {
				for j := 0; j < 2; j++ {
					fr.ZErr[p][i][j] = 0.5
				}
			}
			fr.Tip[p] = [2]complex128{complex(0.1, 0.05), complex(-0.2, 0.1)}
			fr.TipErr[p] = [2]float64{0.02, 0.02}
		}
		st.Response = fr
		d.Stations = append(d.Stations, st)
	}
	return d
}

func TestComponentErrorEgbert(t *testing.T) {
	d := testData()
	d.ErrorType = ErrorEgbert
	d.ErrorEgbert = 3
	st := d.Stations[0]

	// sqrt(|Zxy*Zyx|) = 200^0.5 at the first period.
	want := math.Sqrt(200.) * 0.03
	got := d.componentError(st, 0, CompZXX, st.Name, "0.01")
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("got %g, want %g", got, want)
	}
	// The egbert error is the same for every impedance component.
	if got2 := d.componentError(st, 0, CompZYX, st.Name, "0.01"); got2 != got {
		t.Errorf("Zyx error %g differs from Zxx error %g", got2, got)
	}
}

func TestComponentErrorFloor(t *testing.T) {
	d := testData()
	d.ErrorType = ErrorFloor
	d.ErrorFloor = 10
	st := d.Stations[0]

	// The measured error of 0.5 on |Zxy| = sqrt(200) is below the 10%
	// floor, so the floor applies.
	want := math.Sqrt(200.) * 0.1
	got := d.componentError(st, 0, CompZXY, st.Name, "0.01")
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("got %g, want %g", got, want)
	}

	// A measured error above the floor is kept.
	st.Response.ZErr[0][0][1] = 5
	got = d.componentError(st, 0, CompZXY, st.Name, "0.01")
	if math.Abs(got-5) > 1e-9 {
		t.Errorf("got %g, want 5", got)
	}
}

func TestComponentErrorValue(t *testing.T) {
	d := testData()
	d.ErrorType = ErrorValue
	d.ErrorValue = 5
	st := d.Stations[0]

	want := math.Sqrt(2.) * 0.05 // |Zxx| = sqrt(2) at the first period
	got := d.componentError(st, 0, CompZXX, st.Name, "0.01")
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("got %g, want %g", got, want)
	}
}

func TestComponentErrorTipper(t *testing.T) {
	d := testData()
	d.ErrorTipper = 0.05
	st := d.Stations[0]

	// The egbert policy does not contain "floor", so the configured
	// tipper error applies regardless of the measured one.
	d.ErrorType = ErrorEgbert
	if got := d.componentError(st, 0, CompTX, st.Name, "0.01"); got != 0.05 {
		t.Errorf("got %g, want 0.05", got)
	}

	// With a floor policy the larger of the measured error and the
	// configured one wins.
	d.ErrorType = ErrorFloorEgbert
	st.Response.TipErr[0][0] = 0.09
	if got := d.componentError(st, 0, CompTX, st.Name, "0.01"); got != 0.09 {
		t.Errorf("got %g, want 0.09", got)
	}
	st.Response.TipErr[0][0] = 0.01
	if got := d.componentError(st, 0, CompTX, st.Name, "0.01"); got != 0.05 {
		t.Errorf("got %g, want 0.05", got)
	}
}

func TestComponentErrorZeroSentinel(t *testing.T) {
	d := testData()
	d.ErrorType = ErrorFloorEgbert
	st := d.Stations[0]
	st.Response.Z[0] = [2][2]complex128{} // egbert floor collapses to zero
	st.Response.ZErr[0] = [2][2]float64{}

	if got := d.componentError(st, 0, CompZXY, st.Name, "0.01"); got != zeroErrorSentinel {
		t.Errorf("got %g, want %g", got, zeroErrorSentinel)
	}
	d.Units = UnitsOhm
	want := zeroErrorSentinel / impedanceOhmFactor
	if got := d.componentError(st, 0, CompZXY, st.Name, "0.01"); got != want {
		t.Errorf("got %g, want %g", got, want)
	}
}

func TestDataWriteRoundTrip(t *testing.T) {
	d := testData()
	d.RotationAngle = 10

	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		t.Fatal(err)
	}

	got := new(Data)
	if err := got.Read(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatal(err)
	}

	if got.RotationAngle != 10 {
		t.Errorf("RotationAngle = %g, want 10", got.RotationAngle)
	}
	if got.Units != UnitsMillivolt {
		t.Errorf("Units = %q, want %q", got.Units, UnitsMillivolt)
	}
	if got.WaveSignImpedance != "+" || got.WaveSignTipper != "+" {
		t.Errorf("wave signs = %q, %q, want +, +",
			got.WaveSignImpedance, got.WaveSignTipper)
	}
	if math.Abs(got.CenterLonLat[0]-149.1) > 1e-6 ||
		math.Abs(got.CenterLonLat[1]+34.55) > 1e-6 {
		t.Errorf("CenterLonLat = %v", got.CenterLonLat)
	}
	if len(got.Stations) != 2 || len(got.Periods) != 2 {
		t.Fatalf("got %d stations, %d periods", len(got.Stations), len(got.Periods))
	}

	st := got.Stations.Find("MT001")
	if st == nil {
		t.Fatal("station MT001 not found")
	}
	if math.Abs(st.Lat+34.5) > 1e-9 || math.Abs(st.Lon-149.0) > 1e-9 {
		t.Errorf("MT001 at (%g, %g)", st.Lat, st.Lon)
	}
	if st.RelEast != 1500.0 || st.RelNorth != -2500.0 {
		t.Errorf("MT001 relative location (%g, %g)", st.RelEast, st.RelNorth)
	}

	want := testData().Stations[0].Response
	for p := range want.Periods {
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				w, g := want.Z[p][i][j], st.Response.Z[p][i][j]
				if cmplx.Abs(w-g) > 1e-5*cmplx.Abs(w) {
					t.Errorf("Z[%d][%d][%d] = %v, want %v", p, i, j, g, w)
				}
			}
			w, g := want.Tip[p][i], st.Response.Tip[p][i]
			if cmplx.Abs(w-g) > 1e-5*cmplx.Abs(w) {
				t.Errorf("Tip[%d][%d] = %v, want %v", p, i, g, w)
			}
		}
	}
}

func TestDataWriteOhmRoundTrip(t *testing.T) {
	d := testData()
	d.Units = UnitsOhm

	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "> ohm\n") {
		t.Error("ohm units not recorded in the file")
	}

	got := new(Data)
	if err := got.Read(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatal(err)
	}
	if got.Units != UnitsOhm {
		t.Errorf("Units = %q, want ohm", got.Units)
	}

	// Impedances convert to ohms on write and back on read.
	want := testData().Stations[0].Response.Z[0][0][1]
	g := got.Stations.Find("MT001").Response.Z[0][0][1]
	if cmplx.Abs(want-g) > 1e-4*cmplx.Abs(want) {
		t.Errorf("Zxy = %v, want %v", g, want)
	}
}

func TestDataWriteSkipsEmpty(t *testing.T) {
	d := testData()
	d.InvMode = "2" // impedance only
	// Remove Zxx at the first period of MT001.
	d.Stations[0].Response.Z[0][0][0] = 0

	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		t.Fatal(err)
	}
	lines := 0
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, " ZXX") || strings.Contains(line, " ZXY") ||
			strings.Contains(line, " ZYX") || strings.Contains(line, " ZYY") {
			lines++
		}
	}
	// 2 stations x 2 periods x 4 components, minus the removed datum.
	if lines != 15 {
		t.Errorf("got %d data lines, want 15", lines)
	}
}

func TestDataWriteInvalidSettings(t *testing.T) {
	d := testData()
	d.InvMode = "9"
	if err := d.Write(&bytes.Buffer{}); err == nil {
		t.Error("unrecognized inversion mode should be rejected")
	}
	d = testData()
	d.InvMode = "6"
	if err := d.Write(&bytes.Buffer{}); err == nil {
		t.Error("a mode whose block has no component mapping should be rejected")
	}
	d = testData()
	d.ErrorType = "huber"
	if err := d.Write(&bytes.Buffer{}); err == nil {
		t.Error("unrecognized error type should be rejected")
	}
	d = testData()
	d.Periods = nil
	if err := d.Write(&bytes.Buffer{}); err == nil {
		t.Error("writing without periods should be rejected")
	}
}

func TestDataWriteHeader(t *testing.T) {
	d := testData()
	d.ErrorType = ErrorEgbert
	d.ErrorEgbert = 3
	d.RotationAngle = 0

	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	wantHeader := "# Created using MTpy error egbert of 3%, data rotated 0.0_deg clockwise from N"
	if !strings.Contains(out, wantHeader) {
		t.Errorf("header line missing; got:\n%s", out)
	}
	if !strings.Contains(out, "> Full_Impedance\n") ||
		!strings.Contains(out, "> Full_Vertical_Components\n") {
		t.Error("data type lines missing")
	}
	if !strings.Contains(out, "> exp(+i\\omega t)\n") {
		t.Error("sign convention line missing")
	}
	if !strings.Contains(out, "> 2 2\n") {
		t.Error("period and station count line missing")
	}
}

func TestNonEmptyPeriods(t *testing.T) {
	d := testData()
	for _, st := range d.Stations {
		st.Response.Z[1] = [2][2]complex128{}
		st.Response.Tip[1] = [2]complex128{}
	}
	if got := d.nonEmptyPeriods(d.Stations); got != 1 {
		t.Errorf("got %d, want 1", got)
	}
}

func TestInitializeEmpty(t *testing.T) {
	d := &Data{Stations: StationList{{Name: "A"}, {Name: "B"}}}
	d.InitializeEmpty([]float64{10, 0.1, 1})
	want := []float64{0.1, 1, 10}
	for i, p := range want {
		if d.Periods[i] != p {
			t.Fatalf("Periods = %v, want %v", d.Periods, want)
		}
	}
	fr := d.Stations[0].Response
	if fr == nil {
		t.Fatal("no response template")
	}
	if fr.Z[0][0][0] != complex(100, 100) || fr.ZErr[0][0][0] != 1e15 {
		t.Errorf("placeholder Z = %v, error %g", fr.Z[0][0][0], fr.ZErr[0][0][0])
	}
}
