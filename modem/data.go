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
	"math/cmplx"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Error policies for impedance data. "floor" keeps the measured error
// but never lets it fall below ErrorFloor percent of the impedance
// magnitude; "value" replaces it with ErrorValue percent of the
// magnitude; "egbert" replaces it with ErrorEgbert percent of
// sqrt(|Zxy*Zyx|); "floor_egbert" keeps the measured error floored at
// the egbert value.
const (
	ErrorFloor       = "floor"
	ErrorValue       = "value"
	ErrorEgbert      = "egbert"
	ErrorFloorEgbert = "floor_egbert"
)

// Data block names as they appear in ModEM data files.
const (
	ModeFullImpedance    = "Full_Impedance"
	ModeOffDiagImpedance = "Off_Diagonal_Impedance"
	ModeFullVertical     = "Full_Vertical_Components"
	ModeInterstationTF   = "Full_Interstation_TF"
	ModeOffDiagRhoPhase  = "Off_Diagonal_Rho_Phase"
)

// invModes maps an inversion mode code to the data blocks it writes.
// Modes 6 and 7 name block types that have no component mapping here;
// selecting them is reported as an error at write time.
var invModes = map[string][]string{
	"1": {ModeFullImpedance, ModeFullVertical},
	"2": {ModeFullImpedance},
	"3": {ModeOffDiagImpedance, ModeFullVertical},
	"4": {ModeOffDiagImpedance},
	"5": {ModeFullVertical},
	"6": {ModeInterstationTF},
	"7": {ModeOffDiagRhoPhase},
}

// invModeComps maps a data block to the components it contains.
var invModeComps = map[string][]string{
	ModeFullImpedance:    {CompZXX, CompZXY, CompZYX, CompZYY},
	ModeOffDiagImpedance: {CompZXY, CompZYX},
	ModeFullVertical:     {CompTX, CompTY},
}

// Impedance unit conventions.
const (
	UnitsMillivolt = "[mV/km]/[nT]"
	UnitsOhm       = "ohm"
)

// impedanceOhmFactor converts impedances between the field units
// [mV/km]/[nT] and ohms.
const impedanceOhmFactor = 796.

// zeroErrorSentinel replaces a zero data error so the datum carries
// negligible weight instead of crashing the inversion.
const zeroErrorSentinel = 1e3

// Data holds a set of magnetotelluric stations and the settings that
// control how their transfer functions are written as a ModEM data
// file.
type Data struct {
	Stations StationList

	// Periods are the inversion periods in seconds, ascending. Fill
	// them directly or derive them from the stations with
	// SelectPeriods.
	Periods []float64

	PeriodConfig PeriodConfig

	// ErrorType selects the impedance error policy; see the Error
	// constants.
	ErrorType string

	// ErrorFloor, ErrorValue, and ErrorEgbert are percentages used by
	// the corresponding error policies.
	ErrorFloor  float64
	ErrorValue  float64
	ErrorEgbert float64

	// ErrorTipper is the absolute tipper error. Policies containing
	// "floor" treat it as a floor under the measured error.
	ErrorTipper float64

	// WaveSignImpedance and WaveSignTipper give the sign convention of
	// the time dependence exp(±iωt), as "+" or "-".
	WaveSignImpedance string
	WaveSignTipper    string

	// Units is the impedance unit convention, UnitsMillivolt or
	// UnitsOhm. Transfer functions are always held in memory in
	// [mV/km]/[nT]; ohms only affect the file representation.
	Units string

	// InvMode chooses which data blocks are written; see invModes.
	InvMode string

	// Formatting selects the column layout preset, "1" (narrow) or
	// "2" (wide).
	Formatting string

	// RotationAngle is the angle the data have been rotated to,
	// degrees clockwise from north.
	RotationAngle float64

	// EPSG selects the projected coordinate system for station
	// locations. Zero means built-in UTM on WGS-84.
	EPSG int

	// CenterEastNorth is the survey center in projected coordinates,
	// and CenterLonLat the same point in geographic coordinates.
	CenterEastNorth [2]float64
	CenterLonLat    [2]float64

	// UTMZone is the canonical zone of the survey when the built-in
	// UTM projection is used.
	UTMZone string

	// Log is the logger to use. If nil, the logrus standard logger is
	// used.
	Log logrus.FieldLogger
}

// NewData returns a Data with the customary defaults.
func NewData() *Data {
	return &Data{
		ErrorType:         ErrorEgbert,
		ErrorFloor:        5,
		ErrorValue:        5,
		ErrorEgbert:       3,
		ErrorTipper:       0.05,
		WaveSignImpedance: "+",
		WaveSignTipper:    "+",
		Units:             UnitsMillivolt,
		InvMode:           "1",
		Formatting:        "1",
	}
}

func (d *Data) log() logrus.FieldLogger {
	if d.Log == nil {
		return logrus.StandardLogger()
	}
	return d.Log
}

// SelectPeriods fills d.Periods from the period configuration and the
// periods measured by the stations.
func (d *Data) SelectPeriods() error {
	periods, err := d.PeriodConfig.SelectPeriods(d.Stations)
	if err != nil {
		return err
	}
	d.Periods = periods
	return nil
}

// InterpolateResponses resamples every station response onto d.Periods,
// honoring the period buffer. Call after SelectPeriods.
func (d *Data) InterpolateResponses() error {
	if len(d.Periods) == 0 {
		return fmt.Errorf("modem: no inversion periods set; call SelectPeriods first")
	}
	for _, s := range d.Stations {
		if s.Response == nil {
			s.Response = NewFrequencyResponse(d.Periods)
			continue
		}
		s.Response = s.Response.Interpolate(d.Periods, d.PeriodConfig.PeriodBuffer)
	}
	return nil
}

// Rotate rotates all station responses by angle degrees clockwise from
// north and records the cumulative rotation.
func (d *Data) Rotate(angle float64) {
	if angle == 0 {
		return
	}
	for _, s := range d.Stations {
		if s.Response != nil {
			s.Response.Rotate(angle)
		}
	}
	d.RotationAngle += angle
}

// InitializeEmpty sets up a response template for every station at the
// given periods, for writing a forward-modeling data file when no
// measurements exist. Impedances are filled with a placeholder and
// errors made large so the values carry no weight.
func (d *Data) InitializeEmpty(periods []float64) {
	d.Periods = make([]float64, len(periods))
	copy(d.Periods, periods)
	sort.Float64s(d.Periods)
	for _, s := range d.Stations {
		fr := NewFrequencyResponse(d.Periods)
		for p := range fr.Periods {
			for i := 0; i < 2; i++ {
				for j := 0; j < 2; j++ {
					fr.Z[p][i][j] = complex(100, 100)
					fr.ZErr[p][i][j] = 1e15
				}
				fr.Tip[p][i] = complex(0.1, 0.1)
				fr.TipErr[p][i] = 1e15
			}
		}
		s.Response = fr
	}
}

// errorPercent returns the percentage reported in the file header for
// the active error policy.
func (d *Data) errorPercent() float64 {
	switch d.ErrorType {
	case ErrorFloor:
		return d.ErrorFloor
	case ErrorValue:
		return d.ErrorValue
	default:
		return d.ErrorEgbert
	}
}

// componentError computes the absolute error written for one datum
// under the active error policy.
func (d *Data) componentError(st *Station, ff int, comp string, station, period string) float64 {
	fr := st.Response
	idx := compIndex[comp]
	var absErr float64
	if strings.HasPrefix(comp, "T") {
		if strings.Contains(d.ErrorType, "floor") {
			absErr = d.ErrorTipper
			if fr.TipErr[ff][idx[1]] > absErr {
				absErr = fr.TipErr[ff][idx[1]]
			}
		} else {
			absErr = d.ErrorTipper
		}
	} else {
		zz := fr.Z[ff][idx[0]][idx[1]]
		switch d.ErrorType {
		case ErrorFloor:
			relErr := fr.ZErr[ff][idx[0]][idx[1]] / cmplx.Abs(zz)
			if relErr < d.ErrorFloor/100 {
				relErr = d.ErrorFloor / 100
			}
			absErr = relErr * cmplx.Abs(zz)
		case ErrorValue:
			absErr = cmplx.Abs(zz) * d.ErrorValue / 100
		case ErrorEgbert:
			absErr = geometricMean(fr.Z[ff]) * d.ErrorEgbert / 100
		case ErrorFloorEgbert:
			absErr = fr.ZErr[ff][idx[0]][idx[1]]
			if floor := geometricMean(fr.Z[ff]) * d.ErrorEgbert / 100; absErr < floor {
				absErr = floor
			}
		}
	}
	if absErr == 0 {
		absErr = zeroErrorSentinel
		d.log().WithFields(logrus.Fields{
			"station": station,
			"period":  period,
			"comp":    comp,
		}).Warnf("modem: zero data error replaced with %g", zeroErrorSentinel)
		if d.Units == UnitsOhm {
			absErr /= impedanceOhmFactor
		}
	}
	return absErr
}

// WriteFile writes the ModEM data file to path.
func (d *Data) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("modem: creating data file: %v", err)
	}
	defer f.Close()
	if err := d.Write(f); err != nil {
		return err
	}
	d.log().WithFields(logrus.Fields{"file": path}).Info("wrote ModEM data file")
	return f.Close()
}

// Write writes the stations and their responses as a ModEM data file.
// One block is written per data type selected by InvMode; a datum is
// skipped when its real or imaginary part is zero or carries the 1e32
// no-data marker.
func (d *Data) Write(w io.Writer) error {
	modes, ok := invModes[d.InvMode]
	if !ok {
		return fmt.Errorf("modem: unrecognized inversion mode %q", d.InvMode)
	}
	for _, mode := range modes {
		if _, ok := invModeComps[mode]; !ok {
			return fmt.Errorf("modem: no components defined for data block %q", mode)
		}
	}
	switch d.ErrorType {
	case ErrorFloor, ErrorValue, ErrorEgbert, ErrorFloorEgbert:
	default:
		return fmt.Errorf("modem: unrecognized error type %q", d.ErrorType)
	}
	if len(d.Periods) == 0 {
		return fmt.Errorf("modem: no inversion periods set")
	}

	sts := make(StationList, len(d.Stations))
	copy(sts, d.Stations)
	sts.Sort()

	bw := bufio.NewWriter(w)
	header0 := fmt.Sprintf("# Created using MTpy error %s of %.0f%%, "+
		"data rotated %.1f_deg clockwise from N\n",
		d.ErrorType, d.errorPercent(), d.RotationAngle)
	header1 := "# Period(s) Code GG_Lat GG_Lon X(m) Y(m) Z(m) Component Real Imag Error\n"

	nper := d.nonEmptyPeriods(sts)

	for _, mode := range modes {
		fmt.Fprint(bw, header0)
		fmt.Fprint(bw, header1)
		fmt.Fprintf(bw, "> %s\n", mode)
		if mode == ModeFullVertical {
			fmt.Fprintf(bw, "> exp(%si\\omega t)\n", d.WaveSignTipper)
			fmt.Fprint(bw, "> []\n")
		} else {
			fmt.Fprintf(bw, "> exp(%si\\omega t)\n", d.WaveSignImpedance)
			fmt.Fprintf(bw, "> %s\n", d.Units)
		}
		fmt.Fprint(bw, "> 0\n")
		fmt.Fprintf(bw, "> %10.6f %10.6f\n", d.CenterLonLat[0], d.CenterLonLat[1])
		fmt.Fprintf(bw, "> %d %d\n", nper, len(sts))

		for _, st := range sts {
			if st.Response == nil {
				continue
			}
			for ff := range d.Periods {
				for _, comp := range invModeComps[mode] {
					if err := d.writeDatum(bw, st, ff, comp); err != nil {
						return err
					}
				}
			}
		}
	}
	return bw.Flush()
}

// nonEmptyPeriods counts the periods for which at least one station has
// a nonzero datum of the leading data type.
func (d *Data) nonEmptyPeriods(sts StationList) int {
	n := 0
	for ff := range d.Periods {
		found := false
		for _, st := range sts {
			if st.Response == nil || ff >= len(st.Response.Periods) {
				continue
			}
			for i := 0; i < 2 && !found; i++ {
				for j := 0; j < 2 && !found; j++ {
					if st.Response.Z[ff][i][j] != 0 {
						found = true
					}
				}
				if st.Response.Tip[ff][i] != 0 {
					found = true
				}
			}
			if found {
				break
			}
		}
		if found {
			n++
		}
	}
	return n
}

func (d *Data) writeDatum(w io.Writer, st *Station, ff int, comp string) error {
	fr := st.Response
	idx := compIndex[comp]
	var zz complex128
	if strings.HasPrefix(comp, "T") {
		zz = fr.Tip[ff][idx[1]]
	} else {
		zz = fr.Z[ff][idx[0]][idx[1]]
	}
	if real(zz) == 0 || imag(zz) == 0 || real(zz) == 1e32 || imag(zz) == 1e32 {
		return nil
	}

	reVal, imVal := real(zz), imag(zz)
	if d.Units == UnitsOhm && !strings.HasPrefix(comp, "T") {
		reVal /= impedanceOhmFactor
		imVal /= impedanceOhmFactor
	}

	var per, sta, lat, lon, eas, nor, ele, com, rea, ima string
	switch d.Formatting {
	case "2":
		per = fmt.Sprintf("%-14.6e", d.Periods[ff])
		sta = fmt.Sprintf("%-10s", st.Name)
		lat = fmt.Sprintf("% 14.6f", st.Lat)
		lon = fmt.Sprintf("% 14.6f", st.Lon)
		eas = fmt.Sprintf("% 12.3f", st.RelEast)
		nor = fmt.Sprintf("% 15.3f", st.RelNorth)
		ele = fmt.Sprintf("% 10.3f", st.Elev)
		com = fmt.Sprintf("%12s", comp)
		rea = fmt.Sprintf("% 17.6e", reVal)
		ima = fmt.Sprintf("% 17.6e", imVal)
	default:
		per = fmt.Sprintf("%-12.5e", d.Periods[ff])
		sta = fmt.Sprintf("%7s", st.Name)
		lat = fmt.Sprintf("% 9.3f", st.Lat)
		lon = fmt.Sprintf("% 9.3f", st.Lon)
		eas = fmt.Sprintf("% 12.3f", st.RelEast)
		nor = fmt.Sprintf("% 12.3f", st.RelNorth)
		ele = fmt.Sprintf("% 12.3f", st.Elev)
		com = fmt.Sprintf("%4s", comp)
		rea = fmt.Sprintf("% 14.6e", reVal)
		ima = fmt.Sprintf("% 14.6e", imVal)
	}
	absErr := d.componentError(st, ff, comp, st.Name, per)
	errStr := fmt.Sprintf("% 14.6e", absFloat(absErr))

	// Column order puts x=north before y=east, z positive down.
	_, err := fmt.Fprintf(w, "%s%s%s%s%s%s%s%s%s%s%s\n",
		per, sta, lat, lon, nor, eas, ele, com, rea, ima, errStr)
	return err
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// ReadFile reads a ModEM data file from path.
func (d *Data) ReadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("modem: opening data file: %v", err)
	}
	defer f.Close()
	return d.Read(f)
}

type dataRecord struct {
	period          float64
	station         string
	lat, lon        float64
	north, east     float64
	elev            float64
	comp            string
	re, im, dataErr float64
}

// Read reads a ModEM data file, reconstructing the stations, periods,
// unit and sign conventions, rotation angle, and survey center.
func (d *Data) Read(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var headers []string
	var records []dataRecord
	readImpedance, readTipper := false, false
	metaIdx := 0
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "#"):
			headers = append(headers, strings.TrimSpace(line))
		case strings.HasPrefix(line, ">"):
			lower := strings.ToLower(line)
			if strings.Contains(lower, "ohm") {
				d.Units = UnitsOhm
			} else if strings.Contains(lower, "mv") {
				d.Units = UnitsMillivolt
			}
			// A data-type line starts a new metadata block.
			if strings.Contains(lower, "vertical") {
				readTipper, readImpedance = true, false
				metaIdx = 0
			} else if strings.Contains(lower, "impedance") {
				readImpedance, readTipper = true, false
				metaIdx = 0
			}
			metaIdx++
			if i := strings.Index(line, "exp("); i >= 0 && i+4 < len(line) {
				sign := string(line[i+4])
				if readImpedance {
					d.WaveSignImpedance = sign
				} else if readTipper {
					d.WaveSignTipper = sign
				}
			}
			// The fifth metadata line of each block holds the survey
			// center.
			if metaIdx == 5 {
				fields := strings.Fields(strings.TrimPrefix(line, ">"))
				if len(fields) == 2 {
					c0, err0 := strconv.ParseFloat(fields[0], 64)
					c1, err1 := strconv.ParseFloat(fields[1], 64)
					if err0 == nil && err1 == nil {
						d.CenterLonLat = [2]float64{c0, c1}
					}
				}
			}
		default:
			fields := strings.Fields(line)
			if len(fields) != 11 {
				continue
			}
			rec, err := parseDataRecord(fields)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("modem: reading data file: %v", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("modem: no data lines found")
	}

	// Recover the rotation angle from the header comment.
	for _, h := range headers {
		for _, tok := range strings.Fields(h) {
			if i := strings.Index(tok, "_deg"); i > 0 {
				if v, err := strconv.ParseFloat(tok[:i], 64); err == nil {
					d.RotationAngle = v
				}
			}
		}
		break
	}

	// Unique sorted periods and stations.
	perSet := map[float64]bool{}
	staSet := map[string]bool{}
	for _, rec := range records {
		perSet[rec.period] = true
		staSet[rec.station] = true
	}
	d.Periods = d.Periods[:0]
	for p := range perSet {
		d.Periods = append(d.Periods, p)
	}
	sort.Float64s(d.Periods)
	perIdx := make(map[float64]int, len(d.Periods))
	for i, p := range d.Periods {
		perIdx[p] = i
	}

	d.Stations = d.Stations[:0]
	byName := map[string]*Station{}
	for name := range staSet {
		st := &Station{Name: name, Response: NewFrequencyResponse(d.Periods)}
		byName[name] = st
		d.Stations = append(d.Stations, st)
	}
	d.Stations.Sort()

	for _, rec := range records {
		st := byName[rec.station]
		if st.Lat == 0 && st.Lon == 0 {
			st.Lat, st.Lon = rec.lat, rec.lon
			st.RelNorth, st.RelEast = rec.north, rec.east
			st.Elev = rec.elev
		}
		ff := perIdx[rec.period]
		comp := strings.ToUpper(rec.comp)
		idx, ok := compIndex[comp]
		if !ok {
			return fmt.Errorf("modem: unrecognized component %q", rec.comp)
		}
		if strings.HasPrefix(comp, "Z") {
			zv := complex(rec.re, rec.im)
			if d.WaveSignImpedance == "-" {
				zv = complex(rec.re, -rec.im)
			}
			ze := rec.dataErr
			if d.Units == UnitsOhm {
				zv *= impedanceOhmFactor
				ze *= impedanceOhmFactor
			}
			st.Response.Z[ff][idx[0]][idx[1]] = zv
			st.Response.ZErr[ff][idx[0]][idx[1]] = ze
		} else {
			tv := complex(rec.re, rec.im)
			if d.WaveSignTipper == "-" {
				tv = complex(rec.re, -rec.im)
			}
			st.Response.Tip[ff][idx[1]] = tv
			st.Response.TipErr[ff][idx[1]] = rec.dataErr
		}
	}
	return nil
}

func parseDataRecord(fields []string) (dataRecord, error) {
	var rec dataRecord
	var err error
	parse := func(s string, dst *float64) {
		if err != nil {
			return
		}
		*dst, err = strconv.ParseFloat(s, 64)
	}
	parse(fields[0], &rec.period)
	rec.station = fields[1]
	parse(fields[2], &rec.lat)
	parse(fields[3], &rec.lon)
	parse(fields[4], &rec.north)
	parse(fields[5], &rec.east)
	parse(fields[6], &rec.elev)
	rec.comp = fields[7]
	parse(fields[8], &rec.re)
	parse(fields[9], &rec.im)
	parse(fields[10], &rec.dataErr)
	if err != nil {
		return rec, fmt.Errorf("modem: malformed data line %v: %v", fields, err)
	}
	return rec, nil
}
