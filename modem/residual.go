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
	"math/cmplx"
	"os"

	"github.com/sirupsen/logrus"
)

// StationRMS is the misfit summary of one station.
type StationRMS struct {
	Station *Station

	// RMS combines the impedance and tipper misfits; RMSZ and RMSTip
	// hold them separately. A zero value means the station carries no
	// data of that type.
	RMS, RMSZ, RMSTip float64
}

// Residual summarizes the misfit of an inversion from a ModEM residual
// file: a data file whose values are measured minus modelled responses
// with the data errors of the original file.
type Residual struct {
	// Data holds the residual responses as read from the file.
	Data *Data

	// RMS is the global root-mean-square normalized residual; RMSZ and
	// RMSTip cover the impedance and tipper data separately.
	RMS, RMSZ, RMSTip float64

	StationRMS []StationRMS

	Log logrus.FieldLogger
}

// ReadResidualFile reads a ModEM residual file from path.
func ReadResidualFile(path string) (*Residual, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("modem: opening residual file: %v", err)
	}
	defer f.Close()
	return ReadResidual(f)
}

// ReadResidual reads a ModEM residual file.
func ReadResidual(r io.Reader) (*Residual, error) {
	d := NewData()
	if err := d.Read(r); err != nil {
		return nil, err
	}
	return &Residual{Data: d}, nil
}

func (r *Residual) log() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

// CalcRMS computes per-station and global misfits. Each residual is
// normalized by its error times sqrt(2), because the inversion applies
// the same error to the real and imaginary parts. A period whose
// normalization is undefined for any component, such as an unmeasured
// period with zero error, is excluded for that station and data type.
func (r *Residual) CalcRMS() error {
	if r.Data == nil || len(r.Data.Stations) == 0 {
		return fmt.Errorf("modem: no residual data to summarize")
	}

	var allVals, allZ, allTip []float64
	r.StationRMS = r.StationRMS[:0]
	for _, st := range r.Data.Stations {
		srms := StationRMS{Station: st}
		var compRMS []float64

		zNorms := stationZNorms(st.Response)
		if len(zNorms) > 0 {
			// Component-wise rms over periods, then combined, so each
			// component weighs equally.
			nPer := len(zNorms)
			var zComp [2][2]float64
			for _, row := range zNorms {
				for i := 0; i < 2; i++ {
					for j := 0; j < 2; j++ {
						zComp[i][j] += row[i][j] * row[i][j]
						allVals = append(allVals, row[i][j])
						allZ = append(allZ, row[i][j])
					}
				}
			}
			sumSq := 0.0
			for i := 0; i < 2; i++ {
				for j := 0; j < 2; j++ {
					c := math.Sqrt(zComp[i][j] / float64(nPer))
					compRMS = append(compRMS, c)
					sumSq += c * c
				}
			}
			srms.RMSZ = math.Sqrt(sumSq / 4)
		}

		tipNorms := stationTipNorms(st.Response)
		if len(tipNorms) > 0 {
			nPer := len(tipNorms)
			var tipComp [2]float64
			for _, row := range tipNorms {
				for j := 0; j < 2; j++ {
					tipComp[j] += row[j] * row[j]
					allVals = append(allVals, row[j])
					allTip = append(allTip, row[j])
				}
			}
			sumSq := 0.0
			for j := 0; j < 2; j++ {
				c := math.Sqrt(tipComp[j] / float64(nPer))
				compRMS = append(compRMS, c)
				sumSq += c * c
			}
			srms.RMSTip = math.Sqrt(sumSq / 2)
		}

		if len(compRMS) > 0 {
			sumSq := 0.0
			for _, c := range compRMS {
				sumSq += c * c
			}
			srms.RMS = math.Sqrt(sumSq / float64(len(compRMS)))
		} else {
			r.log().WithFields(logrus.Fields{"station": st.Name}).
				Warn("station has no usable residuals")
		}
		r.StationRMS = append(r.StationRMS, srms)
	}

	r.RMS = rootMeanSquare(allVals)
	r.RMSZ = rootMeanSquare(allZ)
	r.RMSTip = rootMeanSquare(allTip)
	return nil
}

// stationZNorms returns the normalized impedance residuals per period,
// keeping only periods where all four components are defined.
func stationZNorms(fr *FrequencyResponse) [][2][2]float64 {
	if fr == nil || !fr.HasImpedance() {
		return nil
	}
	var out [][2][2]float64
	for p := range fr.Periods {
		var row [2][2]float64
		ok := true
		for i := 0; i < 2 && ok; i++ {
			for j := 0; j < 2 && ok; j++ {
				v := cmplx.Abs(fr.Z[p][i][j]) / (fr.ZErr[p][i][j] * math.Sqrt2)
				if math.IsInf(v, 0) || math.IsNaN(v) {
					ok = false
				}
				row[i][j] = v
			}
		}
		if ok {
			out = append(out, row)
		}
	}
	return out
}

// stationTipNorms returns the normalized tipper residuals per period,
// keeping only periods where both components are defined.
func stationTipNorms(fr *FrequencyResponse) [][2]float64 {
	if fr == nil || !fr.HasTipper() {
		return nil
	}
	var out [][2]float64
	for p := range fr.Periods {
		var row [2]float64
		ok := true
		for j := 0; j < 2; j++ {
			v := cmplx.Abs(fr.Tip[p][j]) / (fr.TipErr[p][j] * math.Sqrt2)
			if math.IsInf(v, 0) || math.IsNaN(v) {
				ok = false
			}
			row[j] = v
		}
		if ok {
			out = append(out, row)
		}
	}
	return out
}

func rootMeanSquare(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, v := range vals {
		sumSq += v * v
	}
	return math.Sqrt(sumSq / float64(len(vals)))
}

// WriteRMSFile writes the per-station misfit table to path.
func (r *Residual) WriteRMSFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("modem: creating rms file: %v", err)
	}
	defer f.Close()
	if err := r.WriteRMS(f); err != nil {
		return err
	}
	return f.Close()
}

// WriteRMS writes the per-station misfit table as whitespace-separated
// columns with a commented header line.
func (r *Residual) WriteRMS(w io.Writer) error {
	if r.StationRMS == nil {
		if err := r.CalcRMS(); err != nil {
			return err
		}
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# station lon lat rel_east rel_north rms rms_z rms_tip")
	for _, s := range r.StationRMS {
		fmt.Fprintf(bw, "%s %.6f %.6f %.1f %.1f %.3f %.3f %.3f\n",
			s.Station.Name, s.Station.Lon, s.Station.Lat,
			s.Station.RelEast, s.Station.RelNorth,
			s.RMS, s.RMSZ, s.RMSTip)
	}
	return bw.Flush()
}
