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
	"sort"

	"gonum.org/v1/gonum/floats"
)

// PeriodConfig selects the inversion periods from the periods measured
// by a station set.
//
// If PeriodList is non-empty it is used verbatim and the other fields
// are ignored. Otherwise, if PeriodMin, PeriodMax, and MaxNumPeriods
// are all set, that many log-spaced periods are generated between the
// measured periods bracketing the requested range. If none of the
// fields are set, the union of all measured periods is used.
type PeriodConfig struct {
	// PeriodList gives the inversion periods explicitly, seconds.
	PeriodList []float64

	// PeriodMin and PeriodMax bound the inversion periods, seconds.
	PeriodMin, PeriodMax float64

	// MaxNumPeriods is the number of log-spaced periods to generate
	// between PeriodMin and PeriodMax.
	MaxNumPeriods int

	// PeriodBuffer limits interpolation distance: an inversion period
	// is only filled from a station whose nearest measured period is
	// within this multiplicative factor. Zero disables the check.
	PeriodBuffer float64
}

// SelectPeriods derives the inversion period list from the periods
// measured by stations. The result is ascending.
func (c *PeriodConfig) SelectPeriods(stations StationList) ([]float64, error) {
	if len(c.PeriodList) != 0 {
		out := make([]float64, len(c.PeriodList))
		copy(out, c.PeriodList)
		sort.Float64s(out)
		return out, nil
	}

	pool := stations.Periods()
	if len(pool) == 0 {
		return nil, fmt.Errorf("modem: no measured periods to select from")
	}

	set := 0
	if c.PeriodMin != 0 {
		set++
	}
	if c.PeriodMax != 0 {
		set++
	}
	if c.MaxNumPeriods != 0 {
		set++
	}
	if set == 0 {
		return pool, nil
	}
	if set != 3 {
		return nil, fmt.Errorf("modem: period selection needs PeriodMin, " +
			"PeriodMax, and MaxNumPeriods all set; got a partial configuration")
	}
	if c.PeriodMin >= c.PeriodMax {
		return nil, fmt.Errorf("modem: PeriodMin %g must be less than PeriodMax %g",
			c.PeriodMin, c.PeriodMax)
	}
	if c.MaxNumPeriods < 2 {
		return nil, fmt.Errorf("modem: MaxNumPeriods must be at least 2, got %d",
			c.MaxNumPeriods)
	}

	// Snap the requested bounds inward to measured periods so the
	// generated list stays within [PeriodMin, PeriodMax].
	lo, hi := 0.0, 0.0
	for _, p := range pool {
		if p >= c.PeriodMin {
			lo = p
			break
		}
	}
	for i := len(pool) - 1; i >= 0; i-- {
		if pool[i] <= c.PeriodMax {
			hi = pool[i]
			break
		}
	}
	if lo == 0 || hi == 0 || lo >= hi {
		return nil, fmt.Errorf("modem: requested period range [%g, %g] contains "+
			"too few measured periods", c.PeriodMin, c.PeriodMax)
	}

	out := make([]float64, c.MaxNumPeriods)
	floats.LogSpan(out, lo, hi)
	return out, nil
}

// roundTo rounds v to the nearest multiple of unit.
func roundTo(v, unit float64) float64 {
	return math.Round(v/unit) * unit
}
