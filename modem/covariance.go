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
	"os"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

var covarianceHeader = strings.Join([]string{
	"+" + strings.Repeat("-", 77) + "+",
	"| This file defines model covariance for a recursive autoregression scheme.   |",
	"| The model space may be divided into distinct areas using integer masks.     |",
	"| Mask 0 is reserved for air; mask 9 is reserved for ocean. Smoothing between |",
	"| air, ocean and the rest of the model is turned off automatically. You can   |",
	"| also define exceptions to override smoothing between any two model areas.   |",
	"| To turn off smoothing set it to zero.  This header is 16 lines long.        |",
	"| 1. Grid dimensions excluding air layers (Nx, Ny, NzEarth)                   |",
	"| 2. Smoothing in the X direction (NzEarth real values)                       |",
	"| 3. Smoothing in the Y direction (NzEarth real values)                       |",
	"| 4. Vertical smoothing (1 real value)                                        |",
	"| 5. Number of times the smoothing should be applied (1 integer >= 0)         |",
	"| 6. Number of exceptions (1 integer >= 0)                                    |",
	"| 7. Exceptions in the for e.g. 2 3 0. (to turn off smoothing between 3 & 4)  |",
	"| 8. Two integer layer indices and Nx x Ny block of masks, repeated as needed.|",
	"+" + strings.Repeat("-", 77) + "+",
}, "\n")

// Covariance describes a ModEM model covariance: per-direction
// smoothing strengths and an integer mask dividing the model into air,
// ocean, and earth.
type Covariance struct {
	// GridDimensions is the model size as (north, east, z).
	GridDimensions [3]int

	SmoothingEast  float64
	SmoothingNorth float64
	SmoothingZ     float64

	// SmoothingNum is the number of times smoothing is applied.
	SmoothingNum int

	// Exceptions override smoothing between pairs of mask areas; each
	// entry is {maskA, maskB, smoothing}.
	Exceptions [][3]int

	// Mask classifies each cell with dimensions (north, east, z) and
	// index 0 southernmost, like Model.CovMask. A nil mask writes all
	// cells as normal earth.
	Mask *sparse.DenseArray

	Log logrus.FieldLogger
}

// NewCovariance returns a covariance with the customary smoothing
// defaults for a model of the given dimensions.
func NewCovariance(dims [3]int) *Covariance {
	return &Covariance{
		GridDimensions: dims,
		SmoothingEast:  0.3,
		SmoothingNorth: 0.3,
		SmoothingZ:     0.3,
		SmoothingNum:   1,
	}
}

func (c *Covariance) log() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}

// MaskFromModel classifies the model's cells by resistivity: cells
// within 10% of airRes become air and cells within 10% of seaRes
// become ocean. If the model already carries a covariance mask from
// AddTopography, that mask is used directly.
func (c *Covariance) MaskFromModel(m *Model, airRes, seaRes float64) error {
	if m.ResModel == nil {
		return fmt.Errorf("modem: model has no resistivities to classify")
	}
	c.GridDimensions = [3]int{len(m.NodesNorth), len(m.NodesEast), len(m.NodesZ)}
	if m.CovMask != nil {
		c.Mask = m.CovMask
		return nil
	}
	c.Mask = sparse.ZerosDense(m.ResModel.Shape...)
	for i, res := range m.ResModel.Elements {
		switch {
		case res > airRes*0.9:
			c.Mask.Elements[i] = MaskAir
		case res > seaRes*0.9 && res < seaRes*1.1:
			c.Mask.Elements[i] = MaskSea
		default:
			c.Mask.Elements[i] = MaskEarth
		}
	}
	return nil
}

// WriteFile writes the covariance file to path.
func (c *Covariance) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("modem: creating covariance file: %v", err)
	}
	defer f.Close()
	if err := c.Write(f); err != nil {
		return err
	}
	c.log().WithFields(logrus.Fields{"file": path}).Info("wrote ModEM covariance file")
	return f.Close()
}

// Write writes the covariance in ModEM format. Mask rows are written
// north to south, matching the model file layer blocks.
func (c *Covariance) Write(w io.Writer) error {
	nNorth, nEast, nZ := c.GridDimensions[0], c.GridDimensions[1], c.GridDimensions[2]
	if nNorth == 0 || nEast == 0 || nZ == 0 {
		return fmt.Errorf("modem: covariance grid dimensions are not set")
	}

	bw := bufio.NewWriter(w)
	fmt.Fprint(bw, covarianceHeader)
	fmt.Fprint(bw, "\n\n")

	fmt.Fprintf(bw, " %-10d%-10d%-10d\n", nNorth, nEast, nZ)
	fmt.Fprint(bw, "\n")

	for zz := 0; zz < nZ; zz++ {
		fmt.Fprintf(bw, " %-5.1f", c.SmoothingNorth)
	}
	fmt.Fprint(bw, "\n")
	for zz := 0; zz < nZ; zz++ {
		fmt.Fprintf(bw, " %-5.1f", c.SmoothingEast)
	}
	fmt.Fprint(bw, "\n")
	fmt.Fprintf(bw, " %-5.1f\n", c.SmoothingZ)
	fmt.Fprint(bw, "\n")

	fmt.Fprintf(bw, " %-2d\n", c.SmoothingNum)
	fmt.Fprint(bw, "\n")

	fmt.Fprintf(bw, " %d\n", len(c.Exceptions))
	for _, exc := range c.Exceptions {
		fmt.Fprintf(bw, "%-5d%-5d%-5d\n", exc[0], exc[1], exc[2])
	}
	fmt.Fprint(bw, "\n\n")

	for zz := 0; zz < nZ; zz++ {
		fmt.Fprintf(bw, " %-8d%-8d\n", zz+1, zz+1)
		for nn := 0; nn < nNorth; nn++ {
			for ee := 0; ee < nEast; ee++ {
				v := MaskEarth
				if c.Mask != nil {
					v = int(c.Mask.Get(nNorth-1-nn, ee, zz))
				}
				fmt.Fprint(bw, center3(v))
			}
			fmt.Fprint(bw, "\n")
		}
	}
	return bw.Flush()
}

// center3 centers a small integer in a three-character field.
func center3(v int) string {
	s := strconv.Itoa(v)
	switch len(s) {
	case 1:
		return " " + s + " "
	case 2:
		return s + " "
	default:
		return s
	}
}
