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
)

// ControlInv holds the settings of a ModEM inversion control file
// (control.inv).
type ControlInv struct {
	OutputName      string
	LambdaInitial   float64
	LambdaStep      float64
	ModelSearchStep float64
	RMSResetSearch  float64
	RMSTarget       float64
	LambdaExit      float64
	MaxIterations   int
}

// NewControlInv returns the customary inversion control defaults.
func NewControlInv() *ControlInv {
	return &ControlInv{
		OutputName:      "MODULAR_NLCG",
		LambdaInitial:   10,
		LambdaStep:      10,
		ModelSearchStep: 1,
		RMSResetSearch:  2.0e-3,
		RMSTarget:       1.05,
		LambdaExit:      1.0e-4,
		MaxIterations:   100,
	}
}

// Write writes the control file as "key : value" lines.
func (c *ControlInv) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%-35s: %s\n", "Model and data output file name", c.OutputName)
	fmt.Fprintf(bw, "%-35s: %.1f\n", "Initial damping factor lambda", c.LambdaInitial)
	fmt.Fprintf(bw, "%-35s: %.1f\n", "To update lambda divide by", c.LambdaStep)
	fmt.Fprintf(bw, "%-35s: %.1f\n", "Initial search step in model units", c.ModelSearchStep)
	fmt.Fprintf(bw, "%-35s: %.1e\n", "Restart when rms diff is less than", c.RMSResetSearch)
	fmt.Fprintf(bw, "%-35s: %.2f\n", "Exit search when rms is less than", c.RMSTarget)
	fmt.Fprintf(bw, "%-35s: %.1e\n", "Exit when lambda is less than", c.LambdaExit)
	fmt.Fprintf(bw, "%-35s: %.0f\n", "Maximum number of iterations", float64(c.MaxIterations))
	return bw.Flush()
}

// WriteFile writes the control file to path.
func (c *ControlInv) WriteFile(path string) error {
	return writeControlFile(path, c.Write)
}

// Read reads a control file written by Write, ignoring unknown keys.
func (c *ControlInv) Read(r io.Reader) error {
	return readControlLines(r, func(key, value string) error {
		switch key {
		case "Model and data output file name":
			c.OutputName = value
		case "Initial damping factor lambda":
			return parseControlFloat(value, &c.LambdaInitial)
		case "To update lambda divide by":
			return parseControlFloat(value, &c.LambdaStep)
		case "Initial search step in model units":
			return parseControlFloat(value, &c.ModelSearchStep)
		case "Restart when rms diff is less than":
			return parseControlFloat(value, &c.RMSResetSearch)
		case "Exit search when rms is less than":
			return parseControlFloat(value, &c.RMSTarget)
		case "Exit when lambda is less than":
			return parseControlFloat(value, &c.LambdaExit)
		case "Maximum number of iterations":
			var v float64
			if err := parseControlFloat(value, &v); err != nil {
				return err
			}
			c.MaxIterations = int(v)
		}
		return nil
	})
}

// ReadFile reads the control file at path.
func (c *ControlInv) ReadFile(path string) error {
	return readControlFile(path, c.Read)
}

// ControlFwd holds the settings of a ModEM forward-solver control file
// (control.fwd).
type ControlFwd struct {
	NumQMRIter     int
	MaxNumDivCalls int
	MaxNumDivIters int
	MisfitTolFwd   float64
	MisfitTolAdj   float64
	MisfitTolDiv   float64
}

// NewControlFwd returns the customary forward-solver control defaults.
func NewControlFwd() *ControlFwd {
	return &ControlFwd{
		NumQMRIter:     40,
		MaxNumDivCalls: 20,
		MaxNumDivIters: 100,
		MisfitTolFwd:   1.0e-7,
		MisfitTolAdj:   1.0e-7,
		MisfitTolDiv:   1.0e-5,
	}
}

// Write writes the control file as "key : value" lines.
func (c *ControlFwd) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%-47s: %.0f\n", "Number of QMR iters per divergence correction", float64(c.NumQMRIter))
	fmt.Fprintf(bw, "%-47s: %.0f\n", "Maximum number of divergence correction calls", float64(c.MaxNumDivCalls))
	fmt.Fprintf(bw, "%-47s: %.0f\n", "Maximum number of divergence correction iters", float64(c.MaxNumDivIters))
	fmt.Fprintf(bw, "%-47s: %.1e\n", "Misfit tolerance for EM forward solver", c.MisfitTolFwd)
	fmt.Fprintf(bw, "%-47s: %.1e\n", "Misfit tolerance for EM adjoint solver", c.MisfitTolAdj)
	fmt.Fprintf(bw, "%-47s: %.1e\n", "Misfit tolerance for divergence correction", c.MisfitTolDiv)
	return bw.Flush()
}

// WriteFile writes the control file to path.
func (c *ControlFwd) WriteFile(path string) error {
	return writeControlFile(path, c.Write)
}

// Read reads a control file written by Write, ignoring unknown keys.
func (c *ControlFwd) Read(r io.Reader) error {
	return readControlLines(r, func(key, value string) error {
		var v float64
		switch key {
		case "Number of QMR iters per divergence correction":
			if err := parseControlFloat(value, &v); err != nil {
				return err
			}
			c.NumQMRIter = int(v)
		case "Maximum number of divergence correction calls":
			if err := parseControlFloat(value, &v); err != nil {
				return err
			}
			c.MaxNumDivCalls = int(v)
		case "Maximum number of divergence correction iters":
			if err := parseControlFloat(value, &v); err != nil {
				return err
			}
			c.MaxNumDivIters = int(v)
		case "Misfit tolerance for EM forward solver":
			return parseControlFloat(value, &c.MisfitTolFwd)
		case "Misfit tolerance for EM adjoint solver":
			return parseControlFloat(value, &c.MisfitTolAdj)
		case "Misfit tolerance for divergence correction":
			return parseControlFloat(value, &c.MisfitTolDiv)
		}
		return nil
	})
}

// ReadFile reads the control file at path.
func (c *ControlFwd) ReadFile(path string) error {
	return readControlFile(path, c.Read)
}

func writeControlFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("modem: creating control file: %v", err)
	}
	defer f.Close()
	if err := write(f); err != nil {
		return err
	}
	return f.Close()
}

func readControlFile(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("modem: opening control file: %v", err)
	}
	defer f.Close()
	return read(f)
}

func readControlLines(r io.Reader, set func(key, value string) error) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if err := set(key, value); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("modem: reading control file: %v", err)
	}
	return nil
}

func parseControlFloat(s string, dst *float64) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("modem: malformed control value %q: %v", s, err)
	}
	*dst = v
	return nil
}
