package importer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	network "Waternet/internal/calc/network"
)

const (
	SheetNodes  = "Nodes"
	SheetPipes  = "Pipes"
	SheetConfig = "Config"
	SheetResult = "Results"
)

var (
	ErrNoNodes = errors.New("workbook has no Nodes sheet")
	ErrNoPipes = errors.New("workbook has no Pipes sheet")
)

// RowError points at a row that could not be read. Row is 1-based as shown
// in a spreadsheet.
type RowError struct {
	Sheet string
	Row   int
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s row %d: %v", e.Sheet, e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Read parses a network workbook. The first row of each sheet is a header.
//
//	Nodes:  id, elevation_m, demand_lps, reservoir
//	Pipes:  id, start_node, end_node, length_m, diameter_mm, roughness
//	Config: key, value (optional)
//
// Cells are passed through as text; numeric checks belong to the validator.
func Read(r io.Reader) (network.Input, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return network.Input{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var in network.Input

	nodeRows, err := sheetRows(f, SheetNodes)
	if err != nil {
		return network.Input{}, err
	}
	if nodeRows == nil {
		return network.Input{}, ErrNoNodes
	}
	for i, row := range nodeRows {
		if blank(row) {
			continue
		}
		reservoir, err := parseBool(cell(row, 3))
		if err != nil {
			return network.Input{}, &RowError{Sheet: SheetNodes, Row: i + 2, Err: err}
		}
		in.Nodes = append(in.Nodes, network.NodeInput{
			ID:          cell(row, 0),
			Elevation:   network.Value(cell(row, 1)),
			Demand:      network.Value(cell(row, 2)),
			IsReservoir: reservoir,
		})
	}

	pipeRows, err := sheetRows(f, SheetPipes)
	if err != nil {
		return network.Input{}, err
	}
	if pipeRows == nil {
		return network.Input{}, ErrNoPipes
	}
	for _, row := range pipeRows {
		if blank(row) {
			continue
		}
		in.Pipes = append(in.Pipes, network.PipeInput{
			ID:        cell(row, 0),
			StartNode: cell(row, 1),
			EndNode:   cell(row, 2),
			Length:    network.Value(cell(row, 3)),
			Diameter:  network.Value(cell(row, 4)),
			Roughness: network.Value(cell(row, 5)),
		})
	}

	cfgRows, err := sheetRows(f, SheetConfig)
	if err != nil {
		return network.Input{}, err
	}
	for i, row := range cfgRows {
		if blank(row) {
			continue
		}
		if err := in.Config.Set(cell(row, 0), network.Value(cell(row, 1))); err != nil {
			return network.Input{}, &RowError{Sheet: SheetConfig, Row: i + 2, Err: err}
		}
	}
	return in, nil
}

// sheetRows returns the data rows below the header, or nil when the sheet
// does not exist.
func sheetRows(f *excelize.File, name string) ([][]string, error) {
	if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
		return nil, nil
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(rows) < 2 {
		return [][]string{}, nil
	}
	return rows[1:], nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "0", "no", "n", "false", "junction":
		return false, nil
	case "1", "yes", "y", "true", "x", "reservoir":
		return true, nil
	default:
		return false, fmt.Errorf("reservoir flag %q is not yes/no", s)
	}
}

// WriteInput renders a network as a workbook that Read accepts.
func WriteInput(w io.Writer, in network.Input) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetNodes); err != nil {
		return err
	}
	nodes := [][]any{{"id", "elevation_m", "demand_lps", "reservoir"}}
	for _, n := range in.Nodes {
		flag := "no"
		if n.IsReservoir {
			flag = "yes"
		}
		nodes = append(nodes, []any{n.ID, string(n.Elevation), string(n.Demand), flag})
	}
	if err := writeRows(f, SheetNodes, nodes); err != nil {
		return err
	}

	pipes := [][]any{{"id", "start_node", "end_node", "length_m", "diameter_mm", "roughness"}}
	for _, p := range in.Pipes {
		pipes = append(pipes, []any{p.ID, p.StartNode, p.EndNode, string(p.Length), string(p.Diameter), string(p.Roughness)})
	}
	if err := writeRows(f, SheetPipes, pipes); err != nil {
		return err
	}

	cfg := [][]any{{"key", "value"}}
	c := in.Config
	for _, kv := range []struct {
		key string
		v   network.Value
	}{
		{"method", network.Value(c.Method)},
		{"max_iterations", c.MaxIterations},
		{"hgl_accuracy", c.HGLAccuracy},
		{"omega", c.Omega},
		{"min_pressure", c.MinPressure},
		{"max_pressure", c.MaxPressure},
		{"min_velocity", c.MinVelocity},
		{"max_velocity", c.MaxVelocity},
		{"min_diameter", c.MinDiameter},
		{"max_diameter", c.MaxDiameter},
		{"gravity", c.Gravity},
		{"kinematic_viscosity", c.KinematicViscosity},
	} {
		if !kv.v.Empty() {
			cfg = append(cfg, []any{kv.key, string(kv.v)})
		}
	}
	if err := writeRows(f, SheetConfig, cfg); err != nil {
		return err
	}
	return f.Write(w)
}

// Write exports a solved network: node and pipe results plus the warnings.
func Write(w io.Writer, res network.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetNodes); err != nil {
		return err
	}
	nodes := [][]any{{"id", "elevation_m", "demand_lps", "reservoir", "hgl_m", "pressure_m"}}
	for _, n := range res.Nodes {
		nodes = append(nodes, []any{n.ID, n.Elevation, n.Demand, n.IsReservoir, n.HGL, n.Pressure})
	}
	if err := writeRows(f, SheetNodes, nodes); err != nil {
		return err
	}

	pipes := [][]any{{"id", "start_node", "end_node", "length_m", "diameter_mm",
		"flow_lps", "velocity_ms", "headloss_m", "friction_factor", "reynolds"}}
	for _, p := range res.Pipes {
		pipes = append(pipes, []any{p.ID, p.StartNode, p.EndNode, p.Length, p.Diameter,
			p.Flow, p.Velocity, p.Headloss, p.FrictionFactor, p.Reynolds})
	}
	if err := writeRows(f, SheetPipes, pipes); err != nil {
		return err
	}

	summary := [][]any{
		{"method", string(res.Method)},
		{"iterations", res.Iterations},
		{"converged", res.Converged},
		{"max_change_m", res.MaxChange},
		{},
		{"kind", "severity", "target", "value", "threshold", "message"},
	}
	for _, wr := range res.Warnings {
		summary = append(summary, []any{string(wr.Kind), string(wr.Severity), wr.Target, wr.Value, wr.Threshold, wr.Message})
	}
	if err := writeRows(f, SheetResult, summary); err != nil {
		return err
	}
	return f.Write(w)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
	}
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, addr, &row); err != nil {
			return fmt.Errorf("write %s: %w", sheet, err)
		}
	}
	return nil
}
