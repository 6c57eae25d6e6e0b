package network

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a numeric form field. It decodes from either a JSON string or a
// JSON number so that raw form text and typed clients share one payload.
type Value string

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Value(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("value must be a number or string: %w", err)
	}
	*v = Value(n.String())
	return nil
}

func (v Value) Empty() bool {
	return strings.TrimSpace(string(v)) == ""
}

// Float parses v as a finite number. A decimal comma is accepted.
func (v Value) Float() (float64, error) {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return 0, fmt.Errorf("value is empty")
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return f, nil
}

func FloatValue(f float64) Value {
	return Value(strconv.FormatFloat(f, 'g', -1, 64))
}

type NodeInput struct {
	ID          string `json:"id" yaml:"id"`
	Elevation   Value  `json:"elevation_m" yaml:"elevation_m"`
	Demand      Value  `json:"demand_lps" yaml:"demand_lps"`
	IsReservoir bool   `json:"is_reservoir" yaml:"is_reservoir"`
}

type PipeInput struct {
	ID        string `json:"id" yaml:"id"`
	StartNode string `json:"start_node" yaml:"start_node"`
	EndNode   string `json:"end_node" yaml:"end_node"`
	Length    Value  `json:"length_m" yaml:"length_m"`
	Diameter  Value  `json:"diameter_mm" yaml:"diameter_mm"`
	Roughness Value  `json:"roughness" yaml:"roughness"`
}

// ConfigInput overrides solver defaults. Empty fields keep the default.
type ConfigInput struct {
	Method             Method `json:"method,omitempty" yaml:"method,omitempty"`
	MaxIterations      Value  `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	HGLAccuracy        Value  `json:"hgl_accuracy,omitempty" yaml:"hgl_accuracy,omitempty"`
	Omega              Value  `json:"omega,omitempty" yaml:"omega,omitempty"`
	MinPressure        Value  `json:"min_pressure,omitempty" yaml:"min_pressure,omitempty"`
	MaxPressure        Value  `json:"max_pressure,omitempty" yaml:"max_pressure,omitempty"`
	MinVelocity        Value  `json:"min_velocity,omitempty" yaml:"min_velocity,omitempty"`
	MaxVelocity        Value  `json:"max_velocity,omitempty" yaml:"max_velocity,omitempty"`
	MinDiameter        Value  `json:"min_diameter,omitempty" yaml:"min_diameter,omitempty"`
	MaxDiameter        Value  `json:"max_diameter,omitempty" yaml:"max_diameter,omitempty"`
	Gravity            Value  `json:"gravity,omitempty" yaml:"gravity,omitempty"`
	KinematicViscosity Value  `json:"kinematic_viscosity,omitempty" yaml:"kinematic_viscosity,omitempty"`
}

// Input is a network definition as submitted by a form or a file.
type Input struct {
	Nodes  []NodeInput `json:"nodes" yaml:"nodes"`
	Pipes  []PipeInput `json:"pipes" yaml:"pipes"`
	Config ConfigInput `json:"config" yaml:"config"`
}

// Set assigns a config override by its json key. Unknown keys are rejected.
func (c *ConfigInput) Set(key string, v Value) error {
	switch strings.TrimSpace(strings.ToLower(key)) {
	case "method":
		c.Method = Method(strings.TrimSpace(strings.ToLower(string(v))))
	case "max_iterations":
		c.MaxIterations = v
	case "hgl_accuracy":
		c.HGLAccuracy = v
	case "omega":
		c.Omega = v
	case "min_pressure":
		c.MinPressure = v
	case "max_pressure":
		c.MaxPressure = v
	case "min_velocity":
		c.MinVelocity = v
	case "max_velocity":
		c.MaxVelocity = v
	case "min_diameter":
		c.MinDiameter = v
	case "max_diameter":
		c.MaxDiameter = v
	case "gravity":
		c.Gravity = v
	case "kinematic_viscosity":
		c.KinematicViscosity = v
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

// apply overlays the non-empty overrides onto base, collecting parse issues.
func (c ConfigInput) apply(base Config, issues *issueList) Config {
	cfg := base
	if c.Method != "" {
		cfg.Method = c.Method
	}
	floats := []struct {
		field string
		in    Value
		out   *float64
	}{
		{"hgl_accuracy", c.HGLAccuracy, &cfg.HGLAccuracy},
		{"omega", c.Omega, &cfg.Omega},
		{"min_pressure", c.MinPressure, &cfg.MinPressure},
		{"max_pressure", c.MaxPressure, &cfg.MaxPressure},
		{"min_velocity", c.MinVelocity, &cfg.MinVelocity},
		{"max_velocity", c.MaxVelocity, &cfg.MaxVelocity},
		{"min_diameter", c.MinDiameter, &cfg.MinDiameter},
		{"max_diameter", c.MaxDiameter, &cfg.MaxDiameter},
		{"gravity", c.Gravity, &cfg.Gravity},
		{"kinematic_viscosity", c.KinematicViscosity, &cfg.KinematicViscosity},
	}
	for _, f := range floats {
		if f.in.Empty() {
			continue
		}
		v, err := f.in.Float()
		if err != nil {
			issues.add(IssueInvalidNumber, "config."+f.field, "", err.Error())
			continue
		}
		*f.out = v
	}
	if !c.MaxIterations.Empty() {
		v, err := c.MaxIterations.Float()
		switch {
		case err != nil:
			issues.add(IssueInvalidNumber, "config.max_iterations", "", err.Error())
		case v != math.Trunc(v):
			issues.add(IssueInvalidNumber, "config.max_iterations", "", "must be a whole number")
		default:
			cfg.MaxIterations = int(v)
		}
	}
	return cfg
}

// InputFrom renders a typed network and config back into form input.
func InputFrom(net Network, cfg Config) Input {
	in := Input{
		Nodes: make([]NodeInput, 0, len(net.Nodes)),
		Pipes: make([]PipeInput, 0, len(net.Pipes)),
		Config: ConfigInput{
			Method:             cfg.Method,
			MaxIterations:      Value(strconv.Itoa(cfg.MaxIterations)),
			HGLAccuracy:        FloatValue(cfg.HGLAccuracy),
			Omega:              FloatValue(cfg.Omega),
			MinPressure:        FloatValue(cfg.MinPressure),
			MaxPressure:        FloatValue(cfg.MaxPressure),
			MinVelocity:        FloatValue(cfg.MinVelocity),
			MaxVelocity:        FloatValue(cfg.MaxVelocity),
			MinDiameter:        FloatValue(cfg.MinDiameter),
			MaxDiameter:        FloatValue(cfg.MaxDiameter),
			Gravity:            FloatValue(cfg.Gravity),
			KinematicViscosity: FloatValue(cfg.KinematicViscosity),
		},
	}
	for _, n := range net.Nodes {
		in.Nodes = append(in.Nodes, NodeInput{
			ID:          n.ID,
			Elevation:   FloatValue(n.Elevation),
			Demand:      FloatValue(n.Demand),
			IsReservoir: n.IsReservoir,
		})
	}
	for _, p := range net.Pipes {
		in.Pipes = append(in.Pipes, PipeInput{
			ID:        p.ID,
			StartNode: p.StartNode,
			EndNode:   p.EndNode,
			Length:    FloatValue(p.Length),
			Diameter:  FloatValue(p.Diameter),
			Roughness: FloatValue(p.Roughness),
		})
	}
	return in
}
