package network

import (
	"fmt"
	"math"
)

const (
	nearzero = 1e-12

	hazenWilliamsK        = 10.67
	hazenWilliamsExponent = 1.852
	darcyExponent         = 2.0

	defaultFrictionFactor = 0.02
	laminarReynolds       = 2300.0
)

// Resistance describes head loss through a pipe as r*|Q|^n*sign(Q), Q in m³/s.
type Resistance struct {
	R              float64
	N              float64
	FrictionFactor float64 // Darcy-Weisbach only
	Reynolds       float64 // Darcy-Weisbach only
}

// FrictionModel computes a pipe's resistance. Darcy-Weisbach depends on the
// current flow estimate; Hazen-Williams ignores it.
type FrictionModel interface {
	Resistance(lengthM, diameterM, flow float64, cfg Config) Resistance
	FlowDependent() bool
}

type HazenWilliams struct {
	C float64
}

func (m HazenWilliams) Resistance(lengthM, diameterM, _ float64, _ Config) Resistance {
	r := hazenWilliamsK * lengthM / (math.Pow(m.C, hazenWilliamsExponent) * math.Pow(diameterM, 4.87))
	return Resistance{R: r, N: hazenWilliamsExponent}
}

func (HazenWilliams) FlowDependent() bool { return false }

type DarcyWeisbach struct {
	RoughnessMM float64
}

func (m DarcyWeisbach) Resistance(lengthM, diameterM, flow float64, cfg Config) Resistance {
	area := pipeArea(diameterM)
	f, re := m.frictionFactor(diameterM, area, flow, cfg.KinematicViscosity)
	if area < nearzero {
		return Resistance{N: darcyExponent, FrictionFactor: f, Reynolds: re}
	}
	r := f * lengthM / (diameterM * 2 * cfg.Gravity * area * area)
	return Resistance{R: r, N: darcyExponent, FrictionFactor: f, Reynolds: re}
}

func (DarcyWeisbach) FlowDependent() bool { return true }

func (m DarcyWeisbach) frictionFactor(diameterM, area, flow, viscosity float64) (f, re float64) {
	q := math.Abs(flow)
	if q < nearzero || area < nearzero || viscosity <= 0 {
		return defaultFrictionFactor, 0
	}
	v := q / area
	re = v * diameterM / viscosity
	switch {
	case re > laminarReynolds:
		return SwameeJain(m.RoughnessMM/1000, diameterM, re), re
	case re > 0:
		return 64 / re, re
	default:
		return defaultFrictionFactor, re
	}
}

// SwameeJain is the explicit approximation of the Colebrook-White equation
// for turbulent flow. e and d are in meters.
func SwameeJain(e, d, re float64) float64 {
	l := math.Log10(e/(3.7*d) + 5.74/math.Pow(re, 0.9))
	return 0.25 / (l * l)
}

// NewFrictionModel resolves the model used for a pipe under method.
func NewFrictionModel(method Method, roughness float64) (FrictionModel, error) {
	switch method {
	case MethodHazenWilliams:
		return HazenWilliams{C: roughness}, nil
	case MethodDarcyWeisbach:
		return DarcyWeisbach{RoughnessMM: roughness}, nil
	default:
		return nil, fmt.Errorf("unknown analysis method %q", method)
	}
}

// FlowFromHead inverts the head-loss relation: Q = sign(dH)*(|dH|/r)^(1/n).
func FlowFromHead(dH, r, n float64) float64 {
	if r < nearzero || math.Abs(dH) < nearzero || n <= 0 {
		return 0
	}
	q := math.Pow(math.Abs(dH)/r, 1/n)
	if dH < 0 {
		return -q
	}
	return q
}

// HeadFromFlow is the head-loss relation dH = r*|Q|^n*sign(Q).
func HeadFromFlow(q, r, n float64) float64 {
	h := r * math.Pow(math.Abs(q), n)
	if q < 0 {
		return -h
	}
	return h
}

func pipeArea(diameterM float64) float64 {
	return math.Pi * diameterM * diameterM / 4
}
