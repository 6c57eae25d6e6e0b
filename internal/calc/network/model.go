package network

type Method string

const (
	MethodHazenWilliams Method = "hazen-williams"
	MethodDarcyWeisbach Method = "darcy-weisbach"
)

// Node is a reservoir (fixed head) or a demand junction.
type Node struct {
	ID          string  `json:"id"`
	Elevation   float64 `json:"elevation_m"`
	Demand      float64 `json:"demand_lps"` // ignored for reservoirs
	IsReservoir bool    `json:"is_reservoir"`
}

// Pipe connects two nodes. Positive flow runs StartNode -> EndNode.
type Pipe struct {
	ID        string  `json:"id"`
	StartNode string  `json:"start_node"`
	EndNode   string  `json:"end_node"`
	Length    float64 `json:"length_m"`
	Diameter  float64 `json:"diameter_mm"`
	Roughness float64 `json:"roughness"` // Hazen-Williams C or absolute roughness in mm
}

// Network is a validated snapshot ready for solving.
type Network struct {
	Nodes []Node `json:"nodes"`
	Pipes []Pipe `json:"pipes"`
}

// Config holds the parameters of a single solve. It is never mutated by the solver.
//
// HGLAccuracy stops the solve once no junction head moves more than this
// per iteration. It bounds the head step, not the flow imbalance: on large
// meshes nodal relaxation slows down long before flows balance, so a
// converged result can still miss demands by a noticeable fraction. Use a
// tolerance around 1e-7 m when continuity matters more than run time.
type Config struct {
	Method             Method  `json:"method" yaml:"method" validate:"oneof=hazen-williams darcy-weisbach"`
	MaxIterations      int     `json:"max_iterations" yaml:"max_iterations" validate:"min=1,max=100000"`
	HGLAccuracy        float64 `json:"hgl_accuracy" yaml:"hgl_accuracy" validate:"gt=0"`
	Omega              float64 `json:"omega" yaml:"omega" validate:"gt=0,lt=2"`
	MinPressure        float64 `json:"min_pressure" yaml:"min_pressure"`
	MaxPressure        float64 `json:"max_pressure" yaml:"max_pressure" validate:"gtfield=MinPressure"`
	MinVelocity        float64 `json:"min_velocity" yaml:"min_velocity" validate:"gte=0"`
	MaxVelocity        float64 `json:"max_velocity" yaml:"max_velocity" validate:"gtfield=MinVelocity"`
	MinDiameter        float64 `json:"min_diameter" yaml:"min_diameter" validate:"gt=0"`
	MaxDiameter        float64 `json:"max_diameter" yaml:"max_diameter" validate:"gtfield=MinDiameter"`
	Gravity            float64 `json:"gravity" yaml:"gravity" validate:"gt=0"`
	KinematicViscosity float64 `json:"kinematic_viscosity" yaml:"kinematic_viscosity" validate:"gt=0"`
}

func DefaultConfig() Config {
	return Config{
		Method:             MethodHazenWilliams,
		MaxIterations:      200,
		HGLAccuracy:        0.001,
		Omega:              1.0,
		MinPressure:        15,
		MaxPressure:        60,
		MinVelocity:        0.3,
		MaxVelocity:        3.0,
		MinDiameter:        20,
		MaxDiameter:        2000,
		Gravity:            9.81,
		KinematicViscosity: 1.004e-6, // water at 20 °C
	}
}

type NodeResult struct {
	ID          string  `json:"id"`
	Elevation   float64 `json:"elevation_m"`
	Demand      float64 `json:"demand_lps"`
	IsReservoir bool    `json:"is_reservoir"`
	HGL         float64 `json:"hgl_m"`
	Pressure    float64 `json:"pressure_m"`
}

type PipeResult struct {
	ID             string  `json:"id"`
	StartNode      string  `json:"start_node"`
	EndNode        string  `json:"end_node"`
	Length         float64 `json:"length_m"`
	Diameter       float64 `json:"diameter_mm"`
	Flow           float64 `json:"flow_lps"`
	Velocity       float64 `json:"velocity_ms"`
	Headloss       float64 `json:"headloss_m"`
	FrictionFactor float64 `json:"friction_factor,omitempty"`
	Reynolds       float64 `json:"reynolds,omitempty"`
}

// Result is the output of one analysis. It is built fresh for every call.
type Result struct {
	Method          Method           `json:"method"`
	Nodes           []NodeResult     `json:"nodes"`
	Pipes           []PipeResult     `json:"pipes"`
	Iterations      int              `json:"iterations"`
	MaxChange       float64          `json:"max_change_m"`
	Converged       bool             `json:"converged"`
	Warnings        []Warning        `json:"warnings"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Node returns the result row for id.
func (r Result) Node(id string) (NodeResult, bool) {
	for _, n := range r.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeResult{}, false
}

// Pipe returns the result row for id.
func (r Result) Pipe(id string) (PipeResult, bool) {
	for _, p := range r.Pipes {
		if p.ID == id {
			return p, true
		}
	}
	return PipeResult{}, false
}
