package network

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

type IssueKind string

const (
	IssueNoReservoir   IssueKind = "no-reservoir"
	IssueMissingID     IssueKind = "missing-id"
	IssueDuplicateID   IssueKind = "duplicate-id"
	IssueInvalidNumber IssueKind = "invalid-number"
	IssueUnknownNode   IssueKind = "unknown-node"
	IssueSelfLoop      IssueKind = "self-loop"
	IssueOutOfRange    IssueKind = "out-of-range"
	IssueInvalidConfig IssueKind = "invalid-config"
	IssueEmptyNetwork  IssueKind = "empty-network"
	IssueUnknownMethod IssueKind = "unknown-method"
)

// Issue is one reason a network cannot be solved.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Field   string    `json:"field"`
	Target  string    `json:"target,omitempty"`
	Message string    `json:"message"`
}

// ValidationError blocks a solve. It is returned, never panicked.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("invalid network: %s: %s", e.Issues[0].Field, e.Issues[0].Message)
	}
	return fmt.Sprintf("invalid network: %d issues", len(e.Issues))
}

// Fields returns the issues keyed by field. Later issues on the same field
// are appended to the message.
func (e *ValidationError) Fields() map[string]string {
	out := make(map[string]string, len(e.Issues))
	for _, is := range e.Issues {
		if prev, ok := out[is.Field]; ok {
			out[is.Field] = prev + "; " + is.Message
			continue
		}
		out[is.Field] = is.Message
	}
	return out
}

// Has reports whether an issue of kind was recorded.
func (e *ValidationError) Has(kind IssueKind) bool {
	for _, is := range e.Issues {
		if is.Kind == kind {
			return true
		}
	}
	return false
}

// AsValidationError unwraps err into a *ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

type issueList []Issue

func (l *issueList) add(kind IssueKind, field, target, msg string) {
	*l = append(*l, Issue{Kind: kind, Field: field, Target: target, Message: msg})
}

func (l issueList) err() error {
	if len(l) == 0 {
		return nil
	}
	return &ValidationError{Issues: l}
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidateConfig checks solver parameters against their tag constraints.
func ValidateConfig(cfg Config) error {
	var issues issueList
	validateConfig(cfg, &issues)
	return issues.err()
}

func validateConfig(cfg Config, issues *issueList) {
	err := validate.Struct(cfg)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		issues.add(IssueInvalidConfig, "config", "", err.Error())
		return
	}
	for _, fe := range verrs {
		kind := IssueInvalidConfig
		if fe.Field() == "method" {
			kind = IssueUnknownMethod
		}
		issues.add(kind, "config."+fe.Field(), "", configMessage(fe))
	}
}

func configMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", fe.Param())
	case "gtfield":
		return fmt.Sprintf("must be greater than %s", toSnake(fe.Param()))
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Validate parses and checks a candidate network. On success it returns the
// typed network and the effective config; otherwise a *ValidationError.
func Validate(in Input, defaults Config) (Network, Config, error) {
	var issues issueList

	cfg := in.Config.apply(defaults, &issues)
	if len(issues) == 0 {
		validateConfig(cfg, &issues)
	}

	if len(in.Nodes) == 0 {
		issues.add(IssueEmptyNetwork, "nodes", "", "at least one node is required")
	}

	net := Network{
		Nodes: make([]Node, 0, len(in.Nodes)),
		Pipes: make([]Pipe, 0, len(in.Pipes)),
	}

	ids := make(map[string]int, len(in.Nodes))
	hasReservoir := false
	for i, n := range in.Nodes {
		prefix := fmt.Sprintf("nodes[%d]", i)
		id := strings.TrimSpace(n.ID)
		switch {
		case id == "":
			issues.add(IssueMissingID, prefix+".id", "", "node id is required")
		case ids[id] > 0:
			issues.add(IssueDuplicateID, prefix+".id", id, fmt.Sprintf("duplicate node id %q", id))
		}
		if id != "" {
			ids[id]++
		}
		if n.IsReservoir {
			hasReservoir = true
		}

		node := Node{ID: id, IsReservoir: n.IsReservoir}
		elev, err := n.Elevation.Float()
		if err != nil {
			issues.add(IssueInvalidNumber, prefix+".elevation_m", id, "elevation: "+err.Error())
		}
		node.Elevation = elev
		if !n.IsReservoir {
			demand := 0.0
			if !n.Demand.Empty() {
				demand, err = n.Demand.Float()
				if err != nil {
					issues.add(IssueInvalidNumber, prefix+".demand_lps", id, "demand: "+err.Error())
				}
			}
			node.Demand = demand
		}
		net.Nodes = append(net.Nodes, node)
	}
	if len(in.Nodes) > 0 && !hasReservoir {
		issues.add(IssueNoReservoir, "network", "", "at least one node must be a reservoir")
	}

	pipeIDs := make(map[string]bool, len(in.Pipes))
	for i, p := range in.Pipes {
		prefix := fmt.Sprintf("pipes[%d]", i)
		id := strings.TrimSpace(p.ID)
		switch {
		case id == "":
			issues.add(IssueMissingID, prefix+".id", "", "pipe id is required")
		case pipeIDs[id]:
			issues.add(IssueDuplicateID, prefix+".id", id, fmt.Sprintf("duplicate pipe id %q", id))
		}
		pipeIDs[id] = true

		pipe := Pipe{ID: id, StartNode: strings.TrimSpace(p.StartNode), EndNode: strings.TrimSpace(p.EndNode)}
		if ids[pipe.StartNode] == 0 {
			issues.add(IssueUnknownNode, prefix+".start_node", id, fmt.Sprintf("start node %q does not exist", pipe.StartNode))
		}
		if ids[pipe.EndNode] == 0 {
			issues.add(IssueUnknownNode, prefix+".end_node", id, fmt.Sprintf("end node %q does not exist", pipe.EndNode))
		}
		if pipe.StartNode != "" && pipe.StartNode == pipe.EndNode {
			issues.add(IssueSelfLoop, prefix+".end_node", id, "start and end node must differ")
		}

		var err error
		if pipe.Length, err = p.Length.Float(); err != nil {
			issues.add(IssueInvalidNumber, prefix+".length_m", id, "length: "+err.Error())
		} else if pipe.Length <= 0 {
			issues.add(IssueOutOfRange, prefix+".length_m", id, "length must be greater than 0")
		}
		if pipe.Diameter, err = p.Diameter.Float(); err != nil {
			issues.add(IssueInvalidNumber, prefix+".diameter_mm", id, "diameter: "+err.Error())
		} else if pipe.Diameter < cfg.MinDiameter {
			issues.add(IssueOutOfRange, prefix+".diameter_mm", id, fmt.Sprintf("diameter must be at least %g mm", cfg.MinDiameter))
		} else if pipe.Diameter > cfg.MaxDiameter {
			issues.add(IssueOutOfRange, prefix+".diameter_mm", id, fmt.Sprintf("diameter must be at most %g mm", cfg.MaxDiameter))
		}
		if pipe.Roughness, err = p.Roughness.Float(); err != nil {
			issues.add(IssueInvalidNumber, prefix+".roughness", id, "roughness: "+err.Error())
		} else if pipe.Roughness <= 0 {
			issues.add(IssueOutOfRange, prefix+".roughness", id, "roughness must be greater than 0")
		}
		net.Pipes = append(net.Pipes, pipe)
	}

	if err := issues.err(); err != nil {
		return Network{}, cfg, err
	}
	return net, cfg, nil
}

// SortedFields lists the field keys of an error map in stable order.
func SortedFields(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
