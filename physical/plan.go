package physical

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cube2222/cursorql"
)

// Plan is a plan file: the root node and the top level frames it is run for.
type Plan struct {
	Root Node `yaml:"plan"`
	// Frames holds the parameters of each execution, keyed by binding position.
	// The plan is run once with no parameters if there are none.
	Frames []map[int]interface{} `yaml:"frames"`
}

func ReadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't read plan file")
	}
	return ParsePlan(data)
}

func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, errors.Wrap(err, "couldn't decode yaml plan")
	}
	if plan.Root.Type == "" {
		return nil, errors.New("plan has no root node")
	}
	return &plan, nil
}

// Bindings creates the top level frames. Params are set in every frame, overriding the plan.
func (plan *Plan) Bindings(params map[int]cursorql.Value) ([]*cursorql.Bindings, error) {
	frames := plan.Frames
	if len(frames) == 0 {
		frames = []map[int]interface{}{nil}
	}
	out := make([]*cursorql.Bindings, len(frames))
	for i, frame := range frames {
		b := cursorql.NewBindings()
		positions := make([]int, 0, len(frame))
		for pos := range frame {
			positions = append(positions, pos)
		}
		sort.Ints(positions)
		for _, pos := range positions {
			v, err := toValue(frame[pos])
			if err != nil {
				return nil, errors.Wrapf(err, "invalid parameter %d in frame %d", pos, i)
			}
			b.SetValue(pos, v)
		}
		for pos, v := range params {
			b.SetValue(pos, v)
		}
		out[i] = b
	}
	return out, nil
}

// ParseParameter parses a "position=value" assignment, the value being a yaml scalar or list.
func ParseParameter(s string) (int, cursorql.Value, error) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 {
		return 0, nil, errors.Errorf("parameter %q must have the form position=value", s)
	}
	position, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || position < 0 {
		return 0, nil, errors.Errorf("invalid parameter position %q", parts[0])
	}
	var raw interface{}
	if err := yaml.Unmarshal([]byte(parts[1]), &raw); err != nil {
		return 0, nil, errors.Wrapf(err, "couldn't parse value of parameter %d", position)
	}
	value, err := toValue(raw)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "invalid value of parameter %d", position)
	}
	return position, value, nil
}
