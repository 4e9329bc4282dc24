package constraints

import (
	"fmt"
	"sort"
)

// Names lists the authoring names Build accepts.
func Names() []string {
	names := make([]string, 0, len(kindNames))
	for _, n := range kindNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build constructs a constraint from its authoring name and parameters.
// Unknown names and malformed parameters are configuration errors.
func Build(kind string, params map[string]any) (Constraint, error) {
	switch kind {
	case "fits":
		mode, _ := params["mode"].(string)
		switch mode {
		case "", "carry":
			return Fits{Mode: Carry}, nil
		case "contain":
			return Fits{Mode: Contain}, nil
		default:
			return nil, fmt.Errorf("fits: unknown mode %q", mode)
		}

	case "is_type", "not_type":
		classes, err := stringList(params["classes"])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		if len(classes) == 0 {
			return nil, fmt.Errorf("%s: no classes", kind)
		}
		if kind == "is_type" {
			return IsType{Classes: classes}, nil
		}
		return NotType{Classes: classes}, nil

	case "has_prop", "no_prop":
		prop, _ := params["prop"].(string)
		if prop == "" {
			return nil, fmt.Errorf("%s: missing prop", kind)
		}
		if kind == "has_prop" {
			return HasProp{Prop: prop}, nil
		}
		return NoProp{Prop: prop}, nil

	case "lockable", "locked":
		want := true
		if v, ok := params["want"]; ok {
			b, isBool := v.(bool)
			if !isBool {
				return nil, fmt.Errorf("%s: want must be a boolean", kind)
			}
			want = b
		}
		if kind == "lockable" {
			return Lockable{Want: want}, nil
		}
		return Locked{Want: want}, nil

	case "locked_with":
		return LockedWith{}, nil

	default:
		return nil, fmt.Errorf("unknown constraint %q", kind)
	}
}

// stringList accepts a single string or a list of strings, as the loader
// produces them.
func stringList(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{val}, nil
	case []string:
		return val, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("class list contains %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("classes must be a string or list, got %T", v)
	}
}
