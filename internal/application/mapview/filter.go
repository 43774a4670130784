package mapview

import "fmt"

// Filter is a layer filter expression.  A nil Filter matches every feature.
//
// Supported forms:
//
//	["literal", bool]
//	["==", key, value]
//	["!=", key, value]
//	["in", key, v1, v2, ...]
type Filter []interface{}

// MatchNothing hides every feature of a layer without removing the layer.
var MatchNothing = Filter{"literal", false}

// MatchAll is the nil filter.
var MatchAll Filter

// Eq matches features whose key property equals value.
func Eq(key string, value interface{}) Filter {
	return Filter{"==", key, value}
}

// IsMatchNothing reports whether f is the MatchNothing expression.
func (f Filter) IsMatchNothing() bool {
	return len(f) == 2 && f[0] == "literal" && f[1] == false
}

// Matches evaluates f against a feature's properties.  Unknown operators
// match nothing.
func (f Filter) Matches(props map[string]interface{}) bool {
	if len(f) == 0 {
		return true
	}
	op, _ := f[0].(string)
	switch op {
	case "literal":
		b, _ := f[1].(bool)
		return len(f) == 2 && b
	case "==", "!=":
		if len(f) != 3 {
			return false
		}
		key, _ := f[1].(string)
		eq := equalValues(props[key], f[2])
		if op == "==" {
			return eq
		}
		return !eq
	case "in":
		if len(f) < 2 {
			return false
		}
		key, _ := f[1].(string)
		for _, v := range f[2:] {
			if equalValues(props[key], v) {
				return true
			}
		}
	}
	return false
}

func equalValues(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

//Personal.AI order the ending
