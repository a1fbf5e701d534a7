package tasks

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// safeArg accepts values that can be placed in a shell command unquoted.
var safeArg = regexp.MustCompile(`^[A-Za-z0-9_./@:+%-]*$`)

func stringParam(p map[string]any, key, def string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidParamError{key: key, msg: fmt.Sprintf("want string, got %T", v)}
	}
	return strings.TrimSpace(s), nil
}

// shellParam is a stringParam restricted to safeArg.
func shellParam(p map[string]any, key, def string) (string, error) {
	s, err := stringParam(p, key, def)
	if err != nil {
		return "", err
	}
	if !safeArg.MatchString(s) {
		return "", invalidParamError{key: key, msg: "contains shell metacharacters"}
	}
	return s, nil
}

// quotedParam is a stringParam that must not break out of single quotes.
func quotedParam(p map[string]any, key, def string) (string, error) {
	s, err := stringParam(p, key, def)
	if err != nil {
		return "", err
	}
	if strings.ContainsAny(s, "'\n") {
		return "", invalidParamError{key: key, msg: "must not contain quotes or newlines"}
	}
	return s, nil
}

// intParam reads an integer, accepting JSON numbers and numeric strings,
// and clamps it to [lo, hi].
func intParam(p map[string]any, key string, def, lo, hi int) (int, error) {
	v, ok := p[key]
	n := def
	if ok && v != nil {
		switch x := v.(type) {
		case int:
			n = x
		case int64:
			n = int(x)
		case float64:
			n = int(x)
		case string:
			i, err := strconv.Atoi(strings.TrimSpace(x))
			if err != nil {
				return 0, invalidParamError{key: key, msg: "not an integer"}
			}
			n = i
		default:
			return 0, invalidParamError{key: key, msg: fmt.Sprintf("want integer, got %T", v)}
		}
	}
	return max(lo, min(n, hi)), nil
}

func boolParam(p map[string]any, key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, invalidParamError{key: key, msg: "not a boolean"}
		}
		return b, nil
	default:
		return false, invalidParamError{key: key, msg: fmt.Sprintf("want boolean, got %T", v)}
	}
}

// oneOf returns s when it is in allowed, otherwise def.
func oneOf(s, def string, allowed ...string) string {
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	return def
}
