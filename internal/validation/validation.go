package validation

import "strings"

// Violations collects field -> error-code pairs accumulated by the basic
// validators below. Handlers run every validator before constructing a
// command, so a form round-trip reports all problems at once.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func PositiveFloat(field string, val float64, v Violations) {
	if val <= 0 {
		v[field] = "must_be_positive"
	}
}

func MaxLen(field, value string, limit int, v Violations) {
	if len(value) > limit {
		v[field] = "too_long"
	}
}
