package diag

// Issue codes shared by the parser, resolver, compiler and engine.
const (
	CodeNotFound        = "notFound"
	CodeArrayNotEmpty   = "array.notEmpty"
	CodeArrayNoBlank    = "array.noBlankStrings"
	CodeType            = "type"
	CodeRequired        = "required"
	CodeEnum            = "enum"
	CodeUnknownField    = "additionalProperties"
	CodeOneOf           = "oneOf"
	CodeNumberMin       = "number.min"
	CodeNumberMax       = "number.max"
	CodeAllowedValue    = "allowedValue"
	CodeEmpty           = "empty"
	CodeResultsNotFound = "results.notFound"
	CodeMalformed       = "malformed"
)

// NotFoundDetails lists the raw request values that could not be resolved.
type NotFoundDetails struct {
	Items []string `json:"items"`
}

// AllowedValueDetails names a rejected value and the allowed set.
type AllowedValueDetails struct {
	Value   string   `json:"value"`
	Allowed []string `json:"allowed"`
}

// LimitDetails carries the bound that a number violated.
type LimitDetails struct {
	Limit int `json:"limit"`
}

// NotFound reports request values that did not resolve against the
// dataset's dimension tables.
func NotFound(what string, items []string) Issue {
	return Issue{
		Message: "Could not find " + what + ".",
		Code:    CodeNotFound,
		Details: NotFoundDetails{Items: append([]string(nil), items...)},
	}
}

// ArrayNotEmpty reports an empty array where at least one entry is required.
func ArrayNotEmpty() Issue {
	return Issue{Message: "Cannot be empty.", Code: CodeArrayNotEmpty}
}

// ArrayNoBlankStrings reports an array containing blank strings.
func ArrayNoBlankStrings() Issue {
	return Issue{Message: "Must all be non-blank strings.", Code: CodeArrayNoBlank}
}

// Type reports a value of the wrong JSON type.
func Type(expected string) Issue {
	return Issue{Message: "Must be " + expected + ".", Code: CodeType}
}

// Required reports a missing required member.
func Required() Issue {
	return Issue{Message: "Is required.", Code: CodeRequired}
}

// Enum reports a value outside a closed enumeration.
func Enum(value string, allowed []string) Issue {
	return Issue{
		Message: "Must be one of the allowed values.",
		Code:    CodeEnum,
		Details: AllowedValueDetails{Value: value, Allowed: allowed},
	}
}

// UnknownField reports an unexpected object member.
func UnknownField(name string) Issue {
	return Issue{Message: "Unknown field '" + name + "'.", Code: CodeUnknownField}
}

// OneOf reports a clause that is not exactly one of the allowed shapes.
func OneOf() Issue {
	return Issue{
		Message: "Must be exactly one of 'and', 'or', 'not' or a set of criteria.",
		Code:    CodeOneOf,
	}
}

// Malformed reports input that could not be decoded at all.
func Malformed(message string) Issue {
	return Issue{Message: message, Code: CodeMalformed}
}

// NumberMin reports a number below its lower bound.
func NumberMin(limit int) Issue {
	return Issue{
		Message: "Must be greater than or equal to the minimum.",
		Code:    CodeNumberMin,
		Details: LimitDetails{Limit: limit},
	}
}

// NumberMax reports a number above its upper bound.
func NumberMax(limit int) Issue {
	return Issue{
		Message: "Must be less than or equal to the maximum.",
		Code:    CodeNumberMax,
		Details: LimitDetails{Limit: limit},
	}
}

// AllowedValue reports a value outside a dataset-specific allowed set, such
// as an unknown sort field.
func AllowedValue(value string, allowed []string) Issue {
	return Issue{
		Message: "Must be one of the allowed values.",
		Code:    CodeAllowedValue,
		Details: AllowedValueDetails{Value: value, Allowed: append([]string(nil), allowed...)},
	}
}

// EmptyCriteria warns about a criteria list that constrains nothing.
func EmptyCriteria() Issue {
	return Issue{Message: "Empty criteria impose no constraint.", Code: CodeEmpty}
}

// NoResults warns that the query matched no rows.
func NoResults() Issue {
	return Issue{
		Message: "No results matched the query criteria. You may need to refine your query.",
		Code:    CodeResultsNotFound,
	}
}
