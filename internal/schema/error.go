package schema

import "fmt"

// SchemaError reports a structural violation in a pattern library: an
// unrecognized flag, a duplicate name, a pattern with no capture group, or a
// malformed file. It is fatal for that library's load; callers can inspect
// Section/Field to drop the offending entry and retry.
type SchemaError struct {
	Section string
	Field   string
	Reason  string
}

func (e *SchemaError) Error() string {
	switch {
	case e.Section != "" && e.Field != "":
		return fmt.Sprintf("schema: %s.%s: %s", e.Section, e.Field, e.Reason)
	case e.Section != "":
		return fmt.Sprintf("schema: section %s: %s", e.Section, e.Reason)
	default:
		return "schema: " + e.Reason
	}
}
