// Package schema holds the typed pattern-library model: sections of fields,
// each field carrying a claimed value and an optional regex pattern with
// contextual anchors. Libraries are validated at construction and treated as
// immutable afterwards; the validator and matcher only read them.
package schema

import (
	"fmt"
	"regexp"
	"regexp/syntax"
	"sort"
	"strings"
)

// Flag is a recognized regex flag. The vocabulary is closed: anything outside
// it is rejected at load time rather than silently ignored at match time.
type Flag string

const (
	FlagMultiline  Flag = "MULTILINE"
	FlagDotAll     Flag = "DOTALL"
	FlagIgnoreCase Flag = "IGNORECASE"
)

// ParseFlag converts a flag name from a library file into a Flag.
func ParseFlag(s string) (Flag, error) {
	switch Flag(strings.ToUpper(strings.TrimSpace(s))) {
	case FlagMultiline:
		return FlagMultiline, nil
	case FlagDotAll:
		return FlagDotAll, nil
	case FlagIgnoreCase:
		return FlagIgnoreCase, nil
	default:
		return "", fmt.Errorf("unrecognized regex flag %q (known: MULTILINE, DOTALL, IGNORECASE)", s)
	}
}

// inlineGroup returns the RE2 inline flag letter for f.
func (f Flag) inlineGroup() string {
	switch f {
	case FlagMultiline:
		return "m"
	case FlagDotAll:
		return "s"
	case FlagIgnoreCase:
		return "i"
	}
	return ""
}

// Pattern is the unit the engine operates on: a regular expression with at
// least one capture group, optional context anchors for disambiguation, and
// the example match recorded against the document it was generated from.
type Pattern struct {
	Expression    string `json:"expression"`
	Flags         []Flag `json:"flags,omitempty"`
	ContextBefore string `json:"context_before,omitempty"`
	ContextAfter  string `json:"context_after,omitempty"`
	ExampleMatch  string `json:"example_match"`
	Description   string `json:"description,omitempty"`
}

// Compile compiles the expression under the declared flags. Flags map to RE2
// inline groups: MULTILINE=(?m), DOTALL=(?s), IGNORECASE=(?i).
func (p *Pattern) Compile() (*regexp.Regexp, error) {
	return regexp.Compile(p.prefixed())
}

func (p *Pattern) prefixed() string {
	return InlineFlags(p.Flags) + p.Expression
}

// InlineFlags renders a flag set as an RE2 inline group ("(?msi)"), or the
// empty string for no flags. Context anchors are compiled under the same
// flags as their pattern.
func InlineFlags(flags []Flag) string {
	if len(flags) == 0 {
		return ""
	}
	var letters strings.Builder
	for _, f := range flags {
		letters.WriteString(f.inlineGroup())
	}
	return "(?" + letters.String() + ")"
}

// captureGroups counts capture groups without fully compiling. The second
// return is false when the expression does not parse at all; that case is
// left for the validator to report as InvalidPattern.
func (p *Pattern) captureGroups() (int, bool) {
	re, err := syntax.Parse(p.prefixed(), syntax.Perl)
	if err != nil {
		return 0, false
	}
	return re.MaxCap(), true
}

// Value is a claimed field value: a scalar string or an ordered sequence of
// strings for multi-valued fields. Order of a sequence is meaningful.
type Value struct {
	list []string
	seq  bool // true when the value is a sequence
}

// ScalarValue wraps a single string value.
func ScalarValue(s string) Value { return Value{list: []string{s}} }

// ListValue wraps an ordered sequence of strings.
func ListValue(ss []string) Value {
	cp := make([]string, len(ss))
	copy(cp, ss)
	return Value{list: cp, seq: true}
}

// IsList reports whether the value is an ordered sequence.
func (v Value) IsList() bool { return v.seq }

// Scalar returns the single value, or the first element of a sequence.
func (v Value) Scalar() string {
	if len(v.list) == 0 {
		return ""
	}
	return v.list[0]
}

// List returns the values in order. Scalars yield a one-element slice.
func (v Value) List() []string {
	cp := make([]string, len(v.list))
	copy(cp, v.list)
	return cp
}

// Equal compares two values including ordering of sequences.
func (v Value) Equal(o Value) bool {
	if v.seq != o.seq || len(v.list) != len(o.list) {
		return false
	}
	for i := range v.list {
		if v.list[i] != o.list[i] {
			return false
		}
	}
	return true
}

// Field is a single named datum within a section.
type Field struct {
	Name    string
	Claimed *Value   // value the upstream model claims is present; nil if none
	Pattern *Pattern // nil when pattern generation failed for this field
}

// MultiValued reports whether the field's claim is an ordered sequence.
func (f *Field) MultiValued() bool {
	return f.Claimed != nil && f.Claimed.IsList()
}

// Section is a named group of related fields: a flat record, or a repeating
// structure (table rows, address lists) when Repeating is set.
type Section struct {
	Name      string
	Repeating bool
	fields    []*Field
	byName    map[string]*Field
}

// NewSection builds a section, rejecting duplicate field names.
func NewSection(name string, repeating bool, fields []*Field) (*Section, error) {
	s := &Section{
		Name:      name,
		Repeating: repeating,
		byName:    make(map[string]*Field, len(fields)),
	}
	for _, f := range fields {
		if _, dup := s.byName[f.Name]; dup {
			return nil, &SchemaError{Section: name, Field: f.Name, Reason: "duplicate field name"}
		}
		s.byName[f.Name] = f
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// Fields returns the section's fields in load order.
func (s *Section) Fields() []*Field {
	cp := make([]*Field, len(s.fields))
	copy(cp, s.fields)
	return cp
}

// Field looks up a field by name.
func (s *Section) Field(name string) (*Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Library is the full pattern library for one document family.
type Library struct {
	sections []*Section
	byName   map[string]*Section
}

// NewLibrary builds a library, rejecting duplicate section names and fields
// whose pattern parses but captures nothing. Sections are kept in the order
// given.
func NewLibrary(sections []*Section) (*Library, error) {
	l := &Library{byName: make(map[string]*Section, len(sections))}
	for _, s := range sections {
		if _, dup := l.byName[s.Name]; dup {
			return nil, &SchemaError{Section: s.Name, Reason: "duplicate section name"}
		}
		for _, f := range s.fields {
			if f.Pattern == nil {
				continue
			}
			if n, parsed := f.Pattern.captureGroups(); parsed && n == 0 {
				return nil, &SchemaError{Section: s.Name, Field: f.Name, Reason: "pattern has no capture group"}
			}
		}
		l.byName[s.Name] = s
		l.sections = append(l.sections, s)
	}
	return l, nil
}

// Sections returns the library's sections in load order.
func (l *Library) Sections() []*Section {
	cp := make([]*Section, len(l.sections))
	copy(cp, l.sections)
	return cp
}

// Section looks up a section by name.
func (l *Library) Section(name string) (*Section, bool) {
	s, ok := l.byName[name]
	return s, ok
}

// FieldCount returns the total number of fields across all sections.
func (l *Library) FieldCount() int {
	n := 0
	for _, s := range l.sections {
		n += len(s.fields)
	}
	return n
}

// sortedKeys returns map keys in lexical order. JSON objects carry no order,
// so loaders sort for deterministic traversal.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
