package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Data is an extracted-data document: section name → field name → value.
type Data map[string]map[string]Value

// FileInfo carries provenance for persisted library and report files.
type FileInfo struct {
	SourceFile    string `json:"source_file,omitempty"`
	PatternSource string `json:"pattern_source,omitempty"`
	Model         string `json:"model,omitempty"`
}

// libraryFile is the persisted library shape. A bare section→field→pattern
// mapping (no file_info/patterns wrapper) is also accepted on load.
type libraryFile struct {
	FileInfo          FileInfo                          `json:"file_info,omitempty"`
	RepeatingSections []string                          `json:"repeating_sections,omitempty"`
	Patterns          map[string]map[string]patternWire `json:"patterns"`
}

// patternWire is the on-disk pattern shape. The original generator wrote the
// expression under "pattern"; the canonical key is "expression". Both load.
type patternWire struct {
	Expression    string   `json:"expression,omitempty"`
	Pattern       string   `json:"pattern,omitempty"`
	Flags         []string `json:"flags,omitempty"`
	ContextBefore string   `json:"context_before,omitempty"`
	ContextAfter  string   `json:"context_after,omitempty"`
	ExampleMatch  string   `json:"example_match,omitempty"`
	Description   string   `json:"description,omitempty"`
}

func (w *patternWire) toPattern(section, field string) (*Pattern, error) {
	expr := w.Expression
	if expr == "" {
		expr = w.Pattern
	}
	if expr == "" {
		return nil, &SchemaError{Section: section, Field: field, Reason: "pattern has no expression"}
	}
	p := &Pattern{
		Expression:    expr,
		ContextBefore: w.ContextBefore,
		ContextAfter:  w.ContextAfter,
		ExampleMatch:  w.ExampleMatch,
		Description:   w.Description,
	}
	for _, raw := range w.Flags {
		f, err := ParseFlag(raw)
		if err != nil {
			return nil, &SchemaError{Section: section, Field: field, Reason: err.Error()}
		}
		p.Flags = append(p.Flags, f)
	}
	return p, nil
}

func wireFromPattern(p *Pattern) patternWire {
	w := patternWire{
		Expression:    p.Expression,
		ContextBefore: p.ContextBefore,
		ContextAfter:  p.ContextAfter,
		ExampleMatch:  p.ExampleMatch,
		Description:   p.Description,
	}
	for _, f := range p.Flags {
		w.Flags = append(w.Flags, string(f))
	}
	return w
}

// LoadLibrary parses a persisted pattern library. Shape violations are
// reported as *SchemaError; nothing is silently dropped.
func LoadLibrary(b []byte) (*Library, error) {
	var file libraryFile
	if err := decodeStrictShape(b, libraryFileSchema, &file); err != nil {
		return nil, err
	}
	if file.Patterns == nil {
		// Bare section→field→pattern mapping.
		if err := decodeStrictShape(b, barePatternsSchema, &file.Patterns); err != nil {
			return nil, err
		}
	}

	repeating := make(map[string]bool, len(file.RepeatingSections))
	for _, name := range file.RepeatingSections {
		repeating[name] = true
	}

	var sections []*Section
	for _, secName := range sortedKeys(file.Patterns) {
		fieldMap := file.Patterns[secName]
		var fields []*Field
		for _, fieldName := range sortedKeys(fieldMap) {
			wire := fieldMap[fieldName]
			p, err := wire.toPattern(secName, fieldName)
			if err != nil {
				return nil, err
			}
			fields = append(fields, &Field{Name: fieldName, Pattern: p})
		}
		sec, err := NewSection(secName, repeating[secName], fields)
		if err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}
	return NewLibrary(sections)
}

// MarshalLibrary serializes a library in the canonical wrapped form.
func MarshalLibrary(l *Library, info FileInfo) ([]byte, error) {
	file := libraryFile{
		FileInfo: info,
		Patterns: make(map[string]map[string]patternWire),
	}
	for _, sec := range l.Sections() {
		if sec.Repeating {
			file.RepeatingSections = append(file.RepeatingSections, sec.Name)
		}
		m := make(map[string]patternWire)
		for _, f := range sec.Fields() {
			if f.Pattern == nil {
				continue
			}
			m[f.Name] = wireFromPattern(f.Pattern)
		}
		file.Patterns[sec.Name] = m
	}
	return json.MarshalIndent(file, "", "  ")
}

// LoadData parses an extracted-data document: section → field → scalar or
// ordered string sequence. A file_info/extracted_data wrapper is accepted.
func LoadData(b []byte) (Data, error) {
	var wrapped struct {
		ExtractedData map[string]map[string]json.RawMessage `json:"extracted_data"`
	}
	if err := json.Unmarshal(b, &wrapped); err == nil && wrapped.ExtractedData != nil {
		return dataFromRaw(wrapped.ExtractedData)
	}
	var bare map[string]map[string]json.RawMessage
	if err := json.Unmarshal(b, &bare); err != nil {
		return nil, &SchemaError{Reason: fmt.Sprintf("malformed data document: %v", err)}
	}
	return dataFromRaw(bare)
}

func dataFromRaw(raw map[string]map[string]json.RawMessage) (Data, error) {
	d := make(Data, len(raw))
	for sec, fields := range raw {
		d[sec] = make(map[string]Value, len(fields))
		for field, rv := range fields {
			v, err := decodeValue(rv)
			if err != nil {
				return nil, &SchemaError{Section: sec, Field: field, Reason: err.Error()}
			}
			d[sec][field] = v
		}
	}
	return d, nil
}

// decodeValue accepts strings, numbers, and flat arrays of either. The
// upstream model is loose about quoting numeric values.
func decodeValue(raw json.RawMessage) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Value{}, err
	}
	switch t := v.(type) {
	case string:
		return ScalarValue(t), nil
	case json.Number:
		return ScalarValue(t.String()), nil
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			switch it := item.(type) {
			case string:
				items = append(items, it)
			case json.Number:
				items = append(items, it.String())
			default:
				return Value{}, fmt.Errorf("unsupported value element type %T", item)
			}
		}
		return ListValue(items), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// MarshalJSON serializes a Value as a string or a string array.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.seq {
		return json.Marshal(v.list)
	}
	return json.Marshal(v.Scalar())
}

// UnmarshalJSON accepts a string or an array of strings/numbers.
func (v *Value) UnmarshalJSON(b []byte) error {
	dv, err := decodeValue(b)
	if err != nil {
		return err
	}
	*v = dv
	return nil
}

// WithClaims returns a new library with claimed values attached to matching
// fields. Sections where any claim is a sequence become repeating. The
// receiver is not modified.
func (l *Library) WithClaims(d Data) (*Library, error) {
	var sections []*Section
	for _, sec := range l.Sections() {
		claims := d[sec.Name]
		repeating := sec.Repeating
		var fields []*Field
		for _, f := range sec.Fields() {
			nf := &Field{Name: f.Name, Pattern: f.Pattern, Claimed: f.Claimed}
			if v, ok := claims[f.Name]; ok {
				vv := v
				nf.Claimed = &vv
				if vv.IsList() {
					repeating = true
				}
			}
			fields = append(fields, nf)
		}
		ns, err := NewSection(sec.Name, repeating, fields)
		if err != nil {
			return nil, err
		}
		sections = append(sections, ns)
	}
	return NewLibrary(sections)
}

// Claims extracts the claimed values as an extracted-data document.
func (l *Library) Claims() Data {
	d := make(Data)
	for _, sec := range l.Sections() {
		m := make(map[string]Value)
		for _, f := range sec.Fields() {
			if f.Claimed != nil {
				m[f.Name] = *f.Claimed
			}
		}
		if len(m) > 0 {
			d[sec.Name] = m
		}
	}
	return d
}

// modelResponse is the nested structure the LLM backend supplies per
// document: sections → {extracted_data, regex_patterns}.
type modelResponse struct {
	Sections map[string]modelSection `json:"sections"`
}

type modelSection struct {
	Repeating     bool                       `json:"repeating,omitempty"`
	ExtractedData map[string]json.RawMessage `json:"extracted_data"`
	RegexPatterns map[string]patternWire     `json:"regex_patterns"`
}

// FromModelResponse builds a library (patterns plus claims) from a raw LLM
// response. A bare section mapping without the "sections" wrapper is
// accepted. Parse failures are reported, never panicked; callers preserve
// the raw payload separately for diagnosis.
func FromModelResponse(b []byte) (*Library, error) {
	var resp modelResponse
	if err := json.Unmarshal(b, &resp); err != nil || resp.Sections == nil {
		var bare map[string]modelSection
		if err2 := json.Unmarshal(b, &bare); err2 != nil || bare == nil {
			if err == nil {
				err = err2
			}
			return nil, &SchemaError{Reason: fmt.Sprintf("malformed model response: %v", err)}
		}
		resp.Sections = bare
	}

	var sections []*Section
	for _, secName := range sortedKeys(resp.Sections) {
		ms := resp.Sections[secName]
		names := make(map[string]bool)
		for name := range ms.ExtractedData {
			names[name] = true
		}
		for name := range ms.RegexPatterns {
			names[name] = true
		}

		repeating := ms.Repeating
		var fields []*Field
		for _, fieldName := range sortedKeys(names) {
			f := &Field{Name: fieldName}
			if raw, ok := ms.ExtractedData[fieldName]; ok {
				v, err := decodeValue(raw)
				if err != nil {
					return nil, &SchemaError{Section: secName, Field: fieldName, Reason: err.Error()}
				}
				f.Claimed = &v
				if v.IsList() {
					repeating = true
				}
			}
			if wire, ok := ms.RegexPatterns[fieldName]; ok {
				p, err := wire.toPattern(secName, fieldName)
				if err != nil {
					return nil, err
				}
				f.Pattern = p
			}
			fields = append(fields, f)
		}
		sec, err := NewSection(secName, repeating, fields)
		if err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}
	return NewLibrary(sections)
}
