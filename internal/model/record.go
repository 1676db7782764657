package model

import "strconv"

// ValueKind is the scalar type of a record field.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
)

// Value is a scalar cell. Numbers keep their JSON literal so that a record
// survives a parse/serialize cycle without float rounding.
type Value struct {
	Kind ValueKind
	Str  string
	Num  string
	Bool bool
}

func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// NumberValue takes the literal text of a JSON number, e.g. "3" or "1.5e3".
func NumberValue(literal string) Value { return Value{Kind: KindNumber, Num: literal} }

func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Float returns the numeric value; ok is false for non-numbers or bad literals.
func (v Value) Float() (float64, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.Num, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return v.Num
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// Field is one named cell of a record.
type Field struct {
	Name  string
	Value Value
}

// Record is one row of extracted data. Field order is the order keys were first seen.
type Record struct {
	Fields []Field
}

func NewRecord(fields ...Field) Record {
	var r Record
	for _, f := range fields {
		r.Set(f.Name, f.Value)
	}
	return r
}

// Set stores v under name. An existing field keeps its position and takes the new value.
func (r *Record) Set(name string, v Value) {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			r.Fields[i].Value = v
			return
		}
	}
	r.Fields = append(r.Fields, Field{Name: name, Value: v})
}

func (r Record) Get(name string) (Value, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

func (r Record) Names() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}

func (r Record) Len() int { return len(r.Fields) }
