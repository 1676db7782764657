// Package recovery turns a model reply into tabular records.
//
// Replies are expected to be a JSON array of objects but models routinely wrap
// them in Markdown fences, emit JavaScript-style literals or answer in prose.
// Recover tries, in order: strict JSON, repaired {...} fragments, repaired [...]
// fragments, and finally the raw text as a single record. It never fails.
package recovery

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"gemini-extract/internal/model"
)

const (
	// RawTextField holds the reply text when nothing structured could be
	// recovered, and the diagnostic message when the result would be empty.
	RawTextField = "description"
	// ValueField wraps array elements that are not objects.
	ValueField = "value"

	NoDataMessage = "No data could be extracted from the model response."
)

// Stage names the step that produced the records.
type Stage string

const (
	StageJSON            Stage = "json"
	StageObjectFragments Stage = "object_fragments"
	StageArrayFragments  Stage = "array_fragments"
	StageRawText         Stage = "raw_text"
	StageEmpty           Stage = "empty"
)

var (
	fenceOpen  = regexp.MustCompile("^```[ \\t]*(?i:json)?[ \\t]*\\r?\\n?")
	fenceClose = regexp.MustCompile("\\r?\\n?[ \\t]*```$")

	objectFragment = regexp.MustCompile(`\{[^{}]*\}`)
	arrayFragment  = regexp.MustCompile(`\[[^\[\]]*\]`)
	bareKey        = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
)

var errNotObject = errors.New("not a json object")

// Recover returns at least one record for any input.
func Recover(raw string) []model.Record {
	records, _ := RecoverWithStage(raw)
	return records
}

func RecoverWithStage(raw string) ([]model.Record, Stage) {
	cleaned := StripCodeFence(raw)
	if cleaned == "" {
		return noData(), StageEmpty
	}

	if records, ok := parseStrict(cleaned); ok {
		records = withFields(records)
		if len(records) == 0 {
			return noData(), StageEmpty
		}
		return records, StageJSON
	}

	if records := scanObjects(cleaned); len(records) > 0 {
		return records, StageObjectFragments
	}
	if records := scanArrays(cleaned); len(records) > 0 {
		return records, StageArrayFragments
	}

	return []model.Record{model.NewRecord(model.Field{Name: RawTextField, Value: model.StringValue(raw)})}, StageRawText
}

// StripCodeFence removes one surrounding ``` / ```json fence and outer whitespace.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = fenceOpen.ReplaceAllString(s, "")
		s = fenceClose.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}

func noData() []model.Record {
	return []model.Record{model.NewRecord(model.Field{Name: RawTextField, Value: model.StringValue(NoDataMessage)})}
}

// parseStrict accepts a whole-document array or object. Scalars are rejected.
func parseStrict(s string) ([]model.Record, bool) {
	data := []byte(s)
	if !json.Valid(data) {
		return nil, false
	}
	switch data[0] {
	case '[':
		records, err := decodeArray(data)
		if err != nil {
			return nil, false
		}
		return records, true
	case '{':
		rec, err := decodeObject(data)
		if err != nil {
			return nil, false
		}
		return []model.Record{rec}, true
	default:
		return nil, false
	}
}

func scanObjects(s string) []model.Record {
	var out []model.Record
	for _, frag := range objectFragment.FindAllString(s, -1) {
		data, ok := fragmentJSON(frag)
		if !ok {
			continue
		}
		rec, err := decodeObject(data)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return withFields(out)
}

func scanArrays(s string) []model.Record {
	var out []model.Record
	for _, frag := range arrayFragment.FindAllString(s, -1) {
		data, ok := fragmentJSON(frag)
		if !ok {
			continue
		}
		records, err := decodeArray(data)
		if err != nil {
			continue
		}
		out = append(out, records...)
	}
	return withFields(out)
}

// fragmentJSON returns frag as is when it already parses, otherwise its
// repaired form.
func fragmentJSON(frag string) ([]byte, bool) {
	if data := []byte(frag); json.Valid(data) {
		return data, true
	}
	data := []byte(repair(frag))
	return data, json.Valid(data)
}

// withFields drops records without any field; they would export as blank rows.
func withFields(records []model.Record) []model.Record {
	out := records[:0]
	for _, rec := range records {
		if rec.Len() > 0 {
			out = append(out, rec)
		}
	}
	return out
}

// repair quotes bare identifier keys and turns single quotes into double quotes.
// Nothing else is repaired.
func repair(frag string) string {
	s := bareKey.ReplaceAllString(frag, `$1"$2":`)
	return strings.ReplaceAll(s, "'", `"`)
}

func decodeArray(data []byte) ([]model.Record, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, err
	}
	records := make([]model.Record, 0, len(elems))
	for _, e := range elems {
		rec, err := recordFromElement(e)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func recordFromElement(e json.RawMessage) (model.Record, error) {
	trimmed := bytes.TrimSpace(e)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return decodeObject(trimmed)
	}
	return model.NewRecord(model.Field{Name: ValueField, Value: scalarValue(trimmed)}), nil
}

// decodeObject walks the object with a token decoder so that key order survives.
func decodeObject(data []byte) (model.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return model.Record{}, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return model.Record{}, errNotObject
	}

	var rec model.Record
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return model.Record{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return model.Record{}, errNotObject
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return model.Record{}, err
		}
		rec.Set(key, scalarValue(raw))
	}
	if _, err := dec.Token(); err != nil {
		return model.Record{}, err
	}
	return rec, nil
}

// scalarValue flattens a JSON value into a cell. Nested structures are kept as
// compact JSON text and null becomes the empty string.
func scalarValue(raw json.RawMessage) model.Value {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return model.StringValue("")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return model.StringValue(string(trimmed))
		}
		return model.StringValue(s)
	case 't':
		return model.BoolValue(true)
	case 'f':
		return model.BoolValue(false)
	case 'n':
		return model.StringValue("")
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return model.StringValue(string(trimmed))
		}
		return model.StringValue(buf.String())
	default:
		return model.NumberValue(string(trimmed))
	}
}
