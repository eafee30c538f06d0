// Package codec converts student lists to and from the JSON interchange format
// used for storage, export and import.
//
// Decoding is lenient: the payload is parsed into a loose tree and every array
// element is normalized into a Student. Only a payload that is not JSON, or
// whose top level is not an array, is rejected.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"roster/internal/identity"
	"roster/internal/model"
)

// ExportFileName is the name offered for downloaded exports.
const ExportFileName = "students.json"

type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	return "invalid import: " + e.Reason
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Encode renders the full list as a pretty-printed JSON array.
func Encode(students []model.Student) ([]byte, error) {
	if students == nil {
		students = []model.Student{}
	}
	data, err := json.MarshalIndent(students, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode students: %w", err)
	}
	return data, nil
}

// Decode parses an import payload. Elements missing an id get one from gen.
func Decode(data []byte, gen identity.Generator) ([]model.Student, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var tree any
	if err := dec.Decode(&tree); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &FormatError{Reason: "unexpected end of JSON input", Err: err}
		}
		return nil, &FormatError{Reason: err.Error(), Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &FormatError{Reason: "unexpected data after top-level value", Err: err}
	}

	items, ok := tree.([]any)
	if !ok {
		return nil, &FormatError{Reason: "JSON must be an array of students"}
	}

	students := make([]model.Student, 0, len(items))
	for _, item := range items {
		students = append(students, Normalize(item, gen))
	}
	return students, nil
}

// Normalize maps one loosely-typed element onto a Student. It never fails:
// absent or ill-typed fields fall back to "" (or no cgpa), and anything that
// is not an object becomes an empty record with a fresh id.
func Normalize(v any, gen identity.Generator) model.Student {
	obj, _ := v.(map[string]any)

	s := model.Student{
		ID:     text(obj["id"]),
		Name:   text(obj["name"]),
		Roll:   text(obj["roll"]),
		Email:  text(obj["email"]),
		Year:   text(obj["year"]),
		Branch: text(obj["branch"]),
		CGPA:   number(obj["cgpa"]),
	}
	if s.ID == "" {
		s.ID = gen.NewID()
	}
	return s
}

func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func number(v any) *float64 {
	var (
		f   float64
		err error
	)
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case float64:
		f = t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		f, err = strconv.ParseFloat(s, 64)
	default:
		return nil
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
