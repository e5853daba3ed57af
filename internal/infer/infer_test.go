package infer

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/datayard/tabload/internal/csv"
)

func TestInferSchema(t *testing.T) {
	header := []string{"id", "ts", "name"}
	first := csv.Row{"id": "42", "ts": "2024-01-05T00:00:00Z", "name": "Alice"}

	schema, err := InferSchema(header, first)
	if err != nil {
		t.Fatalf("InferSchema: %v", err)
	}

	want := Schema{
		{Name: "id", Type: TypeInteger},
		{Name: "ts", Type: TypeDateTime},
		{Name: "name", Type: TypeString},
	}
	if len(schema) != len(want) {
		t.Fatalf("schema = %v, want %v", schema, want)
	}
	for i := range want {
		if schema[i] != want[i] {
			t.Errorf("column %d = %+v, want %+v", i, schema[i], want[i])
		}
	}
}

func TestInferTypePrecedence(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  ColumnType
	}{
		{"plain integer", "42", TypeInteger},
		{"negative integer", "-7", TypeInteger},
		{"zero", "0", TypeInteger},
		{"integer beats date-like digits", "20240105", TypeInteger},
		{"iso date", "2024-01-05", TypeDateTime},
		{"iso datetime", "2024-01-05T10:30:00Z", TypeDateTime},
		{"slash date", "1/5/2024", TypeDateTime},
		{"two digit year date", "1/5/24", TypeDateTime},
		{"text", "Alice", TypeString},
		{"float is not integer", "3.14", TypeString},
		{"leading plus is not integer", "+42", TypeString},
		{"digits with spaces", " 42", TypeString},
		{"empty value", "", TypeString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inferType(tt.value); got != tt.want {
				t.Errorf("inferType(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestInferSchemaEmptySource(t *testing.T) {
	if _, err := InferSchema(nil, nil); !errors.Is(err, ErrEmptySource) {
		t.Errorf("nil header: err = %v, want ErrEmptySource", err)
	}
	if _, err := InferSchema([]string{"id"}, nil); !errors.Is(err, ErrEmptySource) {
		t.Errorf("nil first row: err = %v, want ErrEmptySource", err)
	}
}

func TestInferSchemaDuplicateColumn(t *testing.T) {
	_, err := InferSchema([]string{"id", "name", "id"}, csv.Row{"id": "1", "name": "x"})

	var conflict *SchemaConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want *SchemaConflictError", err)
	}
	if conflict.Column != "id" {
		t.Errorf("conflict column = %q, want %q", conflict.Column, "id")
	}
}

// The schema is a pure function of header plus first row; nothing else is
// ever consulted, so a wild second row cannot shift a locked type.
func TestInferSchemaIgnoresLaterRows(t *testing.T) {
	header := []string{"id", "name"}
	schema, err := InferSchema(header, csv.Row{"id": "42", "name": "Alice"})
	if err != nil {
		t.Fatalf("InferSchema: %v", err)
	}

	again, err := InferSchema(header, csv.Row{"id": "42", "name": "Alice"})
	if err != nil {
		t.Fatalf("InferSchema: %v", err)
	}
	for i := range schema {
		if schema[i] != again[i] {
			t.Errorf("inference is not deterministic: %+v vs %+v", schema[i], again[i])
		}
	}
	if schema[0].Type != TypeInteger {
		t.Errorf("id type = %v, want TypeInteger", schema[0].Type)
	}
}

func TestParseDateTime(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ok    bool
		want  time.Time
	}{
		{
			name:  "rfc3339",
			value: "2024-01-05T00:00:00Z",
			ok:    true,
			want:  time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "iso date",
			value: "2024-01-05",
			ok:    true,
			want:  time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "us slash",
			value: "01/05/2024",
			ok:    true,
			want:  time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "spelled month",
			value: "Jan 5, 2024",
			ok:    true,
			want:  time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		},
		{name: "not a date", value: "banana", ok: false},
		{name: "empty", value: "", ok: false},
		{name: "month out of range", value: "2024-13-01", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDateTime(tt.value)
			if ok != tt.ok {
				t.Fatalf("ParseDateTime(%q) ok = %v, want %v", tt.value, ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseDateTime(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

// No 2-digit year may land more than TwoDigitYearPivot years in the future.
func TestParseDateTimeTwoDigitYearPivot(t *testing.T) {
	pivot := time.Now().Year() + TwoDigitYearPivot
	for yy := 0; yy < 100; yy++ {
		value := fmt.Sprintf("1/5/%02d", yy)
		got, ok := ParseDateTime(value)
		if !ok {
			t.Fatalf("ParseDateTime(%q) failed", value)
		}
		if got.Year() > pivot {
			t.Errorf("ParseDateTime(%q) = year %d, beyond pivot %d", value, got.Year(), pivot)
		}
	}
}

func TestSchemaNames(t *testing.T) {
	s := Schema{{Name: "a"}, {Name: "b"}}
	names := s.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names() = %v", names)
	}
}
