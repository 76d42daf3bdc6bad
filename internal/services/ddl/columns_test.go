package ddl

import (
	"strings"
	"testing"

	"github.com/protean-labs/protean/internal/entities"
)

func TestColumnType(t *testing.T) {
	tests := []struct {
		fieldType string
		expected  string
	}{
		{"string", "VARCHAR"},
		{"text", "TEXT"},
		{"integer", "INTEGER"},
		{"float", "DOUBLE PRECISION"},
		{"decimal", "NUMERIC(10, 2)"},
		{"datetime", "TIMESTAMP"},
		{"boolean", "BOOLEAN"},
		{"json", "JSONB"},
		{"date", "DATE"},
		{"email", "VARCHAR"},
		{"url", "VARCHAR"},
		{"enum", "VARCHAR"},
		{"array", "JSONB"},
	}

	for _, tt := range tests {
		got, err := ColumnType(tt.fieldType)
		if err != nil {
			t.Errorf("ColumnType(%s) error: %v", tt.fieldType, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ColumnType(%s) = %s, want %s", tt.fieldType, got, tt.expected)
		}
	}

	if _, err := ColumnType("uuid"); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestColumnDefinitionTypeDefaults(t *testing.T) {
	tests := []struct {
		fieldType string
		expected  string
	}{
		{"boolean", "flag BOOLEAN DEFAULT FALSE"},
		{"json", "flag JSONB DEFAULT '{}'"},
		{"array", "flag JSONB DEFAULT '[]'"},
		{"string", "flag VARCHAR"},
	}

	for _, tt := range tests {
		field := &entities.FieldDefinition{Name: "flag", Type: tt.fieldType}
		got, err := ColumnDefinition(field)
		if err != nil {
			t.Fatalf("ColumnDefinition error: %v", err)
		}
		if got != tt.expected {
			t.Errorf("ColumnDefinition(%s) = %q, want %q", tt.fieldType, got, tt.expected)
		}
	}
}

func TestColumnDefinitionRequired(t *testing.T) {
	field := &entities.FieldDefinition{
		Name:    "title",
		Type:    "string",
		Options: map[string]interface{}{"required": true},
	}
	got, err := ColumnDefinition(field)
	if err != nil {
		t.Fatalf("ColumnDefinition error: %v", err)
	}
	if !strings.HasSuffix(got, "NOT NULL") {
		t.Errorf("ColumnDefinition = %q, want NOT NULL suffix", got)
	}
}

func TestColumnDefinitionDeclaredDefault(t *testing.T) {
	field := &entities.FieldDefinition{
		Name:    "status",
		Type:    "string",
		Options: map[string]interface{}{"default": "draft"},
	}
	got, err := ColumnDefinition(field)
	if err != nil {
		t.Fatalf("ColumnDefinition error: %v", err)
	}
	if got != "status VARCHAR DEFAULT 'draft'" {
		t.Errorf("ColumnDefinition = %q", got)
	}
}

func TestColumnDefinitionNumericStringDefaultStaysQuoted(t *testing.T) {
	field := &entities.FieldDefinition{
		Name:    "code",
		Type:    "string",
		Options: map[string]interface{}{"default": "123"},
	}
	got, err := ColumnDefinition(field)
	if err != nil {
		t.Fatalf("ColumnDefinition error: %v", err)
	}
	if got != "code VARCHAR DEFAULT '123'" {
		t.Errorf("ColumnDefinition = %q, want code VARCHAR DEFAULT '123'", got)
	}

	// A JSON number default on a numeric column still renders unquoted.
	field = &entities.FieldDefinition{
		Name:    "quantity",
		Type:    "integer",
		Options: map[string]interface{}{"default": float64(5)},
	}
	got, err = ColumnDefinition(field)
	if err != nil {
		t.Fatalf("ColumnDefinition error: %v", err)
	}
	if got != "quantity INTEGER DEFAULT 5" {
		t.Errorf("ColumnDefinition = %q, want quantity INTEGER DEFAULT 5", got)
	}
}

func TestQuoteDefault(t *testing.T) {
	tests := []struct {
		value    interface{}
		expected string
	}{
		{float64(3), "3"},
		{3.5, "3.5"},
		{true, "TRUE"},
		{false, "FALSE"},
		{"NULL", "NULL"},
		{"42", "'42'"},
		{"3.5", "'3.5'"},
		{"it's", "'it''s'"},
		{"draft", "'draft'"},
	}

	for _, tt := range tests {
		if got := quoteDefault(tt.value); got != tt.expected {
			t.Errorf("quoteDefault(%v) = %s, want %s", tt.value, got, tt.expected)
		}
	}
}
