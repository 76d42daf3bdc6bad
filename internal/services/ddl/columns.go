package ddl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/protean-labs/protean/internal/entities"
)

// ColumnType maps a declared field type to its PostgreSQL column type.
func ColumnType(fieldType string) (string, error) {
	switch fieldType {
	case "string":
		return "VARCHAR", nil
	case "text":
		return "TEXT", nil
	case "integer":
		return "INTEGER", nil
	case "float":
		return "DOUBLE PRECISION", nil
	case "decimal":
		return "NUMERIC(10, 2)", nil
	case "datetime":
		return "TIMESTAMP", nil
	case "boolean":
		return "BOOLEAN", nil
	case "json":
		return "JSONB", nil
	case "date":
		return "DATE", nil
	case "email", "url", "enum":
		return "VARCHAR", nil
	case "array":
		return "JSONB", nil
	default:
		return "", entities.NewValidationError("unsupported field type: %s", fieldType)
	}
}

// ColumnDefinition renders the full column clause for a field, including the
// type default (boolean FALSE, json '{}', array '[]'), any declared default,
// and the NOT NULL constraint for required fields.
func ColumnDefinition(field *entities.FieldDefinition) (string, error) {
	columnType, err := ColumnType(field.Type)
	if err != nil {
		return "", err
	}

	clause := field.Name + " " + columnType
	if def := defaultClause(field); def != "" {
		clause += " DEFAULT " + def
	}
	if entities.OptionBool(field.Options, "required") {
		clause += " NOT NULL"
	}
	return clause, nil
}

func defaultClause(field *entities.FieldDefinition) string {
	if raw, ok := field.Options["default"]; ok && raw != nil {
		return quoteDefault(raw)
	}
	switch field.Type {
	case "boolean":
		return "FALSE"
	case "json":
		return "'{}'"
	case "array":
		return "'[]'"
	}
	return ""
}

func quoteDefault(value interface{}) string {
	switch v := value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case string:
		upper := strings.ToUpper(v)
		if upper == "TRUE" || upper == "FALSE" || upper == "NULL" {
			return upper
		}
		// Numeric-looking strings stay quoted: "123" on a VARCHAR column must
		// render as '123', an unquoted 123 is not a valid string default.
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	default:
		return fmt.Sprintf("'%v'", v)
	}
}
