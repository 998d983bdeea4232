package sqltools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ListTablesArgs is the (empty) argument object of list_tables_tool.
type ListTablesArgs struct{}

// SchemaArgs are the arguments of sql_db_schema.
type SchemaArgs struct {
	TableNames string `json:"table_names" jsonschema:"description=Comma-separated list of tables to describe, e.g. orders, customers"`
}

// QueryArgs are the arguments of db_query_tool.
type QueryArgs struct {
	Query string `json:"query" jsonschema:"description=A single syntactically correct SQL query to execute"`
}

var reflector = &jsonschema.Reflector{
	AllowAdditionalProperties: false,
	DoNotReference:            true,
	ExpandedStruct:            true,
}

// inputSchema reflects v into the plain JSON-schema object sent to models.
func inputSchema(v any) map[string]any {
	schema := reflector.Reflect(v)
	data, err := schema.MarshalJSON()
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	delete(out, "$schema")
	delete(out, "$id")
	if _, ok := out["properties"]; !ok {
		out["properties"] = map[string]any{}
	}
	return out
}
