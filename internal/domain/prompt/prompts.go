// Package prompt holds the system prompts the SQL graph sends to the model.
package prompt

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultQueryGeneration = `You are an agent designed to interact with a SQL database.
Given an input question, create a syntactically correct {dialect} query to run,
then look at the results of the query and return the answer. Unless the user
specifies a specific number of examples they wish to obtain, always limit your
query to at most {top_k} results.

You can order the results by a relevant column to return the most interesting
examples in the database. Never query for all the columns from a specific table,
only ask for the relevant columns given the question.

DO NOT make any DML statements (INSERT, UPDATE, DELETE, DROP etc.) to the database.`

const defaultQueryCheck = `You are a SQL expert with a strong attention to detail.
Double check the {dialect} query for common mistakes, including:
- Using NOT IN with NULL values
- Using UNION when UNION ALL should have been used
- Using BETWEEN for exclusive ranges
- Data type mismatch in predicates
- Properly quoting identifiers
- Using the correct number of arguments for functions
- Casting to the correct data type
- Using the proper columns for joins

If there are any of the above mistakes, rewrite the query. If there are no mistakes,
just reproduce the original query.

You will call the appropriate tool to execute the query after running this check.`

const (
	defaultMissingQuery = "No SQL query was produced for review. Think again and call the query tool with a query."
	defaultSkippedTool  = "The %s tool was not called. Continue with the information already available."
)

// Prompts is the rendered prompt set used by one graph.
type Prompts struct {
	QueryGeneration string `yaml:"query_generation"`
	QueryCheck      string `yaml:"query_check"`
	MissingQuery    string `yaml:"missing_query"`
	SkippedTool     string `yaml:"skipped_tool"`
}

// Params fills the placeholders used in the prompt templates.
type Params struct {
	Dialect string
	TopK    int
}

// Default returns the built-in prompts rendered for params.
func Default(params Params) Prompts {
	return Prompts{
		QueryGeneration: defaultQueryGeneration,
		QueryCheck:      defaultQueryCheck,
		MissingQuery:    defaultMissingQuery,
		SkippedTool:     defaultSkippedTool,
	}.Render(params)
}

// Load reads YAML overrides from path on top of the defaults. An empty path
// returns the defaults.
func Load(path string, params Params) (Prompts, error) {
	base := Prompts{
		QueryGeneration: defaultQueryGeneration,
		QueryCheck:      defaultQueryCheck,
		MissingQuery:    defaultMissingQuery,
		SkippedTool:     defaultSkippedTool,
	}
	if strings.TrimSpace(path) == "" {
		return base.Render(params), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, fmt.Errorf("read prompts file: %w", err)
	}
	var overrides Prompts
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return Prompts{}, fmt.Errorf("parse prompts file: %w", err)
	}
	return base.merge(overrides).Render(params), nil
}

// Render substitutes {dialect} and {top_k}.
func (p Prompts) Render(params Params) Prompts {
	dialect := params.Dialect
	if dialect == "" {
		dialect = "postgresql"
	}
	topK := params.TopK
	if topK <= 0 {
		topK = 5
	}
	replacer := strings.NewReplacer("{dialect}", dialect, "{top_k}", strconv.Itoa(topK))
	return Prompts{
		QueryGeneration: replacer.Replace(p.QueryGeneration),
		QueryCheck:      replacer.Replace(p.QueryCheck),
		MissingQuery:    p.MissingQuery,
		SkippedTool:     p.SkippedTool,
	}
}

// SkippedToolMessage is the corrective text used when a forced tool call was declined.
func (p Prompts) SkippedToolMessage(toolName string) string {
	if strings.Contains(p.SkippedTool, "%s") {
		return fmt.Sprintf(p.SkippedTool, toolName)
	}
	return p.SkippedTool
}

func (p Prompts) merge(o Prompts) Prompts {
	if strings.TrimSpace(o.QueryGeneration) != "" {
		p.QueryGeneration = o.QueryGeneration
	}
	if strings.TrimSpace(o.QueryCheck) != "" {
		p.QueryCheck = o.QueryCheck
	}
	if strings.TrimSpace(o.MissingQuery) != "" {
		p.MissingQuery = o.MissingQuery
	}
	if strings.TrimSpace(o.SkippedTool) != "" {
		p.SkippedTool = o.SkippedTool
	}
	return p
}
