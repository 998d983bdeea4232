package graph

import "github.com/janhq/sql-agent/internal/domain/message"

// ShouldContinue runs after generate_query. A plain answer ends the run;
// a tool request goes to review.
func ShouldContinue(last message.Message) NodeID {
	if !last.HasToolCalls() {
		return End
	}
	return NodeCheckQuery
}

// AfterCheck runs after check_query. Only a reviewed tool call is executed;
// corrective turns go back to generation.
func AfterCheck(last message.Message) NodeID {
	if last.HasToolCalls() {
		return NodeRunQuery
	}
	return NodeGenerateQuery
}

// AfterSchemaRequest runs after schema_request. When the model declined the
// schema lookup there is nothing to execute.
func AfterSchemaRequest(last message.Message) NodeID {
	if last.HasToolCalls() {
		return NodeSchemaExec
	}
	return NodeGenerateQuery
}
