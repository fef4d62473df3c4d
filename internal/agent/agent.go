// Package agent wraps the language-model tabular agent that answers
// questions by querying a session's tables.
package agent

import (
	"context"

	"github.com/csv-chat/backend/internal/models"
	"github.com/csv-chat/backend/internal/parser"
)

// Agent answers a fully composed request.
type Agent interface {
	Run(ctx context.Context, request string) (string, error)
}

// Factory builds an Agent bound to one credential and one set of tables.
type Factory interface {
	New(ctx context.Context, credential string, tables TableSource) (Agent, error)
}

// TableSource is the read-only view of a session's tables the agent's tools
// operate on. *parser.TableStore implements it.
type TableSource interface {
	Tables() []*models.Table
	Query(ctx context.Context, sql string, maxRows int) (*parser.QueryResult, error)
	Describe(ctx context.Context, name string) (*parser.TableDescription, error)
}

// FuncAgent adapts a function to the Agent interface.
type FuncAgent func(ctx context.Context, request string) (string, error)

func (f FuncAgent) Run(ctx context.Context, request string) (string, error) {
	return f(ctx, request)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context, credential string, tables TableSource) (Agent, error)

func (f FactoryFunc) New(ctx context.Context, credential string, tables TableSource) (Agent, error) {
	return f(ctx, credential, tables)
}
