// Package core implements the database gateway: schema introspection,
// tree-query planning and execution, and batch writes against MySQL.
package core

import (
	"context"

	"go.uber.org/zap"

	"github.com/treeql/treeql/core/internal/qcode"
)

// Gateway ties the catalog, the connection pool and the id generator
// together. One instance serves the whole process.
type Gateway struct {
	db     Runner
	schema *Schema
	ids    *Snowflake
	log    *zap.SugaredLogger
}

// NewGateway builds a gateway over an introspected schema.
func NewGateway(db Runner, schema *Schema, log *zap.SugaredLogger) *Gateway {
	return &Gateway{
		db:     db,
		schema: schema,
		ids:    NewSnowflake(defaultEpochMillis, 1, 1),
		log:    log,
	}
}

// Schema exposes the catalog for the metadata endpoints.
func (g *Gateway) Schema() *Schema { return g.schema }

// Query plans and executes one tree-shaped read request. The body is
// the decoded request JSON; the result mirrors its shape with every
// entity key replaced by the fetched data.
func (g *Gateway) Query(ctx context.Context, body map[string]any) (map[string]any, error) {
	qc, err := qcode.Parse(body)
	if err != nil {
		return nil, &BadRequestError{Msg: err.Error()}
	}
	r := &resolver{qc: qc, run: g.db, cat: g.schema, log: g.log}
	return r.resolve(ctx)
}
