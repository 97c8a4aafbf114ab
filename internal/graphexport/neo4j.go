// Package graphexport loads a computed dependency graph into Neo4j so it can
// be queried after a run.
package graphexport

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/specialistvlad/aotgraph/internal/ctxlog"
)

// DefaultBatchSize bounds the rows sent per UNWIND statement.
const DefaultBatchSize = 500

// Node is one marked graph node. IDs are positions in mark order; 0 is the
// synthetic roots node.
type Node struct {
	ID   int
	Name string
	Kind string
}

// Edge is a dependency with its diagnostic reason.
type Edge struct {
	From   int
	To     int
	Reason string
}

// Graph is what an exporter receives.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// queryRunner runs one Cypher statement.
type queryRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) error
}

type driverRunner struct {
	driver neo4j.DriverWithContext
}

func (r driverRunner) Run(ctx context.Context, cypher string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, r.driver, cypher, params, neo4j.EagerResultTransformer)
	return err
}

// Neo4jExporter writes graphs with batched UNWIND queries.
type Neo4jExporter struct {
	runner    queryRunner
	driver    neo4j.DriverWithContext
	batchSize int
}

// NewNeo4jExporter connects to the database at uri.
func NewNeo4jExporter(ctx context.Context, uri, user, password string) (*Neo4jExporter, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to reach neo4j at %s: %w", uri, err)
	}
	return &Neo4jExporter{runner: driverRunner{driver: driver}, driver: driver, batchSize: DefaultBatchSize}, nil
}

// Close releases the driver.
func (e *Neo4jExporter) Close(ctx context.Context) error {
	if e.driver == nil {
		return nil
	}
	return e.driver.Close(ctx)
}

// Export replaces any previously exported graph with g.
func (e *Neo4jExporter) Export(ctx context.Context, g Graph) error {
	logger := ctxlog.FromContext(ctx)

	setup := []string{
		"MATCH (n:AotNode) DETACH DELETE n",
		"CREATE INDEX aot_node_id IF NOT EXISTS FOR (n:AotNode) ON (n.id)",
	}
	for _, q := range setup {
		if err := e.runner.Run(ctx, q, nil); err != nil {
			return fmt.Errorf("failed to prepare graph: %w", err)
		}
	}

	logger.Info("Exporting dependency graph.", "nodes", len(g.Nodes), "edges", len(g.Edges))
	nodeRows := make([]map[string]any, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodeRows = append(nodeRows, map[string]any{"id": n.ID, "name": n.Name, "kind": n.Kind})
	}
	err := e.runBatched(ctx,
		`UNWIND $batch AS row
		 MERGE (n:AotNode {id: row.id})
		 SET n.name = row.name, n.kind = row.kind`,
		nodeRows)
	if err != nil {
		return fmt.Errorf("failed to load nodes: %w", err)
	}

	edgeRows := make([]map[string]any, 0, len(g.Edges))
	for _, edge := range g.Edges {
		edgeRows = append(edgeRows, map[string]any{"from": edge.From, "to": edge.To, "reason": edge.Reason})
	}
	err = e.runBatched(ctx,
		`UNWIND $batch AS row
		 MATCH (a:AotNode {id: row.from}), (b:AotNode {id: row.to})
		 MERGE (a)-[r:DEPENDS_ON {reason: row.reason}]->(b)`,
		edgeRows)
	if err != nil {
		return fmt.Errorf("failed to load edges: %w", err)
	}
	return nil
}

func (e *Neo4jExporter) runBatched(ctx context.Context, cypher string, rows []map[string]any) error {
	for start := 0; start < len(rows); start += e.batchSize {
		end := min(start+e.batchSize, len(rows))
		if err := e.runner.Run(ctx, cypher, map[string]any{"batch": rows[start:end]}); err != nil {
			return err
		}
	}
	return nil
}
