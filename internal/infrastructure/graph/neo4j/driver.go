package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// DriverRunner runs queries through the official driver's ExecuteQuery API.
type DriverRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func Connect(ctx context.Context, uri, username, password, database string) (*DriverRunner, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &DriverRunner{driver: driver, database: database}, nil
}

func (r *DriverRunner) Run(ctx context.Context, cypher string, params map[string]any) ([]Row, error) {
	options := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithReadersRouting()}
	if r.database != "" {
		options = append(options, neo4j.ExecuteQueryWithDatabase(r.database))
	}

	result, err := neo4j.ExecuteQuery(ctx, r.driver, cypher, params, neo4j.EagerResultTransformer, options...)
	if err != nil {
		return nil, fmt.Errorf("neo4j execute query: %w", err)
	}

	rows := make([]Row, 0, len(result.Records))
	for _, record := range result.Records {
		row := make(Row, len(result.Keys))
		for _, key := range result.Keys {
			if value, ok := record.Get(key); ok {
				row[key] = value
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *DriverRunner) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}
