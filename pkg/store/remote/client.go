// Package remote implements the storage adapter backed by a hosted SurrealDB
// record store. Three layers cooperate: a cache mirror persisted locally so
// reads survive backend outages, a durable outbox of pending mutations, and
// an opportunistic flush that drains the outbox on construction and after
// every successful mutation. No remote failure ever reaches the caller.
package remote

import (
	"context"
	"fmt"
	"net/url"

	surrealdb "github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

// Client is the narrow seam between the adapter and the backend. The
// production implementation wraps the SurrealDB SDK; tests substitute a
// scriptable fake.
type Client interface {
	// Query runs a SurrealQL statement and returns the flattened result rows.
	Query(ctx context.Context, query string, vars map[string]any) ([]map[string]any, error)
	// Upsert creates or replaces the record id in table with data.
	Upsert(ctx context.Context, table, id string, data any) error
	// Delete removes the record id from table. Missing records are not errors.
	Delete(ctx context.Context, table, id string) error
	Close() error
}

type surrealClient struct {
	db *surrealdb.DB
}

// Connect dials a SurrealDB endpoint over websocket. The connection is
// configured with the surrealcbor codec so time.Time values and record ids
// round-trip in the backend's native format.
func Connect(ctx context.Context, wsURL, namespace, database, username, password string) (Client, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	conn := gorillaws.New(conf)
	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if username != "" && password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": username,
			"pass": password,
		}); err != nil {
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, namespace, database); err != nil {
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	return &surrealClient{db: db}, nil
}

func (c *surrealClient) Query(ctx context.Context, query string, vars map[string]any) ([]map[string]any, error) {
	result, err := surrealdb.Query[[]map[string]any](ctx, c.db, query, vars)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if result != nil {
		for _, qr := range *result {
			for _, row := range qr.Result {
				rows = append(rows, plainID(row))
			}
		}
	}
	return rows, nil
}

// plainID replaces the backend's structured record id with the bare string
// id the rest of the system uses.
func plainID(row map[string]any) map[string]any {
	switch rid := row["id"].(type) {
	case surrealmodels.RecordID:
		row["id"] = fmt.Sprint(rid.ID)
	case *surrealmodels.RecordID:
		if rid != nil {
			row["id"] = fmt.Sprint(rid.ID)
		}
	}
	return row
}

func (c *surrealClient) Upsert(ctx context.Context, table, id string, data any) error {
	_, err := surrealdb.Query[any](ctx, c.db, "UPSERT type::thing($tb, $id) CONTENT $data", map[string]any{
		"tb":   table,
		"id":   id,
		"data": data,
	})
	return err
}

func (c *surrealClient) Delete(ctx context.Context, table, id string) error {
	_, err := surrealdb.Delete[map[string]any](ctx, c.db, surrealmodels.NewRecordID(table, id))
	return err
}

func (c *surrealClient) Close() error {
	return c.db.Close(context.Background())
}
