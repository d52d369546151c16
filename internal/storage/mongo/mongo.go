// Package mongo implements a MongoDB-backed storage.Source using the v2 Go
// driver. A statement table maps to a collection of the same name and each
// document is one row; the filter column is matched with a plain equality
// filter.
package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"ferc/internal/storage"
)

// DefaultDatabase is used when the URI does not name a database.
const DefaultDatabase = "pudl"

// Source is a MongoDB-backed storage.Source.
type Source struct {
	client *mongo.Client
	dbName string
}

var _ storage.Source = (*Source)(nil)

func init() {
	storage.Register("mongo", func(ctx context.Context, location string) (storage.Source, error) {
		return Open(ctx, location)
	})
}

// Open connects to uri and pings the primary.
func Open(ctx context.Context, uri string) (*Source, error) {
	dbName, err := databaseFromURI(uri)
	if err != nil {
		return nil, err
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return &Source{client: client, dbName: dbName}, nil
}

// databaseFromURI extracts the database from the URI path, e.g.
// mongodb+srv://user:pw@cluster/pudl?retryWrites=true -> "pudl".
func databaseFromURI(uri string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return "", fmt.Errorf("mongo uri: %w", err)
	}
	if u.Scheme != "mongodb" && u.Scheme != "mongodb+srv" {
		return "", fmt.Errorf("mongo uri: unsupported scheme %q", u.Scheme)
	}
	if db := strings.Trim(u.Path, "/"); db != "" {
		return db, nil
	}
	return DefaultDatabase, nil
}

// Query implements storage.Source.
func (s *Source) Query(ctx context.Context, table, filterColumn string, value any) (*storage.RowSet, error) {
	if strings.TrimSpace(table) == "" || strings.TrimSpace(filterColumn) == "" {
		return nil, fmt.Errorf("mongo: collection and filter field are required")
	}
	coll := s.client.Database(s.dbName).Collection(table)

	cursor, err := coll.Find(ctx, bson.D{{Key: filterColumn, Value: value}})
	if err != nil {
		return nil, fmt.Errorf("mongo: find %s: %w", table, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.D
	for cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: %s: decode document %d: %w", table, len(docs), err)
		}
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo: %s: iterate: %w", table, err)
	}
	return documentsToRowSet(docs), nil
}

// Close implements storage.Source.
func (s *Source) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// documentsToRowSet flattens top-level document fields into a RowSet. The
// column set is the union of keys in first-seen order; a key missing from a
// document yields nil in that row.
func documentsToRowSet(docs []bson.D) *storage.RowSet {
	rs := &storage.RowSet{Columns: []string{}, Rows: make([][]any, 0, len(docs))}
	pos := map[string]int{}
	for _, doc := range docs {
		for _, e := range doc {
			if _, ok := pos[e.Key]; !ok {
				pos[e.Key] = len(rs.Columns)
				rs.Columns = append(rs.Columns, e.Key)
			}
		}
	}
	for _, doc := range docs {
		row := make([]any, len(rs.Columns))
		for _, e := range doc {
			row[pos[e.Key]] = bsonScalar(e.Value)
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs
}

// bsonScalar maps BSON values onto RowSet scalars.
func bsonScalar(v any) any {
	switch t := v.(type) {
	case int32:
		return int64(t)
	case bson.DateTime:
		return t.Time().UTC()
	case bson.ObjectID:
		return t.Hex()
	case bson.Decimal128:
		if f, err := storage.ParseDecimalFloat(t.String()); err == nil {
			return f
		}
		return t.String()
	case bson.Null, bson.Undefined:
		return nil
	default:
		return storage.NormalizeValue(v)
	}
}
