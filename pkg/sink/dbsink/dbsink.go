// Package dbsink implements the database variant of Sink: it connects to a
// SQL Server instance, infers a target table's schema from the first
// response record, optionally clears the table, and inserts one row per
// record with per-row failure tolerance, per SPEC_FULL.md §4.7. Grounded on
// the teacher's direct database/sql usage in pkg/indexstore/schema.go
// (CREATE TABLE IF NOT EXISTS, migration-by-ALTER) and pkg/reflowstate/store.go
// (upsert-by-key), generalized from SQLite to SQL Server via
// github.com/microsoft/go-mssqldb.
package dbsink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/3leaps/gorunner/pkg/jsonpath"
	"github.com/3leaps/gorunner/pkg/sink"
)

// reservedIdentifierKeys is the set of field names that mark a record as
// carrying its own identifier column, per spec.md §4.7 step 4.
var reservedIdentifierKeys = []string{"id", "ID", "codigo", "Codigo", "codigoEmpresa", "CodigoEmpresa"}

// Config configures a single database sink invocation.
type Config struct {
	Driver            string // expected "sqlserver"
	Table             string
	Columns           map[string]string // dotted response path -> column name; empty means "use the record's own fields"
	DataPath          string            // dotted path to the row array within the response; empty means "the response body itself"
	ClearBeforeInsert bool
	ConnectionString  string // already resolved and substituted by the caller
	MetadataColumns   bool   // attach job_id/timestamp/origin columns; default true
}

// DBSink writes rows into a SQL Server table.
type DBSink struct {
	cfg Config
}

// New returns a DBSink for cfg.
func New(cfg Config) *DBSink {
	return &DBSink{cfg: cfg}
}

var _ sink.Sink = (*DBSink)(nil)

// Write implements sink.Sink.
func (d *DBSink) Write(ctx context.Context, resp sink.Response, sinkCtx sink.Context) error {
	if strings.TrimSpace(d.cfg.ConnectionString) == "" {
		return fmt.Errorf("dbsink: connection string is empty")
	}
	params, err := ParseConnectionString(d.cfg.ConnectionString)
	if err != nil {
		return fmt.Errorf("dbsink: %w", err)
	}

	db, err := sql.Open("sqlserver", params.DSN())
	if err != nil {
		return fmt.Errorf("dbsink: open pool: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := selectRowSet(resp.Data, d.cfg.DataPath)
	if err != nil {
		return fmt.Errorf("dbsink: %w", err)
	}
	if len(rows) == 0 {
		return d.ensureTable(ctx, db, nil)
	}

	first, ok := rows[0].(map[string]any)
	if !ok {
		return fmt.Errorf("dbsink: row set elements must be objects, got %T", rows[0])
	}
	hasIdentifier := detectIdentifier(first)

	metadataColumns, err := d.prepareTable(ctx, db, first, hasIdentifier)
	if err != nil {
		return err
	}

	inserted := 0
	for _, r := range rows {
		record, ok := r.(map[string]any)
		if !ok {
			log.Printf("dbsink: skipping non-object row %v", r)
			continue
		}
		row := d.buildRow(record, hasIdentifier, metadataColumns, sinkCtx)
		if err := insertRow(ctx, db, d.cfg.Table, row); err != nil {
			log.Printf("dbsink: row insert failed: %v", err)
			continue
		}
		inserted++
	}
	log.Printf("dbsink: inserted %d/%d rows into %s", inserted, len(rows), d.cfg.Table)
	return nil
}

// selectRowSet implements spec.md §4.7 step 3.
func selectRowSet(data any, dataPath string) ([]any, error) {
	var v any = data
	if dataPath != "" {
		got, ok := jsonpath.Get(data, dataPath)
		if !ok {
			return nil, fmt.Errorf("data_path %q did not resolve", dataPath)
		}
		v = got
	}
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return t, nil
	case map[string]any:
		if n, ok := jsonpath.ConsecutiveIntegerKeys(t); ok && n > 0 {
			return jsonpath.ObjectToArray(t), nil
		}
		return []any{t}, nil
	default:
		return nil, fmt.Errorf("row set must be an array or object, got %T", v)
	}
}

func detectIdentifier(record map[string]any) bool {
	for _, k := range reservedIdentifierKeys {
		if _, ok := record[k]; ok {
			return true
		}
	}
	return false
}

// prepareTable implements spec.md §4.7 steps 5-6. It returns whether
// metadata columns (job_id/timestamp/origin) should be attached to each
// row: for a newly created table this is whatever Config.MetadataColumns
// requests (the columns are created to match); for a pre-existing table it
// is conditional on those columns already being present there, per
// spec.md:131 ("attach metadata ... when the target has (or is being
// created with) matching columns") — attaching them unconditionally would
// make every insert into an already-provisioned table without those
// columns fail.
func (d *DBSink) prepareTable(ctx context.Context, db *sql.DB, first map[string]any, hasIdentifier bool) (bool, error) {
	if d.cfg.ClearBeforeInsert {
		_, _ = db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", bracket(d.cfg.Table)))
	}

	exists, err := tableExists(ctx, db, d.cfg.Table)
	if err != nil {
		return false, fmt.Errorf("dbsink: check table existence: %w", err)
	}

	metadataColumns := d.cfg.MetadataColumns
	if !exists {
		if err := createTable(ctx, db, d.cfg.Table, first, hasIdentifier, metadataColumns); err != nil {
			return false, fmt.Errorf("dbsink: create table: %w", err)
		}
	} else if metadataColumns {
		metadataColumns, err = tableHasMetadataColumns(ctx, db, d.cfg.Table)
		if err != nil {
			return false, fmt.Errorf("dbsink: inspect existing columns: %w", err)
		}
	}

	if d.cfg.ClearBeforeInsert && exists {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", bracket(d.cfg.Table))); err != nil {
			if _, delErr := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", bracket(d.cfg.Table))); delErr != nil {
				return metadataColumns, fmt.Errorf("dbsink: clear table (truncate: %v, delete: %w)", err, delErr)
			}
		}
	}
	return metadataColumns, nil
}

// ensureTable handles the boundary case of an empty row set: success with
// zero rows inserted. Write always passes a nil first record here, so the
// table is only looked up: it is not created (there is no record to infer
// columns from), and it is neither dropped nor cleared.
func (d *DBSink) ensureTable(ctx context.Context, db *sql.DB, first map[string]any) error {
	exists, err := tableExists(ctx, db, d.cfg.Table)
	if err != nil {
		return fmt.Errorf("dbsink: check table existence: %w", err)
	}
	if !exists && first != nil {
		return createTable(ctx, db, d.cfg.Table, first, false, d.cfg.MetadataColumns)
	}
	return nil
}

func tableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_NAME = @p1`,
		table,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// tableHasMetadataColumns reports whether table already carries all three
// metadata columns (job_id, timestamp, origin).
func tableHasMetadataColumns(ctx context.Context, db *sql.DB, table string) (bool, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_NAME = @p1`,
		table,
	)
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()

	present := make(map[string]bool, 3)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		present[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return false, err
	}
	return present["job_id"] && present["timestamp"] && present["origin"], nil
}

// createTable implements spec.md §4.7 step 5 and §4.7.1.
func createTable(ctx context.Context, db *sql.DB, table string, first map[string]any, hasIdentifier bool, metadataColumns bool) error {
	var cols []string
	hasCreatedAt := false

	if !hasIdentifier {
		cols = append(cols, "id INT IDENTITY(1,1) PRIMARY KEY")
	}

	for k, v := range first {
		if k == "created_at" {
			hasCreatedAt = true
		}
		sqlType := InferColumnType(v)
		if hasIdentifier && isReservedIdentifierKey(k) {
			cols = append(cols, fmt.Sprintf("%s %s PRIMARY KEY", bracket(k), sqlType))
			continue
		}
		cols = append(cols, fmt.Sprintf("%s %s", bracket(k), sqlType))
	}

	if !hasCreatedAt {
		cols = append(cols, "created_at DATETIME")
	}
	if metadataColumns {
		cols = append(cols, "job_id NVARCHAR(255)", "timestamp DATETIME", "origin NVARCHAR(255)")
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", bracket(table), strings.Join(cols, ", "))
	_, err := db.ExecContext(ctx, stmt)
	return err
}

func isReservedIdentifierKey(k string) bool {
	for _, r := range reservedIdentifierKeys {
		if k == r {
			return true
		}
	}
	return false
}

// buildRow implements spec.md §4.7 step 7. metadataColumns is the value
// resolved by prepareTable for this Write call, not Config.MetadataColumns
// directly (see prepareTable).
func (d *DBSink) buildRow(record map[string]any, hasIdentifier, metadataColumns bool, sinkCtx sink.Context) map[string]any {
	row := make(map[string]any)

	if len(d.cfg.Columns) == 0 {
		for k, v := range record {
			if k == "created_at" || k == "updated_at" {
				continue
			}
			row[k] = serializeValue(v)
		}
	} else {
		for path, col := range d.cfg.Columns {
			v, ok := jsonpath.Get(record, path)
			if !ok {
				continue
			}
			row[col] = serializeValue(v)
		}
	}

	if !hasIdentifier {
		delete(row, "id")
	}

	if metadataColumns {
		row["job_id"] = sinkCtx.JobID
		row["timestamp"] = sinkCtx.Timestamp
		row["origin"] = sinkCtx.Origin
	}
	return row
}

func serializeValue(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	default:
		return v
	}
}

func insertRow(ctx context.Context, db *sql.DB, table string, row map[string]any) error {
	if len(row) == 0 {
		return nil
	}
	cols := make([]string, 0, len(row))
	placeholders := make([]string, 0, len(row))
	args := make([]any, 0, len(row))
	i := 1
	for col, val := range row {
		cols = append(cols, bracket(col))
		placeholders = append(placeholders, fmt.Sprintf("@p%d", i))
		args = append(args, val)
		i++
	}

	output := ""
	if hasIDColumn(cols) {
		output = " OUTPUT INSERTED.id"
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s)%s VALUES (%s)",
		bracket(table), strings.Join(cols, ", "), output, strings.Join(placeholders, ", "))

	if output != "" {
		var insertedID sql.NullInt64
		return db.QueryRowContext(ctx, stmt, args...).Scan(&insertedID)
	}
	_, err := db.ExecContext(ctx, stmt, args...)
	return err
}

func hasIDColumn(bracketedCols []string) bool {
	for _, c := range bracketedCols {
		if strings.EqualFold(c, "[id]") {
			return true
		}
	}
	return false
}

func bracket(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}
