package store

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"
)

// A DTO is the write-side shape of a row. Only fields with a `db` tag are persisted.
type DTO interface {
	// ToModel builds the read-side value once the row id is known.
	ToModel(id int64) any
}

// Hooks for database operations. Every hook runs inside the transaction of the write.
type Hooks struct {
	PreSave  []func(ctx context.Context, tx *sqlx.Tx, data DTO, isNew bool) error
	PostSave []func(ctx context.Context, tx *sqlx.Tx, data DTO, model any, isNew bool) error
}

type Datastorer[T any] interface {
	Create(ctx context.Context, data DTO) (any, error)
	// InsertMany inserts a non-empty slice of db-tagged structs with one statement.
	InsertMany(ctx context.Context, rows any) error
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	QueryRow(ctx context.Context, query string, args ...any) (any, error)
	Get(ctx context.Context, query string, args ...any) (*T, error)
	Select(ctx context.Context, query string, args ...any) ([]T, error)

	// WARN: DeleteWhere does not run hooks.
	DeleteWhere(ctx context.Context, column string, value any) error
	// Set hooks.
	SetHooks(hooks Hooks)

	// Bind returns a datastore sharing hooks and table that runs on tx.
	Bind(tx *sqlx.Tx) Datastorer[T]
}

func getStructFieldNamesFromInstance(instance any) []string {
	typ := reflect.TypeOf(instance)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() == reflect.Slice {
		typ = typ.Elem()
	}

	var fields []string

	for i := range typ.NumField() {
		dbTag := typ.Field(i).Tag.Get("db")
		if dbTag != "" && dbTag != "-" {
			fields = append(fields, dbTag)
		}
	}

	return fields
}

// getStructFieldsFromDTO extracts column names and named placeholders from a DTO struct.
func getStructFieldsFromDTO(dto any) (columns string, placeholders string) {
	names := getStructFieldNamesFromInstance(dto)

	placeholderNames := make([]string, 0, len(names))
	for _, name := range names {
		placeholderNames = append(placeholderNames, ":"+name)
	}

	return strings.Join(names, ", "), strings.Join(placeholderNames, ", ")
}

func insertStatement(tablename string, dto any, returning bool) string {
	columns, placeholders := getStructFieldsFromDTO(dto)
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", tablename, columns, placeholders)
	if returning {
		query += " RETURNING id"
	}
	return query
}
