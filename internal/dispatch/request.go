package dispatch

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/umarmk/mcp-server/internal/errs"
	"github.com/umarmk/mcp-server/internal/query"
)

// OperationKind names a tool. The string value is the tool name.
type OperationKind string

const (
	OpPing            OperationKind = "ping"
	OpServerInfo      OperationKind = "get_server_info"
	OpListTables      OperationKind = "list_tables"
	OpDescribeTable   OperationKind = "describe_table"
	OpTableStatistics OperationKind = "get_table_statistics"
	OpInsert          OperationKind = "insert_record"
	OpSelect          OperationKind = "select_records"
	OpUpdate          OperationKind = "update_records"
	OpDelete          OperationKind = "delete_records"
	OpCustomQuery     OperationKind = "execute_custom_query"
)

// Request is one typed tool invocation. Validate checks shape only (required
// fields, value ranges); identifier and clause rules are enforced when the
// statement is built.
type Request interface {
	Kind() OperationKind
	Validate() error
}

// PingRequest takes no arguments.
type PingRequest struct{}

// ServerInfoRequest takes no arguments.
type ServerInfoRequest struct{}

type ListTablesRequest struct {
	Schema string `json:"schema,omitempty" jsonschema:"Schema to list; defaults to public on PostgreSQL and the connected database on MySQL"`
}

type DescribeTableRequest struct {
	Table  string `json:"table" jsonschema:"Table name" validate:"required"`
	Schema string `json:"schema,omitempty" jsonschema:"Schema containing the table"`
}

type TableStatisticsRequest struct {
	Table      string `json:"table" jsonschema:"Table name" validate:"required"`
	Schema     string `json:"schema,omitempty" jsonschema:"Schema containing the table"`
	ExactCount bool   `json:"exact_count,omitempty" jsonschema:"Also run COUNT(*) for an exact row count; slow on large tables"`
}

type InsertRequest struct {
	Table   string         `json:"table" jsonschema:"Table to insert into" validate:"required"`
	Columns map[string]any `json:"columns" jsonschema:"Column name to value mapping for the new row"`
	Schema  string         `json:"schema,omitempty" jsonschema:"Schema containing the table"`
}

type SelectRequest struct {
	Table   string         `json:"table" jsonschema:"Table to read from" validate:"required"`
	Schema  string         `json:"schema,omitempty" jsonschema:"Schema containing the table"`
	Columns []string       `json:"columns,omitempty" jsonschema:"Columns to return; all columns when omitted"`
	Filters []query.Filter `json:"filters,omitempty" jsonschema:"Conditions combined with AND" validate:"dive"`
	OrderBy []query.Order  `json:"order_by,omitempty" jsonschema:"Sort terms applied in order" validate:"dive"`
	Limit   *int           `json:"limit,omitempty" jsonschema:"Maximum rows to return; default 100, capped at 1000"`
	Offset  *int           `json:"offset,omitempty" jsonschema:"Rows to skip before returning; default 0"`
}

// UpdateRequest leaves Filters optional at the shape level so that an empty
// or absent filter list is reported as a missing WHERE clause.
type UpdateRequest struct {
	Table         string         `json:"table" jsonschema:"Table to update" validate:"required"`
	Set           map[string]any `json:"set" jsonschema:"Column name to new value mapping"`
	Filters       []query.Filter `json:"filters,omitempty" jsonschema:"Conditions selecting the rows to update; must not be empty" validate:"dive"`
	Schema        string         `json:"schema,omitempty" jsonschema:"Schema containing the table"`
	ReturnRecords bool           `json:"return_records,omitempty" jsonschema:"Return the updated rows (PostgreSQL only)"`
}

type DeleteRequest struct {
	Table         string         `json:"table" jsonschema:"Table to delete from" validate:"required"`
	Filters       []query.Filter `json:"filters,omitempty" jsonschema:"Conditions selecting the rows to delete; must not be empty" validate:"dive"`
	Schema        string         `json:"schema,omitempty" jsonschema:"Schema containing the table"`
	ReturnRecords bool           `json:"return_records,omitempty" jsonschema:"Return the deleted rows (PostgreSQL only)"`
}

type CustomQueryRequest struct {
	SQL          string `json:"sql" jsonschema:"A single SQL statement; use $1, $2 (PostgreSQL) or ? (MySQL) for parameters" validate:"required"`
	DeclaredKind string `json:"declared_kind" jsonschema:"read for SELECT statements, write for INSERT, UPDATE or DELETE" validate:"required"`
	Params       []any  `json:"params,omitempty" jsonschema:"Values bound to the statement's placeholders in order"`
}

func (PingRequest) Kind() OperationKind            { return OpPing }
func (ServerInfoRequest) Kind() OperationKind      { return OpServerInfo }
func (ListTablesRequest) Kind() OperationKind      { return OpListTables }
func (DescribeTableRequest) Kind() OperationKind   { return OpDescribeTable }
func (TableStatisticsRequest) Kind() OperationKind { return OpTableStatistics }
func (InsertRequest) Kind() OperationKind          { return OpInsert }
func (SelectRequest) Kind() OperationKind          { return OpSelect }
func (UpdateRequest) Kind() OperationKind          { return OpUpdate }
func (DeleteRequest) Kind() OperationKind          { return OpDelete }
func (CustomQueryRequest) Kind() OperationKind     { return OpCustomQuery }

func (PingRequest) Validate() error         { return nil }
func (ServerInfoRequest) Validate() error   { return nil }
func (r ListTablesRequest) Validate() error { return validateStruct(r) }

func (r DescribeTableRequest) Validate() error   { return validateStruct(r) }
func (r TableStatisticsRequest) Validate() error { return validateStruct(r) }
func (r InsertRequest) Validate() error          { return validateStruct(r) }
func (r UpdateRequest) Validate() error          { return validateStruct(r) }
func (r DeleteRequest) Validate() error          { return validateStruct(r) }

func (r SelectRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if r.Limit != nil && *r.Limit < 1 {
		return errs.Newf(errs.ErrKindInvalidArgument, "limit must be at least 1, got %d", *r.Limit)
	}
	if r.Offset != nil && *r.Offset < 0 {
		return errs.Newf(errs.ErrKindInvalidArgument, "offset must not be negative, got %d", *r.Offset)
	}
	return nil
}

func (r CustomQueryRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	_, err := query.ParseStatementKind(r.DeclaredKind)
	return err
}

// writes reports whether req changes data and is therefore audited and
// never retried.
func writes(req Request) bool {
	switch r := req.(type) {
	case InsertRequest, UpdateRequest, DeleteRequest:
		return true
	case CustomQueryRequest:
		k, err := query.ParseStatementKind(r.DeclaredKind)
		return err != nil || k == query.KindWrite
	default:
		return false
	}
}

var validate = newValidator()

// newValidator reports fields by their JSON names, which is what callers send.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags and folds the result into one
// InvalidArgument error naming every failed field.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return errs.Wrap(errs.ErrKindInvalidArgument, "invalid request", err)
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errs.New(errs.ErrKindInvalidArgument, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
