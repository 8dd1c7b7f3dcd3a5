package nlq

import "errors"

var (
	// ErrSchemaRequired is returned when Compile is called without a schema
	// catalog. Run schema discovery first.
	ErrSchemaRequired = errors.New("schema catalog is required: run schema discovery first")
	// ErrSchemaMismatch indicates the catalog lacks a table or column the
	// compiler joins on.
	ErrSchemaMismatch = errors.New("schema catalog does not satisfy the query contract")
	// ErrEmptyQuestion is returned for a blank question.
	ErrEmptyQuestion = errors.New("question must not be empty")
	// ErrUnknownDepartment indicates an explicit department outside the
	// supported enumeration.
	ErrUnknownDepartment = errors.New("unknown department")
	// ErrUnknownDialect indicates an unsupported SQL dialect name.
	ErrUnknownDialect = errors.New("unknown SQL dialect")
	// ErrInvalidContract indicates a contract identifier that is not a plain
	// SQL identifier.
	ErrInvalidContract = errors.New("invalid query contract")
)
