package util

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

// Client-visible messages shared across the service.
const (
	MsgInvalidJSON        = "Invalid JSON format"
	MsgInvalidID          = "Invalid ID format"
	MsgDatabaseConnection = "Database connection error"
	MsgInternal           = "Internal server error"
)

// Category names the rule that classified an error.
type Category string

const (
	CategoryMalformedPayload Category = "malformed_payload"
	CategoryValidation       Category = "validation_failed"
	CategoryConflict         Category = "conflict"
	CategoryRecordInvalid    Category = "record_invalid"
	CategoryInvalidID        Category = "invalid_id"
	CategoryStoreUnavailable Category = "store_unavailable"
	CategoryApplication      Category = "application"
	CategoryInternal         Category = "internal"
)

// postgres SQLSTATE codes recognized by the classifier.
const (
	pgUniqueViolation      = "23505"
	pgNotNullViolation     = "23502"
	pgCheckViolation       = "23514"
	pgStringDataRightTrunc = "22001"
	pgInvalidTextRepresent = "22P02"
)

// Response is the only error body shape the service emits.
type Response struct {
	Errors []Issue `json:"errors"`
}

// Normalized is the outcome of classifying an error.
type Normalized struct {
	Status   int
	Category Category
	Body     Response
	Cause    error
}

type rule struct {
	category Category
	match    func(error) (int, []Issue, bool)
}

// rules are evaluated top to bottom; the first match wins.
var rules = []rule{
	{CategoryMalformedPayload, matchMalformedPayload},
	{CategoryValidation, matchValidation},
	{CategoryConflict, matchConflict},
	{CategoryRecordInvalid, matchRecordValidation},
	{CategoryInvalidID, matchInvalidID},
	{CategoryStoreUnavailable, matchStoreUnavailable},
	{CategoryApplication, matchApplication},
}

// Normalize maps any error to a status and the canonical body. It is total: an error
// no rule recognizes becomes a 500 with a generic message.
func Normalize(err error) Normalized {
	if err == nil {
		return Normalized{Status: http.StatusOK, Body: Response{Errors: []Issue{}}}
	}
	for _, r := range rules {
		if status, issues, ok := r.match(err); ok {
			return Normalized{Status: status, Category: r.category, Body: Response{Errors: issues}, Cause: err}
		}
	}
	return Normalized{
		Status:   http.StatusInternalServerError,
		Category: CategoryInternal,
		Body:     Response{Errors: []Issue{NewIssue("", MsgInternal)}},
		Cause:    err,
	}
}

func matchMalformedPayload(err error) (int, []Issue, bool) {
	// Only request bodies qualify; a stored record failing to decode is a server fault.
	var payloadErr *MalformedPayloadError
	if errors.As(err, &payloadErr) {
		return http.StatusBadRequest, []Issue{NewIssue("", MsgInvalidJSON)}, true
	}
	return 0, nil, false
}

func matchValidation(err error) (int, []Issue, bool) {
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		return 0, nil, false
	}
	return http.StatusBadRequest, copyIssues(validationErr.Issues), true
}

func matchConflict(err error) (int, []Issue, bool) {
	field := ""
	var conflictErr *ConflictError
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &conflictErr):
		field = conflictErr.Field
	case errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation:
		field = conflictField(pgErr)
	default:
		return 0, nil, false
	}
	if field == "" {
		field = "email"
	}
	return http.StatusBadRequest, []Issue{NewIssue(field, "User with this "+field+" already exists")}, true
}

func matchRecordValidation(err error) (int, []Issue, bool) {
	var recordErr *RecordValidationError
	if errors.As(err, &recordErr) {
		return http.StatusBadRequest, copyIssues(recordErr.Issues), true
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, nil, false
	}
	var suffix string
	switch pgErr.Code {
	case pgNotNullViolation:
		suffix = "is required"
	case pgCheckViolation:
		suffix = "is invalid"
	case pgStringDataRightTrunc:
		suffix = "is too long"
	default:
		return 0, nil, false
	}
	field, label := recordField(pgErr)
	return http.StatusBadRequest, []Issue{NewIssue(field, label+" "+suffix)}, true
}

// recordColumns maps stored columns to the input attribute and label clients know.
var recordColumns = map[string]struct{ field, label string }{
	"first_name":    {"firstName", "First name"},
	"last_name":     {"lastName", "Last name"},
	"email":         {"email", "Email"},
	"password_hash": {"password", "Password"},
}

// recordField names the attribute a store refused. The raw driver message never
// reaches the client. Check violations carry no column, so the field comes from the
// constraint name ("users_first_name_check").
func recordField(pgErr *pgconn.PgError) (string, string) {
	column := pgErr.ColumnName
	if column == "" && pgErr.ConstraintName != "" {
		column = strings.TrimPrefix(pgErr.ConstraintName, pgErr.TableName+"_")
		column = strings.TrimSuffix(column, "_check")
	}
	if known, ok := recordColumns[column]; ok {
		return known.field, known.label
	}
	return column, "Value"
}

func matchInvalidID(err error) (int, []Issue, bool) {
	var idErr *InvalidIDError
	if errors.As(err, &idErr) {
		return http.StatusBadRequest, []Issue{NewIssue(idErr.fieldName(), MsgInvalidID)}, true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextRepresent {
		field := pgErr.ColumnName
		if field == "" {
			field = "id"
		}
		return http.StatusBadRequest, []Issue{NewIssue(field, MsgInvalidID)}, true
	}
	return 0, nil, false
}

func matchStoreUnavailable(err error) (int, []Issue, bool) {
	if isStoreUnavailable(err) {
		return http.StatusInternalServerError, []Issue{NewIssue("", MsgDatabaseConnection)}, true
	}
	return 0, nil, false
}

func isStoreUnavailable(err error) bool {
	var storeErr *StoreUnavailableError
	if errors.As(err, &storeErr) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func matchApplication(err error) (int, []Issue, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		status := domainErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return status, []Issue{NewIssue(domainErr.Field, domainErr.Message)}, true
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, []Issue{NewIssue("", fiberErr.Message)}, true
	}
	return 0, nil, false
}

// conflictField extracts the offending column from a unique violation, preferring
// the "Key (col)=(value)" detail over the constraint name.
func conflictField(pgErr *pgconn.PgError) string {
	if start := strings.Index(pgErr.Detail, "Key ("); start >= 0 {
		rest := pgErr.Detail[start+len("Key ("):]
		if end := strings.Index(rest, ")="); end > 0 {
			return rest[:end]
		}
	}
	name := pgErr.ConstraintName
	if pgErr.TableName != "" {
		name = strings.TrimPrefix(name, pgErr.TableName+"_")
	}
	name = strings.TrimSuffix(name, "_key")
	return strings.TrimSuffix(name, "_idx")
}

func copyIssues(issues []Issue) []Issue {
	if len(issues) == 0 {
		return []Issue{NewIssue("", "Validation failed")}
	}
	out := make([]Issue, len(issues))
	copy(out, issues)
	return out
}
