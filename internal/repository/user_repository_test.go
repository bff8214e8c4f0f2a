package repository_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authkit/session-auth/internal/domain"
	"github.com/authkit/session-auth/internal/repository"
	apperrors "github.com/authkit/session-auth/pkg/util"
)

var userColumns = []string{"id", "first_name", "last_name", "email", "password_hash", "created_at", "updated_at"}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("returns store assigned fields", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("INSERT INTO users").
			WithArgs("Ada", "Lovelace", "ada@example.com", "hash").
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow("0b6f1c1e-5f0e-4c1e-9a49-0f0f0f0f0f0f", now, now))

		repo := repository.NewUserRepository(mock)
		user := &domain.User{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", PasswordHash: "hash"}

		require.NoError(t, repo.Create(ctx, user))
		assert.Equal(t, "0b6f1c1e-5f0e-4c1e-9a49-0f0f0f0f0f0f", user.ID)
		assert.Equal(t, now, user.CreatedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation normalizes to email conflict", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("INSERT INTO users").
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{
				Code:           "23505",
				TableName:      "users",
				ConstraintName: "users_email_key",
				Detail:         "Key (email)=(ada@example.com) already exists.",
			})

		repo := repository.NewUserRepository(mock)
		err = repo.Create(ctx, &domain.User{FirstName: "Ada", LastName: "L", Email: "ada@example.com", PasswordHash: "hash"})
		require.Error(t, err)

		normalized := apperrors.Normalize(err)
		assert.Equal(t, http.StatusBadRequest, normalized.Status)
		assert.Equal(t, apperrors.CategoryConflict, normalized.Category)
		assert.Equal(t, "email", normalized.Body.Errors[0].FieldName())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("check violation hides the driver message", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("INSERT INTO users").
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{
				Code:           "23514",
				TableName:      "users",
				ConstraintName: "users_first_name_check",
				Message:        `new row for relation "users" violates check constraint "users_first_name_check"`,
			})

		err = repository.NewUserRepository(mock).Create(ctx, &domain.User{FirstName: " ", LastName: "L", Email: "ada@example.com", PasswordHash: "hash"})
		require.Error(t, err)

		normalized := apperrors.Normalize(err)
		assert.Equal(t, http.StatusBadRequest, normalized.Status)
		assert.Equal(t, apperrors.CategoryRecordInvalid, normalized.Category)
		assert.Equal(t, "firstName", normalized.Body.Errors[0].FieldName())
		assert.Equal(t, "First name is invalid", normalized.Body.Errors[0].Message)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_GetByEmail(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("FROM users WHERE email").
			WithArgs("ada@example.com").
			WillReturnRows(pgxmock.NewRows(userColumns).
				AddRow("0b6f1c1e-5f0e-4c1e-9a49-0f0f0f0f0f0f", "Ada", "Lovelace", "ada@example.com", "hash", now, now))

		user, err := repository.NewUserRepository(mock).GetByEmail(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, "Ada", user.FirstName)
		assert.Equal(t, "hash", user.PasswordHash)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("FROM users WHERE email").
			WithArgs("ghost@example.com").
			WillReturnError(pgx.ErrNoRows)

		_, err = repository.NewUserRepository(mock).GetByEmail(ctx, "ghost@example.com")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("connection failure is a store error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("FROM users WHERE email").
			WithArgs("ada@example.com").
			WillReturnError(apperrors.NewStoreUnavailable("postgres", errors.New("connection refused")))

		_, err = repository.NewUserRepository(mock).GetByEmail(ctx, "ada@example.com")
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrUserNotFound)
		assert.Equal(t, apperrors.CategoryStoreUnavailable, apperrors.Normalize(err).Category)
	})
}

func TestUserRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed id never reaches the database", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		_, err = repository.NewUserRepository(mock).GetByID(ctx, "not-a-uuid")

		var idErr *apperrors.InvalidIDError
		require.ErrorAs(t, err, &idErr)
		assert.Equal(t, "id", idErr.Field)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := "0b6f1c1e-5f0e-4c1e-9a49-0f0f0f0f0f0f"
		mock.ExpectQuery("FROM users WHERE id").WithArgs(id).WillReturnError(pgx.ErrNoRows)

		_, err = repository.NewUserRepository(mock).GetByID(ctx, id)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}
