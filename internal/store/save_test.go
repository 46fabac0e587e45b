package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CrudAPI/internal/model"
)

// recorder captures the statements Save executes. Only updates of persisted
// rows are expected, so reads fail.
type recorder struct {
	stmts []string
}

func (r *recorder) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected query")
}

func (r *recorder) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func (r *recorder) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.stmts = append(r.stmts, fmt.Sprintf("%s %v", sql, args))
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func TestSaveKeepsAssignedForeignKey(t *testing.T) {
	models := storeModels(t)
	rec := &recorder{}
	st := NewWithQuerier(rec)

	emp := model.Hydrate(models["Employee"], map[string]any{"id": int64(1), "name": "Ann", "company_id": int64(1)})
	company := model.Hydrate(models["Company"], map[string]any{"id": int64(1), "name": "Acme"})
	emp.AttachLoaded("company", company)

	// the loaded company is assigned back alongside a new key
	emp.SetRelated("company", company)
	emp.Set("company_id", int64(2))
	emp.Set("name", "Ann")

	require.NoError(t, st.Save(context.Background(), emp))
	assert.Equal(t, []string{"UPDATE employees SET company_id = $1 WHERE id = $2 [2 1]"}, rec.stmts)
	fk, _ := emp.Get("company_id")
	assert.Equal(t, int64(2), fk)
	assert.False(t, emp.IsDirty("company"))
}

func TestSaveUnchangedRowWritesNothing(t *testing.T) {
	models := storeModels(t)
	rec := &recorder{}
	st := NewWithQuerier(rec)

	emp := model.Hydrate(models["Employee"], map[string]any{"id": int64(1), "name": "Ann", "company_id": int32(1)})
	company := model.Hydrate(models["Company"], map[string]any{"id": int64(1), "name": "Acme"})
	emp.AttachLoaded("company", company)

	emp.SetRelated("company", company)
	emp.Set("name", "Ann")
	company.Set("name", "Acme")

	require.NoError(t, st.Save(context.Background(), emp))
	assert.Empty(t, rec.stmts)
}

func TestSaveMovesChildrenAndDetachesRemoved(t *testing.T) {
	models := storeModels(t)
	rec := &recorder{}
	st := NewWithQuerier(rec)

	c := model.Hydrate(models["Company"], map[string]any{"id": int64(1), "name": "Acme"})
	gone := model.Hydrate(models["Employee"], map[string]any{"id": int64(4), "name": "D", "company_id": int64(1)})
	c.AttachLoaded("employees", []*model.Entity{gone})

	// employee 5 is taken over from company 2
	moved := model.Hydrate(models["Employee"], map[string]any{"id": int64(5), "name": "E", "company_id": int64(2)})
	c.SetRelated("employees", []*model.Entity{moved})

	require.NoError(t, st.Save(context.Background(), c))
	assert.Equal(t, []string{
		"UPDATE employees SET company_id = $1 WHERE id = $2 [<nil> 4]",
		"UPDATE employees SET company_id = $1 WHERE id = $2 [1 5]",
	}, rec.stmts)
	assert.True(t, moved.Persisted())
	assert.Empty(t, moved.DirtyColumns())
}
