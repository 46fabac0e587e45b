package query

import (
	"net/url"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CrudAPI/internal/model"
	"CrudAPI/internal/serializer"
)

func testModels(t *testing.T) map[string]*model.Model {
	t.Helper()
	src := map[string]string{
		"Company": `
table: companies
columns:
  id: {type: bigint}
  name: {type: string}
relations:
  employees: {type: has_many, model: Employee}
`,
		"Employee": `
table: employees
columns:
  id: {type: bigint}
  name: {type: string}
  email: {type: string, nullable: true}
  age: {type: int}
  active: {type: bool}
  hired_at: {type: datetime, nullable: true}
  company_id: {type: bigint, nullable: true}
  name_length: {type: int, expr: "length(main.name)"}
relations:
  company: {type: belongs_to, model: Company}
proxies:
  company_name: {relation: company, attr: name}
fields:
  company_name: {dump_only: true}
`,
	}
	models := map[string]*model.Model{}
	for name, y := range src {
		m, err := model.ParseModel(name, []byte(y))
		require.NoError(t, err)
		models[name] = m
	}
	_, err := model.NewRegistry(models)
	require.NoError(t, err)
	return models
}

func buildSQL(t *testing.T, p Params) (string, []any, error) {
	t.Helper()
	models := testModels(t)
	set, err := serializer.NewSet(models, serializer.DefaultRules())
	require.NoError(t, err)
	ser, _ := set.For("Employee")

	base := sq.Select("main.*").From("employees AS main")
	q, err := Build(base, models["Employee"], ser, p)
	if err != nil {
		return "", nil, err
	}
	sql, args, err := q.List().ToSql()
	require.NoError(t, err)
	return sql, args, nil
}

func TestFilterScalarMeansEq(t *testing.T) {
	sql, args, err := buildSQL(t, Params{Filter: map[string]any{"name": "Ann"}})
	require.NoError(t, err)
	assert.Equal(t, "SELECT main.* FROM employees AS main WHERE main.name = ?", sql)
	assert.Equal(t, []any{"Ann"}, args)
}

func TestFilterSiblingsAreAnded(t *testing.T) {
	sql, args, err := buildSQL(t, Params{Filter: map[string]any{
		"name": "Ann",
		"age":  map[string]any{"gt": float64(30)},
	}})
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE (main.age > ? AND main.name = ?)")
	assert.Equal(t, []any{int64(30), "Ann"}, args)
}

func TestFilterOr(t *testing.T) {
	sql, args, err := buildSQL(t, Params{Filter: map[string]any{
		"$or": []any{
			map[string]any{"name": "A"},
			map[string]any{"age": map[string]any{"le": float64(20)}},
		},
		"active": true,
	}})
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE ((main.name = ? OR main.age <= ?) AND main.active = ?)")
	assert.Equal(t, []any{"A", int64(20), true}, args)
}

func TestFilterNestedAndInsideOr(t *testing.T) {
	sql, _, err := buildSQL(t, Params{Filter: map[string]any{
		"$or": []any{
			map[string]any{"$and": []any{
				map[string]any{"name": "A"},
				map[string]any{"age": float64(1)},
			}},
			map[string]any{"name": "B"},
		},
	}})
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE ((main.name = ? AND main.age = ?) OR main.name = ?)")
}

func TestOperators(t *testing.T) {
	cases := []struct {
		field   string
		op      string
		operand any
		sql     string
		args    []any
	}{
		{"name", "ne", "A", "main.name <> ?", []any{"A"}},
		{"email", "eq", nil, "main.email IS NULL", nil},
		{"email", "ne", nil, "main.email IS NOT NULL", nil},
		{"age", "ge", float64(3), "main.age >= ?", []any{int64(3)}},
		{"age", "lt", "7", "main.age < ?", []any{int64(7)}},
		{"name", "like", "A%", "main.name LIKE ?", []any{"A%"}},
		{"name", "ilike", "a%", "main.name ILIKE ?", []any{"a%"}},
		{"name", "notlike", "A%", "main.name NOT LIKE ?", []any{"A%"}},
		{"name", "notilike", "a%", "main.name NOT ILIKE ?", []any{"a%"}},
		{"name", "startswith", "An", "main.name LIKE ?", []any{"An%"}},
		{"name", "endswith", "nn", "main.name LIKE ?", []any{"%nn"}},
		{"name", "contains", "n", "main.name LIKE ?", []any{"%n%"}},
		{"name", "match", "ann", "main.name @@ plainto_tsquery(?)", []any{"ann"}},
		{"id", "in", []any{float64(1), float64(2)}, "main.id IN (?,?)", []any{int64(1), int64(2)}},
		{"id", "notin", []any{float64(1)}, "main.id NOT IN (?)", []any{int64(1)}},
		{"email", "is", nil, "main.email IS NULL", nil},
		{"active", "isnot", true, "main.active IS NOT TRUE", nil},
		{"age", "between", []any{float64(18), float64(65)}, "main.age BETWEEN ? AND ?", []any{int64(18), int64(65)}},
		{"name_length", "gt", float64(3), "(length(main.name)) > ?", []any{int64(3)}},
	}
	for _, tc := range cases {
		t.Run(tc.field+"_"+tc.op, func(t *testing.T) {
			sql, args, err := buildSQL(t, Params{Filter: map[string]any{tc.field: map[string]any{tc.op: tc.operand}}})
			require.NoError(t, err)
			assert.Equal(t, "SELECT main.* FROM employees AS main WHERE "+tc.sql, sql)
			if diff := cmp.Diff(tc.args, args); diff != "" && len(tc.args)+len(args) > 0 {
				t.Fatalf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterDatetimeOperandIsCoerced(t *testing.T) {
	_, args, err := buildSQL(t, Params{Filter: map[string]any{"hired_at": map[string]any{"ge": "2020-01-01T00:00:00"}}})
	require.NoError(t, err)
	require.Len(t, args, 1)
	assert.Equal(t, "2020-01-01T00:00:00", serializer.FormatDateTime(mustTime(t, args[0])))

	_, _, err = buildSQL(t, Params{Filter: map[string]any{"hired_at": "yesterday"}})
	var coercion *serializer.ValueCoercionError
	require.ErrorAs(t, err, &coercion)
	assert.Equal(t, "yesterday", coercion.Value)
}

func TestUnknownOperatorFails(t *testing.T) {
	_, _, err := buildSQL(t, Params{Filter: map[string]any{"name": map[string]any{"approx": "A"}}})
	var unknown *UnknownOperatorError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "approx", unknown.Operator)
	assert.True(t, IsClientError(err))
}

func TestUnknownFieldFails(t *testing.T) {
	_, _, err := buildSQL(t, Params{Filter: map[string]any{"salary": 1}})
	var unknown *serializer.UnknownFieldError
	require.ErrorAs(t, err, &unknown)

	_, _, err = buildSQL(t, Params{OrderBy: []OrderField{{Field: "salary"}}})
	require.ErrorAs(t, err, &unknown)
}

func TestMalformedFilters(t *testing.T) {
	bad := []map[string]any{
		{"age": map[string]any{"between": []any{float64(1)}}},
		{"age": map[string]any{"gt": float64(1), "lt": float64(5)}},
		{"age": map[string]any{}},
		{"age": map[string]any{"in": float64(1)}},
		{"name": map[string]any{"like": float64(1)}},
		{"active": map[string]any{"is": "yes"}},
		{"$or": "name"},
	}
	for _, f := range bad {
		_, _, err := buildSQL(t, Params{Filter: f})
		var invalid *InvalidFilterError
		assert.ErrorAs(t, err, &invalid, "%v", f)
	}
}

func TestProxyFilterAndOrderJoinOnce(t *testing.T) {
	sql, args, err := buildSQL(t, Params{
		Filter:  map[string]any{"company_name": map[string]any{"startswith": "Ac"}},
		OrderBy: []OrderField{{Field: "company_name", Desc: true}, {Field: "id"}},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT main.* FROM employees AS main LEFT JOIN companies AS j_company ON j_company.id = main.company_id "+
			"WHERE j_company.name LIKE ? ORDER BY LOWER(j_company.name) DESC, main.id", sql)
	assert.Equal(t, []any{"Ac%"}, args)
}

func TestRelationFilterReducesToKey(t *testing.T) {
	sql, args, err := buildSQL(t, Params{Filter: map[string]any{"company": map[string]any{"eq": map[string]any{"id": float64(3), "name": "x"}}}})
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE main.company_id = ?")
	assert.Equal(t, []any{int64(3)}, args)

	sql, _, err = buildSQL(t, Params{Filter: map[string]any{"company": nil}})
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE main.company_id IS NULL")
}

func TestOrderingIsCaseInsensitiveForStrings(t *testing.T) {
	sql, _, err := buildSQL(t, Params{OrderBy: ParseOrderBy("-name, age,")})
	require.NoError(t, err)
	assert.Equal(t, "SELECT main.* FROM employees AS main ORDER BY LOWER(main.name) DESC, main.age", sql)
}

func TestLimitAppliedAfterOrdering(t *testing.T) {
	limit := uint64(5)
	sql, _, err := buildSQL(t, Params{OrderBy: ParseOrderBy("age"), Limit: &limit})
	require.NoError(t, err)
	assert.Equal(t, "SELECT main.* FROM employees AS main ORDER BY main.age LIMIT 5", sql)
}

func TestPagingQueries(t *testing.T) {
	models := testModels(t)
	base := sq.Select("main.*").From("employees AS main")
	limit := uint64(15)

	q, err := Build(base, models["Employee"], nil, Params{
		Filter:  map[string]any{"age": map[string]any{"gt": float64(1)}},
		OrderBy: ParseOrderBy("id"),
		Limit:   &limit,
		Page:    &Page{Number: 2, PerPage: 10},
	})
	require.NoError(t, err)
	require.True(t, q.Paged())

	sql, args, err := q.CountQuery().ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM (SELECT main.* FROM employees AS main WHERE main.age > ? LIMIT 15) AS counted", sql)
	assert.Equal(t, []any{int64(1)}, args)

	sql, _, err = q.PageQuery().ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "ORDER BY main.id LIMIT 5 OFFSET 10")

	q, err = Build(base, models["Employee"], nil, Params{Limit: &limit, Page: &Page{Number: 3, PerPage: 10}})
	require.NoError(t, err)
	sql, _, err = q.PageQuery().ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "LIMIT 0 OFFSET 20")

	env := q.NewEnvelope(15, []any{})
	assert.Equal(t, Envelope{Page: 3, PerPage: 10, Count: 15, Results: []any{}}, env)
}

func TestModifierRunsFirst(t *testing.T) {
	models := testModels(t)
	onlyActive := func(sb sq.SelectBuilder, m *model.Model) sq.SelectBuilder {
		return sb.Where(sq.Eq{"main.active": true})
	}
	q, err := Build(sq.Select("main.*").From("employees AS main"), models["Employee"], nil,
		Params{Filter: map[string]any{"name": "A"}}, onlyActive)
	require.NoError(t, err)
	sql, args, err := q.List().ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT main.* FROM employees AS main WHERE main.active = ? AND main.name = ?", sql)
	assert.Equal(t, []any{true, "A"}, args)
}

func TestParseParams(t *testing.T) {
	v := url.Values{}
	v.Set("filter", `{"id": 9007199254740993, "age": {"gt": 1.5}}`)
	v.Set("order_by", "-name")
	v.Set("limit", "10")
	v.Set("page", "2")
	p, err := ParseParams(v, ParamConfig{DefaultPerPage: 25, MaxPerPage: 100})
	require.NoError(t, err)

	assert.Equal(t, int64(9007199254740993), p.Filter["id"])
	assert.Equal(t, map[string]any{"gt": 1.5}, p.Filter["age"])
	assert.Equal(t, []OrderField{{Field: "name", Desc: true}}, p.OrderBy)
	require.NotNil(t, p.Limit)
	assert.Equal(t, uint64(10), *p.Limit)
	assert.Equal(t, &Page{Number: 2, PerPage: 25}, p.Page)

	v.Set("per_page", "500")
	p, err = ParseParams(v, ParamConfig{MaxPerPage: 100})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), p.Page.PerPage)

	p, err = ParseParams(url.Values{"page": {"1"}}, ParamConfig{})
	require.NoError(t, err)
	assert.Equal(t, uint64(DefaultPerPage), p.Page.PerPage)

	// (page-1)*per_page would wrap around uint64 and land on the first rows
	_, err = ParseParams(url.Values{"page": {"922337203685477582"}, "per_page": {"20"}}, ParamConfig{})
	var invalid *InvalidParamError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "page", invalid.Param)

	p, err = ParseParams(url.Values{"page": {"461168601842738791"}, "per_page": {"20"}}, ParamConfig{})
	require.NoError(t, err)
	assert.Equal(t, uint64(461168601842738790*20), p.Page.Offset())

	for key, raw := range map[string]string{
		"filter":   "[1,2]",
		"limit":    "-1",
		"page":     "0",
		"per_page": "x",
	} {
		vals := url.Values{key: {raw}}
		if key == "per_page" {
			vals.Set("page", "1")
		}
		_, err := ParseParams(vals, ParamConfig{})
		var invalid *InvalidParamError
		assert.ErrorAs(t, err, &invalid, key)
	}

	// values Postgres cannot take as bigint are client errors
	for _, key := range []string{"limit", "page", "per_page"} {
		vals := url.Values{key: {"18446744073709551615"}}
		if key == "per_page" {
			vals.Set("page", "1")
		}
		_, err := ParseParams(vals, ParamConfig{})
		var invalid *InvalidParamError
		assert.ErrorAs(t, err, &invalid, key)
	}
}

func TestCountLeavesOutOrderOnlyJoins(t *testing.T) {
	models := testModels(t)
	base := sq.Select("main.*").From("employees AS main")
	q, err := Build(base, models["Employee"], nil, Params{
		Filter:  map[string]any{"age": map[string]any{"gt": float64(1)}},
		OrderBy: ParseOrderBy("company_name"),
		Page:    &Page{Number: 1, PerPage: 10},
	})
	require.NoError(t, err)

	sql, _, err := q.CountQuery().ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM (SELECT main.* FROM employees AS main WHERE main.age > ?) AS counted", sql)

	sql, _, err = q.PageQuery().ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "LEFT JOIN companies AS j_company ON j_company.id = main.company_id")
	assert.Contains(t, sql, "ORDER BY LOWER(j_company.name) LIMIT 10")
}
