package itests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/spf13/cast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelated_HasManyIsAFilterableCollection(t *testing.T) {
	acme := idOf(t, "companies", "Acme")
	status, body := call(t, http.MethodGet, listPath(fmt.Sprintf("companies/%d/employees", acme), nil), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"Alice", "bob"}, names(asList(t, body)))

	status, body = call(t, http.MethodGet, listPath(fmt.Sprintf("companies/%d/employees", acme), map[string]string{
		"filter": `{"salary":{"gt":4500}}`, "page": "1",
	}), nil)
	require.Equal(t, http.StatusOK, status)
	env := asObject(t, body)
	assert.EqualValues(t, 1, cast.ToInt64(env["count"]))
	assert.Equal(t, []string{"Alice"}, names(asList(t, env["results"])))
}

func TestRelated_ToOne(t *testing.T) {
	status, body := call(t, http.MethodGet, fmt.Sprintf("/companies/%d/headquarters", idOf(t, "companies", "Acme")), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Springfield", asObject(t, body)["city"])

	status, _ = call(t, http.MethodGet, fmt.Sprintf("/companies/%d/headquarters", idOf(t, "companies", "Initech")), nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, http.MethodPost, fmt.Sprintf("/companies/%d/headquarters", idOf(t, "companies", "Initech")), map[string]any{"street": "x"})
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestRelated_Property(t *testing.T) {
	acme := idOf(t, "companies", "Acme")
	status, body := call(t, http.MethodGet, listPath(fmt.Sprintf("companies/%d/peers", acme), map[string]string{
		"filter": `{"name":{"in":["Acme","Globex","Initech","Umbrella"]}}`,
	}), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"Umbrella"}, names(asList(t, body)))

	status, _ = call(t, http.MethodPost, fmt.Sprintf("/companies/%d/peers", acme), map[string]any{"name": "x"})
	assert.Equal(t, http.StatusMethodNotAllowed, status)

	status, _ = call(t, http.MethodGet, fmt.Sprintf("/companies/%d/nothing", acme), nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, http.MethodGet, "/companies/999999/peers", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRelated_CreateAttachAndItemRoutes(t *testing.T) {
	_, body := call(t, http.MethodPost, "/companies", map[string]any{"name": "Hooli", "kind": "private"})
	hooli := cast.ToInt64(asObject(t, body)["id"])
	base := fmt.Sprintf("/companies/%d/employees", hooli)

	// create through the relation
	status, body := call(t, http.MethodPost, base, map[string]any{"name": "Gavin"})
	require.Equal(t, http.StatusCreated, status, "%v", body)
	gavin := asObject(t, body)
	assert.EqualValues(t, hooli, cast.ToInt64(gavin["company_id"]))
	assert.Equal(t, "Hooli", gavin["company_name"])

	// attach an existing row
	_, body = call(t, http.MethodPost, "/employees", map[string]any{"name": "Richard"})
	richard := cast.ToInt64(asObject(t, body)["id"])
	status, body = call(t, http.MethodPost, base, map[string]any{"id": richard})
	require.Equal(t, http.StatusOK, status, "%v", body)
	assert.EqualValues(t, hooli, cast.ToInt64(asObject(t, body)["company_id"]))

	status, _ = call(t, http.MethodPost, base, map[string]any{"id": 999999})
	assert.Equal(t, http.StatusNotFound, status)

	// item routes only see owned children
	item := fmt.Sprintf("%s/%d", base, richard)
	status, _ = call(t, http.MethodGet, item, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = call(t, http.MethodGet, fmt.Sprintf("%s/%d", base, idOf(t, "employees", "Alice")), nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = call(t, http.MethodPut, item, map[string]any{"email": "richard@hooli.test"})
	require.Equal(t, http.StatusOK, status, "%v", body)
	assert.Equal(t, "richard@hooli.test", asObject(t, body)["email"])

	status, _ = call(t, http.MethodDelete, item, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = call(t, http.MethodGet, fmt.Sprintf("/employees/%d", richard), nil)
	assert.Equal(t, http.StatusNotFound, status)

	_, body = call(t, http.MethodGet, fmt.Sprintf("/companies/%d", hooli), nil)
	assert.Equal(t, []int64{cast.ToInt64(gavin["id"])}, cast.ToInt64Slice(asObject(t, body)["employees"]))
}
