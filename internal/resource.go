// Package internal holds the request handling shared by the HTTP adaptors.
// Adaptors translate their framework's context into a Request and write the
// returned Response back.
package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kcmvp/basemodel/app"
	"github.com/kcmvp/basemodel/db"
	"github.com/kcmvp/basemodel/model"
	"github.com/kcmvp/basemodel/validation"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// ErrBadRequest marks malformed requests.
var ErrBadRequest = errors.New("bad request")

// IDParam is the path parameter holding the primary key.
const IDParam = "id"

// reserved query parameters that are not filters.
var reserved = []string{"limit", "offset", "order", "desc", "key", "value"}

// Factory creates the model serving one request.
type Factory func() *model.Model

type Request struct {
	Ctx   context.Context
	ID    string
	Query url.Values
	Body  []byte
}

type Response struct {
	Status int
	Body   any
}

// Resource serves CRUD endpoints for the models built by a Factory.
type Resource struct {
	factory Factory
	logger  *zap.Logger
}

func NewResource(factory Factory) *Resource {
	return &Resource{factory: factory, logger: app.Logger().Named("resource")}
}

func ok(status int, body any) Response {
	return Response{Status: status, Body: body}
}

// Fail maps err to a status code and an error body. Validation failures list
// the messages of each field.
func (r *Resource) Fail(err error) Response {
	body := map[string]any{"error": err.Error()}
	var verr *validation.Error
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		r.logger.Error("request failed", zap.Error(err))
	}
	return Response{Status: status, Body: body}
}

// StatusOf returns the HTTP status matching err.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation),
		errors.Is(err, model.ErrWhereArgs),
		errors.Is(err, ErrBadRequest),
		errors.Is(err, db.ErrInvalidIdentifier),
		errors.Is(err, db.ErrNoSet),
		errors.Is(err, db.ErrUnsafeDelete):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, db.ErrDuplicateKey):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// filters turns the query into equality filters on known columns.
func filters(ctx context.Context, m *model.Model, query url.Values) (map[string]any, error) {
	params, err := Unify(nil, query)
	if err != nil {
		return nil, err
	}
	params = lo.OmitByKeys(params, reserved)
	fields, err := m.Fields(ctx)
	if err != nil {
		return nil, err
	}
	if unknown := lo.Without(lo.Keys(params), fields...); len(unknown) > 0 {
		return nil, fmt.Errorf("%w: unknown filter %s", ErrBadRequest, strings.Join(unknown, ", "))
	}
	return params, nil
}

// paging applies limit, offset and order from the query.
func paging(m *model.Model, query url.Values) error {
	if v := query.Get("limit"); v != "" {
		limit, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("%w: limit %q", ErrBadRequest, v)
		}
		offset, err := cast.ToIntE(lo.CoalesceOrEmpty(query.Get("offset"), "0"))
		if err != nil {
			return fmt.Errorf("%w: offset %q", ErrBadRequest, query.Get("offset"))
		}
		m.Limit(limit, offset)
	}
	if order := query.Get("order"); order != "" {
		m.OrderBy(order, lo.Ternary(cast.ToBool(query.Get("desc")), "desc", "asc"))
	}
	return nil
}

// DecodeObject parses body as a JSON object.
func DecodeObject(body []byte) (map[string]any, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrBadRequest)
	}
	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrBadRequest)
	}
	data, _ := res.Value().(map[string]any)
	return data, nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", db.ErrNoData, id)
}

// List returns the rows matching the query filters.
func (r *Resource) List(req Request) Response {
	m := r.factory()
	where, err := filters(req.Ctx, m, req.Query)
	if err != nil {
		return r.Fail(err)
	}
	if err := paging(m, req.Query); err != nil {
		return r.Fail(err)
	}
	var rows []db.Row
	if len(where) == 0 {
		rows, err = m.GetAll(req.Ctx)
	} else {
		rows, err = m.GetAll(req.Ctx, where)
	}
	if err != nil {
		return r.Fail(err)
	}
	return ok(http.StatusOK, rows)
}

// Count returns the number of rows matching the query filters.
func (r *Resource) Count(req Request) Response {
	m := r.factory()
	where, err := filters(req.Ctx, m, req.Query)
	if err != nil {
		return r.Fail(err)
	}
	var n int64
	if len(where) == 0 {
		n, err = m.CountAll(req.Ctx)
	} else {
		n, err = m.CountAllResults(req.Ctx, where)
	}
	if err != nil {
		return r.Fail(err)
	}
	return ok(http.StatusOK, map[string]any{"count": n})
}

// Dropdown returns the key/value mapping selected by the "key" and "value"
// query parameters. "key" defaults to the primary key.
func (r *Resource) Dropdown(req Request) Response {
	value := req.Query.Get("value")
	if value == "" {
		return r.Fail(fmt.Errorf("%w: value is required", ErrBadRequest))
	}
	m := r.factory()
	var opts map[string]any
	var err error
	if key := req.Query.Get("key"); key != "" {
		opts, err = m.Dropdown(req.Ctx, key, value)
	} else {
		opts, err = m.Dropdown(req.Ctx, value)
	}
	if err != nil {
		return r.Fail(err)
	}
	return ok(http.StatusOK, opts)
}

// Get returns the row whose primary key is the path id.
func (r *Resource) Get(req Request) Response {
	row, err := r.factory().Get(req.Ctx, req.ID)
	if err != nil {
		return r.Fail(err)
	}
	if row.IsAbsent() {
		return r.Fail(notFound(req.ID))
	}
	return ok(http.StatusOK, row.MustGet())
}

// Create inserts the JSON body and returns the new id.
func (r *Resource) Create(req Request) Response {
	data, err := DecodeObject(req.Body)
	if err != nil {
		return r.Fail(err)
	}
	id, err := r.factory().Insert(req.Ctx, data)
	if err != nil {
		return r.Fail(err)
	}
	return ok(http.StatusCreated, map[string]any{"id": id})
}

// Update writes the JSON body to the row whose primary key is the path id.
func (r *Resource) Update(req Request) Response {
	data, err := DecodeObject(req.Body)
	if err != nil {
		return r.Fail(err)
	}
	n, err := r.factory().Update(req.Ctx, req.ID, data)
	if err != nil {
		return r.Fail(err)
	}
	if n == 0 {
		return r.Fail(notFound(req.ID))
	}
	return ok(http.StatusOK, map[string]any{"affected": n})
}

// Delete removes the row whose primary key is the path id.
func (r *Resource) Delete(req Request) Response {
	n, err := r.factory().Delete(req.Ctx, req.ID)
	if err != nil {
		return r.Fail(err)
	}
	if n == 0 {
		return r.Fail(notFound(req.ID))
	}
	return ok(http.StatusOK, map[string]any{"affected": n})
}
