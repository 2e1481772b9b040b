package echo

import (
	"io"
	"net/http"

	"github.com/kcmvp/basemodel/internal"
	"github.com/labstack/echo/v4"
	"github.com/samber/mo"
)

// Router is satisfied by *echo.Echo and *echo.Group.
type Router interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	PUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	DELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

var (
	_ Router = (*echo.Echo)(nil)
	_ Router = (*echo.Group)(nil)
)

// Register mounts the CRUD endpoints of the model built by factory under path.
func Register(r Router, path string, factory internal.Factory) {
	res := internal.NewResource(factory)
	item := path + "/:" + internal.IDParam
	r.GET(path, handle(res.List))
	r.GET(path+"/count", handle(res.Count))
	r.GET(path+"/dropdown", handle(res.Dropdown))
	r.GET(item, handle(res.Get))
	r.POST(path, handle(res.Create))
	r.PUT(item, handle(res.Update))
	r.DELETE(item, handle(res.Delete))
}

func handle(fn func(internal.Request) internal.Response) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		body := mo.Ok([]byte(nil))
		if req.Body != nil {
			body = mo.TupleToResult(io.ReadAll(req.Body))
		}
		if body.IsError() {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": body.Error().Error()})
		}
		resp := fn(internal.Request{
			Ctx:   req.Context(),
			ID:    c.Param(internal.IDParam),
			Query: c.QueryParams(),
			Body:  body.MustGet(),
		})
		return c.JSON(resp.Status, resp.Body)
	}
}
