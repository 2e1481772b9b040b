package gin

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kcmvp/basemodel/internal"
	"github.com/samber/mo"
)

// Register mounts the CRUD endpoints of the model built by factory under path.
// A fresh model serves every request.
func Register(r gin.IRoutes, path string, factory internal.Factory) {
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

func handle(fn func(internal.Request) internal.Response) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := mo.Ok([]byte(nil))
		if c.Request.Body != nil {
			body = mo.TupleToResult(io.ReadAll(c.Request.Body))
		}
		if body.IsError() {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": body.Error().Error()})
			return
		}
		resp := fn(internal.Request{
			Ctx:   c.Request.Context(),
			ID:    c.Param(internal.IDParam),
			Query: c.Request.URL.Query(),
			Body:  body.MustGet(),
		})
		c.JSON(resp.Status, resp.Body)
	}
}
