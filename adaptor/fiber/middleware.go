package fiber

import (
	"net/url"

	"github.com/gofiber/fiber/v3"
	"github.com/kcmvp/basemodel/internal"
)

// Register mounts the CRUD endpoints of the model built by factory under path.
func Register(r fiber.Router, path string, factory internal.Factory) {
	res := internal.NewResource(factory)
	item := path + "/:" + internal.IDParam
	r.Get(path, handle(res.List))
	r.Get(path+"/count", handle(res.Count))
	r.Get(path+"/dropdown", handle(res.Dropdown))
	r.Get(item, handle(res.Get))
	r.Post(path, handle(res.Create))
	r.Put(item, handle(res.Update))
	r.Delete(item, handle(res.Delete))
}

func handle(fn func(internal.Request) internal.Response) fiber.Handler {
	return func(c fiber.Ctx) error {
		query, err := url.ParseQuery(string(c.Request().URI().QueryString()))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		resp := fn(internal.Request{
			Ctx:   c.RequestCtx(),
			ID:    c.Params(internal.IDParam),
			Query: query,
			Body:  c.Body(),
		})
		return c.Status(resp.Status).JSON(resp.Body)
	}
}
