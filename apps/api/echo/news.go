package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tkceria/ceria/core/news"
)

type newsAPI struct {
	auth     *authAPI
	svc      news.Service
	validate *validator.Validate
}

func registerNewsAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authAPI, svc news.Service, validate *validator.Validate) {
	api := newsAPI{auth: auth, svc: svc, validate: validate}

	// public
	ng := g.Group("/news")
	ng.GET("", api.queryPublished)
	ng.GET("/:slug", api.retrievePublished)

	// admin
	ng.POST("", api.create, jwt, adminMiddleware(auth))
	ng.PUT("/:slug", api.update, jwt, adminMiddleware(auth))
	ng.DELETE("/:slug", api.destroy, jwt, adminMiddleware(auth))

	// drafts included
	ag := g.Group("/admin/news", jwt, adminMiddleware(auth))
	ag.GET("", api.query)
	ag.GET("/:slug", api.retrieve)
}

func (api *newsAPI) list(ctx echo.Context, publishedOnly bool) error {
	filter := new(news.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []news.News{})
	}
	filter.PublishedOnly = publishedOnly

	items, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying news")
	}
	if items == nil {
		items = []news.News{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *newsAPI) queryPublished(ctx echo.Context) error {
	return api.list(ctx, true)
}

func (api *newsAPI) query(ctx echo.Context) error {
	return api.list(ctx, false)
}

func (api *newsAPI) retrievePublished(ctx echo.Context) error {
	n, err := api.svc.GetBySlug(ctx.Request().Context(), ctx.Param("slug"), false)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *newsAPI) retrieve(ctx echo.Context) error {
	n, err := api.svc.GetBySlug(ctx.Request().Context(), ctx.Param("slug"), true /* drafts */)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *newsAPI) create(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	var data news.NewNews
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNews")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	n, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating news")
	}
	return ctx.JSON(http.StatusCreated, n)
}

func (api *newsAPI) update(ctx echo.Context) error {
	n, err := api.svc.GetBySlug(ctx.Request().Context(), ctx.Param("slug"), true /* drafts */)
	if err != nil {
		return err
	}
	var data news.NewNews
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNews")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	n, err = api.svc.Update(ctx.Request().Context(), n, data)
	if err != nil {
		return errors.Wrap(err, "updating news")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *newsAPI) destroy(ctx echo.Context) error {
	n, err := api.svc.GetBySlug(ctx.Request().Context(), ctx.Param("slug"), true /* drafts */)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), n.ID); err != nil {
		return errors.Wrap(err, "deleting news")
	}
	return ctx.NoContent(http.StatusNoContent)
}
