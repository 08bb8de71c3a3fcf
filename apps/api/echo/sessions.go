package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tkceria/ceria/core/edit"
	"github.com/tkceria/ceria/core/user"
)

// sessionService is the editing-session surface shared by grading and attendance.
type sessionService interface {
	Sheet(ctx echo.Context, usr user.User, sid string) (edit.Sheet, error)
	SetCells(ctx echo.Context, usr user.User, sid string, cells []edit.CellInput) (edit.Sheet, error)
	Save(ctx echo.Context, usr user.User, sid string) (edit.Result, edit.Sheet, error)
	Close(ctx echo.Context, usr user.User, sid string) error
}

// sessionAPI serves `/:sid` routes of an editing-session group.
type sessionAPI struct {
	auth     *authAPI
	svc      sessionService
	validate *validator.Validate
}

type saveResponse struct {
	edit.Result
	Sheet   edit.Sheet `json:"sheet"`
	Warning string     `json:"warning,omitempty"`
}

func (api *sessionAPI) register(g *echo.Group) {
	g.GET("/:sid", api.sheet)
	g.PUT("/:sid/cells", api.setCells)
	g.POST("/:sid/save", api.save)
	g.DELETE("/:sid", api.close)
}

func (api *sessionAPI) sheet(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	sheet, err := api.svc.Sheet(ctx, usr, ctx.Param("sid"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sheet)
}

func (api *sessionAPI) setCells(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	var data cellsRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to cellsRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	sheet, err := api.svc.SetCells(ctx, usr, ctx.Param("sid"), data.Cells)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sheet)
}

func (api *sessionAPI) save(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	res, sheet, err := api.svc.Save(ctx, usr, ctx.Param("sid"))
	resp := saveResponse{Result: res, Sheet: sheet}
	if err != nil {
		if !edit.IsReloadError(err) {
			return errors.Wrap(err, "saving session")
		}
		// the writes are done; the sheet may be stale until the next save
		ctx.Logger().Errorf("%+v", err)
		resp.Warning = "changes were saved but the sheet could not be refreshed"
	}
	if resp.FailedKeys == nil {
		resp.FailedKeys = []edit.Key{}
	}
	if resp.Skipped == nil {
		resp.Skipped = []edit.Key{}
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *sessionAPI) close(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Close(ctx, usr, ctx.Param("sid")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
