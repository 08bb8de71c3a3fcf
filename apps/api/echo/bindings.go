package echoapi

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/edit"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads a comma-separated "ordering" query param; a leading "-" sorts descending.
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

type (
	cellsRequest struct {
		Cells []edit.CellInput `json:"cells" validate:"required,dive"`
	}

	successResponse struct {
		Success string `json:"success"`
	}
)

func (cr *cellsRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(cr)
}
