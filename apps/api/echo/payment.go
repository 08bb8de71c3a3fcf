package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tkceria/ceria/core/payment"
	"github.com/tkceria/ceria/core/student"
	"github.com/tkceria/ceria/core/user"
)

type paymentAPI struct {
	auth     *authAPI
	access   access
	svc      payment.Service
	validate *validator.Validate
}

func registerPaymentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authAPI,
	svc payment.Service,
	studentSvc student.Service,
	validate *validator.Validate,
) {
	api := paymentAPI{
		auth:     auth,
		access:   access{auth: auth, students: studentSvc},
		svc:      svc,
		validate: validate,
	}

	tg := g.Group("/payment-types", jwt)
	tg.GET("", api.queryTypes)
	tg.POST("", api.createType, adminMiddleware(auth))
	tg.GET("/:id", api.retrieveType)
	tg.PUT("/:id", api.updateType, adminMiddleware(auth))
	tg.DELETE("/:id", api.destroyType, adminMiddleware(auth))

	pg := g.Group("/payments", jwt, roleMiddleware(auth, user.RoleAdmin, user.RoleParent))
	pg.GET("", api.query)
	pg.POST("", api.create, adminMiddleware(auth))
	pg.GET("/:id", api.retrieve)
	pg.DELETE("/:id", api.destroy, adminMiddleware(auth))
	pg.POST("/:id/pay", api.pay, adminMiddleware(auth))
}

// Payment types

func (api *paymentAPI) queryTypes(ctx echo.Context) error {
	types, err := api.svc.QueryTypes(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying payment types")
	}
	if types == nil {
		types = []payment.PaymentType{}
	}
	return ctx.JSON(http.StatusOK, types)
}

func (api *paymentAPI) createType(ctx echo.Context) error {
	var data payment.NewPaymentType
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPaymentType")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	pt, err := api.svc.CreateType(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating payment type")
	}
	return ctx.JSON(http.StatusCreated, pt)
}

func (api *paymentAPI) retrieveType(ctx echo.Context) error {
	pt, err := api.svc.GetType(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pt)
}

func (api *paymentAPI) updateType(ctx echo.Context) error {
	pt, err := api.svc.GetType(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	var data payment.NewPaymentType
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPaymentType")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	pt, err = api.svc.UpdateType(ctx.Request().Context(), pt, data)
	if err != nil {
		return errors.Wrap(err, "updating payment type")
	}
	return ctx.JSON(http.StatusOK, pt)
}

func (api *paymentAPI) destroyType(ctx echo.Context) error {
	if err := api.svc.DeleteType(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting payment type")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Payments

func (api *paymentAPI) query(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	filter := new(payment.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []payment.Payment{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	if usr.IsParent() {
		children, err := api.access.children(ctx, usr)
		if err != nil {
			return err
		}
		filter.StudentIDs = intersect(filter.StudentIDs, student.IDs(children))
		if len(filter.StudentIDs) == 0 {
			return ctx.JSON(http.StatusOK, []payment.Payment{})
		}
	}

	payments, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if payments == nil {
		payments = []payment.Payment{}
	}
	return ctx.JSON(http.StatusOK, payments)
}

// intersect keeps the requested ids that are allowed; no request means all allowed ids.
func intersect(requested, allowed []string) []string {
	if len(requested) == 0 {
		return allowed
	}
	ok := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		ok[id] = true
	}
	ids := make([]string, 0, len(requested))
	for _, id := range requested {
		if ok[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

func (api *paymentAPI) create(ctx echo.Context) error {
	var data payment.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	p, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating payment")
	}
	return ctx.JSON(http.StatusCreated, p)
}

// payment loads the payment of the `:id` param; parents only see the payments of their children.
func (api *paymentAPI) payment(ctx echo.Context) (payment.Payment, error) {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return payment.Payment{}, err
	}
	p, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return payment.Payment{}, err
	}
	if usr.IsAdmin() {
		return p, nil
	}
	st, err := api.access.students.GetStudent(ctx.Request().Context(), p.StudentID)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return payment.Payment{}, payment.ErrNotFound
		}
		return payment.Payment{}, errors.Wrap(err, "finding student by ID")
	}
	if ok, err := api.access.canSeeStudent(ctx, usr, st); err != nil || !ok {
		if err != nil {
			return payment.Payment{}, err
		}
		return payment.Payment{}, payment.ErrNotFound
	}
	return p, nil
}

func (api *paymentAPI) retrieve(ctx echo.Context) error {
	p, err := api.payment(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *paymentAPI) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting payment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *paymentAPI) pay(ctx echo.Context) error {
	p, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	var data payment.PayRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PayRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	p, err = api.svc.Pay(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "paying")
	}
	return ctx.JSON(http.StatusOK, p)
}
