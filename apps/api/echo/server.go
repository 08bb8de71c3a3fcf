package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/attendance"
	"github.com/tkceria/ceria/core/grade"
	"github.com/tkceria/ceria/core/news"
	"github.com/tkceria/ceria/core/payment"
	"github.com/tkceria/ceria/core/student"
	"github.com/tkceria/ceria/core/user"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		SignalShutdown func()
		// Metrics is served on /metrics when set.
		Metrics http.Handler
	}

	Deps struct {
		UserSvc       user.Service
		StudentSvc    student.Service
		GradeSvc      grade.Service
		AttendanceSvc attendance.Service
		PaymentSvc    payment.Service
		NewsSvc       news.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts   *Options
		deps   *Deps
		tokens *TokenIssuer
		app    *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options, deps *Deps) Server {
	s := &server{
		opts:   opts,
		deps:   deps,
		tokens: NewTokenIssuer(opts.Conf),
		app:    echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf
	signalShutdown := s.opts.SignalShutdown
	if signalShutdown == nil {
		signalShutdown = func() {}
	}

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, signalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode
	if conf.Debug {
		s.app.Logger.SetLevel(log.DEBUG)
	}

	s.app.GET("/", home)
	if s.opts.Metrics != nil {
		s.app.GET("/metrics", echo.WrapHandler(s.opts.Metrics))
	}

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.tokens.jwtConfig())
	auth := &authAPI{tokens: s.tokens, usrSvc: s.deps.UserSvc}

	registerUserAPI(v1, jwt, auth, s.deps.UserSvc, s.opts.Validate)
	registerStudentAPI(v1, jwt, auth, s.deps.StudentSvc, s.opts.Validate)
	registerGradeAPI(v1, jwt, auth, s.deps.GradeSvc, s.deps.StudentSvc, s.opts.Validate)
	registerAttendanceAPI(v1, jwt, auth, s.deps.AttendanceSvc, s.deps.StudentSvc, s.opts.Validate)
	registerPaymentAPI(v1, jwt, auth, s.deps.PaymentSvc, s.deps.StudentSvc, s.opts.Validate)
	registerNewsAPI(v1, jwt, auth, s.deps.NewsSvc, s.opts.Validate)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Selamat datang di TK Ceria API!")
}
