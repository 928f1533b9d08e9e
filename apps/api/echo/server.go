package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/eduflow/eduflow/core"
	"github.com/eduflow/eduflow/core/course"
	"github.com/eduflow/eduflow/core/enrollment"
	"github.com/eduflow/eduflow/core/user"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		DisableReqLogs bool

		UserSvc    user.Service
		CourseSvc  course.Service
		EnrollSvc  enrollment.Service
		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(context.Context) error
	}

	server struct {
		opts     *Options
		app      *echo.Echo
		shutdown chan struct{}
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	initJWTConfig(opts.Conf)
	s := &server{
		opts:     opts,
		app:      echo.New(),
		shutdown: make(chan struct{}, 1),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerUserAPI(v1, jwt, s.opts.UserSvc, s.opts.Validate, s.opts.Translator)
	registerCourseAPI(v1, jwt, s.opts.CourseSvc, s.opts.UserSvc, s.opts.Validate)
	registerEnrollmentAPI(v1, jwt, s.opts.EnrollSvc, s.opts.CourseSvc)
}

func (s *server) Start() {
	go func() {
		<-s.shutdown
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.Conf.Server.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			s.app.Logger.Error(err)
		}
	}()
	s.app.Logger.Fatal(s.app.Start(s.opts.Conf.Server.Addr))
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

// signalShutdown lets the error handler request a graceful stop.
func (s *server) signalShutdown() {
	select {
	case s.shutdown <- struct{}{}:
	default:
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to EduFlow API!")
}
