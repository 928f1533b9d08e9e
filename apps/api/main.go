package main

import (
	"expvar"
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/dig"

	"github.com/eduflow/eduflow/apps/api/di"
	echoapi "github.com/eduflow/eduflow/apps/api/echo"
	"github.com/eduflow/eduflow/core"
	"github.com/eduflow/eduflow/core/course"
	"github.com/eduflow/eduflow/core/user"
	appfs "github.com/eduflow/eduflow/fs"
)

func main() {
	c := di.New()

	err := c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		dbLoggerParam di.DBLoggerParam,
		db *sqlx.DB,
		validate *validator.Validate,
		translator ut.Translator,
		server echoapi.Server,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.InitValidators(validate, translator)
		user.InitValidators(validate, translator)
		course.InitValidators(validate, translator)

		core.ParseEmailTemplates(appfs.FS, conf, apiLogger)

		dbLogger := dbLoggerParam.Logger
		defer func() {
			if err := db.Close(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		defer apiLogger.Info("Application stopped")

		// =========================================================================
		// Start Debug Service
		//
		// /debug/vars - Added to the default mux by importing the expvar package.

		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start API Service

		apiLogger.Info(fmt.Sprintf("API listening on %s", conf.Server.Addr))
		server.Start()
	})
	if err != nil {
		// dig wraps its own errors; surface the root cause
		panic(dig.RootCause(err))
	}
}
