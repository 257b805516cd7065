// Package authapi serves the credential-issuing endpoints: login, register
// and current-user. It is the only place that talks to the credential store;
// the proxy trusts tokens alone.
package authapi

import (
	"go.uber.org/zap"

	"parapet/pkg/token"
	"parapet/pkg/users"
)

// App is the auth endpoint container: shared deps only, request-scoped work
// uses context.
type App struct {
	log       *zap.SugaredLogger
	store     users.Store
	issuer    *token.Issuer
	validator *token.Validator
	throttle  *Throttle
}

func New(log *zap.SugaredLogger, store users.Store, issuer *token.Issuer, validator *token.Validator, throttle *Throttle) *App {
	return &App{log: log, store: store, issuer: issuer, validator: validator, throttle: throttle}
}
