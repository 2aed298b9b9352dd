package controllers

import (
	"context"
	"net/http"

	"go-storefront/utils"
)

// PrimaryReporter exposes the state of a collection's primary store
type PrimaryReporter interface {
	PrimaryState() string
}

// HealthController reports liveness and which store is serving
type HealthController struct {
	Collections map[string]PrimaryReporter

	// Ping checks the database directly. Nil when no database is configured.
	Ping func(ctx context.Context) error
}

// NewHealthController creates a new HealthController
func NewHealthController(collections map[string]PrimaryReporter) *HealthController {
	return &HealthController{Collections: collections}
}

// Health answers 200 as long as the process serves requests. primary is "up"
// when every collection reaches Mongo, "disabled" without Mongo and "down"
// when any collection is being served from files. database is the result of a
// live ping and is omitted without one.
func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	primary := "disabled"
	detail := map[string]string{}
	for name, c := range hc.Collections {
		state := c.PrimaryState()
		detail[name] = state
		switch {
		case state == "down":
			primary = "down"
		case state == "up" && primary == "disabled":
			primary = "up"
		}
	}
	body := map[string]interface{}{
		"status":      "ok",
		"primary":     primary,
		"collections": detail,
	}
	if hc.Ping != nil {
		body["database"] = "reachable"
		if err := hc.Ping(r.Context()); err != nil {
			body["database"] = "unreachable"
		}
	}
	utils.RespondJSON(w, http.StatusOK, body)
}
