package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

// Request is a support struct to pool more request related information.
type Request struct {
	// Request is the http request.
	Request *http.Request

	// URLVars contains the URL variables extracted by the gorilla mux.
	URLVars map[string]string
}

func newRequest(r *http.Request) *Request {
	return &Request{
		Request: r,
		URLVars: mux.Vars(r),
	}
}

// Ctx is a shortcut to access the request context.
func (ar *Request) Ctx() context.Context {
	return ar.Request.Context()
}
