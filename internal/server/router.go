package server

import (
	"net/http"
)

// BasicRouter is the [Router] used by the callback server.
//
// Routes are registered as GET patterns on an [http.ServeMux], so other methods get a 405.
// Middleware wraps the whole mux and therefore also sees unmatched requests.
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
	handler     http.Handler
}

// NewBasicRouter creates a new [BasicRouter] instance.
func NewBasicRouter() *BasicRouter {
	mux := http.NewServeMux()
	return &BasicRouter{mux: mux, handler: mux}
}

// Use appends middleware. The first one added is the outermost.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
	r.handler = r.mux
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		r.handler = r.middlewares[i](r.handler)
	}
}

// Handler registers handler for each of its routes.
func (r *BasicRouter) Handler(handler Handler) {
	for _, route := range handler.Routes() {
		r.mux.Handle("GET "+route, handler)
	}
}

// ServeHTTP implements [http.Handler].
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}
