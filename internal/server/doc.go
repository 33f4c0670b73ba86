// Package server provides the HTTP routing, middleware, and OAuth callback handling used by `ptx auth spotify`.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [RequestLogger] is the only middleware in use.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback. It validates the state parameter,
// hands the code to a [CodeExchanger], and sends the result through a channel. Only the first
// callback is processed.
//
// # Callback Server
//
// [AwaitCallback] binds the configured host and port (127.0.0.1:3000 by default), serves the handler
// until a result arrives or the timeout passes, then shuts the server down.
package server
