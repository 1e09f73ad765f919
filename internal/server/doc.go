// Package server provides HTTP routing, middleware and the handlers of the champion upload service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [Logging], [Recover] and [RateLimit] are the stock middleware; [RateLimit] uses a token bucket from
// golang.org/x/time/rate.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering and exact path matching.
//
// # Upload Flow Handler
//
// [FlowHandler] serves "/" and the path of the configured OAuth redirect URI ([CallbackPath]); both dispatch on the
// query alone:
//
//   - ?championName=<name> validates the champion and redirects to the Dropbox authorize page
//   - ?code=<code>&state=<state> resumes the pending flow and redirects to the Dropbox preview
//   - ?error=<reason>&state=<state> ends the pending flow when the user refused consent
//
// Failures are reported as short plain-text bodies and logged with their stage.
//
// # Run History
//
// [RunsHandler] serves "/runs" as JSON, newest first.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes
// and the accepted method, allowing handlers to encapsulate route definitions within the implementation.
//
// [Server] runs the router until its context is cancelled and then shuts down gracefully.
package server
