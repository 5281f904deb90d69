// Package api exposes a window Engine over HTTP using gin.
//
// Routes:
//
//	GET  /numbers/:category  fetch a batch and update the window
//	GET  /window             current window state
//	PUT  /window/size        change the window capacity
//	GET  /probe              check every feed concurrently
//	GET  /probe/:category    check a feed without touching the window
//	GET  /health             liveness
package api
