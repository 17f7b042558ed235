// Package http exposes the demo catalogue over a JSON API.
//
// Routes:
//   - GET    /                        service banner
//   - GET    /health                  catalogue counts
//   - GET    /api/demos               every demo with its entry file
//   - GET    /api/demos/:id           state of the demo, opened on first use
//   - POST   /api/demos/:id/source    schedule an edit (path to text map), 202
//   - DELETE /api/demos/:id           close the demo's controller
//
// Preview markup is sanitised with bluemonday before it leaves the server.
package http
