// Package api serves the local control API of a running intifacectl.
//
// The API is an MCP server on an SSE transport, bound to localhost. It
// exposes three tools:
//
//   - engine_status reports the engine state, the connected client and the
//     connected devices.
//   - engine_start launches the engine with the configuration on disk.
//   - engine_stop asks the running engine to shut down.
//
// Every tool answers with the same JSON Status document, so clients can
// render the result of a start or stop the same way as a status query.
// Failures are returned as tool errors rather than protocol errors.
//
// The package depends on the engine only through the Engine interface,
// which the supervisor satisfies.
package api
