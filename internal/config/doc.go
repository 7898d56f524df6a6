// Package config provides configuration management for intifacectl.
//
// The configuration is a single JSON document, intiface.config.json, stored
// in the IntifaceDesktop directory under the user's config directory. Its
// keys match the file written by Intiface Desktop, so an existing file can be
// reused as is.
//
// # Configuration Layers
//
// Values are resolved in the following order, later sources winning:
//
//  1. Defaults (see Default)
//  2. The JSON document. Comments and trailing commas are accepted, so the
//     file can be edited by hand.
//  3. An optional intifacectl.env file next to the document
//  4. Environment variables named INTIFACECTL_<KEY>, with nested keys joined
//     by an underscore, e.g. INTIFACECTL_CONTROL_API_PORT=9000
//
// Environment overrides apply to the running process only. Save writes the
// struct it is given, and Set edits the document without them.
//
// # Engine Settings
//
// Most fields are passed to the engine on its command line: the server name,
// websocket port and interface scope, log level, ping timeout, and one
// switch per device transport. The remaining fields belong to intifacectl
// itself: where the engine binary lives, how long to wait before killing an
// engine that ignores a stop request, notifications, the control API and the
// log file.
package config
