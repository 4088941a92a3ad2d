// Package logging provides opt-in file-based logging with rotation for searchmcp.
// When the --debug flag is set, comprehensive logs are written to ~/.searchmcp/logs/
// for debugging and troubleshooting.
//
// In MCP server mode logs go to file only, since stdout carries the JSON-RPC
// stream and stderr may be captured by the client.
package logging
