// Package logx configures the poll daemon's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - An in-memory ring buffer sink feeding the web log feed and export-logs
package logx
