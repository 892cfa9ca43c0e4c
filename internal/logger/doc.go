// Package logger wraps zap for the node and its clients.
//
// A global sugared logger writes console-formatted entries to stdout. Every
// helper takes a context: loggers enriched with a name or key-value pairs
// travel through the context (ToContext/FromContext/WithName/WithKV), so
// evaluators, transports and commands log with their own scope.
package logger
