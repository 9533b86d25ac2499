// Package main hosts the camerasync CLI entrypoint and command graph.
//
// Commands load the configuration once, build a logger from it and hand both
// to the internal packages. Long running commands stop on SIGINT or SIGTERM.
package main
