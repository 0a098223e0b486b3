// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the primary execution lifecycle: load a
// graph description, build it on a graph.Manager, evaluate it tick by tick
// and tear it down, decoupled from any specific entrypoint like a CLI.
package app
