// Package testutil holds helpers shared by the node module and application
// tests: a graph harness over a set of modules, a recording sink node, log
// capture and temporary graph files.
package testutil
