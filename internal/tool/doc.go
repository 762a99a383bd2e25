// Package tool implements the device capability registry.
//
// A Tool is a named, remotely invocable capability with a typed parameter
// schema and a handler. The Registry keeps tools in insertion order and
// serves the cursor-based pagination used by the tools/list method.
package tool
