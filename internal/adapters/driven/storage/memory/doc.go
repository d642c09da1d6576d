// Package memory provides in-memory implementations of the storage ports.
// They back tests and single-process development runs.
package memory
