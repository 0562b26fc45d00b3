// Package stream contains concrete core.Stream implementations. The store
// contract and the Record type reside in the core package; depend on
// core.Stream in your code and select an implementation (like the in-memory
// stream below) at wiring time.
//
// The package also provides a JSON snapshot codec so a stream can be
// serialized record-by-record and restored with full fidelity; the sqlite
// subpackage builds durable persistence on top of it.
package stream
