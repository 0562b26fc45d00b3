// Package core holds the domain contracts shared by every memstream package:
// the Record type, the Stream store interface, the optional VectorIndex
// contract and the error taxonomy. Implementations live in sibling packages
// (stream, retrieval/index, ...) and are selected at wiring time; depending on
// core keeps backends pluggable without dependency cycles.
package core
