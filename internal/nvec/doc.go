// Package nvec provides dense N-dimensional storage and coordinate enumeration.
//
// Both types share one ordering: row-major, last dimension fastest. Array
// encoding, array formatting and broadcast expansion all depend on that
// ordering, so it must not change.
package nvec
