// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when constructing memory records and controlling time.
// These helpers are intentionally minimal and are not intended for production
// usage.
package testutil
