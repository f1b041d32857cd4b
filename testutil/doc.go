// Package testutil provides seeded random data generators for tests and
// benchmarks. Production code must not depend on it.
package testutil
