// Package math32 provides float32 kernels shared by the training and
// inference paths. All implementations are portable Go; they are written so
// the compiler can vectorize the hot loops.
package math32
