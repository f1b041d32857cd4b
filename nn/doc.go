// Package nn implements the small feed-forward networks weightpress trains
// and compresses: convolution, pooling, flatten and dense layers with plain
// backpropagation, softmax cross-entropy loss, SGD/Adam optimizers and a
// minibatch trainer.
//
// Layers operate on single samples; the trainer provides minibatching and
// data-parallel gradient workers. This keeps layer implementations small and
// makes the clustering wrapper in package cluster straightforward.
package nn
