// Package cluster implements weight clustering: constraining a layer's
// weights to a small fixed set of shared centroid values so the model
// compresses well after serialization.
//
// Apply wraps each dense/conv layer of a network with clustering state
// (a centroid table plus one index per weight). During fine-tuning the
// centroids are the trainable parameters: per-weight gradients fold into the
// centroid each weight is assigned to. Cluster associations are fixed when
// Apply runs and preserved through fine-tuning. Strip removes the auxiliary
// state and materializes the final weights.
package cluster
