// Package weightpress compresses small neural networks by weight clustering.
//
// A pipeline run trains an MNIST classifier, constrains each layer's weights
// to a shared centroid table, fine-tunes the centroids to recover accuracy,
// converts the result to the compact frozen inference format (optionally with
// 8-bit weight quantization), and measures what that bought: compressed
// artifact sizes next to the accuracy cost, recorded in a run manifest.
//
// Basic usage:
//
//	run, err := weightpress.New(
//	    weightpress.WithDataDir("./data"),
//	    weightpress.WithOutDir("./out"),
//	    weightpress.WithCentroids(16),
//	    weightpress.WithQuantization(),
//	).Run(ctx)
package weightpress
