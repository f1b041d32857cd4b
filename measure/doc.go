// Package measure quantifies what compression bought: the size of model
// artifacts under standard compressors, and the accuracy cost of clustering
// and quantization, including exactly which samples flipped between two
// model variants.
package measure
