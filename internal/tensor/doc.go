// Package tensor provides the batched numeric substrate used by the beam
// transport core.
//
// A [Tensor] is a row-major float64 array with a [Shape]. Shapes broadcast
// against each other with the usual trailing-dimension rules:
//
//   - dimensions are aligned from the right
//   - a dimension of size 1 stretches to match the other operand
//   - any other mismatch is a [*BroadcastError]
//
// All broadcasting in the module goes through [BroadcastShapes] and
// [Indexer], so beams, elements and segments agree on one rule set.
//
// # Immutability
//
// Operations never write into their inputs. Values returned by [Tensor.Raw]
// share storage with the tensor and must be treated as read-only.
package tensor
