// Package domain defines the core business entities for summaryprobs.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Message: A single text message belonging to a group (source file)
//   - SummaryProb: A message's representativeness score for one language
//   - GroupScores: The scoring result for one group
//   - RunReport: The outcome of a pipeline run
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
