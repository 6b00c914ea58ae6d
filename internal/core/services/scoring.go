package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/custodia-labs/summaryprobs/internal/core/domain"
	"github.com/custodia-labs/summaryprobs/internal/core/ports/driven"
	"github.com/custodia-labs/summaryprobs/internal/core/vecmath"
	"github.com/custodia-labs/summaryprobs/internal/logger"
)

// ScoringPolicy turns a group's vectors into one score per vector.
// A NaN score means the score is undefined for that vector.
type ScoringPolicy interface {
	// Name identifies the policy in config and logs.
	Name() domain.PolicyName

	// Score returns one score per input vector, in input order.
	Score(vectors [][]float32) ([]float64, error)
}

// Ensure policies implement the interface.
var (
	_ ScoringPolicy = CentroidPolicy{}
	_ ScoringPolicy = PairwiseMeanPolicy{}
)

// NewScoringPolicy returns the policy registered under name.
func NewScoringPolicy(name domain.PolicyName) (ScoringPolicy, error) {
	switch name {
	case domain.PolicyCentroid, "":
		return CentroidPolicy{}, nil
	case domain.PolicyPairwiseMean:
		return PairwiseMeanPolicy{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown scoring policy %q", domain.ErrInvalidInput, name)
	}
}

// CentroidPolicy scores each vector by its cosine similarity to the
// element-wise mean of the group. O(N·D).
type CentroidPolicy struct{}

// Name returns the policy name.
func (CentroidPolicy) Name() domain.PolicyName { return domain.PolicyCentroid }

// Score computes the centroid once and compares every vector against it.
func (CentroidPolicy) Score(vectors [][]float32) ([]float64, error) {
	centroid, err := vecmath.Centroid(vectors)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(vectors))
	for i, v := range vectors {
		sim, err := vecmath.CosineSimilarity(centroid, v)
		if err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}
		scores[i] = sim
	}
	return scores, nil
}

// PairwiseMeanPolicy scores each vector by its mean cosine similarity to
// every other vector in the group. O(N²·D); kept to cross-check the
// centroid policy against the exact definition.
//
// A group of one scores 1.0. Pairs involving a zero vector are left out
// of the mean; a vector with no defined pair is undefined.
type PairwiseMeanPolicy struct{}

// Name returns the policy name.
func (PairwiseMeanPolicy) Name() domain.PolicyName { return domain.PolicyPairwiseMean }

// Score computes the upper triangle of the similarity matrix once.
func (PairwiseMeanPolicy) Score(vectors [][]float32) ([]float64, error) {
	n := len(vectors)
	if n == 0 {
		return nil, domain.ErrEmptyGroup
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d",
				domain.ErrDimensionMismatch, i, len(v), dim)
		}
	}

	if n == 1 {
		if vecmath.IsZero(vectors[0]) {
			return []float64{math.NaN()}, nil
		}
		return []float64{1}, nil
	}

	sums := make([]float64, n)
	counts := make([]int, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim, err := vecmath.CosineSimilarity(vectors[i], vectors[j])
			if err != nil {
				return nil, fmt.Errorf("vectors %d and %d: %w", i, j, err)
			}
			if math.IsNaN(sim) {
				continue
			}
			sums[i] += sim
			sums[j] += sim
			counts[i]++
			counts[j]++
		}
	}

	scores := make([]float64, n)
	for i := range scores {
		if counts[i] == 0 {
			scores[i] = math.NaN()
			continue
		}
		scores[i] = sums[i] / float64(counts[i])
	}
	return scores, nil
}

// EmbeddedGroup holds the vectors of a group's successfully embedded messages.
type EmbeddedGroup struct {
	GroupID string

	// IDs and Vectors are parallel slices in message order.
	IDs     []int64
	Vectors [][]float32

	// Failed maps message IDs to their embedding error.
	Failed map[int64]error
}

// ScoringEngine embeds a group's messages and ranks them with a policy.
type ScoringEngine struct {
	policy ScoringPolicy
}

// NewScoringEngine creates a scoring engine. A nil policy means CentroidPolicy.
func NewScoringEngine(policy ScoringPolicy) *ScoringEngine {
	if policy == nil {
		policy = CentroidPolicy{}
	}
	return &ScoringEngine{policy: policy}
}

// Policy returns the engine's scoring policy.
func (e *ScoringEngine) Policy() ScoringPolicy {
	return e.policy
}

// Score embeds and ranks one group.
func (e *ScoringEngine) Score(
	ctx context.Context,
	embedder driven.Embedder,
	groupID string,
	messages []domain.Message,
) (*domain.GroupScores, error) {
	group, err := e.Embed(ctx, embedder, groupID, messages)
	if err != nil {
		return nil, err
	}
	return e.Rank(group)
}

// Embed embeds every message independently. A failing message is recorded
// in Failed and does not affect the others. An error wrapping
// domain.ErrEmbeddingUnavailable, or a cancelled context, aborts the group.
func (e *ScoringEngine) Embed(
	ctx context.Context,
	embedder driven.Embedder,
	groupID string,
	messages []domain.Message,
) (*EmbeddedGroup, error) {
	group := &EmbeddedGroup{
		GroupID: groupID,
		IDs:     make([]int64, 0, len(messages)),
		Vectors: make([][]float32, 0, len(messages)),
		Failed:  make(map[int64]error),
	}

	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vec, err := embedder.Embed(ctx, msg.Text)
		if err != nil {
			if errors.Is(err, domain.ErrEmbeddingUnavailable) {
				return nil, fmt.Errorf("embed message %d: %w", msg.ID, err)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.Debug("Embedding failed for message %d in %s: %v", msg.ID, groupID, err)
			group.Failed[msg.ID] = err
			continue
		}

		group.IDs = append(group.IDs, msg.ID)
		group.Vectors = append(group.Vectors, vec)
	}

	return group, nil
}

// Rank scores an embedded group. Messages whose score is undefined are
// listed in Undefined instead of Scores.
func (e *ScoringEngine) Rank(group *EmbeddedGroup) (*domain.GroupScores, error) {
	if len(group.Vectors) == 0 {
		return nil, fmt.Errorf("group %s: %w", group.GroupID, domain.ErrEmptyGroup)
	}

	scores, err := e.policy.Score(group.Vectors)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", group.GroupID, err)
	}

	result := &domain.GroupScores{
		GroupID: group.GroupID,
		Policy:  e.policy.Name().String(),
		Scores:  make([]domain.MessageScore, 0, len(scores)),
		Failed:  group.Failed,
	}
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			result.Undefined = append(result.Undefined, group.IDs[i])
			continue
		}
		result.Scores = append(result.Scores, domain.MessageScore{
			MessageID: group.IDs[i],
			Prob:      s,
		})
	}

	return result, nil
}
