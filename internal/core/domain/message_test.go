package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroupScores_SummaryProbs(t *testing.T) {
	g := GroupScores{
		GroupID: "test1.csv",
		Scores: []MessageScore{
			{MessageID: 1, Prob: 0.75},
			{MessageID: 2, Prob: 0.5},
		},
		Undefined: []int64{3},
	}

	probs := g.SummaryProbs("en")

	assert.Equal(t, []SummaryProb{
		{MessageID: 1, Lang: "en", Prob: 0.75},
		{MessageID: 2, Lang: "en", Prob: 0.5},
	}, probs)
}

func TestGroupScores_SummaryProbs_Empty(t *testing.T) {
	g := GroupScores{GroupID: "empty.csv"}

	probs := g.SummaryProbs("en")

	assert.NotNil(t, probs)
	assert.Empty(t, probs)
}
