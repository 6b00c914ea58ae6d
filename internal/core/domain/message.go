package domain

// Message is a single text message as stored in the sink.
// Messages are created once by ingestion and never modified.
type Message struct {
	// ID is assigned by the sink on insert.
	ID int64

	// GroupID is the originating group, usually the source file name.
	GroupID string

	// Text is the message content. Never empty.
	Text string
}

// NewMessage is a message that has not been written to the sink yet.
type NewMessage struct {
	GroupID string
	Text    string
}

// SummaryProb is the representativeness score of one message for one language.
type SummaryProb struct {
	// ID is assigned by the sink on insert.
	ID int64

	// MessageID references Message.ID.
	MessageID int64

	// Lang is the language tag of the embedding model used.
	Lang string

	// Prob is the cosine similarity to the group's meaning, in [-1, 1].
	Prob float32
}

// MessageScore pairs a message with its computed score.
type MessageScore struct {
	MessageID int64
	Prob      float64
}

// GroupScores is the result of scoring one group.
type GroupScores struct {
	// GroupID identifies the scored group.
	GroupID string

	// Policy is the name of the scoring policy used.
	Policy string

	// Scores holds one entry per message with a defined score, in input order.
	Scores []MessageScore

	// Undefined lists messages whose score could not be computed
	// (zero embedding vector).
	Undefined []int64

	// Failed maps message IDs to the error that prevented embedding them.
	Failed map[int64]error
}

// SummaryProbs converts the defined scores into sink records for lang.
func (g *GroupScores) SummaryProbs(lang string) []SummaryProb {
	probs := make([]SummaryProb, 0, len(g.Scores))
	for _, s := range g.Scores {
		probs = append(probs, SummaryProb{
			MessageID: s.MessageID,
			Lang:      lang,
			Prob:      float32(s.Prob),
		})
	}
	return probs
}

// StoreCounts summarises sink contents.
type StoreCounts struct {
	Messages int
	Groups   int

	// SummaryProbs counts score rows per language.
	SummaryProbs map[string]int
}
