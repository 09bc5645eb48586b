package domain

// Category names a knowledge source. Description only steers decomposition.
type Category struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Fragment is one retrieved context piece, ranked most relevant first by
// the retriever that produced it.
type Fragment struct {
	ID       string  `json:"id"`
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
	Source   string  `json:"source,omitempty"`
	Category string  `json:"category,omitempty"`
}

type SubQuestion struct {
	Category string `json:"category"`
	Text     string `json:"text"`
}

type SubAnswer struct {
	SubQuestion
	Answer       string     `json:"answer"`
	Unanswerable bool       `json:"unanswerable,omitempty"`
	Fragments    []Fragment `json:"fragments,omitempty"`
}

type QueryResult struct {
	Query      string      `json:"query"`
	Answer     string      `json:"answer"`
	SubAnswers []SubAnswer `json:"sub_answers"`
}

type TraceStage string

const (
	TraceStageDecompose TraceStage = "decompose"
	TraceStageRetrieve  TraceStage = "retrieve"
	TraceStageAnswer    TraceStage = "answer"
	TraceStageMerge     TraceStage = "merge"
)

// TraceRecord is emitted in verbose mode. It is diagnostic only.
type TraceRecord struct {
	Stage    TraceStage `json:"stage"`
	Category string     `json:"category,omitempty"`
	Question string     `json:"question,omitempty"`
	Context  string     `json:"context,omitempty"`
	Answer   string     `json:"answer,omitempty"`
}
