package model

const (
	VoteUp   = "up"
	VoteDown = "down"
)

type Feedback struct {
	AnswerID string `json:"answer_id"`
	Vote     string `json:"vote"`
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`
	Ctime    int64  `json:"ctime"`
}
