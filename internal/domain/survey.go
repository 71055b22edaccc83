package domain

import "time"

// SurveyQuestion is a closed question with an ordered option set
type SurveyQuestion struct {
	ID        string    `json:"id"`
	Label     string    `json:"label" validate:"required,min=2,max=500"`
	Options   []string  `json:"options" validate:"required,min=2,dive,required,max=200"`
	CreatedAt time.Time `json:"created_at"`
}

// HasOption reports whether option belongs to the question
func (q *SurveyQuestion) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// OptionTally is the count and rounded percentage of one option
type OptionTally struct {
	Option     string `json:"option"`
	Count      int64  `json:"count"`
	Percentage int    `json:"percentage"`
}

// QuestionTally is a snapshot of every option of a question. Percentages are
// rounded independently and may not add up to exactly 100.
type QuestionTally struct {
	QuestionID     string        `json:"question_id"`
	Label          string        `json:"label"`
	Options        []OptionTally `json:"options"`
	TotalResponses int64         `json:"total_responses"`
}

// OptionDetail is the drill-down view of a single option
type OptionDetail struct {
	QuestionID     string `json:"question_id"`
	Option         string `json:"option"`
	Count          int64  `json:"count"`
	Percentage     int    `json:"percentage"`
	TotalResponses int64  `json:"total_responses"`
}
