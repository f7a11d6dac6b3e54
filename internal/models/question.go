package models

import "github.com/shopspring/decimal"

// Question belongs to the legacy weighted Q&A rating model. It predates the
// Responsibility/KPI/SoftSkill rows and remains a scoring fallback.
type Question struct {
	ID        int64           `db:"id" json:"id"`
	Section   string          `db:"section" json:"section"`
	Text      string          `db:"text" json:"text"`
	MaxRating int             `db:"max_rating" json:"max_rating"`
	Weight    decimal.Decimal `db:"weight" json:"weight"`
}

// Response is one legacy per-question answer pair on a form.
type Response struct {
	ID             int64   `db:"id" json:"id"`
	FormID         int64   `db:"form_id" json:"form_id"`
	QuestionID     int64   `db:"question_id" json:"question_id"`
	SelfRating     *int    `db:"self_rating" json:"self_rating,omitempty"`
	SelfComment    *string `db:"self_comment" json:"self_comment,omitempty"`
	ManagerRating  *int    `db:"manager_rating" json:"manager_rating,omitempty"`
	ManagerComment *string `db:"manager_comment" json:"manager_comment,omitempty"`
}

// ResponseDetail joins a response with its question for scoring and display.
type ResponseDetail struct {
	Response
	Section string          `db:"section" json:"section"`
	Text    string          `db:"text" json:"text"`
	Weight  decimal.Decimal `db:"weight" json:"weight"`
}

// Answered reports whether either side recorded a rating.
func (r Response) Answered() bool {
	return r.SelfRating != nil || r.ManagerRating != nil
}
