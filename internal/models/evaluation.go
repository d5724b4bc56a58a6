package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EvaluationAspect is a single scored aspect within a periodic evaluation.
type EvaluationAspect struct {
	Name  string `json:"name"`
	Score string `json:"score"`
}

// AspectList stores evaluation aspects as a JSONB column.
type AspectList []EvaluationAspect

// Value implements driver.Valuer.
func (l AspectList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *AspectList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported aspect list type %T", src)
	}
}

// Evaluation is a periodic development report for one student.
type Evaluation struct {
	ID           string     `db:"id" json:"id"`
	StudentID    string     `db:"student_id" json:"studentId"`
	Grade        string     `db:"grade" json:"grade"`
	Period       string     `db:"period" json:"period"`
	Introduction string     `db:"introduction" json:"introduction"`
	Aspects      AspectList `db:"aspects" json:"aspects"`
	Closing      string     `db:"closing" json:"closing,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// EvaluationFilter constrains evaluation listing queries.
type EvaluationFilter struct {
	StudentID string
	Grade     string
	Period    string
	Page      int
	PageSize  int
}
