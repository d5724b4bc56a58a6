package models

import "time"

// Payment records a tuition or fee payment owed by a student.
type Payment struct {
	ID          string     `db:"id" json:"id"`
	StudentID   string     `db:"student_id" json:"studentId"`
	Category    string     `db:"category" json:"category"`
	Amount      int64      `db:"amount" json:"amount"`
	DueDate     time.Time  `db:"due_date" json:"dueDate"`
	Paid        bool       `db:"paid" json:"paid"`
	PaidAt      *time.Time `db:"paid_at" json:"paidAt,omitempty"`
	ReceiptNote string     `db:"receipt_note" json:"receiptNote,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// Overdue reports whether the payment is unpaid past its due date.
func (p Payment) Overdue(now time.Time) bool {
	return !p.Paid && now.After(p.DueDate)
}

// PaymentFilter constrains payment listing queries.
type PaymentFilter struct {
	StudentID string
	Category  string
	Paid      *bool
	Overdue   bool
	Page      int
	PageSize  int
}
