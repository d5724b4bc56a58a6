package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/si-yapemri/school-admin-api/internal/models"
	appErrors "github.com/si-yapemri/school-admin-api/pkg/errors"
)

type paymentRepoStub struct {
	payments map[string]*models.Payment
}

func newPaymentRepoStub() *paymentRepoStub {
	return &paymentRepoStub{payments: make(map[string]*models.Payment)}
}

func (r *paymentRepoStub) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	result := make([]models.Payment, 0, len(r.payments))
	for _, payment := range r.payments {
		result = append(result, *payment)
	}
	if filter.Page > 1 {
		return nil, len(r.payments), nil
	}
	return result, len(result), nil
}

func (r *paymentRepoStub) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if payment, ok := r.payments[id]; ok {
		copy := *payment
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *paymentRepoStub) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = "pay-1"
	}
	r.payments[payment.ID] = payment
	return nil
}

func (r *paymentRepoStub) Update(ctx context.Context, payment *models.Payment) error {
	if _, ok := r.payments[payment.ID]; !ok {
		return sql.ErrNoRows
	}
	r.payments[payment.ID] = payment
	return nil
}

func (r *paymentRepoStub) MarkPaid(ctx context.Context, id string, paidAt time.Time, note string) error {
	payment, ok := r.payments[id]
	if !ok {
		return sql.ErrNoRows
	}
	payment.Paid = true
	payment.PaidAt = &paidAt
	payment.ReceiptNote = note
	return nil
}

func (r *paymentRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := r.payments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.payments, id)
	return nil
}

type studentLookupStub struct {
	students map[string]*models.Student
}

func (s *studentLookupStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if student, ok := s.students[id]; ok {
		return student, nil
	}
	return nil, sql.ErrNoRows
}

func TestPaymentServiceCreateRequiresStudent(t *testing.T) {
	repo := newPaymentRepoStub()
	students := &studentLookupStub{students: map[string]*models.Student{
		"student-1": {ID: "student-1", NIS: "2026001", FirstName: "Dewi"},
	}}
	svc := NewPaymentService(repo, students, nil, nil)

	payment, err := svc.Create(context.Background(), CreatePaymentRequest{
		StudentID: "student-1",
		Category:  "SPP",
		Amount:    350000,
		DueDate:   time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.False(t, payment.Paid)

	_, err = svc.Create(context.Background(), CreatePaymentRequest{
		StudentID: "ghost",
		Category:  "SPP",
		Amount:    350000,
		DueDate:   time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPaymentServiceSettleOnce(t *testing.T) {
	repo := newPaymentRepoStub()
	repo.payments["pay-1"] = &models.Payment{
		ID:        "pay-1",
		StudentID: "student-1",
		Category:  "SPP",
		Amount:    350000,
		DueDate:   time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
	}
	svc := NewPaymentService(repo, &studentLookupStub{}, nil, nil)

	settled, err := svc.Settle(context.Background(), "pay-1", SettlePaymentRequest{ReceiptNote: "transfer BCA"})
	require.NoError(t, err)
	require.True(t, settled.Paid)
	require.NotNil(t, settled.PaidAt)
	require.Equal(t, "transfer BCA", settled.ReceiptNote)

	_, err = svc.Settle(context.Background(), "pay-1", SettlePaymentRequest{})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestPaymentServiceSettledBillsAreImmutable(t *testing.T) {
	paidAt := time.Now().UTC()
	repo := newPaymentRepoStub()
	repo.payments["pay-1"] = &models.Payment{
		ID:        "pay-1",
		StudentID: "student-1",
		Category:  "SPP",
		Amount:    350000,
		DueDate:   time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		Paid:      true,
		PaidAt:    &paidAt,
	}
	svc := NewPaymentService(repo, &studentLookupStub{}, nil, nil)

	_, err := svc.Update(context.Background(), "pay-1", UpdatePaymentRequest{
		Category: "SPP",
		Amount:   400000,
		DueDate:  time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), "pay-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestPaymentServiceExportCSV(t *testing.T) {
	paidAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := newPaymentRepoStub()
	repo.payments["pay-1"] = &models.Payment{
		ID:        "pay-1",
		StudentID: "student-1",
		Category:  "SPP",
		Amount:    350000,
		DueDate:   time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC),
		Paid:      true,
		PaidAt:    &paidAt,
	}
	svc := NewPaymentService(repo, &studentLookupStub{}, nil, nil)

	payload, err := svc.ExportCSV(context.Background(), models.PaymentFilter{})
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(payload)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, []string{"Payment ID", "Student ID", "Category", "Amount", "Due Date", "Status", "Paid At"}, records[0])
	require.Equal(t, "pay-1", records[1][0])
	require.Equal(t, "350000", records[1][3])
	require.Equal(t, "paid", records[1][5])
}

func TestPaymentOverdue(t *testing.T) {
	now := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	unpaidPast := models.Payment{DueDate: now.Add(-24 * time.Hour)}
	require.True(t, unpaidPast.Overdue(now))

	paidPast := models.Payment{DueDate: now.Add(-24 * time.Hour), Paid: true}
	require.False(t, paidPast.Overdue(now))

	unpaidFuture := models.Payment{DueDate: now.Add(24 * time.Hour)}
	require.False(t, unpaidFuture.Overdue(now))
}
