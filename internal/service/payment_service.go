package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/si-yapemri/school-admin-api/internal/models"
	appErrors "github.com/si-yapemri/school-admin-api/pkg/errors"
	"github.com/si-yapemri/school-admin-api/pkg/export"
)

type paymentRepository interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	Update(ctx context.Context, payment *models.Payment) error
	MarkPaid(ctx context.Context, id string, paidAt time.Time, note string) error
	Delete(ctx context.Context, id string) error
}

type paymentStudentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// CreatePaymentRequest holds payload for billing a student.
type CreatePaymentRequest struct {
	StudentID string    `json:"studentId" validate:"required"`
	Category  string    `json:"category" validate:"required"`
	Amount    int64     `json:"amount" validate:"required,gt=0"`
	DueDate   time.Time `json:"dueDate" validate:"required"`
}

// UpdatePaymentRequest holds payload for adjusting an unpaid bill.
type UpdatePaymentRequest struct {
	Category string    `json:"category" validate:"required"`
	Amount   int64     `json:"amount" validate:"required,gt=0"`
	DueDate  time.Time `json:"dueDate" validate:"required"`
}

// SettlePaymentRequest marks a bill as paid.
type SettlePaymentRequest struct {
	ReceiptNote string `json:"receiptNote"`
}

// PaymentService handles tuition and fee billing.
type PaymentService struct {
	repo      paymentRepository
	students  paymentStudentLookup
	csv       csvRenderer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs the payment service.
func NewPaymentService(repo paymentRepository, students paymentStudentLookup, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		repo:      repo,
		students:  students,
		csv:       export.NewCSVExporter(),
		validator: validate,
		logger:    logger,
	}
}

// List returns payments and pagination metadata.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one payment by ID.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

// Create bills a student.
func (s *PaymentService) Create(ctx context.Context, req CreatePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	payment := &models.Payment{
		StudentID: req.StudentID,
		Category:  req.Category,
		Amount:    req.Amount,
		DueDate:   req.DueDate,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment")
	}
	return payment, nil
}

// Update adjusts an unpaid bill. Settled payments are immutable.
func (s *PaymentService) Update(ctx context.Context, id string, req UpdatePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Paid {
		return nil, appErrors.Clone(appErrors.ErrConflict, "payment already settled")
	}
	payment.Category = req.Category
	payment.Amount = req.Amount
	payment.DueDate = req.DueDate
	if err := s.repo.Update(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment")
	}
	return payment, nil
}

// Settle marks a bill as paid.
func (s *PaymentService) Settle(ctx context.Context, id string, req SettlePaymentRequest) (*models.Payment, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Paid {
		return nil, appErrors.Clone(appErrors.ErrConflict, "payment already settled")
	}
	paidAt := time.Now().UTC()
	if err := s.repo.MarkPaid(ctx, id, paidAt, req.ReceiptNote); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle payment")
	}
	payment.Paid = true
	payment.PaidAt = &paidAt
	payment.ReceiptNote = req.ReceiptNote
	return payment, nil
}

// Delete removes an unpaid bill.
func (s *PaymentService) Delete(ctx context.Context, id string) error {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if payment.Paid {
		return appErrors.Clone(appErrors.ErrConflict, "settled payments cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete payment")
	}
	return nil
}

// ExportCSV renders the filtered payments as a CSV document.
func (s *PaymentService) ExportCSV(ctx context.Context, filter models.PaymentFilter) ([]byte, error) {
	filter.Page = 1
	filter.PageSize = 100
	var all []models.Payment
	for {
		payments, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
		}
		all = append(all, payments...)
		if len(all) >= total || len(payments) == 0 {
			break
		}
		filter.Page++
	}

	now := time.Now().UTC()
	rows := make([]map[string]string, 0, len(all))
	for _, p := range all {
		status := "unpaid"
		if p.Paid {
			status = "paid"
		} else if p.Overdue(now) {
			status = "overdue"
		}
		paidAt := ""
		if p.PaidAt != nil {
			paidAt = p.PaidAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, map[string]string{
			"Payment ID": p.ID,
			"Student ID": p.StudentID,
			"Category":   p.Category,
			"Amount":     fmt.Sprintf("%d", p.Amount),
			"Due Date":   p.DueDate.UTC().Format("2006-01-02"),
			"Status":     status,
			"Paid At":    paidAt,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Payment ID", "Student ID", "Category", "Amount", "Due Date", "Status", "Paid At"},
		Rows:    rows,
	}
	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render payment export")
	}
	return payload, nil
}
