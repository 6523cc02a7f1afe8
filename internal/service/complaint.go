package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"farm-market/internal/db"
	"farm-market/internal/models"
	"farm-market/pkg"

	"go.uber.org/zap"
)

type ComplaintInput struct {
	OrderID     *int64
	Subject     string
	Description string
	Proofs      []string
}

type ComplaintService interface {
	CreateComplaint(ctx context.Context, actor Actor, in ComplaintInput) (models.Complaint, error)
	GetComplaint(ctx context.Context, actor Actor, id int64) (models.Complaint, error)
	ListComplaints(ctx context.Context, actor Actor, status string, page db.Page) ([]models.Complaint, error)
	AddProof(ctx context.Context, actor Actor, id int64, proofURL string) (models.ComplaintProof, error)
	AddRemark(ctx context.Context, actor Actor, id int64, body string) (models.ComplaintRemark, error)
	UpdateStatus(ctx context.Context, actor Actor, id int64, status string) (models.Complaint, error)
}

var complaintTransitions = map[string][]string{
	models.ComplaintOpen:     {models.ComplaintInReview, models.ComplaintResolved, models.ComplaintRejected},
	models.ComplaintInReview: {models.ComplaintResolved, models.ComplaintRejected},
}

func complaintClosed(status string) bool {
	return status == models.ComplaintResolved || status == models.ComplaintRejected
}

type complaintService struct {
	complaints db.ComplaintDB
	orders     db.OrderDB
	log        pkg.Logger
}

func NewComplaintService(complaints db.ComplaintDB, orders db.OrderDB, log pkg.Logger) ComplaintService {
	return &complaintService{complaints: complaints, orders: orders, log: log}
}

func validProofURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalidInput("proof must be an http(s) url: %q", raw)
	}
	return nil
}

func (s *complaintService) CreateComplaint(ctx context.Context, actor Actor, in ComplaintInput) (models.Complaint, error) {
	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		return models.Complaint{}, invalidInput("subject is required")
	}
	for _, p := range in.Proofs {
		if err := validProofURL(p); err != nil {
			return models.Complaint{}, err
		}
	}
	if in.OrderID != nil {
		o, err := s.orders.GetOrder(ctx, *in.OrderID)
		if err != nil {
			return models.Complaint{}, fromDB(err)
		}
		if o.UserID != actor.UserID {
			return models.Complaint{}, ErrForbidden
		}
	}

	tx, err := s.complaints.BeginTx(ctx)
	if err != nil {
		return models.Complaint{}, err
	}
	defer rollback(tx, s.log)

	c := models.Complaint{
		UserID:      actor.UserID,
		OrderID:     in.OrderID,
		Subject:     subject,
		Description: in.Description,
		Status:      models.ComplaintOpen,
	}
	if err := s.complaints.CreateComplaint(ctx, tx, &c); err != nil {
		s.log.Error("failed to create complaint", zap.Int64("userID", actor.UserID), zap.Error(err))
		return models.Complaint{}, fromDB(err)
	}
	for _, u := range in.Proofs {
		p := models.ComplaintProof{ComplaintID: c.ID, URL: u}
		if err := s.complaints.AddProof(ctx, tx, &p); err != nil {
			return models.Complaint{}, fromDB(err)
		}
		c.Proofs = append(c.Proofs, p)
	}
	if err := tx.Commit(); err != nil {
		s.log.Error("failed to commit complaint", zap.Int64("userID", actor.UserID), zap.Error(err))
		return models.Complaint{}, err
	}
	s.log.Info("Complaint filed", zap.Int64("complaintID", c.ID), zap.Int64("userID", actor.UserID))
	return c, nil
}

func (s *complaintService) visible(ctx context.Context, actor Actor, id int64) (models.Complaint, error) {
	c, err := s.complaints.GetComplaint(ctx, id)
	if err != nil {
		return models.Complaint{}, fromDB(err)
	}
	if c.UserID != actor.UserID && !actor.IsAdmin() {
		return models.Complaint{}, ErrForbidden
	}
	return c, nil
}

func (s *complaintService) GetComplaint(ctx context.Context, actor Actor, id int64) (models.Complaint, error) {
	c, err := s.visible(ctx, actor, id)
	if err != nil {
		return models.Complaint{}, err
	}
	if c.Proofs, err = s.complaints.ListProofs(ctx, id); err != nil {
		return models.Complaint{}, err
	}
	if c.Remarks, err = s.complaints.ListRemarks(ctx, id); err != nil {
		return models.Complaint{}, err
	}
	return c, nil
}

func (s *complaintService) ListComplaints(ctx context.Context, actor Actor, status string, page db.Page) ([]models.Complaint, error) {
	f := db.ComplaintFilter{Status: status, Page: page}
	if !actor.IsAdmin() {
		f.UserID = &actor.UserID
	}
	out, err := s.complaints.ListComplaints(ctx, f)
	if err != nil {
		s.log.Error("failed to list complaints", zap.Int64("userID", actor.UserID), zap.Error(err))
		return nil, err
	}
	return out, nil
}

func (s *complaintService) AddProof(ctx context.Context, actor Actor, id int64, proofURL string) (models.ComplaintProof, error) {
	if err := validProofURL(proofURL); err != nil {
		return models.ComplaintProof{}, err
	}
	tx, err := s.complaints.BeginTx(ctx)
	if err != nil {
		return models.ComplaintProof{}, err
	}
	defer rollback(tx, s.log)

	c, err := s.complaints.GetComplaintForUpdate(ctx, tx, id)
	if err != nil {
		return models.ComplaintProof{}, fromDB(err)
	}
	if c.UserID != actor.UserID {
		return models.ComplaintProof{}, ErrForbidden
	}
	if complaintClosed(c.Status) {
		return models.ComplaintProof{}, fmt.Errorf("%w: complaint is %s", ErrConflict, c.Status)
	}
	p := models.ComplaintProof{ComplaintID: id, URL: proofURL}
	if err := s.complaints.AddProof(ctx, tx, &p); err != nil {
		return models.ComplaintProof{}, fromDB(err)
	}
	if err := tx.Commit(); err != nil {
		return models.ComplaintProof{}, err
	}
	return p, nil
}

func (s *complaintService) AddRemark(ctx context.Context, actor Actor, id int64, body string) (models.ComplaintRemark, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return models.ComplaintRemark{}, invalidInput("remark body is required")
	}
	if _, err := s.visible(ctx, actor, id); err != nil {
		return models.ComplaintRemark{}, err
	}
	tx, err := s.complaints.BeginTx(ctx)
	if err != nil {
		return models.ComplaintRemark{}, err
	}
	defer rollback(tx, s.log)

	r := models.ComplaintRemark{ComplaintID: id, AuthorID: actor.UserID, Body: body}
	if err := s.complaints.AddRemark(ctx, tx, &r); err != nil {
		return models.ComplaintRemark{}, fromDB(err)
	}
	if err := tx.Commit(); err != nil {
		return models.ComplaintRemark{}, err
	}
	return r, nil
}

func (s *complaintService) UpdateStatus(ctx context.Context, actor Actor, id int64, status string) (models.Complaint, error) {
	if !actor.IsAdmin() {
		return models.Complaint{}, ErrForbidden
	}
	tx, err := s.complaints.BeginTx(ctx)
	if err != nil {
		return models.Complaint{}, err
	}
	defer rollback(tx, s.log)

	c, err := s.complaints.GetComplaintForUpdate(ctx, tx, id)
	if err != nil {
		return models.Complaint{}, fromDB(err)
	}
	allowed := false
	for _, next := range complaintTransitions[c.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return models.Complaint{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, status)
	}
	if err := s.complaints.UpdateComplaintStatus(ctx, tx, id, status); err != nil {
		return models.Complaint{}, fromDB(err)
	}
	if err := tx.Commit(); err != nil {
		s.log.Error("failed to commit complaint status", zap.Int64("complaintID", id), zap.Error(err))
		return models.Complaint{}, err
	}
	s.log.Info("Complaint status changed",
		zap.Int64("complaintID", id), zap.String("from", c.Status), zap.String("to", status))
	c.Status = status
	return c, nil
}
