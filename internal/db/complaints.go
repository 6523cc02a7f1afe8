package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"farm-market/internal/models"
)

type complaintDBImplementation struct {
	txStarter
	db *sql.DB
}

func NewComplaintDB(dbConn *sql.DB) ComplaintDB {
	return &complaintDBImplementation{txStarter: txStarter{db: dbConn}, db: dbConn}
}

const complaintColumns = "id, user_id, order_id, subject, description, status, created_at, updated_at"

func scanComplaint(row interface{ Scan(...any) error }) (models.Complaint, error) {
	var (
		c       models.Complaint
		orderID sql.NullInt64
	)
	err := row.Scan(&c.ID, &c.UserID, &orderID, &c.Subject, &c.Description, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return models.Complaint{}, err
	}
	if orderID.Valid {
		id := orderID.Int64
		c.OrderID = &id
	}
	return c, nil
}

func (d *complaintDBImplementation) CreateComplaint(ctx context.Context, tx *sql.Tx, c *models.Complaint) error {
	var orderID sql.NullInt64
	if c.OrderID != nil {
		orderID = sql.NullInt64{Int64: *c.OrderID, Valid: true}
	}
	err := tx.QueryRowContext(ctx, `
INSERT INTO complaints (user_id, order_id, subject, description, status)
VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`,
		c.UserID, orderID, c.Subject, c.Description, c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return wrapErr(err, "create complaint")
	}
	return nil
}

func (d *complaintDBImplementation) GetComplaint(ctx context.Context, id int64) (models.Complaint, error) {
	c, err := scanComplaint(d.db.QueryRowContext(ctx, "SELECT "+complaintColumns+" FROM complaints WHERE id = $1", id))
	if err != nil {
		return models.Complaint{}, wrapErr(err, "get complaint %d", id)
	}
	return c, nil
}

func (d *complaintDBImplementation) GetComplaintForUpdate(ctx context.Context, tx *sql.Tx, id int64) (models.Complaint, error) {
	c, err := scanComplaint(tx.QueryRowContext(ctx,
		"SELECT "+complaintColumns+" FROM complaints WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return models.Complaint{}, wrapErr(err, "get complaint %d for update", id)
	}
	return c, nil
}

func (d *complaintDBImplementation) ListComplaints(ctx context.Context, f ComplaintFilter) ([]models.Complaint, error) {
	page := normalizePage(f.Page)
	var (
		where []string
		args  []any
	)
	if f.UserID != nil {
		args = append(args, *f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := "SELECT " + complaintColumns + " FROM complaints"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, page.Limit, page.Offset)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query complaints: %w", err)
	}
	defer rows.Close()

	out := []models.Complaint{}
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan complaint: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *complaintDBImplementation) AddProof(ctx context.Context, tx *sql.Tx, p *models.ComplaintProof) error {
	err := tx.QueryRowContext(ctx,
		"INSERT INTO complaint_proofs (complaint_id, url) VALUES ($1, $2) RETURNING id, created_at",
		p.ComplaintID, p.URL).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return wrapErr(err, "add proof to complaint %d", p.ComplaintID)
	}
	return nil
}

func (d *complaintDBImplementation) AddRemark(ctx context.Context, tx *sql.Tx, r *models.ComplaintRemark) error {
	err := tx.QueryRowContext(ctx,
		"INSERT INTO complaint_remarks (complaint_id, author_id, body) VALUES ($1, $2, $3) RETURNING id, created_at",
		r.ComplaintID, r.AuthorID, r.Body).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return wrapErr(err, "add remark to complaint %d", r.ComplaintID)
	}
	return nil
}

func (d *complaintDBImplementation) ListProofs(ctx context.Context, complaintID int64) ([]models.ComplaintProof, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT id, complaint_id, url, created_at FROM complaint_proofs WHERE complaint_id = $1 ORDER BY id", complaintID)
	if err != nil {
		return nil, fmt.Errorf("failed to query proofs: %w", err)
	}
	defer rows.Close()

	out := []models.ComplaintProof{}
	for rows.Next() {
		var p models.ComplaintProof
		if err := rows.Scan(&p.ID, &p.ComplaintID, &p.URL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan proof: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *complaintDBImplementation) ListRemarks(ctx context.Context, complaintID int64) ([]models.ComplaintRemark, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT id, complaint_id, author_id, body, created_at FROM complaint_remarks WHERE complaint_id = $1 ORDER BY id",
		complaintID)
	if err != nil {
		return nil, fmt.Errorf("failed to query remarks: %w", err)
	}
	defer rows.Close()

	out := []models.ComplaintRemark{}
	for rows.Next() {
		var r models.ComplaintRemark
		if err := rows.Scan(&r.ID, &r.ComplaintID, &r.AuthorID, &r.Body, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan remark: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *complaintDBImplementation) UpdateComplaintStatus(ctx context.Context, tx *sql.Tx, id int64, status string) error {
	res, err := tx.ExecContext(ctx, "UPDATE complaints SET status = $1, updated_at = now() WHERE id = $2", status, id)
	if err != nil {
		return fmt.Errorf("failed to update complaint %d status: %w", id, err)
	}
	return checkAffected(res, "update complaint %d status", id)
}
