package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"caseline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const caseColumns = `id,case_number,title,department_role,status,priority,matter_type,court_reference,court_return_date,assigned_officer_id,created_by,created_at,updated_at`

func scanCase(scan func(dest ...any) error) (domain.Case, error) {
	var c domain.Case
	var title, priority, matterType, courtRef sql.NullString
	var returnDate, assignedTo sql.NullString
	err := scan(&c.ID, &c.CaseNumber, &title, &c.DepartmentRole, &c.Status, &priority, &matterType, &courtRef, &returnDate, &assignedTo, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.Title = title.String
	c.Priority = priority.String
	c.MatterType = matterType.String
	c.CourtReference = courtRef.String
	if returnDate.Valid {
		c.CourtReturnDate = &returnDate.String
	}
	if assignedTo.Valid {
		c.AssignedOfficerID = &assignedTo.String
	}
	return c, nil
}

func (r Repo) InsertCaseTx(ctx context.Context, tx *sql.Tx, c domain.Case) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO cases(`+caseColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.CaseNumber, nullable(c.Title), c.DepartmentRole, c.Status, nullable(c.Priority), nullable(c.MatterType),
		nullable(c.CourtReference), nullableStringPtr(c.CourtReturnDate), nullableStringPtr(c.AssignedOfficerID),
		c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetCase(ctx context.Context, id string) (domain.Case, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id=?`, id)
	return scanCase(row.Scan)
}

func (r Repo) GetCaseByNumber(ctx context.Context, caseNumber string) (domain.Case, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE case_number=?`, caseNumber)
	return scanCase(row.Scan)
}

type CaseFilters struct {
	Status            string
	AssignedOfficerID string
	DepartmentRole    string
	Limit             int
}

func (r Repo) ListCases(ctx context.Context, f CaseFilters) ([]domain.Case, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.AssignedOfficerID != "" {
		clauses = append(clauses, "assigned_officer_id=?")
		args = append(args, f.AssignedOfficerID)
	}
	if f.DepartmentRole != "" {
		clauses = append(clauses, "department_role=?")
		args = append(args, f.DepartmentRole)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + caseColumns + ` FROM cases ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Case
	for rows.Next() {
		c, err := scanCase(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) SetCaseStatus(ctx context.Context, id, status, now string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE cases SET status=?, updated_at=? WHERE id=?`, status, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetAssignedOfficer(ctx context.Context, caseID, officerID, now string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE cases SET assigned_officer_id=?, updated_at=? WHERE id=?`, officerID, now, caseID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetCasePriority(ctx context.Context, caseID, priority, now string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE cases SET priority=?, updated_at=? WHERE id=?`, nullable(priority), now, caseID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- workflow entries ---

const entryColumns = `id,case_id,officer_role,stage,status,commentary,advice,recommendations,action_taken,completed_by,completed_at,created_at`

func scanEntry(scan func(dest ...any) error) (domain.WorkflowEntry, error) {
	var e domain.WorkflowEntry
	var commentary, adviceText, recommendations, actionTaken sql.NullString
	var completedBy, completedAt sql.NullString
	err := scan(&e.ID, &e.CaseID, &e.OfficerRole, &e.Stage, &e.Status, &commentary, &adviceText, &recommendations, &actionTaken, &completedBy, &completedAt, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	e.Commentary = commentary.String
	e.Advice = adviceText.String
	e.Recommendations = recommendations.String
	e.ActionTaken = actionTaken.String
	if completedBy.Valid {
		e.CompletedBy = &completedBy.String
	}
	if completedAt.Valid {
		e.CompletedAt = &completedAt.String
	}
	return e, nil
}

func (r Repo) InsertWorkflowEntryTx(ctx context.Context, tx *sql.Tx, e domain.WorkflowEntry) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO workflow_entries(`+entryColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.CaseID, e.OfficerRole, e.Stage, e.Status, nullable(e.Commentary), nullable(e.Advice),
		nullable(e.Recommendations), nullable(e.ActionTaken), nullableStringPtr(e.CompletedBy),
		nullableStringPtr(e.CompletedAt), e.CreatedAt)
	return err
}

// InsertPendingEntryIfAbsentTx inserts a fresh pending entry for
// (case, role) only when none is pending, preserving the one-pending
// invariant. Returns ErrNotFound-free false when an entry already blocks
// the insert.
func (r Repo) InsertPendingEntryIfAbsentTx(ctx context.Context, tx *sql.Tx, e domain.WorkflowEntry) (bool, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO workflow_entries(`+entryColumns+`)
SELECT ?,?,?,?,?,?,?,?,?,?,?,?
WHERE NOT EXISTS (SELECT 1 FROM workflow_entries WHERE case_id=? AND officer_role=? AND status='pending')`,
		e.ID, e.CaseID, e.OfficerRole, e.Stage, e.Status, nullable(e.Commentary), nullable(e.Advice),
		nullable(e.Recommendations), nullable(e.ActionTaken), nullableStringPtr(e.CompletedBy),
		nullableStringPtr(e.CompletedAt), e.CreatedAt,
		e.CaseID, e.OfficerRole)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CompleteEntryFields is the payload written when a pending entry is
// signed off.
type CompleteEntryFields struct {
	Commentary      string
	Advice          string
	Recommendations string
	ActionTaken     string
	Stage           string
	CompletedBy     string
	CompletedAt     string
}

// CompletePendingEntryTx performs the conditional pending→completed
// update. A concurrent writer that loses the race observes zero affected
// rows and gets ErrNotFound.
func (r Repo) CompletePendingEntryTx(ctx context.Context, tx *sql.Tx, caseID, role string, f CompleteEntryFields) (domain.WorkflowEntry, error) {
	args := []any{nullable(f.Commentary), nullable(f.Advice), nullable(f.Recommendations), nullable(f.ActionTaken), f.CompletedBy, f.CompletedAt}
	set := `commentary=?, advice=?, recommendations=?, action_taken=?, status='completed', completed_by=?, completed_at=?`
	if f.Stage != "" {
		set += `, stage=?`
		args = append(args, f.Stage)
	}
	args = append(args, caseID, role)
	res, err := tx.ExecContext(ctx, `UPDATE workflow_entries SET `+set+` WHERE case_id=? AND officer_role=? AND status='pending'`, args...)
	if err != nil {
		return domain.WorkflowEntry{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.WorkflowEntry{}, ErrNotFound
	}
	row := tx.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM workflow_entries WHERE case_id=? AND officer_role=? ORDER BY rowid DESC LIMIT 1`, caseID, role)
	return scanEntry(row.Scan)
}

func (r Repo) ListWorkflowEntries(ctx context.Context, caseID string) ([]domain.WorkflowEntry, error) {
	// rowid keeps insertion order even when timestamps tie.
	rows, err := r.DB.QueryContext(ctx, `SELECT `+entryColumns+` FROM workflow_entries WHERE case_id=? ORDER BY rowid ASC`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkflowEntry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// CountPendingByRole reports pending entries per (case, role); used by
// invariant checks in tests.
func (r Repo) CountPendingByRole(ctx context.Context, caseID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT officer_role, count(*) FROM workflow_entries WHERE case_id=? AND status='pending' GROUP BY officer_role`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var role string
		var count int
		if err := rows.Scan(&role, &count); err != nil {
			return nil, err
		}
		res[role] = count
	}
	return res, rows.Err()
}

// --- assignments ---

func (r Repo) InsertAssignmentTx(ctx context.Context, tx *sql.Tx, a domain.Assignment) error {
	attachments, err := marshalStringSlice(a.Attachments)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshal assignment metadata: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO assignments(id,case_id,assigned_by,assigned_to,assignment_type,instructions,executive_commentary,attachments_json,status,metadata_json,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.CaseID, a.AssignedBy, a.AssignedTo, a.AssignmentType, nullable(a.Instructions),
		a.ExecutiveCommentary, nullableStringPtr(attachments), a.Status, string(metadata), a.CreatedAt)
	return err
}

func scanAssignment(scan func(dest ...any) error) (domain.Assignment, error) {
	var a domain.Assignment
	var instructions, attachments sql.NullString
	var metadata string
	err := scan(&a.ID, &a.CaseID, &a.AssignedBy, &a.AssignedTo, &a.AssignmentType, &instructions, &a.ExecutiveCommentary, &attachments, &a.Status, &metadata, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.Instructions = instructions.String
	if attachments.Valid && attachments.String != "" {
		_ = json.Unmarshal([]byte(attachments.String), &a.Attachments)
	}
	if err := json.Unmarshal([]byte(metadata), &a.Metadata); err != nil {
		return a, fmt.Errorf("unmarshal assignment metadata: %w", err)
	}
	return a, nil
}

const assignmentColumns = `id,case_id,assigned_by,assigned_to,assignment_type,instructions,executive_commentary,attachments_json,status,metadata_json,created_at`

func (r Repo) GetAssignment(ctx context.Context, id string) (domain.Assignment, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id=?`, id)
	return scanAssignment(row.Scan)
}

func (r Repo) ListAssignments(ctx context.Context, caseID string) ([]domain.Assignment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE case_id=? ORDER BY created_at ASC, id ASC`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// --- compliance records ---

const complianceColumns = `id,case_id,division_id,order_reference,order_date,order_description,deadline,memo_reference,memo_sent_at,status,return_to_step,completed_at,created_at,updated_at`

func scanCompliance(scan func(dest ...any) error) (domain.ComplianceRecord, error) {
	var c domain.ComplianceRecord
	var orderRef, orderDate, memoRef sql.NullString
	var deadline, memoSentAt, returnToStep, completedAt sql.NullString
	err := scan(&c.ID, &c.CaseID, &c.DivisionID, &orderRef, &orderDate, &c.OrderDescription, &deadline, &memoRef, &memoSentAt, &c.Status, &returnToStep, &completedAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.OrderReference = orderRef.String
	c.OrderDate = orderDate.String
	c.MemoReference = memoRef.String
	if deadline.Valid {
		c.Deadline = &deadline.String
	}
	if memoSentAt.Valid {
		c.MemoSentAt = &memoSentAt.String
	}
	if returnToStep.Valid {
		c.ReturnToStep = &returnToStep.String
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.String
	}
	return c, nil
}

func (r Repo) InsertComplianceTx(ctx context.Context, tx *sql.Tx, c domain.ComplianceRecord) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO compliance_records(`+complianceColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.CaseID, c.DivisionID, nullable(c.OrderReference), nullable(c.OrderDate), c.OrderDescription,
		nullableStringPtr(c.Deadline), nullable(c.MemoReference), nullableStringPtr(c.MemoSentAt), c.Status,
		nullableStringPtr(c.ReturnToStep), nullableStringPtr(c.CompletedAt), c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetCompliance(ctx context.Context, id string) (domain.ComplianceRecord, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+complianceColumns+` FROM compliance_records WHERE id=?`, id)
	return scanCompliance(row.Scan)
}

func (r Repo) UpdateComplianceTx(ctx context.Context, tx *sql.Tx, c domain.ComplianceRecord) error {
	res, err := tx.ExecContext(ctx, `UPDATE compliance_records SET status=?, memo_reference=?, memo_sent_at=?, return_to_step=?, completed_at=?, updated_at=? WHERE id=?`,
		c.Status, nullable(c.MemoReference), nullableStringPtr(c.MemoSentAt), nullableStringPtr(c.ReturnToStep),
		nullableStringPtr(c.CompletedAt), c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListCompliance(ctx context.Context, caseID string) ([]domain.ComplianceRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+complianceColumns+` FROM compliance_records WHERE case_id=? ORDER BY created_at ASC, id ASC`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ComplianceRecord
	for rows.Next() {
		c, err := scanCompliance(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// --- reassignments ---

func (r Repo) InsertReassignmentTx(ctx context.Context, tx *sql.Tx, m domain.OfficerReassignment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO reassignments(id,case_id,assignment_date,officer_name,kind,reason,position,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		m.ID, m.CaseID, m.AssignmentDate, nullableStringPtr(m.OfficerName), m.Kind, nullable(m.Reason), m.Position, m.CreatedAt)
	return err
}

func (r Repo) ListReassignments(ctx context.Context, caseID string) ([]domain.OfficerReassignment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,case_id,assignment_date,officer_name,kind,reason,position,created_at FROM reassignments WHERE case_id=? ORDER BY position ASC`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.OfficerReassignment
	for rows.Next() {
		var m domain.OfficerReassignment
		var officer, reason sql.NullString
		if err := rows.Scan(&m.ID, &m.CaseID, &m.AssignmentDate, &officer, &m.Kind, &reason, &m.Position, &m.CreatedAt); err != nil {
			return nil, err
		}
		if officer.Valid {
			m.OfficerName = &officer.String
		}
		m.Reason = reason.String
		res = append(res, m)
	}
	return res, rows.Err()
}

// --- follow-ups ---

func (r Repo) InsertFollowUp(ctx context.Context, f domain.FollowUp) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO follow_ups(id,case_id,assignee_id,title,details,due_date,status,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		f.ID, f.CaseID, f.AssigneeID, f.Title, nullable(f.Details), f.DueDate, f.Status, f.CreatedAt)
	return err
}

func (r Repo) ListFollowUps(ctx context.Context, assigneeID string) ([]domain.FollowUp, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,case_id,assignee_id,title,details,due_date,status,created_at FROM follow_ups WHERE assignee_id=? ORDER BY due_date ASC, id ASC`, assigneeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.FollowUp
	for rows.Next() {
		var f domain.FollowUp
		var details sql.NullString
		if err := rows.Scan(&f.ID, &f.CaseID, &f.AssigneeID, &f.Title, &details, &f.DueDate, &f.Status, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Details = details.String
		res = append(res, f)
	}
	return res, rows.Err()
}

// --- history queries ---

func (r Repo) ListHistory(ctx context.Context, caseID string, limit int) ([]domain.HistoryEntry, error) {
	query := `SELECT id,ts,case_id,action,description,actor_id,metadata_json FROM history WHERE case_id=? ORDER BY id DESC`
	args := []any{caseID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.HistoryEntry
	for rows.Next() {
		var h domain.HistoryEntry
		var meta sql.NullString
		if err := rows.Scan(&h.ID, &h.TS, &h.CaseID, &h.Action, &h.Description, &h.ActorID, &meta); err != nil {
			return nil, err
		}
		h.Metadata = meta.String
		res = append(res, h)
	}
	return res, rows.Err()
}

// HistoryAfter returns history rows with IDs greater than the cursor in
// ascending order; the webhook forwarder pages with it.
func (r Repo) HistoryAfter(ctx context.Context, limit int, cursor int64) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,case_id,action,description,actor_id,metadata_json FROM history WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.HistoryEntry
	for rows.Next() {
		var h domain.HistoryEntry
		var meta sql.NullString
		if err := rows.Scan(&h.ID, &h.TS, &h.CaseID, &h.Action, &h.Description, &h.ActorID, &meta); err != nil {
			return nil, err
		}
		h.Metadata = meta.String
		res = append(res, h)
	}
	return res, rows.Err()
}

// LatestHistoryID returns the most recent history row ID.
func (r Repo) LatestHistoryID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM history`).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// --- helpers ---

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func marshalStringSlice(in []string) (*string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}
