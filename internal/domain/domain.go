package domain

type Case struct {
	ID                string  `json:"id"`
	CaseNumber        string  `json:"case_number"`
	Title             string  `json:"title,omitempty"`
	DepartmentRole    string  `json:"department_role" enum:"plaintiff,defendant"`
	Status            string  `json:"status"`
	Priority          string  `json:"priority,omitempty"`
	MatterType        string  `json:"matter_type,omitempty"`
	CourtReference    string  `json:"court_reference,omitempty"`
	CourtReturnDate   *string `json:"court_return_date,omitempty" format:"date"`
	AssignedOfficerID *string `json:"assigned_officer_id,omitempty"`
	CreatedBy         string  `json:"created_by"`
	CreatedAt         string  `json:"created_at" format:"date-time"`
	UpdatedAt         string  `json:"updated_at" format:"date-time"`
}

type WorkflowEntry struct {
	ID              string  `json:"id"`
	CaseID          string  `json:"case_id"`
	OfficerRole     string  `json:"officer_role" enum:"secretary_lands,director_legal,manager_legal"`
	Stage           string  `json:"stage"`
	Status          string  `json:"status" enum:"pending,completed"`
	Commentary      string  `json:"commentary,omitempty"`
	Advice          string  `json:"advice,omitempty"`
	Recommendations string  `json:"recommendations,omitempty"`
	ActionTaken     string  `json:"action_taken,omitempty"`
	CompletedBy     *string `json:"completed_by,omitempty"`
	CompletedAt     *string `json:"completed_at,omitempty" format:"date-time"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
}

// CaseSnapshot is the copy of case fields embedded in an Assignment at
// hand-off time. It is written once and never recomputed.
type CaseSnapshot struct {
	CaseNumber     string `json:"case_number"`
	CourtReference string `json:"court_reference,omitempty"`
	MatterType     string `json:"matter_type,omitempty"`
	Priority       string `json:"priority,omitempty"`
}

type Assignment struct {
	ID                  string       `json:"id"`
	CaseID              string       `json:"case_id"`
	AssignedBy          string       `json:"assigned_by"`
	AssignedTo          string       `json:"assigned_to"`
	AssignmentType      string       `json:"assignment_type"`
	Instructions        string       `json:"instructions,omitempty"`
	ExecutiveCommentary string       `json:"executive_commentary"`
	Attachments         []string     `json:"attachments,omitempty"`
	Status              string       `json:"status"`
	Metadata            CaseSnapshot `json:"metadata"`
	CreatedAt           string       `json:"created_at" format:"date-time"`
}

type ComplianceRecord struct {
	ID               string  `json:"id"`
	CaseID           string  `json:"case_id"`
	DivisionID       string  `json:"division_id"`
	OrderReference   string  `json:"order_reference,omitempty"`
	OrderDate        string  `json:"order_date,omitempty" format:"date"`
	OrderDescription string  `json:"order_description"`
	Deadline         *string `json:"deadline,omitempty" format:"date-time"`
	MemoReference    string  `json:"memo_reference,omitempty"`
	MemoSentAt       *string `json:"memo_sent_at,omitempty" format:"date-time"`
	Status           string  `json:"status" enum:"pending,memo_sent,in_progress,completed,overdue,partially_complied"`
	ReturnToStep     *string `json:"return_to_step,omitempty" enum:"step_2,step_4,ready_for_closure"`
	CompletedAt      *string `json:"completed_at,omitempty" format:"date-time"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
	UpdatedAt        string  `json:"updated_at" format:"date-time"`
}

type HistoryEntry struct {
	ID          int64  `json:"id"`
	TS          string `json:"ts" format:"date-time"`
	CaseID      string `json:"case_id"`
	Action      string `json:"action"`
	Description string `json:"description"`
	ActorID     string `json:"actor_id"`
	Metadata    string `json:"metadata_json"`
}

type Notification struct {
	ID             string  `json:"id"`
	RecipientID    string  `json:"recipient_id"`
	CaseID         string  `json:"case_id,omitempty"`
	Title          string  `json:"title"`
	Body           string  `json:"body,omitempty"`
	Type           string  `json:"type"`
	Priority       string  `json:"priority,omitempty"`
	ActionRequired bool    `json:"action_required"`
	TargetURL      string  `json:"target_url,omitempty"`
	Metadata       string  `json:"metadata_json,omitempty"`
	ReadAt         *string `json:"read_at,omitempty" format:"date-time"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
}

// OfficerReassignment is one reconstructed assignment event from register
// free text. OfficerName is nil for the officer-less initial period.
type OfficerReassignment struct {
	ID             string  `json:"id"`
	CaseID         string  `json:"case_id"`
	AssignmentDate string  `json:"assignment_date" format:"date"`
	OfficerName    *string `json:"officer_name"`
	Kind           string  `json:"kind" enum:"initial,reassignment"`
	Reason         string  `json:"reason,omitempty"`
	Position       int     `json:"position"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
}

type Officer struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role" enum:"secretary_lands,director_legal,manager_legal,litigation_officer,admin,viewer"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type FollowUp struct {
	ID         string `json:"id"`
	CaseID     string `json:"case_id"`
	AssigneeID string `json:"assignee_id"`
	Title      string `json:"title"`
	Details    string `json:"details,omitempty"`
	DueDate    string `json:"due_date" format:"date-time"`
	Status     string `json:"status" enum:"open,done"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
