package sqlcgen

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const insertAuditEvent = `-- name: InsertAuditEvent :exec
INSERT INTO audit_events (
  actor,
  actor_role,
  action,
  target_type,
  target_id,
  details
)
VALUES ($1, $2, $3, $4, $5::uuid, COALESCE($6, '{}'::jsonb))
`

type InsertAuditEventParams struct {
	Actor      string
	ActorRole  *string
	Action     string
	TargetType *string
	TargetID   *string
	Details    map[string]any
}

func (q *Queries) InsertAuditEvent(ctx context.Context, arg InsertAuditEventParams) error {
	_, err := q.db.Exec(ctx, insertAuditEvent, arg.Actor, arg.ActorRole, arg.Action, arg.TargetType, arg.TargetID, arg.Details)
	return err
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (email, full_name, role, password_hash)
VALUES (LOWER($1), $2, $3, $4)
RETURNING id, email, full_name, role, password_hash, active, created_at
`

type CreateUserParams struct {
	Email        string
	FullName     string
	Role         string
	PasswordHash string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser, arg.Email, arg.FullName, arg.Role, arg.PasswordHash)
	var i User
	err := row.Scan(&i.ID, &i.Email, &i.FullName, &i.Role, &i.PasswordHash, &i.Active, &i.CreatedAt)
	return i, err
}

const getUser = `-- name: GetUser :one
SELECT id, email, full_name, role, password_hash, active, created_at
FROM users
WHERE id = $1
`

func (q *Queries) GetUser(ctx context.Context, id string) (User, error) {
	row := q.db.QueryRow(ctx, getUser, id)
	var i User
	err := row.Scan(&i.ID, &i.Email, &i.FullName, &i.Role, &i.PasswordHash, &i.Active, &i.CreatedAt)
	return i, err
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT id, email, full_name, role, password_hash, active, created_at
FROM users
WHERE email = LOWER($1)
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByEmail, email)
	var i User
	err := row.Scan(&i.ID, &i.Email, &i.FullName, &i.Role, &i.PasswordHash, &i.Active, &i.CreatedAt)
	return i, err
}

const listUsers = `-- name: ListUsers :many
SELECT id, email, full_name, role, password_hash, active, created_at
FROM users
WHERE ($1::text IS NULL OR role = $1)
ORDER BY full_name ASC
`

func (q *Queries) ListUsers(ctx context.Context, role *string) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsers, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		var i User
		if err := rows.Scan(&i.ID, &i.Email, &i.FullName, &i.Role, &i.PasswordHash, &i.Active, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deactivateUser = `-- name: DeactivateUser :execrows
UPDATE users
SET active = FALSE
WHERE id = $1 AND active
`

func (q *Queries) DeactivateUser(ctx context.Context, id string) (int64, error) {
	tag, err := q.db.Exec(ctx, deactivateUser, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const createSession = `-- name: CreateSession :exec
INSERT INTO sessions (token, user_id, expires_at)
VALUES ($1, $2, $3)
`

type CreateSessionParams struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) error {
	_, err := q.db.Exec(ctx, createSession, arg.Token, arg.UserID, arg.ExpiresAt)
	return err
}

const getSessionUser = `-- name: GetSessionUser :one
SELECT s.token,
       s.expires_at,
       s.revoked_at,
       u.id,
       u.email,
       u.full_name,
       u.role,
       u.active
FROM sessions s
JOIN users u ON u.id = s.user_id
WHERE s.token = $1
  AND s.revoked_at IS NULL
  AND s.expires_at > NOW()
`

func (q *Queries) GetSessionUser(ctx context.Context, token string) (SessionUser, error) {
	row := q.db.QueryRow(ctx, getSessionUser, token)
	var i SessionUser
	err := row.Scan(&i.Token, &i.ExpiresAt, &i.RevokedAt, &i.UserID, &i.Email, &i.FullName, &i.Role, &i.Active)
	return i, err
}

const revokeSession = `-- name: RevokeSession :execrows
UPDATE sessions
SET revoked_at = NOW()
WHERE token = $1 AND revoked_at IS NULL
`

func (q *Queries) RevokeSession(ctx context.Context, token string) (int64, error) {
	tag, err := q.db.Exec(ctx, revokeSession, token)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const createBatch = `-- name: CreateBatch :one
INSERT INTO batches (name, source_file, uploaded_by)
VALUES ($1, $2, $3::uuid)
RETURNING id, name, source_file, status, uploaded_by, created_at, archived_at
`

type CreateBatchParams struct {
	Name       string
	SourceFile string
	UploadedBy *string
}

func (q *Queries) CreateBatch(ctx context.Context, arg CreateBatchParams) (Batch, error) {
	row := q.db.QueryRow(ctx, createBatch, arg.Name, arg.SourceFile, arg.UploadedBy)
	var i Batch
	err := row.Scan(&i.ID, &i.Name, &i.SourceFile, &i.Status, &i.UploadedBy, &i.CreatedAt, &i.ArchivedAt)
	return i, err
}

const getBatch = `-- name: GetBatch :one
SELECT id, name, source_file, status, uploaded_by, created_at, archived_at
FROM batches
WHERE id = $1
`

func (q *Queries) GetBatch(ctx context.Context, id string) (Batch, error) {
	row := q.db.QueryRow(ctx, getBatch, id)
	var i Batch
	err := row.Scan(&i.ID, &i.Name, &i.SourceFile, &i.Status, &i.UploadedBy, &i.CreatedAt, &i.ArchivedAt)
	return i, err
}

const listBatches = `-- name: ListBatches :many
SELECT b.id,
       b.name,
       b.source_file,
       b.status,
       b.uploaded_by,
       b.created_at,
       b.archived_at,
       COUNT(p.id) AS property_count,
       COUNT(p.id) FILTER (WHERE p.status IN ('surveyed', 'approved')) AS surveyed_count
FROM batches b
LEFT JOIN properties p ON p.batch_id = b.id
GROUP BY b.id
ORDER BY b.created_at DESC
`

func (q *Queries) ListBatches(ctx context.Context) ([]Batch, error) {
	rows, err := q.db.Query(ctx, listBatches)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Batch
	for rows.Next() {
		var i Batch
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.SourceFile,
			&i.Status,
			&i.UploadedBy,
			&i.CreatedAt,
			&i.ArchivedAt,
			&i.PropertyCount,
			&i.SurveyedCount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setBatchStatus = `-- name: SetBatchStatus :one
UPDATE batches
SET status = $2,
    archived_at = CASE WHEN $2 = 'archived' THEN NOW() ELSE NULL END
WHERE id = $1
RETURNING id, name, source_file, status, uploaded_by, created_at, archived_at
`

type SetBatchStatusParams struct {
	ID     string
	Status string
}

func (q *Queries) SetBatchStatus(ctx context.Context, arg SetBatchStatusParams) (Batch, error) {
	row := q.db.QueryRow(ctx, setBatchStatus, arg.ID, arg.Status)
	var i Batch
	err := row.Scan(&i.ID, &i.Name, &i.SourceFile, &i.Status, &i.UploadedBy, &i.CreatedAt, &i.ArchivedAt)
	return i, err
}

const deleteBatch = `-- name: DeleteBatch :execrows
DELETE FROM batches
WHERE id = $1
`

func (q *Queries) DeleteBatch(ctx context.Context, id string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteBatch, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const countActiveExportsForBatch = `-- name: CountActiveExportsForBatch :one
SELECT COUNT(*)
FROM export_jobs
WHERE status IN ('queued', 'running')
  AND filter->>'batch_id' = $1
`

func (q *Queries) CountActiveExportsForBatch(ctx context.Context, batchID string) (int64, error) {
	row := q.db.QueryRow(ctx, countActiveExportsForBatch, batchID)
	var n int64
	err := row.Scan(&n)
	return n, err
}

const insertProperty = `-- name: InsertProperty :one
INSERT INTO properties (batch_id, parcel_no, owner_name, address, zone, usage_type, lat, lng)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, batch_id, parcel_no, owner_name, address, zone, usage_type, lat, lng, status, assigned_to, created_at, updated_at
`

type InsertPropertyParams struct {
	BatchID   string
	ParcelNo  string
	OwnerName string
	Address   string
	Zone      *string
	UsageType *string
	Lat       *float64
	Lng       *float64
}

func (q *Queries) InsertProperty(ctx context.Context, arg InsertPropertyParams) (Property, error) {
	row := q.db.QueryRow(ctx, insertProperty,
		arg.BatchID,
		arg.ParcelNo,
		arg.OwnerName,
		arg.Address,
		arg.Zone,
		arg.UsageType,
		arg.Lat,
		arg.Lng,
	)
	return scanProperty(row)
}

func scanProperty(row pgx.Row) (Property, error) {
	var i Property
	err := row.Scan(
		&i.ID,
		&i.BatchID,
		&i.ParcelNo,
		&i.OwnerName,
		&i.Address,
		&i.Zone,
		&i.UsageType,
		&i.Lat,
		&i.Lng,
		&i.Status,
		&i.AssignedTo,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const propertyColumns = `p.id, p.batch_id, p.parcel_no, p.owner_name, p.address, p.zone, p.usage_type, p.lat, p.lng, p.status, p.assigned_to, p.created_at, p.updated_at`

const getProperty = `-- name: GetProperty :one
SELECT ` + propertyColumns + `
FROM properties p
WHERE p.id = $1
`

func (q *Queries) GetProperty(ctx context.Context, id string) (Property, error) {
	return scanProperty(q.db.QueryRow(ctx, getProperty, id))
}

const listPropertiesPage = `-- name: ListPropertiesPage :many
SELECT ` + propertyColumns + `
FROM properties p
WHERE ($1::uuid IS NULL OR p.batch_id = $1)
  AND ($2::text IS NULL OR p.status = $2)
  AND ($3::uuid IS NULL OR p.assigned_to = $3)
  AND (
    $4::text IS NULL
    OR p.parcel_no ILIKE '%' || $4 || '%'
    OR p.owner_name ILIKE '%' || $4 || '%'
    OR p.address ILIKE '%' || $4 || '%'
  )
ORDER BY p.created_at DESC, p.id
LIMIT $5 OFFSET $6
`

type ListPropertiesPageParams struct {
	BatchID    *string
	Status     *string
	AssignedTo *string
	Search     *string
	Limit      int32
	Offset     int32
}

func (q *Queries) ListPropertiesPage(ctx context.Context, arg ListPropertiesPageParams) ([]Property, error) {
	rows, err := q.db.Query(ctx, listPropertiesPage,
		arg.BatchID,
		arg.Status,
		arg.AssignedTo,
		arg.Search,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Property
	for rows.Next() {
		i, err := scanPropertyRows(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanPropertyRows(rows pgx.Rows) (Property, error) {
	var i Property
	err := rows.Scan(
		&i.ID,
		&i.BatchID,
		&i.ParcelNo,
		&i.OwnerName,
		&i.Address,
		&i.Zone,
		&i.UsageType,
		&i.Lat,
		&i.Lng,
		&i.Status,
		&i.AssignedTo,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const countProperties = `-- name: CountProperties :one
SELECT COUNT(*)
FROM properties p
WHERE ($1::uuid IS NULL OR p.batch_id = $1)
  AND ($2::text IS NULL OR p.status = $2)
  AND ($3::uuid IS NULL OR p.assigned_to = $3)
  AND (
    $4::text IS NULL
    OR p.parcel_no ILIKE '%' || $4 || '%'
    OR p.owner_name ILIKE '%' || $4 || '%'
    OR p.address ILIKE '%' || $4 || '%'
  )
`

type CountPropertiesParams struct {
	BatchID    *string
	Status     *string
	AssignedTo *string
	Search     *string
}

func (q *Queries) CountProperties(ctx context.Context, arg CountPropertiesParams) (int64, error) {
	row := q.db.QueryRow(ctx, countProperties, arg.BatchID, arg.Status, arg.AssignedTo, arg.Search)
	var n int64
	err := row.Scan(&n)
	return n, err
}

const listAssignedProperties = `-- name: ListAssignedProperties :many
SELECT ` + propertyColumns + `
FROM properties p
WHERE p.assigned_to = $1
  AND p.status IN ('assigned', 'surveyed', 'rejected')
ORDER BY p.updated_at DESC, p.id
`

func (q *Queries) ListAssignedProperties(ctx context.Context, employeeID string) ([]Property, error) {
	rows, err := q.db.Query(ctx, listAssignedProperties, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Property
	for rows.Next() {
		i, err := scanPropertyRows(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const assignProperties = `-- name: AssignProperties :execrows
UPDATE properties
SET assigned_to = $2,
    status = 'assigned',
    updated_at = NOW()
WHERE id = ANY($1::uuid[])
  AND status IN ('unassigned', 'assigned')
`

type AssignPropertiesParams struct {
	IDs        []string
	EmployeeID string
}

func (q *Queries) AssignProperties(ctx context.Context, arg AssignPropertiesParams) (int64, error) {
	tag, err := q.db.Exec(ctx, assignProperties, arg.IDs, arg.EmployeeID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const unassignProperties = `-- name: UnassignProperties :execrows
UPDATE properties
SET assigned_to = NULL,
    status = 'unassigned',
    updated_at = NOW()
WHERE id = ANY($1::uuid[])
  AND status = 'assigned'
`

func (q *Queries) UnassignProperties(ctx context.Context, ids []string) (int64, error) {
	tag, err := q.db.Exec(ctx, unassignProperties, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteProperties = `-- name: DeleteProperties :execrows
DELETE FROM properties
WHERE id = ANY($1::uuid[])
`

func (q *Queries) DeleteProperties(ctx context.Context, ids []string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteProperties, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const setPropertyStatus = `-- name: SetPropertyStatus :execrows
UPDATE properties
SET status = $2,
    updated_at = NOW()
WHERE id = $1
`

type SetPropertyStatusParams struct {
	ID     string
	Status string
}

func (q *Queries) SetPropertyStatus(ctx context.Context, arg SetPropertyStatusParams) (int64, error) {
	tag, err := q.db.Exec(ctx, setPropertyStatus, arg.ID, arg.Status)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const surveyColumns = `s.id, s.property_id, s.employee_id, s.respondent_name, s.respondent_phone, s.notes, s.lat, s.lng, s.accuracy_m, s.signature_url, s.status, s.review_note, s.reviewed_by, s.submitted_at, s.reviewed_at`

const insertSurvey = `-- name: InsertSurvey :one
INSERT INTO surveys (property_id, employee_id, respondent_name, respondent_phone, notes, lat, lng, accuracy_m, signature_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, property_id, employee_id, respondent_name, respondent_phone, notes, lat, lng, accuracy_m, signature_url, status, review_note, reviewed_by, submitted_at, reviewed_at
`

type InsertSurveyParams struct {
	PropertyID      string
	EmployeeID      string
	RespondentName  string
	RespondentPhone *string
	Notes           *string
	Lat             float64
	Lng             float64
	AccuracyM       *float64
	SignatureURL    string
}

func (q *Queries) InsertSurvey(ctx context.Context, arg InsertSurveyParams) (Survey, error) {
	row := q.db.QueryRow(ctx, insertSurvey,
		arg.PropertyID,
		arg.EmployeeID,
		arg.RespondentName,
		arg.RespondentPhone,
		arg.Notes,
		arg.Lat,
		arg.Lng,
		arg.AccuracyM,
		arg.SignatureURL,
	)
	return scanSurvey(row)
}

func scanSurvey(row pgx.Row) (Survey, error) {
	var i Survey
	err := row.Scan(
		&i.ID,
		&i.PropertyID,
		&i.EmployeeID,
		&i.RespondentName,
		&i.RespondentPhone,
		&i.Notes,
		&i.Lat,
		&i.Lng,
		&i.AccuracyM,
		&i.SignatureURL,
		&i.Status,
		&i.ReviewNote,
		&i.ReviewedBy,
		&i.SubmittedAt,
		&i.ReviewedAt,
	)
	return i, err
}

const deleteSurveyForProperty = `-- name: DeleteSurveyForProperty :execrows
DELETE FROM surveys
WHERE property_id = $1
`

func (q *Queries) DeleteSurveyForProperty(ctx context.Context, propertyID string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteSurveyForProperty, propertyID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const getSurvey = `-- name: GetSurvey :one
SELECT ` + surveyColumns + `
FROM surveys s
WHERE s.id = $1
`

func (q *Queries) GetSurvey(ctx context.Context, id string) (Survey, error) {
	return scanSurvey(q.db.QueryRow(ctx, getSurvey, id))
}

const getSurveyByProperty = `-- name: GetSurveyByProperty :one
SELECT ` + surveyColumns + `
FROM surveys s
WHERE s.property_id = $1
`

func (q *Queries) GetSurveyByProperty(ctx context.Context, propertyID string) (Survey, error) {
	return scanSurvey(q.db.QueryRow(ctx, getSurveyByProperty, propertyID))
}

const listSurveys = `-- name: ListSurveys :many
SELECT ` + surveyColumns + `
FROM surveys s
JOIN properties p ON p.id = s.property_id
WHERE ($1::text IS NULL OR s.status = $1)
  AND ($2::uuid IS NULL OR p.batch_id = $2)
ORDER BY s.submitted_at DESC
`

type ListSurveysParams struct {
	Status  *string
	BatchID *string
}

func (q *Queries) ListSurveys(ctx context.Context, arg ListSurveysParams) ([]Survey, error) {
	rows, err := q.db.Query(ctx, listSurveys, arg.Status, arg.BatchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Survey
	for rows.Next() {
		var i Survey
		if err := rows.Scan(
			&i.ID,
			&i.PropertyID,
			&i.EmployeeID,
			&i.RespondentName,
			&i.RespondentPhone,
			&i.Notes,
			&i.Lat,
			&i.Lng,
			&i.AccuracyM,
			&i.SignatureURL,
			&i.Status,
			&i.ReviewNote,
			&i.ReviewedBy,
			&i.SubmittedAt,
			&i.ReviewedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const reviewSurvey = `-- name: ReviewSurvey :one
UPDATE surveys s
SET status = $2,
    review_note = $3,
    reviewed_by = $4,
    reviewed_at = NOW()
WHERE s.id = $1
  AND s.status = 'submitted'
RETURNING ` + surveyColumns + `
`

type ReviewSurveyParams struct {
	ID         string
	Status     string
	ReviewNote *string
	ReviewedBy string
}

func (q *Queries) ReviewSurvey(ctx context.Context, arg ReviewSurveyParams) (Survey, error) {
	row := q.db.QueryRow(ctx, reviewSurvey, arg.ID, arg.Status, arg.ReviewNote, arg.ReviewedBy)
	return scanSurvey(row)
}

const insertSurveyPhoto = `-- name: InsertSurveyPhoto :exec
INSERT INTO survey_photos (survey_id, url, original_name, lat, lng, captured_at, position)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

type InsertSurveyPhotoParams struct {
	SurveyID     string
	URL          string
	OriginalName *string
	Lat          *float64
	Lng          *float64
	CapturedAt   time.Time
	Position     int32
}

func (q *Queries) InsertSurveyPhoto(ctx context.Context, arg InsertSurveyPhotoParams) error {
	_, err := q.db.Exec(ctx, insertSurveyPhoto,
		arg.SurveyID,
		arg.URL,
		arg.OriginalName,
		arg.Lat,
		arg.Lng,
		arg.CapturedAt,
		arg.Position,
	)
	return err
}

const listSurveyPhotos = `-- name: ListSurveyPhotos :many
SELECT id, survey_id, url, original_name, lat, lng, captured_at, position
FROM survey_photos
WHERE survey_id = $1
ORDER BY position ASC
`

func (q *Queries) ListSurveyPhotos(ctx context.Context, surveyID string) ([]SurveyPhoto, error) {
	rows, err := q.db.Query(ctx, listSurveyPhotos, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SurveyPhoto
	for rows.Next() {
		var i SurveyPhoto
		if err := rows.Scan(&i.ID, &i.SurveyID, &i.URL, &i.OriginalName, &i.Lat, &i.Lng, &i.CapturedAt, &i.Position); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const exportJobColumns = `id, status, filter, stats, requested_by, started_at, completed_at, last_error, result_url`

const insertExportJob = `-- name: InsertExportJob :one
INSERT INTO export_jobs (filter, requested_by)
VALUES (COALESCE($1, '{}'::jsonb), $2::uuid)
RETURNING ` + exportJobColumns + `
`

type InsertExportJobParams struct {
	Filter      map[string]any
	RequestedBy *string
}

func (q *Queries) InsertExportJob(ctx context.Context, arg InsertExportJobParams) (ExportJob, error) {
	row := q.db.QueryRow(ctx, insertExportJob, arg.Filter, arg.RequestedBy)
	return scanExportJob(row)
}

func scanExportJob(row pgx.Row) (ExportJob, error) {
	var i ExportJob
	err := row.Scan(
		&i.ID,
		&i.Status,
		&i.Filter,
		&i.Stats,
		&i.RequestedBy,
		&i.StartedAt,
		&i.CompletedAt,
		&i.LastError,
		&i.ResultURL,
	)
	return i, err
}

const getExportJob = `-- name: GetExportJob :one
SELECT ` + exportJobColumns + `
FROM export_jobs
WHERE id = $1
`

func (q *Queries) GetExportJob(ctx context.Context, id string) (ExportJob, error) {
	return scanExportJob(q.db.QueryRow(ctx, getExportJob, id))
}

const listExportJobs = `-- name: ListExportJobs :many
SELECT ` + exportJobColumns + `
FROM export_jobs
ORDER BY started_at DESC
LIMIT 100
`

func (q *Queries) ListExportJobs(ctx context.Context) ([]ExportJob, error) {
	rows, err := q.db.Query(ctx, listExportJobs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ExportJob
	for rows.Next() {
		var i ExportJob
		if err := rows.Scan(
			&i.ID,
			&i.Status,
			&i.Filter,
			&i.Stats,
			&i.RequestedBy,
			&i.StartedAt,
			&i.CompletedAt,
			&i.LastError,
			&i.ResultURL,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const claimNextExportJob = `-- name: ClaimNextExportJob :one
WITH next AS (
  SELECT id
  FROM export_jobs
  WHERE status = 'queued'
  ORDER BY started_at ASC
  LIMIT 1
  FOR UPDATE SKIP LOCKED
)
UPDATE export_jobs ej
SET status = 'running',
    completed_at = NULL,
    last_error = NULL
FROM next
WHERE ej.id = next.id
RETURNING ej.id, ej.status, ej.filter, ej.stats, ej.requested_by, ej.started_at, ej.completed_at, ej.last_error, ej.result_url
`

func (q *Queries) ClaimNextExportJob(ctx context.Context) (ExportJob, error) {
	return scanExportJob(q.db.QueryRow(ctx, claimNextExportJob))
}

const updateExportJob = `-- name: UpdateExportJob :one
UPDATE export_jobs
SET status = $2,
    stats = COALESCE($3, stats),
    completed_at = $4,
    last_error = $5,
    result_url = COALESCE($6, result_url)
WHERE id = $1
RETURNING ` + exportJobColumns + `
`

type UpdateExportJobParams struct {
	ID          string
	Status      string
	Stats       map[string]any
	CompletedAt *time.Time
	LastError   *string
	ResultURL   *string
}

func (q *Queries) UpdateExportJob(ctx context.Context, arg UpdateExportJobParams) (ExportJob, error) {
	row := q.db.QueryRow(ctx, updateExportJob,
		arg.ID,
		arg.Status,
		arg.Stats,
		arg.CompletedAt,
		arg.LastError,
		arg.ResultURL,
	)
	return scanExportJob(row)
}

const listExportRows = `-- name: ListExportRows :many
SELECT p.parcel_no,
       p.owner_name,
       p.address,
       p.zone,
       p.usage_type,
       p.status,
       u.full_name AS assignee_name,
       s.respondent_name,
       s.respondent_phone,
       s.lat,
       s.lng,
       (SELECT COUNT(*) FROM survey_photos sp WHERE sp.survey_id = s.id) AS photo_count,
       s.submitted_at,
       s.reviewed_at
FROM properties p
LEFT JOIN users u ON u.id = p.assigned_to
LEFT JOIN surveys s ON s.property_id = p.id
WHERE ($1::uuid IS NULL OR p.batch_id = $1)
  AND ($2::text IS NULL OR p.status = $2)
ORDER BY p.parcel_no ASC, p.created_at ASC
LIMIT $3
`

type ListExportRowsParams struct {
	BatchID *string
	Status  *string
	Limit   int32
}

func (q *Queries) ListExportRows(ctx context.Context, arg ListExportRowsParams) ([]ExportRow, error) {
	rows, err := q.db.Query(ctx, listExportRows, arg.BatchID, arg.Status, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ExportRow
	for rows.Next() {
		var i ExportRow
		if err := rows.Scan(
			&i.ParcelNo,
			&i.OwnerName,
			&i.Address,
			&i.Zone,
			&i.UsageType,
			&i.Status,
			&i.AssigneeName,
			&i.RespondentName,
			&i.RespondentPhone,
			&i.Lat,
			&i.Lng,
			&i.PhotoCount,
			&i.SubmittedAt,
			&i.ReviewedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
