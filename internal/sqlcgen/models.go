package sqlcgen

import "time"

type User struct {
	ID           string
	Email        string
	FullName     string
	Role         string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}

// SessionUser is the join row the auth middleware works with.
type SessionUser struct {
	Token     string
	ExpiresAt time.Time
	RevokedAt *time.Time
	UserID    string
	Email     string
	FullName  string
	Role      string
	Active    bool
}

type Batch struct {
	ID            string
	Name          string
	SourceFile    string
	Status        string
	UploadedBy    *string
	CreatedAt     time.Time
	ArchivedAt    *time.Time
	PropertyCount int64
	SurveyedCount int64
}

type Property struct {
	ID         string
	BatchID    string
	ParcelNo   string
	OwnerName  string
	Address    string
	Zone       *string
	UsageType  *string
	Lat        *float64
	Lng        *float64
	Status     string
	AssignedTo *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Survey struct {
	ID              string
	PropertyID      string
	EmployeeID      string
	RespondentName  string
	RespondentPhone *string
	Notes           *string
	Lat             float64
	Lng             float64
	AccuracyM       *float64
	SignatureURL    string
	Status          string
	ReviewNote      *string
	ReviewedBy      *string
	SubmittedAt     time.Time
	ReviewedAt      *time.Time
}

type SurveyPhoto struct {
	ID           int64
	SurveyID     string
	URL          string
	OriginalName *string
	Lat          *float64
	Lng          *float64
	CapturedAt   time.Time
	Position     int32
}

type ExportJob struct {
	ID          string
	Status      string
	Filter      map[string]any
	Stats       map[string]any
	RequestedBy *string
	StartedAt   time.Time
	CompletedAt *time.Time
	LastError   *string
	ResultURL   *string
}

// ExportRow is one line of the survey-report workbook.
type ExportRow struct {
	ParcelNo        string
	OwnerName       string
	Address         string
	Zone            *string
	UsageType       *string
	Status          string
	AssigneeName    *string
	RespondentName  *string
	RespondentPhone *string
	Lat             *float64
	Lng             *float64
	PhotoCount      int64
	SubmittedAt     *time.Time
	ReviewedAt      *time.Time
}
