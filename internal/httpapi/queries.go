package httpapi

import (
	"context"

	"prop_survey/core-go/internal/sqlcgen"
)

// Narrow per-area views of the query layer. *sqlcgen.Queries satisfies all
// of them; tests substitute hand-rolled fakes.

type authQueries interface {
	GetUserByEmail(ctx context.Context, email string) (sqlcgen.User, error)
	CreateSession(ctx context.Context, arg sqlcgen.CreateSessionParams) error
	GetSessionUser(ctx context.Context, token string) (sqlcgen.SessionUser, error)
	RevokeSession(ctx context.Context, token string) (int64, error)
}

type userQueries interface {
	ListUsers(ctx context.Context, role *string) ([]sqlcgen.User, error)
	CreateUser(ctx context.Context, arg sqlcgen.CreateUserParams) (sqlcgen.User, error)
	GetUser(ctx context.Context, id string) (sqlcgen.User, error)
	DeactivateUser(ctx context.Context, id string) (int64, error)
}

type batchQueries interface {
	CreateBatch(ctx context.Context, arg sqlcgen.CreateBatchParams) (sqlcgen.Batch, error)
	ListBatches(ctx context.Context) ([]sqlcgen.Batch, error)
	GetBatch(ctx context.Context, id string) (sqlcgen.Batch, error)
	SetBatchStatus(ctx context.Context, arg sqlcgen.SetBatchStatusParams) (sqlcgen.Batch, error)
	DeleteBatch(ctx context.Context, id string) (int64, error)
	CountActiveExportsForBatch(ctx context.Context, batchID string) (int64, error)
	InsertProperty(ctx context.Context, arg sqlcgen.InsertPropertyParams) (sqlcgen.Property, error)
}

type propertyQueries interface {
	ListPropertiesPage(ctx context.Context, arg sqlcgen.ListPropertiesPageParams) ([]sqlcgen.Property, error)
	CountProperties(ctx context.Context, arg sqlcgen.CountPropertiesParams) (int64, error)
	GetProperty(ctx context.Context, id string) (sqlcgen.Property, error)
	GetUser(ctx context.Context, id string) (sqlcgen.User, error)
	AssignProperties(ctx context.Context, arg sqlcgen.AssignPropertiesParams) (int64, error)
	UnassignProperties(ctx context.Context, ids []string) (int64, error)
	DeleteProperties(ctx context.Context, ids []string) (int64, error)
	ListAssignedProperties(ctx context.Context, employeeID string) ([]sqlcgen.Property, error)
	GetSurveyByProperty(ctx context.Context, propertyID string) (sqlcgen.Survey, error)
	ListSurveyPhotos(ctx context.Context, surveyID string) ([]sqlcgen.SurveyPhoto, error)
}

type surveyQueries interface {
	GetProperty(ctx context.Context, id string) (sqlcgen.Property, error)
	InsertSurvey(ctx context.Context, arg sqlcgen.InsertSurveyParams) (sqlcgen.Survey, error)
	InsertSurveyPhoto(ctx context.Context, arg sqlcgen.InsertSurveyPhotoParams) error
	DeleteSurveyForProperty(ctx context.Context, propertyID string) (int64, error)
	SetPropertyStatus(ctx context.Context, arg sqlcgen.SetPropertyStatusParams) (int64, error)
	ListSurveys(ctx context.Context, arg sqlcgen.ListSurveysParams) ([]sqlcgen.Survey, error)
	GetSurvey(ctx context.Context, id string) (sqlcgen.Survey, error)
	GetSurveyByProperty(ctx context.Context, propertyID string) (sqlcgen.Survey, error)
	ListSurveyPhotos(ctx context.Context, surveyID string) ([]sqlcgen.SurveyPhoto, error)
	ReviewSurvey(ctx context.Context, arg sqlcgen.ReviewSurveyParams) (sqlcgen.Survey, error)
}

type exportQueries interface {
	InsertExportJob(ctx context.Context, arg sqlcgen.InsertExportJobParams) (sqlcgen.ExportJob, error)
	ListExportJobs(ctx context.Context) ([]sqlcgen.ExportJob, error)
	GetExportJob(ctx context.Context, id string) (sqlcgen.ExportJob, error)
}

type auditQueries interface {
	InsertAuditEvent(ctx context.Context, arg sqlcgen.InsertAuditEventParams) error
}
