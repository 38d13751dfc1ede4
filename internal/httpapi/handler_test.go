package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"prop_survey/core-go/internal/filestore"
	"prop_survey/core-go/internal/security"
	"prop_survey/core-go/internal/sqlcgen"
)

type fakeAuthQueries struct {
	getUserByEmailFn func(ctx context.Context, email string) (sqlcgen.User, error)
	createSessionFn  func(ctx context.Context, arg sqlcgen.CreateSessionParams) error
	getSessionFn     func(ctx context.Context, token string) (sqlcgen.SessionUser, error)
	revokeFn         func(ctx context.Context, token string) (int64, error)
}

func (f fakeAuthQueries) GetUserByEmail(ctx context.Context, email string) (sqlcgen.User, error) {
	if f.getUserByEmailFn == nil {
		return sqlcgen.User{}, pgx.ErrNoRows
	}
	return f.getUserByEmailFn(ctx, email)
}

func (f fakeAuthQueries) CreateSession(ctx context.Context, arg sqlcgen.CreateSessionParams) error {
	if f.createSessionFn == nil {
		return nil
	}
	return f.createSessionFn(ctx, arg)
}

func (f fakeAuthQueries) GetSessionUser(ctx context.Context, token string) (sqlcgen.SessionUser, error) {
	if f.getSessionFn == nil {
		return sqlcgen.SessionUser{}, pgx.ErrNoRows
	}
	return f.getSessionFn(ctx, token)
}

func (f fakeAuthQueries) RevokeSession(ctx context.Context, token string) (int64, error) {
	if f.revokeFn == nil {
		return 1, nil
	}
	return f.revokeFn(ctx, token)
}

type fakeUserQueries struct {
	listFn       func(ctx context.Context, role *string) ([]sqlcgen.User, error)
	createFn     func(ctx context.Context, arg sqlcgen.CreateUserParams) (sqlcgen.User, error)
	getFn        func(ctx context.Context, id string) (sqlcgen.User, error)
	deactivateFn func(ctx context.Context, id string) (int64, error)
}

func (f fakeUserQueries) ListUsers(ctx context.Context, role *string) ([]sqlcgen.User, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx, role)
}

func (f fakeUserQueries) CreateUser(ctx context.Context, arg sqlcgen.CreateUserParams) (sqlcgen.User, error) {
	if f.createFn == nil {
		return sqlcgen.User{}, nil
	}
	return f.createFn(ctx, arg)
}

func (f fakeUserQueries) GetUser(ctx context.Context, id string) (sqlcgen.User, error) {
	if f.getFn == nil {
		return sqlcgen.User{}, pgx.ErrNoRows
	}
	return f.getFn(ctx, id)
}

func (f fakeUserQueries) DeactivateUser(ctx context.Context, id string) (int64, error) {
	if f.deactivateFn == nil {
		return 1, nil
	}
	return f.deactivateFn(ctx, id)
}

type fakePropertyQueries struct {
	listPageFn     func(ctx context.Context, arg sqlcgen.ListPropertiesPageParams) ([]sqlcgen.Property, error)
	countFn        func(ctx context.Context, arg sqlcgen.CountPropertiesParams) (int64, error)
	getFn          func(ctx context.Context, id string) (sqlcgen.Property, error)
	getUserFn      func(ctx context.Context, id string) (sqlcgen.User, error)
	assignFn       func(ctx context.Context, arg sqlcgen.AssignPropertiesParams) (int64, error)
	unassignFn     func(ctx context.Context, ids []string) (int64, error)
	deleteFn       func(ctx context.Context, ids []string) (int64, error)
	listAssignedFn func(ctx context.Context, employeeID string) ([]sqlcgen.Property, error)
	getSurveyFn    func(ctx context.Context, propertyID string) (sqlcgen.Survey, error)
	listPhotosFn   func(ctx context.Context, surveyID string) ([]sqlcgen.SurveyPhoto, error)
}

func (f fakePropertyQueries) ListPropertiesPage(ctx context.Context, arg sqlcgen.ListPropertiesPageParams) ([]sqlcgen.Property, error) {
	if f.listPageFn == nil {
		return nil, nil
	}
	return f.listPageFn(ctx, arg)
}

func (f fakePropertyQueries) CountProperties(ctx context.Context, arg sqlcgen.CountPropertiesParams) (int64, error) {
	if f.countFn == nil {
		return 0, nil
	}
	return f.countFn(ctx, arg)
}

func (f fakePropertyQueries) GetProperty(ctx context.Context, id string) (sqlcgen.Property, error) {
	if f.getFn == nil {
		return sqlcgen.Property{}, pgx.ErrNoRows
	}
	return f.getFn(ctx, id)
}

func (f fakePropertyQueries) GetUser(ctx context.Context, id string) (sqlcgen.User, error) {
	if f.getUserFn == nil {
		return sqlcgen.User{}, pgx.ErrNoRows
	}
	return f.getUserFn(ctx, id)
}

func (f fakePropertyQueries) AssignProperties(ctx context.Context, arg sqlcgen.AssignPropertiesParams) (int64, error) {
	if f.assignFn == nil {
		return 0, nil
	}
	return f.assignFn(ctx, arg)
}

func (f fakePropertyQueries) UnassignProperties(ctx context.Context, ids []string) (int64, error) {
	if f.unassignFn == nil {
		return 0, nil
	}
	return f.unassignFn(ctx, ids)
}

func (f fakePropertyQueries) DeleteProperties(ctx context.Context, ids []string) (int64, error) {
	if f.deleteFn == nil {
		return 0, nil
	}
	return f.deleteFn(ctx, ids)
}

func (f fakePropertyQueries) ListAssignedProperties(ctx context.Context, employeeID string) ([]sqlcgen.Property, error) {
	if f.listAssignedFn == nil {
		return nil, nil
	}
	return f.listAssignedFn(ctx, employeeID)
}

func (f fakePropertyQueries) GetSurveyByProperty(ctx context.Context, propertyID string) (sqlcgen.Survey, error) {
	if f.getSurveyFn == nil {
		return sqlcgen.Survey{}, pgx.ErrNoRows
	}
	return f.getSurveyFn(ctx, propertyID)
}

func (f fakePropertyQueries) ListSurveyPhotos(ctx context.Context, surveyID string) ([]sqlcgen.SurveyPhoto, error) {
	if f.listPhotosFn == nil {
		return nil, nil
	}
	return f.listPhotosFn(ctx, surveyID)
}

type fakeSurveyQueries struct {
	getPropertyFn   func(ctx context.Context, id string) (sqlcgen.Property, error)
	insertFn        func(ctx context.Context, arg sqlcgen.InsertSurveyParams) (sqlcgen.Survey, error)
	insertPhotoFn   func(ctx context.Context, arg sqlcgen.InsertSurveyPhotoParams) error
	deleteForPropFn func(ctx context.Context, propertyID string) (int64, error)
	setStatusFn     func(ctx context.Context, arg sqlcgen.SetPropertyStatusParams) (int64, error)
	listFn          func(ctx context.Context, arg sqlcgen.ListSurveysParams) ([]sqlcgen.Survey, error)
	getFn           func(ctx context.Context, id string) (sqlcgen.Survey, error)
	getByPropFn     func(ctx context.Context, propertyID string) (sqlcgen.Survey, error)
	listPhotosFn    func(ctx context.Context, surveyID string) ([]sqlcgen.SurveyPhoto, error)
	reviewFn        func(ctx context.Context, arg sqlcgen.ReviewSurveyParams) (sqlcgen.Survey, error)
}

func (f fakeSurveyQueries) GetProperty(ctx context.Context, id string) (sqlcgen.Property, error) {
	if f.getPropertyFn == nil {
		return sqlcgen.Property{}, pgx.ErrNoRows
	}
	return f.getPropertyFn(ctx, id)
}

func (f fakeSurveyQueries) InsertSurvey(ctx context.Context, arg sqlcgen.InsertSurveyParams) (sqlcgen.Survey, error) {
	if f.insertFn == nil {
		return sqlcgen.Survey{}, nil
	}
	return f.insertFn(ctx, arg)
}

func (f fakeSurveyQueries) InsertSurveyPhoto(ctx context.Context, arg sqlcgen.InsertSurveyPhotoParams) error {
	if f.insertPhotoFn == nil {
		return nil
	}
	return f.insertPhotoFn(ctx, arg)
}

func (f fakeSurveyQueries) DeleteSurveyForProperty(ctx context.Context, propertyID string) (int64, error) {
	if f.deleteForPropFn == nil {
		return 0, nil
	}
	return f.deleteForPropFn(ctx, propertyID)
}

func (f fakeSurveyQueries) SetPropertyStatus(ctx context.Context, arg sqlcgen.SetPropertyStatusParams) (int64, error) {
	if f.setStatusFn == nil {
		return 1, nil
	}
	return f.setStatusFn(ctx, arg)
}

func (f fakeSurveyQueries) ListSurveys(ctx context.Context, arg sqlcgen.ListSurveysParams) ([]sqlcgen.Survey, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx, arg)
}

func (f fakeSurveyQueries) GetSurvey(ctx context.Context, id string) (sqlcgen.Survey, error) {
	if f.getFn == nil {
		return sqlcgen.Survey{}, pgx.ErrNoRows
	}
	return f.getFn(ctx, id)
}

func (f fakeSurveyQueries) GetSurveyByProperty(ctx context.Context, propertyID string) (sqlcgen.Survey, error) {
	if f.getByPropFn == nil {
		return sqlcgen.Survey{}, pgx.ErrNoRows
	}
	return f.getByPropFn(ctx, propertyID)
}

func (f fakeSurveyQueries) ListSurveyPhotos(ctx context.Context, surveyID string) ([]sqlcgen.SurveyPhoto, error) {
	if f.listPhotosFn == nil {
		return nil, nil
	}
	return f.listPhotosFn(ctx, surveyID)
}

func (f fakeSurveyQueries) ReviewSurvey(ctx context.Context, arg sqlcgen.ReviewSurveyParams) (sqlcgen.Survey, error) {
	if f.reviewFn == nil {
		return sqlcgen.Survey{}, pgx.ErrNoRows
	}
	return f.reviewFn(ctx, arg)
}

type fakeExportQueries struct {
	insertFn func(ctx context.Context, arg sqlcgen.InsertExportJobParams) (sqlcgen.ExportJob, error)
	listFn   func(ctx context.Context) ([]sqlcgen.ExportJob, error)
	getFn    func(ctx context.Context, id string) (sqlcgen.ExportJob, error)
}

func (f fakeExportQueries) InsertExportJob(ctx context.Context, arg sqlcgen.InsertExportJobParams) (sqlcgen.ExportJob, error) {
	if f.insertFn == nil {
		return sqlcgen.ExportJob{}, nil
	}
	return f.insertFn(ctx, arg)
}

func (f fakeExportQueries) ListExportJobs(ctx context.Context) ([]sqlcgen.ExportJob, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx)
}

func (f fakeExportQueries) GetExportJob(ctx context.Context, id string) (sqlcgen.ExportJob, error) {
	if f.getFn == nil {
		return sqlcgen.ExportJob{}, pgx.ErrNoRows
	}
	return f.getFn(ctx, id)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode body as json: %v\nbody=%s", err, rr.Body.String())
	}
	return v
}

// sessionAuth returns a fake auth layer that resolves any token to the given
// user identity.
func sessionAuth(userID, role string) fakeAuthQueries {
	return fakeAuthQueries{
		getSessionFn: func(ctx context.Context, token string) (sqlcgen.SessionUser, error) {
			return sqlcgen.SessionUser{
				Token:     token,
				ExpiresAt: time.Now().Add(time.Hour),
				UserID:    userID,
				Email:     "user@example.com",
				FullName:  "Test User",
				Role:      role,
				Active:    true,
			}, nil
		},
	}
}

func TestLogin_OK(t *testing.T) {
	hash, err := security.HashPassword("correct-horse-1")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	h := NewHandler(NewLogger("debug"), nil, Options{})
	h.auth = fakeAuthQueries{
		getUserByEmailFn: func(ctx context.Context, email string) (sqlcgen.User, error) {
			return sqlcgen.User{
				ID:           "00000000-0000-0000-0000-000000000001",
				Email:        email,
				FullName:     "Admin",
				Role:         "admin",
				PasswordHash: hash,
				Active:       true,
			}, nil
		},
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"admin@example.com","password":"correct-horse-1"}`))
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["token"] == "" || body["token"] == nil {
		t.Fatalf("expected a session token, got %v", body["token"])
	}
}

func TestLogin_WrongPassword_Unauthorized(t *testing.T) {
	hash, err := security.HashPassword("correct-horse-1")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	h := NewHandler(NewLogger("debug"), nil, Options{})
	h.auth = fakeAuthQueries{
		getUserByEmailFn: func(ctx context.Context, email string) (sqlcgen.User, error) {
			return sqlcgen.User{Email: email, PasswordHash: hash, Active: true}, nil
		},
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"admin@example.com","password":"wrong"}`))
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAuth_MissingToken_Unauthorized(t *testing.T) {
	h := NewHandler(NewLogger("debug"), nil, Options{})
	h.auth = fakeAuthQueries{}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/assignments", nil)
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUsers_RequiresAdminRole(t *testing.T) {
	h := NewHandler(NewLogger("debug"), nil, Options{})
	h.auth = sessionAuth("00000000-0000-0000-0000-000000000002", "employee")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer tok")
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUsers_Create_DuplicateEmail_Conflict(t *testing.T) {
	h := NewHandler(NewLogger("debug"), nil, Options{})
	h.auth = sessionAuth("00000000-0000-0000-0000-000000000001", "admin")
	h.users = fakeUserQueries{
		createFn: func(ctx context.Context, arg sqlcgen.CreateUserParams) (sqlcgen.User, error) {
			return sqlcgen.User{}, &pgconn.PgError{Code: "23505"}
		},
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users",
		strings.NewReader(`{"email":"dup@example.com","full_name":"Dup","role":"employee","password":"long-enough-pw"}`))
	req.Header.Set("Authorization", "Bearer tok")
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUploadBatch_OversizedWorkbook_PayloadTooLarge(t *testing.T) {
	h := NewHandler(NewLogger("debug"), nil, Options{})
	h.auth = sessionAuth("00000000-0000-0000-0000-000000000001", "admin")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "big.xlsx")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(make([]byte, maxBatchUploadBytes+1)); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", &body)
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "payload_too_large") {
		t.Fatalf("expected payload_too_large error code, got %s", rr.Body.String())
	}
}

func TestProperties_List_BadPage(t *testing.T) {
	h := NewHandler(NewLogger("debug"), nil, Options{})
	h.auth = sessionAuth("00000000-0000-0000-0000-000000000001", "admin")
	h.properties = fakePropertyQueries{}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/properties?page=0", nil)
	req.Header.Set("Authorization", "Bearer tok")
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAssignments_NearestFirst(t *testing.T) {
	employeeID := "00000000-0000-0000-0000-000000000002"
	h := NewHandler(NewLogger("debug"), nil, Options{})
	h.auth = sessionAuth(employeeID, "employee")

	far := 10.0
	near := 1.0
	lng := 1.0
	h.properties = fakePropertyQueries{
		listAssignedFn: func(ctx context.Context, id string) ([]sqlcgen.Property, error) {
			if id != employeeID {
				t.Errorf("expected employee id %s, got %s", employeeID, id)
			}
			return []sqlcgen.Property{
				{ID: "far", ParcelNo: "P-2", Lat: &far, Lng: &lng, Status: "assigned"},
				{ID: "near", ParcelNo: "P-1", Lat: &near, Lng: &lng, Status: "assigned"},
				{ID: "nofix", ParcelNo: "P-3", Status: "assigned"},
			}, nil
		},
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/assignments?lat=0&lng=1", nil)
	req.Header.Set("Authorization", "Bearer tok")
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var items []struct {
		ID        string   `json:"id"`
		DistanceM *float64 `json:"distance_m"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].ID != "near" || items[1].ID != "far" || items[2].ID != "nofix" {
		t.Fatalf("unexpected order: %s, %s, %s", items[0].ID, items[1].ID, items[2].ID)
	}
	if items[0].DistanceM == nil || items[1].DistanceM == nil {
		t.Fatal("expected distance_m on located items")
	}
	if *items[0].DistanceM >= *items[1].DistanceM {
		t.Fatalf("expected nearest first: %f >= %f", *items[0].DistanceM, *items[1].DistanceM)
	}
	if items[2].DistanceM != nil {
		t.Fatal("expected no distance_m on the unlocated item")
	}
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 30), uint8(y * 30), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func surveyForm(t *testing.T, photo []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("respondent_name", "Owner Person")
	_ = mw.WriteField("lat", "24.7136")
	_ = mw.WriteField("lng", "46.6753")
	_ = mw.WriteField("accuracy_m", "8.5")
	_ = mw.WriteField("signature", "data:image/png;base64,"+base64.StdEncoding.EncodeToString(photo))
	fw, err := mw.CreateFormFile("photos", "site.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(photo); err != nil {
		t.Fatalf("write photo: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func TestSubmitSurvey_OK(t *testing.T) {
	employeeID := "00000000-0000-0000-0000-000000000002"
	propertyID := "00000000-0000-0000-0000-000000000010"

	var statusSet string
	h := NewHandler(NewLogger("debug"), nil, Options{
		Store: filestore.New("file://" + t.TempDir()),
	})
	h.auth = sessionAuth(employeeID, "employee")
	h.surveys = fakeSurveyQueries{
		getPropertyFn: func(ctx context.Context, id string) (sqlcgen.Property, error) {
			return sqlcgen.Property{ID: id, Status: "assigned", AssignedTo: &employeeID}, nil
		},
		insertFn: func(ctx context.Context, arg sqlcgen.InsertSurveyParams) (sqlcgen.Survey, error) {
			if arg.RespondentName != "Owner Person" {
				t.Errorf("unexpected respondent: %q", arg.RespondentName)
			}
			if arg.SignatureURL == "" {
				t.Error("expected a stored signature url")
			}
			return sqlcgen.Survey{
				ID:             "00000000-0000-0000-0000-000000000020",
				PropertyID:     arg.PropertyID,
				EmployeeID:     arg.EmployeeID,
				RespondentName: arg.RespondentName,
				Lat:            arg.Lat,
				Lng:            arg.Lng,
				SignatureURL:   arg.SignatureURL,
				Status:         "submitted",
				SubmittedAt:    time.Now(),
			}, nil
		},
		setStatusFn: func(ctx context.Context, arg sqlcgen.SetPropertyStatusParams) (int64, error) {
			statusSet = arg.Status
			return 1, nil
		},
	}

	body, contentType := surveyForm(t, tinyPNG(t))
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/properties/"+propertyID+"/survey", body)
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("Content-Type", contentType)
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if statusSet != "surveyed" {
		t.Fatalf("expected property flipped to surveyed, got %q", statusSet)
	}

	resp := decodeBody(t, rr)
	if resp["status"] != "submitted" {
		t.Fatalf("expected submitted survey, got %v", resp["status"])
	}
	photos, ok := resp["photos"].([]any)
	if !ok || len(photos) != 1 {
		t.Fatalf("expected 1 stored photo, got %v", resp["photos"])
	}
}

func TestSubmitSurvey_NotAssignee_Forbidden(t *testing.T) {
	other := "00000000-0000-0000-0000-000000000099"
	h := NewHandler(NewLogger("debug"), nil, Options{})
	h.auth = sessionAuth("00000000-0000-0000-0000-000000000002", "employee")
	h.surveys = fakeSurveyQueries{
		getPropertyFn: func(ctx context.Context, id string) (sqlcgen.Property, error) {
			return sqlcgen.Property{ID: id, Status: "assigned", AssignedTo: &other}, nil
		},
	}

	body, contentType := surveyForm(t, tinyPNG(t))
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/properties/00000000-0000-0000-0000-000000000010/survey", body)
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("Content-Type", contentType)
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestSubmitSurvey_AdminForbidden(t *testing.T) {
	h := NewHandler(NewLogger("debug"), nil, Options{})
	h.auth = sessionAuth("00000000-0000-0000-0000-000000000001", "admin")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/properties/00000000-0000-0000-0000-000000000010/survey", nil)
	req.Header.Set("Authorization", "Bearer tok")
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestReviewSurvey_AlreadyReviewed_Conflict(t *testing.T) {
	h := NewHandler(NewLogger("debug"), nil, Options{})
	h.auth = sessionAuth("00000000-0000-0000-0000-000000000001", "admin")
	h.surveys = fakeSurveyQueries{
		reviewFn: func(ctx context.Context, arg sqlcgen.ReviewSurveyParams) (sqlcgen.Survey, error) {
			return sqlcgen.Survey{}, pgx.ErrNoRows
		},
		getFn: func(ctx context.Context, id string) (sqlcgen.Survey, error) {
			return sqlcgen.Survey{ID: id, Status: "approved"}, nil
		},
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/surveys/00000000-0000-0000-0000-000000000020/review",
		strings.NewReader(`{"decision":"approve"}`))
	req.Header.Set("Authorization", "Bearer tok")
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestReviewSurvey_RejectRequiresNote(t *testing.T) {
	h := NewHandler(NewLogger("debug"), nil, Options{})
	h.auth = sessionAuth("00000000-0000-0000-0000-000000000001", "admin")
	h.surveys = fakeSurveyQueries{}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/surveys/00000000-0000-0000-0000-000000000020/review",
		strings.NewReader(`{"decision":"reject"}`))
	req.Header.Set("Authorization", "Bearer tok")
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateExport_Accepted(t *testing.T) {
	h := NewHandler(NewLogger("debug"), nil, Options{})
	h.auth = sessionAuth("00000000-0000-0000-0000-000000000001", "admin")
	h.exports = fakeExportQueries{
		insertFn: func(ctx context.Context, arg sqlcgen.InsertExportJobParams) (sqlcgen.ExportJob, error) {
			return sqlcgen.ExportJob{
				ID:        "00000000-0000-0000-0000-000000000030",
				Status:    "queued",
				Filter:    arg.Filter,
				StartedAt: time.Now(),
			}, nil
		},
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/exports", strings.NewReader(`{"status":"approved"}`))
	req.Header.Set("Authorization", "Bearer tok")
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["status"] != "queued" {
		t.Fatalf("expected queued job, got %v", body["status"])
	}
}

func TestDownloadExport_NotReady(t *testing.T) {
	h := NewHandler(NewLogger("debug"), nil, Options{})
	h.auth = sessionAuth("00000000-0000-0000-0000-000000000001", "admin")
	h.exports = fakeExportQueries{
		getFn: func(ctx context.Context, id string) (sqlcgen.ExportJob, error) {
			return sqlcgen.ExportJob{ID: id, Status: "running", StartedAt: time.Now()}, nil
		},
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/00000000-0000-0000-0000-000000000030/download", nil)
	req.Header.Set("Authorization", "Bearer tok")
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHealthz_OK(t *testing.T) {
	h := NewHandler(NewLogger("debug"), nil, Options{})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); !strings.Contains(got, "application/json") {
		t.Fatalf("expected json content-type, got %q", got)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header to be set")
	}
}
