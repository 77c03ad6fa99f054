package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/civicpulse/hub/internal/api/dto"
	"github.com/civicpulse/hub/internal/domain"
)

// ErrorKind classifies a failed gateway call.
type ErrorKind string

const (
	KindTransport    ErrorKind = "TRANSPORT"
	KindStructured   ErrorKind = "STRUCTURED"
	KindPlainText    ErrorKind = "PLAIN_TEXT"
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindUnauthorized ErrorKind = "UNAUTHORIZED"
)

// APIError is the typed failure of every gateway operation. Message is what the
// backend said, or the transport error text when no response arrived.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Code    string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", strings.ToLower(string(e.Kind)), e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", strings.ToLower(string(e.Kind)), e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a gateway 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindNotFound
}

// IsUnauthorized reports whether err is a gateway 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindUnauthorized
}

// ParseLegacyUserID extracts n from a "Login Successful UserID:<n>" message.
func ParseLegacyUserID(message string) (int64, error) {
	idx := strings.LastIndex(message, "UserID:")
	if idx < 0 {
		return 0, fmt.Errorf("%w: no user id in %q", ErrInvalidSession, message)
	}
	raw := strings.TrimSpace(message[idx+len("UserID:"):])
	end := 0
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	id, err := strconv.ParseInt(raw[:end], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad user id in %q", ErrInvalidSession, message)
	}
	return id, nil
}

// Gateway is the typed client for the hub backend. Every call carries the bearer
// token of the current session when one is stored.
type Gateway struct {
	baseURL  string
	http     *http.Client
	sessions *Sessions
}

// NewGateway builds a gateway. A nil httpClient uses a client with timeout.
func NewGateway(baseURL string, httpClient *http.Client, sessions *Sessions, timeout time.Duration) *Gateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if sessions == nil {
		sessions = NewSessions(nil)
	}
	return &Gateway{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		sessions: sessions,
	}
}

// Sessions exposes the session store the gateway authenticates with.
func (g *Gateway) Sessions() *Sessions { return g.sessions }

// ImageURL is the download URL of a stored image path.
func (g *Gateway) ImageURL(path string) string {
	return g.baseURL + "/api/files/download/" + url.PathEscape(path)
}

// Signup registers a citizen.
func (g *Gateway) Signup(ctx context.Context, req dto.SignupRequest) (*dto.SignupResponse, error) {
	var out dto.SignupResponse
	if err := g.doJSON(ctx, http.MethodPost, "/api/users/signup", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoginUser authenticates a citizen and stores the session.
func (g *Gateway) LoginUser(ctx context.Context, email, password string) (Session, error) {
	return g.login(ctx, "/api/users/login", dto.LoginRequest{Email: email, Password: password})
}

// LoginAdmin authenticates an administrator and stores the session.
func (g *Gateway) LoginAdmin(ctx context.Context, email, password string) (Session, error) {
	return g.login(ctx, "/api/admin/login", dto.LoginRequest{Email: email, Password: password})
}

// LoginDepartment authenticates a department manager and stores the session.
func (g *Gateway) LoginDepartment(ctx context.Context, req dto.DepartmentLoginRequest) (Session, error) {
	return g.login(ctx, "/api/dept-manager/login", req)
}

// Logout clears the stored session. No backend call is made.
func (g *Gateway) Logout() error {
	return g.sessions.Logout()
}

func (g *Gateway) login(ctx context.Context, path string, body any) (Session, error) {
	var resp dto.AuthResponse
	if err := g.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return Session{}, err
	}
	session, err := SessionFromAuth(resp)
	if err != nil {
		return Session{}, err
	}
	if err := g.sessions.Login(session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// RaiseInput is the multipart complaint submission. Image is optional.
type RaiseInput struct {
	UserID      int64
	Title       string
	Category    string
	Description string
	Location    string
	City        string
	Image       []byte
	ImageName   string
}

// RaiseComplaint files a complaint for the citizen.
func (g *Gateway) RaiseComplaint(ctx context.Context, in RaiseInput) (*dto.RaiseComplaintResponse, error) {
	fields := map[string]string{
		"userId":      strconv.FormatInt(in.UserID, 10),
		"title":       in.Title,
		"category":    in.Category,
		"description": in.Description,
		"location":    in.Location,
		"city":        in.City,
	}
	body, contentType, err := multipartBody(fields, "image", in.ImageName, in.Image)
	if err != nil {
		return nil, err
	}
	var out dto.RaiseComplaintResponse
	if err := g.do(ctx, http.MethodPost, "/api/users/complain/raise", body, contentType, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserHistory lists the citizen's own complaints.
func (g *Gateway) UserHistory(ctx context.Context, userID int64) ([]domain.Complaint, error) {
	return g.complaints(ctx, fmt.Sprintf("/api/users/complaints/history/%d", userID))
}

// SubmitFeedback rates a resolved complaint.
func (g *Gateway) SubmitFeedback(ctx context.Context, complainID int64, rating int, message string) (*domain.Feedback, error) {
	var out dto.FeedbackResponse
	req := dto.FeedbackRequest{Rating: rating, FeedbackMessage: message}
	if err := g.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/users/complaints/%d/feedback", complainID), req, &out); err != nil {
		return nil, err
	}
	fb := out.Domain()
	return &fb, nil
}

// Rating returns the star count of a complaint; 0 means no feedback.
func (g *Gateway) Rating(ctx context.Context, complainID int64) (int, error) {
	var out dto.RatingResponse
	if err := g.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/users/complaints/%d/rating", complainID), nil, &out); err != nil {
		return 0, err
	}
	return out.Rating, nil
}

// AdminComplaints lists every complaint.
func (g *Gateway) AdminComplaints(ctx context.Context) ([]domain.Complaint, error) {
	return g.complaints(ctx, "/api/admin/complaints")
}

// AssignDepartment assigns, or reassigns, a complaint.
func (g *Gateway) AssignDepartment(ctx context.Context, complainID, departmentID int64, timelineDays int) (*domain.Complaint, error) {
	req := dto.AssignDepartmentRequest{DepartmentID: departmentID, TimelineDays: timelineDays}
	return g.complaint(ctx, http.MethodPut, fmt.Sprintf("/api/admin/complaints/%d/assign-department", complainID), req)
}

// AdminUpdateMessage edits the department-to-user note as an administrator.
func (g *Gateway) AdminUpdateMessage(ctx context.Context, complainID int64, status domain.ComplaintStatus, message string) (*domain.Complaint, error) {
	req := dto.StatusUpdateRequest{Status: string(status), Message: message}
	return g.complaint(ctx, http.MethodPut, fmt.Sprintf("/api/admin/complaints/%d/status", complainID), req)
}

// AdminFeedback returns the active feedback of a complaint, or nil when none exists.
func (g *Gateway) AdminFeedback(ctx context.Context, complainID int64) (*domain.Feedback, error) {
	var out dto.FeedbackResponse
	err := g.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/admin/complaints/%d/feedback", complainID), nil, &out)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fb := out.Domain()
	return &fb, nil
}

// DepartmentCounts returns the per-department chart data.
func (g *Gateway) DepartmentCounts(ctx context.Context) ([]dto.DepartmentCountResponse, error) {
	var out []dto.DepartmentCountResponse
	if err := g.doJSON(ctx, http.MethodGet, "/api/admin/complaints/department-count", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CityCounts returns the per-city chart data.
func (g *Gateway) CityCounts(ctx context.Context) ([]dto.CityCountResponse, error) {
	var out []dto.CityCountResponse
	if err := g.doJSON(ctx, http.MethodGet, "/api/admin/complaints/city-count", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AuditTrail returns the change history of a complaint, oldest first.
func (g *Gateway) AuditTrail(ctx context.Context, complainID int64) ([]dto.HistoryEntryResponse, error) {
	var out []dto.HistoryEntryResponse
	if err := g.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/admin/complaints/%d/history", complainID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DepartmentNames lists every department as {id, name}.
func (g *Gateway) DepartmentNames(ctx context.Context) ([]domain.DepartmentRef, error) {
	var out []dto.DepartmentRef
	if err := g.doJSON(ctx, http.MethodGet, "/api/dept-manager/all-names", nil, &out); err != nil {
		return nil, err
	}
	refs := make([]domain.DepartmentRef, 0, len(out))
	for _, r := range out {
		refs = append(refs, domain.DepartmentRef{ID: r.ID, Name: r.Name})
	}
	return refs, nil
}

// Department returns the caller's own department.
func (g *Gateway) Department(ctx context.Context, departmentID int64) (*domain.DepartmentRef, error) {
	var out dto.DepartmentRef
	if err := g.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/dept-manager/%d", departmentID), nil, &out); err != nil {
		return nil, err
	}
	return &domain.DepartmentRef{ID: out.ID, Name: out.Name}, nil
}

// DepartmentComplaints lists the complaints assigned to the department.
func (g *Gateway) DepartmentComplaints(ctx context.Context, departmentID int64) ([]domain.Complaint, error) {
	return g.complaints(ctx, fmt.Sprintf("/api/dept-manager/%d/complaints", departmentID))
}

// CreateWorker adds a worker to the department.
func (g *Gateway) CreateWorker(ctx context.Context, departmentID int64, req dto.CreateWorkerRequest) (*domain.Worker, error) {
	var out dto.WorkerResponse
	if err := g.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/dept-manager/%d/workers", departmentID), req, &out); err != nil {
		return nil, err
	}
	w := out.Domain()
	return &w, nil
}

// Workers lists the department's workers.
func (g *Gateway) Workers(ctx context.Context, departmentID int64) ([]domain.Worker, error) {
	return g.workers(ctx, fmt.Sprintf("/api/dept-manager/%d/workers", departmentID))
}

// DepartmentUpdateMessage edits the department-to-user note as the assigned department.
func (g *Gateway) DepartmentUpdateMessage(ctx context.Context, complainID int64, status domain.ComplaintStatus, message string) (*domain.Complaint, error) {
	req := dto.StatusUpdateRequest{Status: string(status), Message: message}
	return g.complaint(ctx, http.MethodPut, fmt.Sprintf("/api/dept-manager/complaints/%d/status", complainID), req)
}

// CompleteInput is the multipart completion submission.
type CompleteInput struct {
	ComplainID int64
	Message    string
	WorkerIDs  []int64
	Image      []byte
	ImageName  string
}

// CompleteComplaint resolves an in-progress complaint.
func (g *Gateway) CompleteComplaint(ctx context.Context, in CompleteInput) (*domain.Complaint, error) {
	ids := make([]string, 0, len(in.WorkerIDs))
	for _, id := range in.WorkerIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	fields := map[string]string{
		"message":   in.Message,
		"workerIds": strings.Join(ids, ","),
	}
	body, contentType, err := multipartBody(fields, "imageFile", in.ImageName, in.Image)
	if err != nil {
		return nil, err
	}
	var out dto.ComplaintResponse
	if err := g.do(ctx, http.MethodPut, fmt.Sprintf("/api/dept-manager/complaints/%d/complete", in.ComplainID), body, contentType, &out); err != nil {
		return nil, err
	}
	c := out.Domain()
	return &c, nil
}

// ComplaintWorkers lists the workers recorded on a resolved complaint.
func (g *Gateway) ComplaintWorkers(ctx context.Context, complainID int64) ([]domain.Worker, error) {
	return g.workers(ctx, fmt.Sprintf("/api/dept-manager/complaints/%d/workers", complainID))
}

// ComplaintDepartmentName returns the name of the assigned department.
func (g *Gateway) ComplaintDepartmentName(ctx context.Context, complainID int64) (string, error) {
	return g.text(ctx, fmt.Sprintf("/api/dept-manager/complaints/%d/department-name", complainID))
}

// Deadline returns the absolute deadline of an assigned complaint.
func (g *Gateway) Deadline(ctx context.Context, complainID int64) (time.Time, error) {
	var out dto.DeadlineResponse
	if err := g.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/dept-manager/complaints/%d/deadline", complainID), nil, &out); err != nil {
		return time.Time{}, err
	}
	return out.Deadline, nil
}

// CompletionTime returns the human-readable early/late text of a resolved complaint.
func (g *Gateway) CompletionTime(ctx context.Context, complainID int64) (string, error) {
	return g.text(ctx, fmt.Sprintf("/api/dept-manager/complaints/%d/completion-time", complainID))
}

// DownloadImage fetches a stored image. The caller closes the returned body.
func (g *Gateway) DownloadImage(ctx context.Context, path string) (io.ReadCloser, string, error) {
	resp, err := g.send(ctx, http.MethodGet, "/api/files/download/"+url.PathEscape(path), nil, "")
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, "", responseError(resp)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

func (g *Gateway) complaints(ctx context.Context, path string) ([]domain.Complaint, error) {
	var out []dto.ComplaintResponse
	if err := g.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	list := make([]domain.Complaint, 0, len(out))
	for _, c := range out {
		list = append(list, c.Domain())
	}
	return list, nil
}

func (g *Gateway) complaint(ctx context.Context, method, path string, body any) (*domain.Complaint, error) {
	var out dto.ComplaintResponse
	if err := g.doJSON(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	c := out.Domain()
	return &c, nil
}

func (g *Gateway) workers(ctx context.Context, path string) ([]domain.Worker, error) {
	var out []dto.WorkerResponse
	if err := g.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	list := make([]domain.Worker, 0, len(out))
	for _, w := range out {
		list = append(list, w.Domain())
	}
	return list, nil
}

func (g *Gateway) text(ctx context.Context, path string) (string, error) {
	resp, err := g.send(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", responseError(resp)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &APIError{Kind: KindTransport, Message: err.Error(), Err: err}
	}
	return string(raw), nil
}

func (g *Gateway) doJSON(ctx context.Context, method, path string, body, out any) error {
	if body == nil {
		return g.do(ctx, method, path, nil, "", out)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return g.do(ctx, method, path, bytes.NewReader(raw), "application/json", out)
}

func (g *Gateway) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	resp, err := g.send(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Kind: KindTransport, Status: resp.StatusCode, Message: "decode response: " + err.Error(), Err: err}
	}
	return nil
}

func (g *Gateway) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token := g.sessions.Current().Token; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, &APIError{Kind: KindTransport, Message: err.Error(), Err: err}
	}
	return resp, nil
}

// responseError classifies a non-2xx response. Structured bodies keep their
// message and code; anything else is reported as its raw text.
func responseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}

	var body dto.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		apiErr.Kind = KindStructured
		apiErr.Message = body.Message
		apiErr.Code = body.Code
	} else {
		apiErr.Kind = KindPlainText
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		apiErr.Kind = KindNotFound
	case http.StatusUnauthorized:
		apiErr.Kind = KindUnauthorized
	}
	return apiErr
}

func multipartBody(fields map[string]string, fileField, fileName string, file []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if len(file) > 0 {
		if fileName == "" {
			fileName = fileField
		}
		part, err := w.CreateFormFile(fileField, fileName)
		if err != nil {
			return nil, "", fmt.Errorf("create file part: %w", err)
		}
		if _, err := part.Write(file); err != nil {
			return nil, "", fmt.Errorf("write file part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
