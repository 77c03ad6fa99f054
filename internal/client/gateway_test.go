package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/civicpulse/hub/internal/api/dto"
	"github.com/civicpulse/hub/internal/domain"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGateway(srv.URL, srv.Client(), NewSessions(nil), 0)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestGatewayLoginStoresSessionAndSendsBearer(t *testing.T) {
	var gotAuth string
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/login":
			var req dto.LoginRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Email != "asha@example.com" {
				writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Message: "invalid credentials", Code: "UNAUTHORIZED"})
				return
			}
			writeJSON(w, http.StatusOK, dto.AuthResponse{
				Message: "Login Successful UserID:11",
				Role:    "USER",
				Email:   req.Email,
				Token:   "jwt-token",
			})
		case "/api/users/complaints/history/11":
			gotAuth = r.Header.Get("Authorization")
			writeJSON(w, http.StatusOK, []dto.ComplaintResponse{
				{ComplainID: 3, UserID: 11, Title: "Leak", Status: "In Progress", Version: 2},
			})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	session, err := gw.LoginUser(ctx, "asha@example.com", "secret1")
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}
	if session.UserID != 11 || gw.Sessions().CurrentRole() != UserRole() {
		t.Fatalf("session = %+v", session)
	}

	list, err := gw.UserHistory(ctx, 11)
	if err != nil {
		t.Fatalf("UserHistory: %v", err)
	}
	if gotAuth != "Bearer jwt-token" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if len(list) != 1 || list[0].Status != domain.StatusInProgress {
		t.Fatalf("legacy status label should parse: %+v", list)
	}

	_, err = gw.LoginUser(ctx, "nobody@example.com", "x")
	if !IsUnauthorized(err) {
		t.Fatalf("bad login: %v", err)
	}
	if gw.Sessions().CurrentRole() != UserRole() {
		t.Fatal("failed login must not touch the stored session")
	}
}

func TestGatewayErrorClassification(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/admin/complaints/1/assign-department":
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Message: "complaint is being modified, retry shortly", Code: "MUTATION_IN_FLIGHT"})
		case "/api/admin/complaints":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "database unavailable\n")
		case "/api/admin/complaints/2/feedback":
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Message: "feedback not found", Code: "NOT_FOUND"})
		case "/api/admin/complaints/3/feedback":
			writeJSON(w, http.StatusOK, dto.FeedbackResponse{ID: 9, ComplainID: 3, Rating: 2})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	_, err := gw.AssignDepartment(ctx, 1, 2, 3)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindStructured || apiErr.Code != "MUTATION_IN_FLIGHT" || apiErr.Status != http.StatusConflict {
		t.Fatalf("structured error: %#v", err)
	}

	_, err = gw.AdminComplaints(ctx)
	if !errors.As(err, &apiErr) || apiErr.Kind != KindPlainText || apiErr.Message != "database unavailable" {
		t.Fatalf("plain text error: %#v", err)
	}

	fb, err := gw.AdminFeedback(ctx, 2)
	if err != nil || fb != nil {
		t.Fatalf("missing feedback should be (nil, nil), got %v, %v", fb, err)
	}
	fb, err = gw.AdminFeedback(ctx, 3)
	if err != nil || fb == nil || fb.Rating != 2 {
		t.Fatalf("feedback = %+v, %v", fb, err)
	}

	_, err = gw.Deadline(ctx, 77)
	if !IsNotFound(err) {
		t.Fatalf("unknown route: %v", err)
	}
}

func TestGatewayTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	gw := NewGateway(url, nil, nil, time.Second)
	_, err := gw.DepartmentNames(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindTransport || apiErr.Status != 0 {
		t.Fatalf("transport error: %#v", err)
	}
}

func TestGatewayCompleteSendsMultipart(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/dept-manager/complaints/5/complete" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("imageFile")
		if err != nil {
			http.Error(w, "missing image", http.StatusBadRequest)
			return
		}
		raw, _ := io.ReadAll(file)
		if r.FormValue("workerIds") != "4,9" || r.FormValue("message") != "fixed" || string(raw) != "png" {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, dto.ComplaintResponse{ComplainID: 5, Status: "RESOLVED", Version: 4})
	})

	c, err := gw.CompleteComplaint(context.Background(), CompleteInput{
		ComplainID: 5,
		Message:    "fixed",
		WorkerIDs:  []int64{4, 9},
		Image:      []byte("png"),
		ImageName:  "after.png",
	})
	if err != nil {
		t.Fatalf("CompleteComplaint: %v", err)
	}
	if c.Status != domain.StatusResolved || c.Version != 4 {
		t.Fatalf("complaint = %+v", c)
	}
}

func TestGatewayTextEndpoints(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/dept-manager/complaints/8/department-name":
			_, _ = io.WriteString(w, "Water")
		case "/api/dept-manager/complaints/8/completion-time":
			_, _ = io.WriteString(w, "1d 2h before deadline")
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()
	if name, err := gw.ComplaintDepartmentName(ctx, 8); err != nil || name != "Water" {
		t.Fatalf("name = %q, %v", name, err)
	}
	if text, err := gw.CompletionTime(ctx, 8); err != nil || text != "1d 2h before deadline" {
		t.Fatalf("completion = %q, %v", text, err)
	}
	if _, err := gw.ComplaintDepartmentName(ctx, 9); !IsNotFound(err) {
		t.Fatalf("missing name: %v", err)
	}
	if got := gw.ImageURL("complaints/a b.png"); got[len(got)-len("complaints%2Fa%20b.png"):] != "complaints%2Fa%20b.png" {
		t.Fatalf("ImageURL = %q", got)
	}
}

func TestGatewayDepartmentLookups(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/dept-manager/4":
			writeJSON(w, http.StatusOK, dto.DepartmentRef{ID: 4, Name: "Water"})
		case "/api/dept-manager/complaints/12/workers":
			writeJSON(w, http.StatusOK, []dto.WorkerResponse{
				{ID: 7, DepartmentID: 4, Name: "Ravi", Email: "ravi@city.gov", PhoneNumber: "555-0101"},
				{ID: 9, DepartmentID: 4, Name: "Lena"},
			})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	dept, err := gw.Department(ctx, 4)
	if err != nil || dept.ID != 4 || dept.Name != "Water" {
		t.Fatalf("Department = %+v, %v", dept, err)
	}
	workers, err := gw.ComplaintWorkers(ctx, 12)
	if err != nil {
		t.Fatalf("ComplaintWorkers: %v", err)
	}
	if len(workers) != 2 || workers[0].ID != 7 || workers[1].ID != 9 || workers[0].DepartmentID != 4 || workers[0].Name != "Ravi" {
		t.Fatalf("workers = %+v", workers)
	}
	if _, err := gw.ComplaintWorkers(ctx, 13); !IsNotFound(err) {
		t.Fatalf("unknown complaint: %v", err)
	}
}

func TestGatewayDownloadImage(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/files/download/complaints/a.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = io.WriteString(w, "\x89PNG-bytes")
		case "/api/files/download/complaints/gone.png":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	ctx := context.Background()

	body, contentType, err := gw.DownloadImage(ctx, "complaints/a.png")
	if err != nil {
		t.Fatalf("DownloadImage: %v", err)
	}
	raw, err := io.ReadAll(body)
	_ = body.Close()
	if err != nil || string(raw) != "\x89PNG-bytes" || contentType != "image/png" {
		t.Fatalf("download = %q (%s), %v", raw, contentType, err)
	}

	_, _, err = gw.DownloadImage(ctx, "complaints/gone.png")
	if !IsNotFound(err) {
		t.Fatalf("missing image: %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != http.StatusText(http.StatusNotFound) {
		t.Fatalf("empty 404 body should fall back to the status text: %#v", err)
	}
}
