package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmtools/customer-import/internal/customer"
	"github.com/crmtools/customer-import/internal/importer"
)

type fakeJobs struct {
	jobs    map[uuid.UUID]*customer.ImportJob
	created int
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: map[uuid.UUID]*customer.ImportJob{}}
}

func (f *fakeJobs) Create(context.Context) (*customer.ImportJob, error) {
	f.created++
	job := &customer.ImportJob{
		ID:        uuid.New(),
		Status:    customer.JobPending,
		Rejected:  []customer.RejectionEntry{},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobs) Find(_ context.Context, id uuid.UUID) (*customer.ImportJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return job, nil
}

type fakeCustomers struct {
	byID map[uuid.UUID]*customer.Customer
}

func newFakeCustomers() *fakeCustomers {
	return &fakeCustomers{byID: map[uuid.UUID]*customer.Customer{}}
}

func (f *fakeCustomers) add(c customer.Customer) uuid.UUID {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	f.byID[c.ID] = &c
	return c.ID
}

func (f *fakeCustomers) emailTaken(email string, except uuid.UUID) bool {
	for id, c := range f.byID {
		if id != except && c.Email == email {
			return true
		}
	}
	return false
}

func (f *fakeCustomers) List(_ context.Context, limit, offset int) ([]customer.Customer, int, error) {
	all := make([]customer.Customer, 0, len(f.byID))
	for _, c := range f.byID {
		all = append(all, *c)
	}
	total := len(all)
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (f *fakeCustomers) Get(_ context.Context, id uuid.UUID) (*customer.Customer, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return c, nil
}

func (f *fakeCustomers) Update(_ context.Context, id uuid.UUID, rec customer.Record) (*customer.Customer, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	if f.emailTaken(rec.Email, id) {
		return nil, customer.ErrDuplicateEmail
	}
	c.FullName, c.Email, c.DateOfBirth, c.Timezone = rec.FullName, rec.Email, rec.DateOfBirth, rec.Timezone
	return c, nil
}

func (f *fakeCustomers) Patch(_ context.Context, id uuid.UUID, p customer.Patch) (*customer.Customer, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	if p.Email != nil {
		if f.emailTaken(*p.Email, id) {
			return nil, customer.ErrDuplicateEmail
		}
		c.Email = *p.Email
	}
	if p.FullName != nil {
		c.FullName = *p.FullName
	}
	if p.DateOfBirth != nil {
		c.DateOfBirth = *p.DateOfBirth
	}
	if p.Timezone != nil {
		c.Timezone = *p.Timezone
	}
	return c, nil
}

func (f *fakeCustomers) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.byID[id]; !ok {
		return customer.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeQueue struct {
	tasks []importer.Task
	err   error
}

func (f *fakeQueue) Enqueue(task importer.Task) error {
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, task)
	return nil
}

type testEnv struct {
	server    *Server
	jobs      *fakeJobs
	customers *fakeCustomers
	queue     *fakeQueue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		jobs:      newFakeJobs(),
		customers: newFakeCustomers(),
		queue:     &fakeQueue{},
	}
	env.server = NewServer(env.jobs, env.customers, env.queue, t.TempDir(), 1<<20)
	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

func multipartCSV(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCreateImport_AcceptsCSVAndEnqueues(t *testing.T) {
	env := newTestEnv(t)
	body, contentType := multipartCSV(t, "customers.csv", "full_name,email\nAda,ada@example.com\n")

	req := httptest.NewRequest(http.MethodPost, "/api/imports/", body)
	req.Header.Set("Content-Type", contentType)
	rr := env.do(t, req)

	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "File uploaded and processing started", resp["message"])

	jobID, err := uuid.Parse(resp["jobId"])
	require.NoError(t, err)

	require.Len(t, env.queue.tasks, 1)
	assert.Equal(t, jobID, env.queue.tasks[0].JobID)
	assert.NotEmpty(t, env.queue.tasks[0].Path)
}

func TestCreateImport_RejectsNonCSV(t *testing.T) {
	env := newTestEnv(t)
	body, contentType := multipartCSV(t, "customers.xlsx", "not a csv")

	req := httptest.NewRequest(http.MethodPost, "/api/imports/", body)
	req.Header.Set("Content-Type", contentType)
	rr := env.do(t, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, env.queue.tasks)
}

func TestCreateImport_MissingFile(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/imports/", strings.NewReader(""))
	rr := env.do(t, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestImportStatus_ReturnsReport(t *testing.T) {
	env := newTestEnv(t)
	job, err := env.jobs.Create(context.Background())
	require.NoError(t, err)
	job.Status = customer.JobCompleted
	job.TotalRecords = 3
	job.SuccessCount = 1
	job.FailedCount = 2
	job.Rejected = []customer.RejectionEntry{
		{Row: 2, Data: map[string]string{"email": "x"}, ValidationErrors: []string{customer.MsgDOBInFuture}},
	}

	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/api/imports/"+job.ID.String(), nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Status          string                    `json:"status"`
		TotalRecords    int                       `json:"totalRecords"`
		SuccessCount    int                       `json:"successCount"`
		FailedCount     int                       `json:"failedCount"`
		RejectedRecords []customer.RejectionEntry `json:"rejectedRecords"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, 3, resp.TotalRecords)
	assert.Equal(t, 1, resp.SuccessCount)
	assert.Equal(t, 2, resp.FailedCount)
	require.Len(t, resp.RejectedRecords, 1)
	assert.Equal(t, 2, resp.RejectedRecords[0].Row)
}

func TestImportStatus_UnknownJob(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/api/imports/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, httptest.NewRequest(http.MethodGet, "/api/imports/not-a-uuid", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func seedCustomer(env *testEnv) uuid.UUID {
	dob, _ := time.Parse("2006-01-02", "1990-12-10")
	return env.customers.add(customer.Customer{
		FullName:    "Ada Lovelace",
		Email:       "ada@example.com",
		DateOfBirth: dob,
		Timezone:    "Europe/London",
	})
}

func TestUpdateCustomer_FullValidation(t *testing.T) {
	env := newTestEnv(t)
	id := seedCustomer(env)

	body := `{"full_name":"Ada K","email":"ada.k@example.com","date_of_birth":"1990-12-10","timezone":"UTC"}`
	req := httptest.NewRequest(http.MethodPut, "/api/customers/"+id.String(), strings.NewReader(body))
	rr := env.do(t, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ada.k@example.com", env.customers.byID[id].Email)
}

func TestUpdateCustomer_MissingFieldRejected(t *testing.T) {
	env := newTestEnv(t)
	id := seedCustomer(env)

	// PUT requires the full record; timezone is missing
	body := `{"full_name":"Ada","email":"ada@example.com","date_of_birth":"1990-12-10"}`
	req := httptest.NewRequest(http.MethodPut, "/api/customers/"+id.String(), strings.NewReader(body))
	rr := env.do(t, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp map[string][]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp["errors"], customer.MsgTimezoneInvalid)
}

func TestPatchCustomer_SingleField(t *testing.T) {
	env := newTestEnv(t)
	id := seedCustomer(env)

	req := httptest.NewRequest(http.MethodPatch, "/api/customers/"+id.String(),
		strings.NewReader(`{"full_name":"X"}`))
	rr := env.do(t, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "X", env.customers.byID[id].FullName)
	assert.Equal(t, "ada@example.com", env.customers.byID[id].Email, "untouched fields keep their values")
}

func TestPatchCustomer_UnknownFieldRejected(t *testing.T) {
	env := newTestEnv(t)
	id := seedCustomer(env)

	req := httptest.NewRequest(http.MethodPatch, "/api/customers/"+id.String(),
		strings.NewReader(`{"unknown_field":1}`))
	rr := env.do(t, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp map[string][]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, []string{`Unknown field "unknown_field"`}, resp["errors"])
}

func TestPatchCustomer_EmptyBodyRejected(t *testing.T) {
	env := newTestEnv(t)
	id := seedCustomer(env)

	req := httptest.NewRequest(http.MethodPatch, "/api/customers/"+id.String(), strings.NewReader(`{}`))
	rr := env.do(t, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp map[string][]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, []string{customer.MsgAtLeastOneField}, resp["errors"])
}

func TestUpdateCustomer_DuplicateEmailConflict(t *testing.T) {
	env := newTestEnv(t)
	id := seedCustomer(env)
	env.customers.add(customer.Customer{Email: "taken@example.com"})

	body := `{"full_name":"Ada","email":"taken@example.com","date_of_birth":"1990-12-10","timezone":"UTC"}`
	req := httptest.NewRequest(http.MethodPut, "/api/customers/"+id.String(), strings.NewReader(body))
	rr := env.do(t, req)

	require.Equal(t, http.StatusConflict, rr.Code)

	var resp map[string][]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Email already exists"}, resp["errors"])
}

func TestDeleteCustomer(t *testing.T) {
	env := newTestEnv(t)
	id := seedCustomer(env)

	rr := env.do(t, httptest.NewRequest(http.MethodDelete, "/api/customers/"+id.String(), nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, httptest.NewRequest(http.MethodDelete, "/api/customers/"+id.String(), nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListCustomers_Paginates(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 15; i++ {
		env.customers.add(customer.Customer{Email: uuid.NewString() + "@example.com"})
	}

	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/api/customers/?page=2&limit=10", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp listResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 15, resp.Total)
	assert.Equal(t, 2, resp.Page)
	assert.Len(t, resp.Data, 5)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"UP"}`, rr.Body.String())
}
