package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"accessgate.org/internal/audit"
	"accessgate.org/internal/directory"
	"accessgate.org/internal/iam"
	"accessgate.org/internal/obs"
	"accessgate.org/internal/provision"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T

	dir     *directory.Memory
	iamSvc  *iam.Memory
	auditor *audit.Memory
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	restore := obs.SetLogger(zap.NewNop().Sugar())
	t.Cleanup(restore)

	dir := directory.NewMemory()
	iamSvc := iam.NewMemory()
	auditor := audit.NewMemory()

	svc := provision.NewService(dir, iamSvc, auditor, obs.Logger())
	api := New(ReadyProbe{}, "test", svc, 100, 100)

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
		dir:     dir,
		iamSvc:  iamSvc,
		auditor: auditor,
	}
}

func (c *apiClient) seedManager(id string, policies ...string) {
	c.t.Helper()
	ctx := context.Background()
	roleName := "Manager-" + id + "-Role"
	role, err := c.iamSvc.CreateRole(ctx, roleName, "manager role")
	if err != nil {
		c.t.Fatalf("create manager role: %v", err)
	}
	for _, p := range policies {
		if err := c.iamSvc.AttachPolicy(ctx, roleName, p); err != nil {
			c.t.Fatalf("attach policy: %v", err)
		}
	}
	err = c.dir.Insert(ctx, &directory.Employee{
		EmployeeID:   id,
		EmployeeName: "Manager " + id,
		RoleARN:      role.ARN,
		RoleName:     role.Name,
	})
	if err != nil {
		c.t.Fatalf("insert manager: %v", err)
	}
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string) *http.Response {
	c.t.Helper()
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func provisionBody(managerID, employeeID, employeeName string) map[string]any {
	return map[string]any{
		"manager_employee_id": managerID,
		"new_employee_id":     employeeID,
		"new_employee_name":   employeeName,
	}
}

func TestProvisionSuccess(t *testing.T) {
	api := newTestAPI(t)
	api.seedManager("MGR-1", "arn:mem:iam::policy/P1", "arn:mem:iam::policy/P2")

	resp := api.post("/v1/provision", provisionBody("MGR-1", "EMP-9", "Ada Lovelace"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want *", got)
	}

	body := decode[provisionResponse](t, resp)
	if !body.Success {
		t.Fatalf("success = false, want true")
	}
	if body.NewEmployeeID != "EMP-9" || body.NewEmployeeName != "Ada Lovelace" {
		t.Fatalf("unexpected employee fields: %+v", body)
	}
	if body.IAMRoleARN == "" || !strings.HasSuffix(body.IAMRoleARN, "Employee-EMP-9-Role") {
		t.Fatalf("iam_role_arn = %q", body.IAMRoleARN)
	}
	if len(body.ClonedPolicies) != 2 {
		t.Fatalf("cloned_policies = %v, want 2 entries", body.ClonedPolicies)
	}
	if body.RequestID == "" {
		t.Fatalf("request_id missing")
	}
	if body.CreatedAt == "" {
		t.Fatalf("created_at missing")
	}

	// The audit trail carries the same request id as the response.
	recs := api.auditor.Records()
	if len(recs) != 1 {
		t.Fatalf("audit records = %d, want 1", len(recs))
	}
	if recs[0].RequestID != body.RequestID {
		t.Fatalf("audit request_id = %q, response request_id = %q", recs[0].RequestID, body.RequestID)
	}
	if recs[0].Status != audit.StatusSuccess {
		t.Fatalf("audit status = %q", recs[0].Status)
	}

	// Identity record persisted.
	emp, err := api.dir.Lookup(context.Background(), "EMP-9")
	if err != nil {
		t.Fatalf("lookup employee: %v", err)
	}
	if emp.ManagerID != "MGR-1" {
		t.Fatalf("manager_id = %q", emp.ManagerID)
	}
}

func TestProvisionValidationError(t *testing.T) {
	api := newTestAPI(t)
	api.seedManager("MGR-1", "arn:mem:iam::policy/P1")

	resp := api.post("/v1/provision", provisionBody("MGR-1", "EMP-9", "Ada_Lovelace!"), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["success"] != false {
		t.Fatalf("success = %v, want false", body["success"])
	}
	msg, _ := body["error"].(string)
	if !strings.Contains(msg, "name") {
		t.Fatalf("error = %q, want name violation", msg)
	}
	if api.iamSvc.HasRole("Employee-EMP-9-Role") {
		t.Fatalf("role created despite validation failure")
	}
}

func TestProvisionManagerNotFound(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/provision", provisionBody("MGR-404", "EMP-9", "Ada Lovelace"), nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["success"] != false {
		t.Fatalf("success = %v, want false", body["success"])
	}
	if rid, _ := body["request_id"].(string); rid == "" {
		t.Fatalf("request_id missing from error body")
	}
}

func TestProvisionDuplicateEmployee(t *testing.T) {
	api := newTestAPI(t)
	api.seedManager("MGR-1", "arn:mem:iam::policy/P1")

	resp := api.post("/v1/provision", provisionBody("MGR-1", "EMP-9", "Ada Lovelace"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first provision status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/provision", provisionBody("MGR-1", "EMP-9", "Ada Lovelace"), nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("duplicate status = %d, want 500", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["error"] != "Internal server error" {
		t.Fatalf("error = %v, want generic message", body["error"])
	}
}

func TestProvisionMalformedBody(t *testing.T) {
	api := newTestAPI(t)

	req, err := http.NewRequest(http.MethodPost, api.baseURL+"/v1/provision", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := api.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestProvisionOptionsPreflight(t *testing.T) {
	api := newTestAPI(t)

	req, err := http.NewRequest(http.MethodOptions, api.baseURL+"/v1/provision", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := api.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); got != "POST, OPTIONS" {
		t.Fatalf("Access-Control-Allow-Methods = %q", got)
	}
}

func TestProvisionMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/v1/provision")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
	if got := resp.Header.Get("Allow"); got != "POST, OPTIONS" {
		t.Fatalf("Allow = %q", got)
	}
}

func TestHealthAndInfo(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	health := decode[map[string]any](t, resp)
	if health["service"] != "accessgate-api" {
		t.Fatalf("service = %v", health["service"])
	}

	resp = api.get("/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/info")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("info status = %d", resp.StatusCode)
	}
	info := decode[map[string]any](t, resp)
	if info["version"] != "test" {
		t.Fatalf("version = %v", info["version"])
	}
}

func TestRequestIDHeader(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/healthz")
	defer resp.Body.Close()
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("X-Request-Id header missing")
	}
}
