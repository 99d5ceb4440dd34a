package httpapi

import (
	"errors"
	"net/http"
	"time"

	"accessgate.org/internal/audit"
	"accessgate.org/internal/obs"
	"accessgate.org/internal/provision"
)

type provisionResponse struct {
	Success         bool     `json:"success"`
	Message         string   `json:"message"`
	RequestID       string   `json:"request_id"`
	NewEmployeeID   string   `json:"new_employee_id"`
	NewEmployeeName string   `json:"new_employee_name"`
	IAMRoleARN      string   `json:"iam_role_arn"`
	ClonedPolicies  []string `json:"cloned_policies"`
	CreatedAt       string   `json:"created_at"`
}

func (a *API) handleProvision(w http.ResponseWriter, r *http.Request) {
	corsHeaders(w)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPost:
		a.provisionAccess(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodOptions)
	}
}

func (a *API) provisionAccess(w http.ResponseWriter, r *http.Request) {
	var req provision.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeProvisionError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	// Correlate the audit trail with the id issued by the RequestID middleware.
	ctx := audit.WithRequestID(r.Context(), RequestIDFromContext(r.Context()))

	res, err := a.provisioner.Provision(ctx, req)
	if err != nil {
		var verr *provision.ValidationError
		switch {
		case errors.As(err, &verr):
			writeProvisionError(w, r, http.StatusBadRequest, verr.Error())
		case errors.Is(err, provision.ErrManagerNotFound):
			writeProvisionError(w, r, http.StatusForbidden, err.Error())
		default:
			obs.Logger().Errorw("provision_failed",
				"request_id", RequestIDFromContext(r.Context()),
				"error", err)
			writeProvisionError(w, r, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	policies := res.ClonedPolicies
	if policies == nil {
		policies = []string{}
	}
	writeJSON(w, http.StatusOK, provisionResponse{
		Success:         true,
		Message:         "Access provisioned successfully",
		RequestID:       res.RequestID,
		NewEmployeeID:   res.EmployeeID,
		NewEmployeeName: res.EmployeeName,
		IAMRoleARN:      res.RoleARN,
		ClonedPolicies:  policies,
		CreatedAt:       res.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func writeProvisionError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"success": false,
		"error":   msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func corsHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}
