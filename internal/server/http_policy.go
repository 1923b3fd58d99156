package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/deptexhq/deptex/internal/events"
	"github.com/deptexhq/deptex/internal/model"
	"github.com/deptexhq/deptex/internal/upstream"
)

// handleListBans handles GET /v1/orgs/{org}/bans.
func (s *GatewayServer) handleListBans(w http.ResponseWriter, r *http.Request) {
	bans, err := s.repo.ListBans(r.Context(), r.PathValue("org"))
	if err != nil {
		s.writeUpstreamError(w, err, "bans")
		return
	}
	if bans == nil {
		bans = []*model.BannedVersion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bans": bans, "total": len(bans)})
}

// handleCreateBan handles POST /v1/orgs/{org}/bans.
// The ban is created upstream; the gateway records the audit event, fans it
// out, and lets the policy watcher recompute violations.
func (s *GatewayServer) handleCreateBan(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Package     string     `json:"package"`
		Ecosystem   string     `json:"ecosystem"`
		Range       string     `json:"range"`
		Reason      string     `json:"reason"`
		Action      string     `json:"action"`
		CreatedBy   string     `json:"created_by"`
		ExpiresAt   *time.Time `json:"expires_at"`
		OpenBumpPRs bool       `json:"open_bump_prs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Action == "" {
		in.Action = string(model.ActionWarn)
	}
	if err := model.ValidateBan(&model.BannedVersion{
		Package:   in.Package,
		Ecosystem: model.Ecosystem(in.Ecosystem),
		Range:     in.Range,
		Action:    model.PolicyAction(in.Action),
	}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.CreatedBy == "" {
		in.CreatedBy = requestUser(r)
	}

	ban, err := s.repo.CreateBan(r.Context(), &upstream.CreateBanRequest{
		OrganizationID: r.PathValue("org"),
		Package:        in.Package,
		Ecosystem:      model.Ecosystem(in.Ecosystem),
		Range:          in.Range,
		Reason:         in.Reason,
		Action:         model.PolicyAction(in.Action),
		CreatedBy:      in.CreatedBy,
		ExpiresAt:      in.ExpiresAt,
		OpenBumpPRs:    in.OpenBumpPRs,
	})
	if err != nil {
		s.writeUpstreamError(w, err, "ban")
		return
	}

	s.recordAndPublish(r.Context(), events.TopicBanCreated, ban.ID, in.CreatedBy, events.BanCreated{Ban: ban})

	writeJSON(w, http.StatusCreated, ban)
}

// handleRemoveBan handles DELETE /v1/orgs/{org}/bans/{id}.
func (s *GatewayServer) handleRemoveBan(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org")
	banID := r.PathValue("id")

	if err := s.repo.RemoveBan(r.Context(), orgID, banID); err != nil {
		s.writeUpstreamError(w, err, "ban")
		return
	}

	s.recordAndPublish(r.Context(), events.TopicBanRemoved, banID, requestUser(r), events.BanRemoved{
		BanID:          banID,
		OrganizationID: orgID,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// handleListExceptions handles GET /v1/orgs/{org}/exceptions.
func (s *GatewayServer) handleListExceptions(w http.ResponseWriter, r *http.Request) {
	exceptions, err := s.repo.ListExceptions(r.Context(), r.PathValue("org"))
	if err != nil {
		s.writeUpstreamError(w, err, "exceptions")
		return
	}
	if exceptions == nil {
		exceptions = []*model.PolicyException{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"exceptions": exceptions, "total": len(exceptions)})
}

// handleCreateException handles POST /v1/orgs/{org}/exceptions.
func (s *GatewayServer) handleCreateException(w http.ResponseWriter, r *http.Request) {
	var in struct {
		BanID         string     `json:"ban_id"`
		ProjectID     string     `json:"project_id"`
		Justification string     `json:"justification"`
		CreatedBy     string     `json:"created_by"`
		ExpiresAt     *time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.BanID == "" {
		writeError(w, http.StatusBadRequest, "ban_id is required")
		return
	}
	if in.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "project_id is required")
		return
	}
	if in.Justification == "" {
		writeError(w, http.StatusBadRequest, "justification is required")
		return
	}
	if in.CreatedBy == "" {
		in.CreatedBy = requestUser(r)
	}

	exception, err := s.repo.CreateException(r.Context(), &upstream.CreateExceptionRequest{
		OrganizationID: r.PathValue("org"),
		BanID:          in.BanID,
		ProjectID:      in.ProjectID,
		Justification:  in.Justification,
		CreatedBy:      in.CreatedBy,
		ExpiresAt:      in.ExpiresAt,
	})
	if err != nil {
		s.writeUpstreamError(w, err, "exception")
		return
	}

	s.recordAndPublish(r.Context(), events.TopicExceptionCreated, exception.ID, in.CreatedBy, events.ExceptionCreated{Exception: exception})

	writeJSON(w, http.StatusCreated, exception)
}

// handleListBumpPRs handles GET /v1/orgs/{org}/bump-prs.
func (s *GatewayServer) handleListBumpPRs(w http.ResponseWriter, r *http.Request) {
	prs, err := s.repo.ListBumpPRs(r.Context(), r.PathValue("org"))
	if err != nil {
		s.writeUpstreamError(w, err, "bump PRs")
		return
	}
	if prs == nil {
		prs = []*model.BumpPR{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bump_prs": prs, "total": len(prs)})
}

// handleOrgViolations handles GET /v1/orgs/{org}/violations: open violation
// records from the local evaluator.
func (s *GatewayServer) handleOrgViolations(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	violations, err := s.store.ListOpenViolations(r.Context(), r.PathValue("org"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list violations")
		return
	}
	if violations == nil {
		violations = []*model.Violation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"violations": violations, "total": len(violations)})
}

// handleProjectViolations handles GET /v1/projects/{project}/violations.
func (s *GatewayServer) handleProjectViolations(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	violations, err := s.store.ListProjectViolations(r.Context(), r.PathValue("project"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list violations")
		return
	}
	if violations == nil {
		violations = []*model.Violation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"violations": violations, "total": len(violations)})
}
