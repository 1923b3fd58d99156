package server

import (
	"net/http"
	"strings"

	"github.com/deptexhq/deptex/internal/model"
)

// handleListOrgs handles GET /v1/orgs.
func (s *GatewayServer) handleListOrgs(w http.ResponseWriter, r *http.Request) {
	orgs, err := s.repo.ListOrganizations(r.Context())
	if err != nil {
		s.writeUpstreamError(w, err, "organizations")
		return
	}
	if orgs == nil {
		orgs = []*model.Organization{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs, "total": len(orgs)})
}

// handleGetOrg handles GET /v1/orgs/{org}.
func (s *GatewayServer) handleGetOrg(w http.ResponseWriter, r *http.Request) {
	org, err := s.repo.GetOrganization(r.Context(), r.PathValue("org"))
	if err != nil {
		s.writeUpstreamError(w, err, "organization")
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// handleListTeams handles GET /v1/orgs/{org}/teams.
func (s *GatewayServer) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.repo.ListTeams(r.Context(), r.PathValue("org"))
	if err != nil {
		s.writeUpstreamError(w, err, "teams")
		return
	}
	if teams == nil {
		teams = []*model.Team{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": teams, "total": len(teams)})
}

// handleGetTeam handles GET /v1/teams/{team}.
func (s *GatewayServer) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := s.repo.GetTeam(r.Context(), r.PathValue("team"))
	if err != nil {
		s.writeUpstreamError(w, err, "team")
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// handleListProjects handles GET /v1/teams/{team}/projects.
func (s *GatewayServer) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.repo.ListProjects(r.Context(), r.PathValue("team"))
	if err != nil {
		s.writeUpstreamError(w, err, "projects")
		return
	}
	if projects == nil {
		projects = []*model.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects, "total": len(projects)})
}

// handleGetProject handles GET /v1/projects/{project}.
// With ?view=full the composite project view is returned instead: project,
// org, dependencies, and bans in one fetch, with a degradation banner for
// the secondary pieces that failed.
func (s *GatewayServer) handleGetProject(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project")
	if r.URL.Query().Get("view") == "full" {
		view, err := s.repo.FetchProjectView(r.Context(), projectID, r.URL.Query().Get("version"))
		if err != nil {
			s.writeUpstreamError(w, err, "project")
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}

	project, err := s.repo.GetProject(r.Context(), projectID)
	if err != nil {
		s.writeUpstreamError(w, err, "project")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// handleListDependencies handles GET /v1/projects/{project}/dependencies.
func (s *GatewayServer) handleListDependencies(w http.ResponseWriter, r *http.Request) {
	f := dependencyFilterFromQuery(r)
	deps, err := s.repo.ListDependencies(r.Context(), r.PathValue("project"), r.URL.Query().Get("version"), f)
	if err != nil {
		s.writeUpstreamError(w, err, "dependencies")
		return
	}
	if deps == nil {
		deps = []*model.Dependency{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"dependencies": deps, "total": len(deps)})
}

// handleListVulnerabilities handles GET /v1/projects/{project}/vulnerabilities.
func (s *GatewayServer) handleListVulnerabilities(w http.ResponseWriter, r *http.Request) {
	f := model.VulnerabilityFilter{
		Severity:      severitiesFromQuery(r),
		ReachableOnly: r.URL.Query().Get("reachable_only") == "true",
		KEVOnly:       r.URL.Query().Get("kev_only") == "true",
		Package:       r.URL.Query().Get("package"),
		Limit:         parseLimit(r, 0),
	}
	vulns, err := s.repo.ListVulnerabilities(r.Context(), r.PathValue("project"), r.URL.Query().Get("version"), f)
	if err != nil {
		s.writeUpstreamError(w, err, "vulnerabilities")
		return
	}
	if vulns == nil {
		vulns = []*model.Vulnerability{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"vulnerabilities": vulns, "total": len(vulns)})
}

func dependencyFilterFromQuery(r *http.Request) model.DependencyFilter {
	q := r.URL.Query()
	f := model.DependencyFilter{
		Severity: severitiesFromQuery(r),
		Search:   q.Get("search"),
		Sort:     q.Get("sort"),
		Limit:    parseLimit(r, 0),
	}
	if v := q.Get("ecosystem"); v != "" {
		for _, e := range strings.Split(v, ",") {
			if e = strings.TrimSpace(e); e != "" {
				f.Ecosystem = append(f.Ecosystem, model.Ecosystem(e))
			}
		}
	}
	if v := q.Get("direct"); v != "" {
		direct := v == "true"
		f.Direct = &direct
	}
	if v := q.Get("zombie"); v != "" {
		zombie := v == "true"
		f.Zombie = &zombie
	}
	return f
}

func severitiesFromQuery(r *http.Request) []model.Severity {
	v := r.URL.Query().Get("severity")
	if v == "" {
		return nil
	}
	var out []model.Severity
	for _, sev := range strings.Split(v, ",") {
		if sev = strings.TrimSpace(sev); sev != "" {
			out = append(out, model.Severity(sev))
		}
	}
	return out
}
