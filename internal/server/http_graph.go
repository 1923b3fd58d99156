package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/deptexhq/deptex/internal/canvas"
	"github.com/deptexhq/deptex/internal/depscore"
	"github.com/deptexhq/deptex/internal/layout"
	"github.com/deptexhq/deptex/internal/model"
	"github.com/deptexhq/deptex/internal/policy"
)

// graphResponse wraps a graph with the degradation banner for fetches where
// secondary data was unavailable.
type graphResponse struct {
	canvas.Graph
	Degraded []string `json:"degraded,omitempty"`
}

// handleProjectGraph handles GET /v1/projects/{project}/graph.
// Query params: version (default: latest scan), reachable_only, format.
func (s *GatewayServer) handleProjectGraph(w http.ResponseWriter, r *http.Request) {
	scope := "project:" + r.PathValue("project")
	s.handleScopeGraph(w, r, scope)
}

// handleTeamGraph handles GET /v1/teams/{team}/graph.
func (s *GatewayServer) handleTeamGraph(w http.ResponseWriter, r *http.Request) {
	scope := "team:" + r.PathValue("team")
	s.handleScopeGraph(w, r, scope)
}

// handleOrgGraph handles GET /v1/orgs/{org}/graph.
func (s *GatewayServer) handleOrgGraph(w http.ResponseWriter, r *http.Request) {
	scope := "org:" + r.PathValue("org")
	s.handleScopeGraph(w, r, scope)
}

func (s *GatewayServer) handleScopeGraph(w http.ResponseWriter, r *http.Request, scope string) {
	version := r.URL.Query().Get("version")
	reachableOnly := r.URL.Query().Get("reachable_only") == "true"

	g, degraded, err := s.buildScopeGraph(r.Context(), scope, version, reachableOnly)
	if err != nil {
		s.writeUpstreamError(w, err, "graph")
		return
	}

	// A fetch for a watched scope doubles as a proposal so SSE consumers see
	// the same layout the caller just got.
	s.proposeIfWatched(scope, g, version, reachableOnly)

	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, graphResponse{Graph: g, Degraded: degraded})
	case "png":
		buf, err := s.renderer.PNG(g)
		if err != nil {
			s.logger.Error("png render failed", "scope", scope, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to render png")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf)
	case "html":
		buf, err := s.renderer.HTML(g, scope)
		if err != nil {
			s.logger.Error("html render failed", "scope", scope, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to render html")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf)
	default:
		writeError(w, http.StatusBadRequest, "unknown format")
	}
}

// buildScopeGraph fetches the tree for a scope string and lays it out. The
// tree is the primary fetch and its failure fails the build; ban data is
// secondary and degrades to an unannotated graph instead.
func (s *GatewayServer) buildScopeGraph(ctx context.Context, scope, version string, reachableOnly bool) (canvas.Graph, []string, error) {
	kind, id, ok := strings.Cut(scope, ":")
	if !ok || id == "" {
		return canvas.Graph{}, nil, inputError("scope must be project:<id>, team:<id>, or org:<id>")
	}

	opts := layout.Options{ReachableOnly: reachableOnly}

	switch kind {
	case "project", "package":
		tree, err := s.repo.ProjectTree(ctx, id, version)
		if err != nil {
			return canvas.Graph{}, nil, err
		}
		degraded := s.annotateBans(ctx, &opts, s.projectOrgID(ctx, id), flattenNodes(tree.Dependencies))
		return layout.Project(tree, opts), degraded, nil
	case "team":
		tree, err := s.repo.TeamTree(ctx, id)
		if err != nil {
			return canvas.Graph{}, nil, err
		}
		degraded := s.annotateBans(ctx, &opts, s.teamOrgID(ctx, id), teamDeps(tree))
		return layout.Team(tree, opts), degraded, nil
	case "org":
		tree, err := s.repo.OrgTree(ctx, id)
		if err != nil {
			return canvas.Graph{}, nil, err
		}
		degraded := s.annotateBans(ctx, &opts, id, orgDeps(tree))
		return layout.Org(tree, opts), degraded, nil
	}
	return canvas.Graph{}, nil, inputError("unknown scope kind: " + kind)
}

// annotateBans overlays the org's local ban list onto the layout options.
// Any failure on the way to the ban list degrades rather than fails.
func (s *GatewayServer) annotateBans(ctx context.Context, opts *layout.Options, orgID string, deps []*model.Dependency) []string {
	if orgID == "" {
		return []string{"policy data unavailable"}
	}
	bans, err := s.repo.ListBans(ctx, orgID)
	if err != nil {
		s.logger.Warn("ban fetch degraded", "org_id", orgID, "error", err)
		return []string{"policy data unavailable"}
	}
	if set := policy.BannedSet(deps, bans, time.Now().UTC()); len(set) > 0 {
		opts.Banned = set
	}
	return nil
}

// projectOrgID resolves a project's owning org, empty on failure.
func (s *GatewayServer) projectOrgID(ctx context.Context, projectID string) string {
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return ""
	}
	return project.OrganizationID
}

// teamOrgID resolves a team's owning org, empty on failure.
func (s *GatewayServer) teamOrgID(ctx context.Context, teamID string) string {
	team, err := s.repo.GetTeam(ctx, teamID)
	if err != nil {
		return ""
	}
	return team.OrganizationID
}

// flattenNodes collects every dependency in a subtree, depth first.
func flattenNodes(nodes []*model.DependencyNode) []*model.Dependency {
	var out []*model.Dependency
	for _, n := range nodes {
		out = append(out, &n.Dependency)
		out = append(out, flattenNodes(n.Children)...)
	}
	return out
}

func teamDeps(tree *model.TeamTree) []*model.Dependency {
	var out []*model.Dependency
	for _, p := range tree.Projects {
		out = append(out, flattenNodes(p.Dependencies)...)
	}
	return out
}

func orgDeps(tree *model.OrgTree) []*model.Dependency {
	var out []*model.Dependency
	for _, tm := range tree.Teams {
		out = append(out, teamDeps(tm)...)
	}
	return out
}

// GraphForScope builds the current graph for a scope string. Snapshot
// exports call this; the banner is dropped because an export either has the
// annotations or records nothing about them.
func (s *GatewayServer) GraphForScope(ctx context.Context, scope string) (*canvas.Graph, error) {
	g, _, err := s.buildScopeGraph(ctx, scope, "", false)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// handleScore handles POST /v1/score: one composite risk score for the
// posted context, with its display bracket. Out-of-range inputs are clamped
// by the scorer, not rejected here.
func (s *GatewayServer) handleScore(w http.ResponseWriter, r *http.Request) {
	var scoreCtx depscore.Context
	if err := json.NewDecoder(r.Body).Decode(&scoreCtx); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	score := depscore.Score(scoreCtx)
	writeJSON(w, http.StatusOK, map[string]any{
		"score":   score,
		"bracket": depscore.Bracket(score),
	})
}
