package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/deptexhq/deptex/internal/events"
	"github.com/deptexhq/deptex/internal/idgen"
	"github.com/deptexhq/deptex/internal/model"
	"github.com/deptexhq/deptex/internal/store"
	"github.com/deptexhq/deptex/internal/upstream"
)

// Watcher keeps stored violations in sync with upstream policy changes.
type Watcher struct {
	repo   upstream.Repository
	store  store.Store
	bus    events.Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewWatcher creates a watcher backed by the given upstream and store.
func NewWatcher(repo upstream.Repository, st store.Store, bus events.Publisher, logger *slog.Logger) *Watcher {
	return &Watcher{repo: repo, store: st, bus: bus, logger: logger, now: time.Now}
}

// violationKey is the natural identity of a violation within one project.
func violationKey(v *model.Violation) string {
	return v.BanID + "|" + v.Package + "|" + v.Version
}

// EvaluateProject re-checks one project against its organization's current
// ban list: new violations are recorded (re-detection reopens resolved
// rows), stored open violations the evaluation no longer produces are
// resolved, and each newly detected violation is published best-effort.
// Returns the newly detected violations.
func (w *Watcher) EvaluateProject(ctx context.Context, projectID string) ([]*model.Violation, error) {
	project, err := w.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("policy: project %s: %w", projectID, err)
	}
	deps, err := w.repo.ListDependencies(ctx, projectID, project.DefaultVersion, model.DependencyFilter{})
	if err != nil {
		return nil, fmt.Errorf("policy: dependencies for %s: %w", projectID, err)
	}
	bans, err := w.repo.ListBans(ctx, project.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("policy: bans for %s: %w", project.OrganizationID, err)
	}
	exceptions, err := w.repo.ListExceptions(ctx, project.OrganizationID)
	if err != nil {
		// Exceptions only refine warn/block handling; evaluate without them.
		w.logger.Debug("policy: exceptions unavailable", "org", project.OrganizationID, "error", err)
		exceptions = nil
	}

	now := w.now()
	current := Evaluate(projectID, deps, bans, exceptions, now)

	stored, err := w.store.ListProjectViolations(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("policy: stored violations for %s: %w", projectID, err)
	}
	open := make(map[string]*model.Violation)
	for _, v := range stored {
		if v.ResolvedAt == nil {
			open[violationKey(v)] = v
		}
	}

	seen := make(map[string]bool, len(current))
	var fresh []*model.Violation
	for _, v := range current {
		key := violationKey(v)
		seen[key] = true
		id, err := idgen.New(idgen.PrefixViolation)
		if err != nil {
			return nil, fmt.Errorf("policy: violation id: %w", err)
		}
		v.ID = id
		if err := w.store.RecordViolation(ctx, v); err != nil {
			return nil, fmt.Errorf("policy: record violation: %w", err)
		}
		if _, known := open[key]; !known {
			fresh = append(fresh, v)
		}
	}

	for key, v := range open {
		if seen[key] {
			continue
		}
		if err := w.store.ResolveViolation(ctx, v.ID); err != nil {
			w.logger.Warn("policy: resolve violation", "id", v.ID, "error", err)
		}
	}

	for _, v := range fresh {
		if err := w.bus.Publish(ctx, events.TopicViolationDetected, events.ViolationDetected{Violation: v}); err != nil {
			w.logger.Warn("policy: publish violation", "id", v.ID, "error", err)
		}
	}

	w.logger.Info("policy: evaluated project",
		"project", projectID, "violations", len(current), "new", len(fresh))
	return fresh, nil
}

// EvaluateOrg re-evaluates every project in the organization. Per-project
// failures are logged and skipped; the first one is returned after the
// sweep completes.
func (w *Watcher) EvaluateOrg(ctx context.Context, orgID string) error {
	teams, err := w.repo.ListTeams(ctx, orgID)
	if err != nil {
		return fmt.Errorf("policy: teams for %s: %w", orgID, err)
	}
	var firstErr error
	for _, team := range teams {
		projects, err := w.repo.ListProjects(ctx, team.ID)
		if err != nil {
			w.logger.Warn("policy: list projects", "team", team.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, p := range projects {
			if _, err := w.EvaluateProject(ctx, p.ID); err != nil {
				w.logger.Warn("policy: evaluate project", "project", p.ID, "error", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	return firstErr
}

// HandleBanRemoved resolves every open violation of a removed ban.
func (w *Watcher) HandleBanRemoved(ctx context.Context, banID string) {
	n, err := w.store.ResolveViolationsForBan(ctx, banID)
	if err != nil {
		w.logger.Warn("policy: resolve violations for ban", "ban", banID, "error", err)
		return
	}
	w.logger.Info("policy: ban removed", "ban", banID, "resolved", n)
}

// StartSubscriber listens for policy and advisory events on the bus and
// re-evaluates the affected projects. It blocks until ctx is cancelled.
func (w *Watcher) StartSubscriber(ctx context.Context, sub events.Subscriber) error {
	banCreated, cancelCreated, err := sub.Subscribe(events.TopicBanCreated)
	if err != nil {
		return fmt.Errorf("policy: subscribe: %w", err)
	}
	defer cancelCreated()

	banRemoved, cancelRemoved, err := sub.Subscribe(events.TopicBanRemoved)
	if err != nil {
		return fmt.Errorf("policy: subscribe: %w", err)
	}
	defer cancelRemoved()

	vulns, cancelVulns, err := sub.Subscribe(events.TopicVulnDisclosed)
	if err != nil {
		return fmt.Errorf("policy: subscribe: %w", err)
	}
	defer cancelVulns()

	w.logger.Info("policy: watcher started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("policy: watcher stopping")
			return nil
		case raw, ok := <-banCreated:
			if !ok {
				w.logger.Info("policy: subscription channel closed")
				return nil
			}
			var event events.BanCreated
			if err := json.Unmarshal(raw, &event); err != nil || event.Ban == nil {
				w.logger.Warn("policy: bad ban.created payload", "error", err)
				continue
			}
			if err := w.EvaluateOrg(ctx, event.Ban.OrgID); err != nil {
				w.logger.Warn("policy: evaluate org", "org", event.Ban.OrgID, "error", err)
			}
		case raw, ok := <-banRemoved:
			if !ok {
				w.logger.Info("policy: subscription channel closed")
				return nil
			}
			var event events.BanRemoved
			if err := json.Unmarshal(raw, &event); err != nil || event.BanID == "" {
				w.logger.Warn("policy: bad ban.removed payload", "error", err)
				continue
			}
			w.HandleBanRemoved(ctx, event.BanID)
		case raw, ok := <-vulns:
			if !ok {
				w.logger.Info("policy: subscription channel closed")
				return nil
			}
			var event events.VulnDisclosed
			if err := json.Unmarshal(raw, &event); err != nil {
				w.logger.Warn("policy: bad vuln.disclosed payload", "error", err)
				continue
			}
			for _, projectID := range event.ProjectIDs {
				if _, err := w.EvaluateProject(ctx, projectID); err != nil {
					w.logger.Warn("policy: evaluate project", "project", projectID, "error", err)
				}
			}
		}
	}
}
