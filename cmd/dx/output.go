package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/deptexhq/deptex/internal/client"
	"github.com/deptexhq/deptex/internal/model"
	"github.com/deptexhq/deptex/internal/ui"
	"github.com/deptexhq/deptex/internal/upstream"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func yes(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}

func printOrgListTable(orgs []*model.Organization) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSLUG\tNAME\tPLAN")
	for _, o := range orgs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.ID, o.Slug, o.Name, o.Plan)
	}
	w.Flush()
	fmt.Printf("\n%d organizations\n", len(orgs))
}

func printOrgTable(org *model.Organization) {
	fmt.Printf("ID:         %s\n", org.ID)
	fmt.Printf("Slug:       %s\n", org.Slug)
	fmt.Printf("Name:       %s\n", org.Name)
	if org.Plan != "" {
		fmt.Printf("Plan:       %s\n", org.Plan)
	}
	if !org.CreatedAt.IsZero() {
		fmt.Printf("Created At: %s\n", org.CreatedAt.Format(timeLayout))
	}
	if len(org.Teams) > 0 {
		fmt.Println()
		fmt.Println("Teams:")
		for _, t := range org.Teams {
			fmt.Printf("  %s  %s (%d projects)\n", t.ID, t.Name, len(t.Projects))
		}
	}
	if len(org.Members) > 0 {
		fmt.Println()
		fmt.Println("Members:")
		for _, m := range org.Members {
			fmt.Printf("  [%s] %s <%s>\n", m.Role, m.DisplayName, m.Email)
		}
	}
}

func printTeamListTable(teams []*model.Team) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSLUG\tNAME\tPROJECTS")
	for _, t := range teams {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", t.ID, t.Slug, t.Name, len(t.Projects))
	}
	w.Flush()
	fmt.Printf("\n%d teams\n", len(teams))
}

func printProjectListTable(projects []*model.Project) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSLUG\tNAME\tTIER\tFRAMEWORK\tVERSION")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID,
			p.Slug,
			p.Name,
			p.Tier,
			p.Framework,
			p.DefaultVersion,
		)
	}
	w.Flush()
	fmt.Printf("\n%d projects\n", len(projects))
}

func printProjectTable(p *model.Project) {
	fmt.Printf("ID:         %s\n", p.ID)
	fmt.Printf("Slug:       %s\n", p.Slug)
	fmt.Printf("Name:       %s\n", p.Name)
	fmt.Printf("Tier:       %s (weight %.2f)\n", p.Tier, p.EffectiveTierWeight())
	if p.RepoURL != "" {
		fmt.Printf("Repo:       %s\n", p.RepoURL)
	}
	if p.Framework != "" {
		fmt.Printf("Framework:  %s\n", p.Framework)
	}
	if p.DefaultVersion != "" {
		fmt.Printf("Version:    %s\n", p.DefaultVersion)
	}
	if !p.UpdatedAt.IsZero() {
		fmt.Printf("Updated At: %s\n", p.UpdatedAt.Format(timeLayout))
	}
}

func printProjectView(view *upstream.ProjectView) {
	if len(view.Degraded) > 0 {
		fmt.Println(ui.RenderMuted("degraded: " + strings.Join(view.Degraded, ", ")))
		fmt.Println()
	}
	printProjectTable(view.Project)
	if view.Organization != nil {
		fmt.Printf("Org:        %s\n", view.Organization.Name)
	}
	if len(view.Dependencies) > 0 {
		fmt.Println()
		printDependencyListTable(view.Dependencies, len(view.Dependencies))
	}
	if len(view.Bans) > 0 {
		fmt.Println()
		fmt.Println("Active bans:")
		for _, b := range view.Bans {
			fmt.Printf("  %s  %s %s (%s)\n", b.ID, b.Package, b.Range, b.Action)
		}
	}
}

func printDependencyListTable(deps []*model.Dependency, total int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tECOSYSTEM\tDIRECT\tVULNS\tWORST")
	for _, d := range deps {
		worst := d.Counts.Worst()
		flags := ""
		if d.Malicious {
			flags = " !"
		} else if d.Zombie {
			flags = " (zombie)"
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%d\t%s\n",
			d.Name,
			flags,
			d.Version,
			d.Ecosystem,
			yes(d.Direct),
			d.Counts.Total(),
			ui.RenderSeverity(worst, string(worst)),
		)
	}
	w.Flush()
	fmt.Printf("\n%d dependencies (%d total)\n", len(deps), total)
}

func printVulnListTable(vulns []*model.Vulnerability, total int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSEVERITY\tCVSS\tEPSS\tKEV\tREACHABLE\tFIXED\tSUMMARY")
	for _, v := range vulns {
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%.3f\t%s\t%s\t%s\t%s\n",
			v.ID,
			ui.RenderSeverity(v.Severity, string(v.Severity)),
			v.CVSS,
			v.EPSS,
			yes(v.CISAKEV),
			yes(v.Reachable),
			v.FixedVersion,
			truncate(v.Summary, 50),
		)
	}
	w.Flush()
	fmt.Printf("\n%d vulnerabilities (%d total)\n", len(vulns), total)
}

func printBanListTable(bans []*model.BannedVersion) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPACKAGE\tECOSYSTEM\tRANGE\tACTION\tEXPIRES\tREASON")
	for _, b := range bans {
		expires := ""
		if b.ExpiresAt != nil {
			expires = b.ExpiresAt.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			b.ID,
			b.Package,
			b.Ecosystem,
			b.Range,
			b.Action,
			expires,
			truncate(b.Reason, 40),
		)
	}
	w.Flush()
	fmt.Printf("\n%d bans\n", len(bans))
}

func printExceptionListTable(exceptions []*model.PolicyException) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tBAN\tPROJECT\tGRANTED BY\tEXPIRES\tREASON")
	for _, e := range exceptions {
		expires := ""
		if e.ExpiresAt != nil {
			expires = e.ExpiresAt.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID,
			e.BanID,
			e.ProjectID,
			e.GrantedBy,
			expires,
			truncate(e.Reason, 40),
		)
	}
	w.Flush()
	fmt.Printf("\n%d exceptions\n", len(exceptions))
}

func printBumpPRListTable(prs []*model.BumpPR) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROJECT\tPACKAGE\tFROM\tTO\tSTATUS\tURL")
	for _, pr := range prs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			pr.ID,
			pr.ProjectID,
			pr.Package,
			pr.FromVersion,
			pr.ToVersion,
			pr.Status,
			pr.URL,
		)
	}
	w.Flush()
	fmt.Printf("\n%d bump PRs\n", len(prs))
}

func printViolationListTable(violations []*model.Violation) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROJECT\tPACKAGE\tVERSION\tACTION\tDIRECT\tEXCEPTED\tDETECTED")
	for _, v := range violations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			v.ID,
			v.ProjectID,
			v.Package,
			v.Version,
			v.Action,
			yes(v.Direct),
			yes(v.Excepted),
			v.DetectedAt.Format(timeLayout),
		)
	}
	w.Flush()
	fmt.Printf("\n%d violations\n", len(violations))
}

func printViewListTable(views []*model.SavedView) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSCOPE\tUPDATED")
	for _, v := range views {
		fmt.Fprintf(w, "%s\t%s\t%s\n", v.Name, v.Scope, v.UpdatedAt.Format(timeLayout))
	}
	w.Flush()
	fmt.Printf("\n%d views\n", len(views))
}

func printPreferenceListTable(prefs []*model.Preference) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE")
	for _, p := range prefs {
		fmt.Fprintf(w, "%s\t%s\n", p.Key, p.Value)
	}
	w.Flush()
}

func printWatchListTable(watches []*client.WatchStatus) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCOPE\tLABEL\tVERSION\tCOMMITTED\tNODES\tWORST\tSTARTED")
	for _, ws := range watches {
		nodes := ""
		worst := ""
		if ws.Stats != nil {
			nodes = fmt.Sprintf("%d", ws.Stats.Nodes)
			worst = ui.RenderSeverity(ws.Stats.Worst, string(ws.Stats.Worst))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			ws.Scope,
			ws.Label,
			ws.Version,
			yes(ws.Committed),
			nodes,
			worst,
			ws.CreatedAt.Format(timeLayout),
		)
	}
	w.Flush()
	fmt.Printf("\n%d watches\n", len(watches))
}

func printEventListTable(events []*model.Event) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTOPIC\tSUBJECT\tACTOR\tCREATED")
	for _, e := range events {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			e.ID,
			e.ShortTopic(),
			e.Subject,
			e.Actor,
			e.CreatedAt.Format(timeLayout),
		)
	}
	w.Flush()
	fmt.Printf("\n%d events\n", len(events))
}

func printPresenceTable(p *client.PresenceResponse) {
	if p.Count == 0 {
		fmt.Printf("no viewers on %s\n", p.Scope)
		return
	}
	fmt.Printf("%d viewers on %s\n\n", p.Count, p.Scope)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tVIA\tIDLE\tVIEWING\tHEARTBEATS")
	for _, v := range p.Viewers {
		fmt.Fprintf(w, "%s\t%s\t%ds\t%ds\t%d\n",
			v.User,
			v.Via,
			v.IdleSecs,
			v.ViewDurationSecs,
			v.Heartbeats,
		)
	}
	w.Flush()
}

func printGraphSummary(resp *client.GraphResponse) {
	st := resp.Stats
	fmt.Printf("scope:           %s\n", resp.Scope)
	fmt.Printf("nodes:           %d\n", st.Nodes)
	fmt.Printf("edges:           %d\n", st.Edges)
	fmt.Printf("dependencies:    %d\n", st.Dependencies)
	fmt.Printf("vulnerabilities: %d\n", st.Vulnerabilities)
	fmt.Printf("worst:           %s\n", ui.RenderSeverity(st.Worst, string(st.Worst)))
	if len(resp.Degraded) > 0 {
		fmt.Printf("degraded:        %s\n", strings.Join(resp.Degraded, ", "))
	}
}
