package canvas

import (
	"encoding/json"
	"fmt"
)

// HTML renders the graph as a self-contained page: embedded data, inline
// styles, pan and zoom, no external assets. json.Marshal escapes angle
// brackets, so labels cannot break out of the script block.
func (r *Renderer) HTML(g Graph, title string) ([]byte, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph: %w", err)
	}
	page := fmt.Sprintf(htmlPage, title, title, g.Scope, string(data))
	return []byte(page), nil
}

const htmlPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
  :root {
    --bg: #0f1320;
    --panel: rgba(22, 27, 45, 0.92);
    --border: rgba(100, 116, 139, 0.35);
    --text: #e8e8f0;
    --muted: #8888aa;
    --critical: #dc2626;
    --high: #ea580c;
    --medium: #d97706;
    --low: #ca8a04;
    --none: #334155;
  }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    background: var(--bg);
    color: var(--text);
    font-family: -apple-system, "Segoe UI", Roboto, sans-serif;
    overflow: hidden;
  }
  #viewport { width: 100vw; height: 100vh; cursor: grab; }
  #viewport.panning { cursor: grabbing; }
  .hud {
    position: fixed;
    background: var(--panel);
    border: 1px solid var(--border);
    border-radius: 10px;
    padding: 12px 16px;
    backdrop-filter: blur(6px);
  }
  #header { top: 16px; left: 16px; }
  #header h1 { font-size: 15px; font-weight: 600; }
  #header .scope { font-size: 12px; color: var(--muted); margin-top: 2px; }
  #stats { top: 16px; right: 16px; font-size: 12px; }
  #stats div { display: flex; justify-content: space-between; gap: 18px; }
  #stats span { color: var(--muted); }
  #legend { bottom: 16px; left: 16px; font-size: 12px; }
  #legend div { display: flex; align-items: center; gap: 8px; margin: 3px 0; }
  #legend i {
    width: 10px; height: 10px; border-radius: 50%%; display: inline-block;
  }
  .node-label {
    fill: var(--text);
    font-size: 12px;
    text-anchor: middle;
    pointer-events: none;
  }
  .node-sub { fill: var(--muted); font-size: 10px; text-anchor: middle; }
  @keyframes march { to { stroke-dashoffset: -20; } }
  .animated { animation: march 1.2s linear infinite; }
</style>
</head>
<body>
<svg id="viewport"></svg>
<div class="hud" id="header"><h1>%s</h1><div class="scope">%s</div></div>
<div class="hud" id="stats"></div>
<div class="hud" id="legend">
  <div><i style="background:var(--critical)"></i> critical</div>
  <div><i style="background:var(--high)"></i> high</div>
  <div><i style="background:var(--medium)"></i> medium</div>
  <div><i style="background:var(--low)"></i> low</div>
  <div><i style="background:var(--none)"></i> clean</div>
</div>
<script>
const DATA = %s;

const SEVERITY = {
  critical: "var(--critical)",
  high: "var(--high)",
  medium: "var(--medium)",
  low: "var(--low)",
  none: "var(--none)",
};
const RADII = {
  center: 46, organization: 46, skeleton: 46,
  project: 38, team: 38,
  dependency: 26, vulnerability: 16,
};

const svg = document.getElementById("viewport");
const NS = "http://www.w3.org/2000/svg";
const world = document.createElementNS(NS, "g");
svg.appendChild(world);

function el(name, attrs) {
  const e = document.createElementNS(NS, name);
  for (const [k, v] of Object.entries(attrs)) e.setAttribute(k, v);
  return e;
}

const byId = new Map((DATA.nodes || []).map((n) => [n.id, n]));
for (const edge of DATA.edges || []) {
  const a = byId.get(edge.source);
  const b = byId.get(edge.target);
  if (!a || !b) continue;
  const line = el("line", {
    x1: a.position.x, y1: a.position.y,
    x2: b.position.x, y2: b.position.y,
    stroke: edge.color, "stroke-width": 2,
  });
  if (edge.animated) {
    line.setAttribute("stroke-dasharray", "6 4");
    line.classList.add("animated");
  }
  world.appendChild(line);
}

for (const node of DATA.nodes || []) {
  const r = RADII[node.type] || 26;
  const d = node.data || {};
  const g = el("g", { opacity: d.opacity > 0 ? d.opacity : 1 });
  let fill = "#1e293b";
  if (node.type === "dependency" || node.type === "vulnerability") {
    fill = SEVERITY[d.severity] || SEVERITY.none;
  }
  let ring = "#64748b";
  if (d.malicious) ring = "#fb923c";
  if (d.banned) ring = "#ef4444";
  g.appendChild(el("circle", {
    cx: node.position.x, cy: node.position.y, r: r,
    fill: fill, stroke: ring, "stroke-width": 2.5,
  }));
  const label = el("text", {
    x: node.position.x, y: node.position.y + r + 16, class: "node-label",
  });
  label.textContent = d.label || node.id;
  g.appendChild(label);
  if (d.sublabel) {
    const sub = el("text", {
      x: node.position.x, y: node.position.y + r + 30, class: "node-sub",
    });
    sub.textContent = d.sublabel;
    g.appendChild(sub);
  }
  world.appendChild(g);
}

const stats = DATA.stats || {};
document.getElementById("stats").innerHTML = [
  ["nodes", stats.nodes], ["edges", stats.edges],
  ["dependencies", stats.dependencies],
  ["vulnerabilities", stats.vulnerabilities],
  ["worst", stats.worst],
].map(([k, v]) => "<div><span>" + k + "</span><b>" + (v ?? 0) + "</b></div>").join("");

let minX = Infinity, minY = Infinity, maxX = -Infinity, maxY = -Infinity;
for (const n of DATA.nodes || []) {
  minX = Math.min(minX, n.position.x - 120);
  minY = Math.min(minY, n.position.y - 120);
  maxX = Math.max(maxX, n.position.x + 120);
  maxY = Math.max(maxY, n.position.y + 120);
}
if (!isFinite(minX)) { minX = -300; minY = -300; maxX = 300; maxY = 300; }

let view = { x: minX, y: minY, w: maxX - minX, h: maxY - minY };
function apply() {
  svg.setAttribute("viewBox", view.x + " " + view.y + " " + view.w + " " + view.h);
}
apply();

svg.addEventListener("wheel", (ev) => {
  ev.preventDefault();
  const factor = ev.deltaY > 0 ? 1.15 : 1 / 1.15;
  const rect = svg.getBoundingClientRect();
  const px = view.x + ((ev.clientX - rect.left) / rect.width) * view.w;
  const py = view.y + ((ev.clientY - rect.top) / rect.height) * view.h;
  view.w *= factor;
  view.h *= factor;
  view.x = px - (px - view.x) * factor;
  view.y = py - (py - view.y) * factor;
  apply();
}, { passive: false });

let drag = null;
svg.addEventListener("mousedown", (ev) => {
  drag = { x: ev.clientX, y: ev.clientY };
  svg.classList.add("panning");
});
window.addEventListener("mousemove", (ev) => {
  if (!drag) return;
  const rect = svg.getBoundingClientRect();
  view.x -= ((ev.clientX - drag.x) / rect.width) * view.w;
  view.y -= ((ev.clientY - drag.y) / rect.height) * view.h;
  drag = { x: ev.clientX, y: ev.clientY };
  apply();
});
window.addEventListener("mouseup", () => {
  drag = null;
  svg.classList.remove("panning");
});
</script>
</body>
</html>
`
