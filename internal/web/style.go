package web

// stylesheet is a dark slate theme with an orange accent.
const stylesheet = `
:root { --bg: #2b3e50; --panel: #4e5d6c; --fg: #ebebeb; --muted: #abb6c2; --accent: #df691a; }
* { box-sizing: border-box; }
body { margin: 0; font-family: "Lato", "Helvetica Neue", Arial, sans-serif; background: var(--bg); color: var(--fg); }
header { padding: 0.75rem 1.25rem; background: #1f2d3a; border-bottom: 2px solid var(--accent); }
header h1 { margin: 0; font-size: 1.5rem; }
.layout { display: grid; grid-template-columns: 280px 1fr; gap: 1rem; padding: 1rem; }
aside { background: var(--panel); padding: 1rem; border-radius: 6px; align-self: start; }
aside label { display: block; margin: 0.75rem 0 0.25rem; color: var(--muted); font-size: 0.9rem; }
aside select, aside input[type=number] { width: 100%; padding: 0.35rem; background: var(--bg); color: var(--fg); border: 1px solid var(--muted); border-radius: 4px; }
aside input[type=range] { width: 100%; accent-color: var(--accent); }
aside .checks label { display: inline; margin: 0 0.5rem 0 0.25rem; color: var(--fg); }
aside a { color: var(--accent); }
.errors { color: #ff8a80; font-size: 0.85rem; }
details { background: var(--panel); border-radius: 6px; margin-bottom: 1rem; }
summary { cursor: pointer; padding: 0.6rem 1rem; font-weight: bold; }
.scroll { max-height: 320px; overflow: auto; padding: 0 1rem 1rem; }
table { width: 100%; border-collapse: collapse; font-size: 0.85rem; }
th, td { padding: 0.3rem 0.5rem; border-bottom: 1px solid var(--bg); text-align: left; }
th a { color: var(--fg); text-decoration: none; }
th a.active { color: var(--accent); }
td.na { color: var(--muted); font-style: italic; }
.tabs { background: var(--panel); border-radius: 6px; padding: 0.5rem 1rem 1rem; }
.tabs > input { display: none; }
.tabs > label { display: inline-block; padding: 0.5rem 1rem; cursor: pointer; color: var(--muted); border-bottom: 2px solid transparent; }
.tabs > input:checked + label { color: var(--fg); border-bottom-color: var(--accent); }
.tab-panel { display: none; padding-top: 0.75rem; }
#tab-plotly:checked ~ #tabpanel-plotly, #tab-seaborn:checked ~ #tabpanel-seaborn, #tab-scatter:checked ~ #tabpanel-scatter { display: block; }
svg.chart { max-width: 100%; height: auto; background: var(--bg); border-radius: 4px; }
svg.chart text { fill: var(--fg); font-size: 12px; }
svg.chart text.title { font-size: 14px; font-weight: bold; }
svg.chart text.tick, svg.chart text.empty { fill: var(--muted); }
.note { color: var(--muted); font-size: 0.8rem; margin: 0.25rem 0 0; }
`
