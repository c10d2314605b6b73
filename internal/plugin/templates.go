// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package plugin

// template is one pre-built plugin recipe, stored verbatim as the script
// body for whatever scripting runtime the deployment's plugin executor
// expects (Python in the original source; the core itself never
// interprets this text, only scans it via ValidateCode and hands it to
// the plugin runtime's exec shim).
type template struct {
	name         string
	description  string
	code         string
	capabilities []string
}

// templates mirrors tools/src/plugin/templates.rs's TEMPLATES table:
// same four templates, same capability requirements.
var templates = []template{
	{
		name:        "web_scraper",
		description: "Scrape web page content and extract structured data",
		code: `import json, urllib.request

def main(input_data: dict) -> dict:
    url = input_data.get("url", "")
    if not url:
        return {"error": "No URL provided"}
    try:
        req = urllib.request.Request(url, headers={"User-Agent": "aiOS/1.0"})
        with urllib.request.urlopen(req, timeout=30) as response:
            content = response.read().decode("utf-8", errors="replace")
            return {"url": url, "status": response.status, "content_length": len(content), "content": content[:5000]}
    except Exception as e:
        return {"error": str(e), "url": url}
`,
		capabilities: []string{"net_read"},
	},
	{
		name:        "log_analyzer",
		description: "Analyze log files for patterns, errors, and anomalies",
		code: `import re
from collections import Counter
from pathlib import Path

def main(input_data: dict) -> dict:
    log_path = input_data.get("path", "/var/log/syslog")
    max_lines = input_data.get("max_lines", 1000)
    pattern = input_data.get("pattern", r"(ERROR|CRITICAL|FATAL|WARN)")
    try:
        lines = Path(log_path).read_text().splitlines()[-max_lines:]
    except Exception as e:
        return {"error": f"Cannot read {log_path}: {e}"}
    matches = [l for l in lines if re.search(pattern, l, re.IGNORECASE)]
    level_counts = Counter()
    for line in matches:
        for level in ["ERROR", "CRITICAL", "FATAL", "WARN"]:
            if level in line.upper():
                level_counts[level] += 1
    return {"total_lines": len(lines), "matching_lines": len(matches), "level_counts": dict(level_counts), "recent_matches": matches[-10:]}
`,
		capabilities: []string{"fs_read"},
	},
	{
		name:        "file_processor",
		description: "Process files with custom transformations",
		code: `from pathlib import Path

def main(input_data: dict) -> dict:
    path = input_data.get("path", "")
    operation = input_data.get("operation", "stats")
    if not path:
        return {"error": "No path provided"}
    p = Path(path)
    if not p.exists():
        return {"error": f"Path does not exist: {path}"}
    if operation == "stats":
        if p.is_file():
            content = p.read_text(errors="replace")
            return {"path": path, "size": p.stat().st_size, "lines": len(content.splitlines()), "words": len(content.split()), "chars": len(content)}
        elif p.is_dir():
            files = list(p.rglob("*"))
            return {"path": path, "total_files": sum(1 for f in files if f.is_file()), "total_dirs": sum(1 for f in files if f.is_dir()), "total_size": sum(f.stat().st_size for f in files if f.is_file())}
    return {"error": f"Unknown operation: {operation}"}
`,
		capabilities: []string{"fs_read"},
	},
	{
		name:        "api_client",
		description: "Make API calls with JSON request/response handling",
		code: `import json, urllib.request

def main(input_data: dict) -> dict:
    url = input_data.get("url", "")
    method = input_data.get("method", "GET").upper()
    headers = input_data.get("headers", {})
    body = input_data.get("body")
    if not url:
        return {"error": "No URL provided"}
    headers.setdefault("Content-Type", "application/json")
    headers.setdefault("User-Agent", "aiOS/1.0")
    data = json.dumps(body).encode() if body else None
    req = urllib.request.Request(url, data=data, headers=headers, method=method)
    try:
        with urllib.request.urlopen(req, timeout=30) as response:
            content = response.read().decode("utf-8", errors="replace")
            try:
                parsed = json.loads(content)
            except json.JSONDecodeError:
                parsed = content
            return {"status": response.status, "headers": dict(response.headers), "body": parsed}
    except Exception as e:
        return {"error": str(e)}
`,
		capabilities: []string{"net_read", "net_write"},
	},
}

// ListTemplates returns the name/description pairs of every built-in
// template.
func ListTemplates() []struct{ Name, Description string } {
	out := make([]struct{ Name, Description string }, 0, len(templates))
	for _, t := range templates {
		out = append(out, struct{ Name, Description string }{t.name, t.description})
	}
	return out
}

// findTemplate returns the named template, if it exists.
func findTemplate(name string) (template, bool) {
	for _, t := range templates {
		if t.name == name {
			return t, true
		}
	}
	return template{}, false
}
