// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package plugin

import (
	"strings"
)

// dangerousPattern is one entry of the static risk-analysis table.
type dangerousPattern struct {
	pattern     string
	risk        uint32
	description string
}

// dangerousPatterns mirrors tools/src/plugin/validate.rs's
// DANGEROUS_PATTERNS table verbatim.
var dangerousPatterns = []dangerousPattern{
	{"os.system(", 30, "Arbitrary command execution via os.system"},
	{"subprocess.call(", 20, "Subprocess execution"},
	{"subprocess.Popen(", 20, "Subprocess execution"},
	{"subprocess.run(", 15, "Subprocess execution"},
	{"eval(", 25, "Dynamic code evaluation"},
	{"exec(", 25, "Dynamic code execution"},
	{"compile(", 15, "Dynamic code compilation"},
	{"__import__(", 20, "Dynamic module import"},
	{"importlib.import_module(", 15, "Dynamic module import"},
	{"open(", 5, "File access (check paths)"},
	{"shutil.rmtree(", 20, "Recursive directory deletion"},
	{"os.remove(", 10, "File deletion"},
	{"os.unlink(", 10, "File deletion"},
	{"os.rmdir(", 10, "Directory deletion"},
	{"socket.socket(", 10, "Raw socket creation"},
	{"ctypes.", 20, "C library access"},
	{"os.chmod(", 10, "Permission modification"},
	{"os.chown(", 10, "Ownership modification"},
	{"os.setuid(", 30, "Privilege escalation"},
	{"os.setgid(", 30, "Privilege escalation"},
}

// Finding is one matched dangerous pattern.
type Finding struct {
	Pattern     string `json:"pattern"`
	Risk        uint32 `json:"risk"`
	Description string `json:"description"`
	LineNumber  int    `json:"line_number"`
}

// ValidationResult is the outcome of scanning plugin code.
type ValidationResult struct {
	Safe           bool      `json:"safe"`
	RiskScore      uint32    `json:"risk_score"`
	Findings       []Finding `json:"findings"`
	Recommendation string    `json:"recommendation"`
}

// ValidateCode scans code line by line for the dangerous pattern table,
// skipping comment lines ("#"-prefixed, after trimming), and caps the
// total risk score at 100. safe is risk_score < 70.
func ValidateCode(code string) ValidationResult {
	var findings []Finding
	var totalRisk uint32

	for i, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		for _, dp := range dangerousPatterns {
			if strings.Contains(trimmed, dp.pattern) {
				findings = append(findings, Finding{
					Pattern:     dp.pattern,
					Risk:        dp.risk,
					Description: dp.description,
					LineNumber:  i + 1,
				})
				totalRisk += dp.risk
			}
		}
	}

	if totalRisk > 100 {
		totalRisk = 100
	}

	safe := totalRisk < 70
	var recommendation string
	switch {
	case totalRisk == 0:
		recommendation = "Code appears safe"
	case totalRisk < 30:
		recommendation = "Low risk — minor concerns noted"
	case totalRisk < 70:
		recommendation = "Medium risk — review findings before deployment"
	default:
		recommendation = "High risk — code contains dangerous patterns and should be rejected"
	}

	return ValidationResult{
		Safe:           safe,
		RiskScore:      totalRisk,
		Findings:       findings,
		Recommendation: recommendation,
	}
}
