package review

import (
	"fmt"
	"strings"

	"go_crew/internal/config"
	"go_crew/internal/model"
)

// CheckResult is one check's outcome within a verdict. Hard marks the
// failure category that forces escalation over revision.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Hard   bool   `json:"hard,omitempty"`
	Reason string `json:"reason"`
}

// Check inspects one task result snapshot. Checks are independent: the
// engine runs every check even after a failure so the verdict carries the
// full picture.
type Check interface {
	Name() string
	Evaluate(res *model.TaskResult) CheckResult
}

// defaultChecks builds the production check battery in fixed order
func defaultChecks(cfg config.AutoReviewConfig) []Check {
	return []Check{
		&contentLengthCheck{min: cfg.MinContentLength},
		&structureCheck{markers: []string{"#"}},
		&placeholderCheck{},
		&errorMarkerCheck{},
		&costCheck{
			maxTokens: cfg.MaxTokens,
			softLimit: cfg.SoftCostLimitUSD,
			hardLimit: cfg.HardCostLimitUSD,
		},
	}
}

// contentLengthCheck fails output shorter than the configured minimum
type contentLengthCheck struct {
	min int
}

func (c *contentLengthCheck) Name() string { return "content_length" }

func (c *contentLengthCheck) Evaluate(res *model.TaskResult) CheckResult {
	n := len(strings.TrimSpace(res.Output))
	if n < c.min {
		return CheckResult{
			Name:   c.Name(),
			Passed: false,
			Reason: fmt.Sprintf("output is %d chars, below the %d char minimum", n, c.min),
		}
	}
	return CheckResult{
		Name:   c.Name(),
		Passed: true,
		Reason: fmt.Sprintf("output length sufficient (%d chars)", n),
	}
}

// structureCheck requires every structural marker to appear in the output
type structureCheck struct {
	markers []string
}

func (c *structureCheck) Name() string { return "structure" }

func (c *structureCheck) Evaluate(res *model.TaskResult) CheckResult {
	var missing []string
	for _, marker := range c.markers {
		if !strings.Contains(res.Output, marker) {
			missing = append(missing, marker)
		}
	}
	if len(missing) > 0 {
		return CheckResult{
			Name:   c.Name(),
			Passed: false,
			Reason: fmt.Sprintf("missing structural markers: %s", strings.Join(missing, ", ")),
		}
	}
	return CheckResult{
		Name:   c.Name(),
		Passed: true,
		Reason: "all structural markers present",
	}
}

// placeholderMarkers flag unfinished output; each triggers a soft failure
var placeholderMarkers = []string{
	"todo:",
	"tbd",
	"[placeholder]",
	"lorem ipsum",
	"fixme",
	"<insert",
}

type placeholderCheck struct{}

func (c *placeholderCheck) Name() string { return "placeholders" }

func (c *placeholderCheck) Evaluate(res *model.TaskResult) CheckResult {
	lowered := strings.ToLower(res.Output)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lowered, marker) {
			return CheckResult{
				Name:   c.Name(),
				Passed: false,
				Reason: fmt.Sprintf("output contains placeholder marker %q", marker),
			}
		}
	}
	return CheckResult{
		Name:   c.Name(),
		Passed: true,
		Reason: "no placeholder markers found",
	}
}

// errorMarkers signal broken generation; any hit is a hard failure that
// escalates regardless of other checks passing
var errorMarkers = []string{
	"[error]",
	"internal error:",
	"traceback (most recent call",
	"as an ai",
	"i'm sorry, but",
	"request failed",
}

type errorMarkerCheck struct{}

func (c *errorMarkerCheck) Name() string { return "error_markers" }

func (c *errorMarkerCheck) Evaluate(res *model.TaskResult) CheckResult {
	lowered := strings.ToLower(res.Output)
	for _, marker := range errorMarkers {
		if strings.Contains(lowered, marker) {
			return CheckResult{
				Name:   c.Name(),
				Passed: false,
				Hard:   true,
				Reason: fmt.Sprintf("output contains error marker %q", marker),
			}
		}
	}
	return CheckResult{
		Name:   c.Name(),
		Passed: true,
		Reason: "no error markers found",
	}
}

// costCheck bounds token and dollar spend. Spend past the hard limit is a
// hard failure; past the soft limit or token budget it is a soft failure.
type costCheck struct {
	maxTokens int64
	softLimit float64
	hardLimit float64
}

func (c *costCheck) Name() string { return "cost_bounds" }

func (c *costCheck) Evaluate(res *model.TaskResult) CheckResult {
	if res.CostUSD > c.hardLimit {
		return CheckResult{
			Name:   c.Name(),
			Passed: false,
			Hard:   true,
			Reason: fmt.Sprintf("cost $%.4f far exceeds the $%.2f hard limit", res.CostUSD, c.hardLimit),
		}
	}
	if res.CostUSD > c.softLimit {
		return CheckResult{
			Name:   c.Name(),
			Passed: false,
			Reason: fmt.Sprintf("cost $%.4f exceeds the $%.2f soft limit", res.CostUSD, c.softLimit),
		}
	}
	if res.TokensUsed > c.maxTokens {
		return CheckResult{
			Name:   c.Name(),
			Passed: false,
			Reason: fmt.Sprintf("token usage %d exceeds the %d budget", res.TokensUsed, c.maxTokens),
		}
	}
	return CheckResult{
		Name:   c.Name(),
		Passed: true,
		Reason: fmt.Sprintf("cost $%.4f and %d tokens within bounds", res.CostUSD, res.TokensUsed),
	}
}

// decide aggregates check results into a decision. Stricter outcomes win:
// escalate > revise > approve.
func decide(results []CheckResult) model.ReviewDecision {
	decision := model.DecisionApprove
	for _, r := range results {
		if r.Passed {
			continue
		}
		if r.Hard {
			return model.DecisionEscalate
		}
		decision = model.DecisionRevise
	}
	return decision
}
