package review

import (
	"strings"
	"testing"

	"go_crew/internal/config"
	"go_crew/internal/model"
)

func testReviewConfig() config.AutoReviewConfig {
	return config.AutoReviewConfig{
		MinContentLength: 200,
		MaxTokens:        200000,
		SoftCostLimitUSD: 1.0,
		HardCostLimitUSD: 5.0,
	}
}

func goodOutput() string {
	return "# 12 Blues Licks in A\n\n" + strings.Repeat("Play the lick slowly with a metronome. ", 10)
}

func TestContentLengthCheck(t *testing.T) {
	check := &contentLengthCheck{min: 200}

	tests := []struct {
		name   string
		output string
		want   bool
	}{
		{"long enough", goodOutput(), true},
		{"too short", "tiny", false},
		{"whitespace only", strings.Repeat(" ", 300), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := check.Evaluate(&model.TaskResult{Output: tt.output})
			if got.Passed != tt.want {
				t.Errorf("Passed = %v, want %v (reason: %s)", got.Passed, tt.want, got.Reason)
			}
			if got.Reason == "" {
				t.Error("every check outcome must carry a reason")
			}
		})
	}
}

func TestStructureCheck(t *testing.T) {
	check := &structureCheck{markers: []string{"#"}}

	if got := check.Evaluate(&model.TaskResult{Output: "# Title\nbody"}); !got.Passed {
		t.Errorf("output with heading should pass, got %s", got.Reason)
	}
	if got := check.Evaluate(&model.TaskResult{Output: "flat text without structure"}); got.Passed {
		t.Error("output without markers should fail")
	}
}

func TestPlaceholderCheck(t *testing.T) {
	check := &placeholderCheck{}

	tests := []struct {
		name   string
		output string
		want   bool
	}{
		{"clean output", goodOutput(), true},
		{"todo marker", "# Licks\nTODO: write the bends section", false},
		{"lorem ipsum", "# Licks\nLorem Ipsum dolor", false},
		{"case insensitive", "# Licks\n[PLACEHOLDER]", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := check.Evaluate(&model.TaskResult{Output: tt.output})
			if got.Passed != tt.want {
				t.Errorf("Passed = %v, want %v (reason: %s)", got.Passed, tt.want, got.Reason)
			}
			if !got.Passed && got.Hard {
				t.Error("placeholder failures are soft, not hard")
			}
		})
	}
}

func TestErrorMarkerCheck_HardFailure(t *testing.T) {
	check := &errorMarkerCheck{}

	got := check.Evaluate(&model.TaskResult{Output: "# Licks\n[ERROR] generation aborted"})
	if got.Passed {
		t.Fatal("error marker should fail the check")
	}
	if !got.Hard {
		t.Error("error markers are a hard-fail category")
	}

	if got := check.Evaluate(&model.TaskResult{Output: goodOutput()}); !got.Passed {
		t.Errorf("clean output should pass, got %s", got.Reason)
	}
}

func TestCostCheck(t *testing.T) {
	check := &costCheck{maxTokens: 1000, softLimit: 1.0, hardLimit: 5.0}

	tests := []struct {
		name     string
		cost     float64
		tokens   int64
		wantPass bool
		wantHard bool
	}{
		{"within bounds", 0.5, 500, true, false},
		{"over soft limit", 2.0, 500, false, false},
		{"over hard limit", 6.0, 500, false, true},
		{"over token budget", 0.5, 2000, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := check.Evaluate(&model.TaskResult{CostUSD: tt.cost, TokensUsed: tt.tokens})
			if got.Passed != tt.wantPass {
				t.Errorf("Passed = %v, want %v (reason: %s)", got.Passed, tt.wantPass, got.Reason)
			}
			if got.Hard != tt.wantHard {
				t.Errorf("Hard = %v, want %v", got.Hard, tt.wantHard)
			}
		})
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		results []CheckResult
		want    model.ReviewDecision
	}{
		{
			name:    "all pass",
			results: []CheckResult{{Passed: true}, {Passed: true}},
			want:    model.DecisionApprove,
		},
		{
			name:    "soft failure revises",
			results: []CheckResult{{Passed: true}, {Passed: false}},
			want:    model.DecisionRevise,
		},
		{
			name:    "hard failure escalates",
			results: []CheckResult{{Passed: true}, {Passed: false, Hard: true}},
			want:    model.DecisionEscalate,
		},
		{
			name:    "hard beats soft regardless of order",
			results: []CheckResult{{Passed: false}, {Passed: false, Hard: true}, {Passed: false}},
			want:    model.DecisionEscalate,
		},
		{
			name:    "empty battery approves",
			results: nil,
			want:    model.DecisionApprove,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decide(tt.results); got != tt.want {
				t.Errorf("decide() = %s, want %s", got, tt.want)
			}
		})
	}
}
