package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/pipeline"
)

func fakeEnv(vals map[string]string) func(string) string {
	return func(key string) string {
		return vals[key]
	}
}

func TestResolveRetryPolicyConfigDefaults(t *testing.T) {
	cfg := config.Default()

	policy := resolveRetryPolicy(cfg, 0, false, 0, false, fakeEnv(nil))
	if policy.MaxRetries != cfg.Retry.MaxRetries {
		t.Errorf("maxRetries = %d, want %d", policy.MaxRetries, cfg.Retry.MaxRetries)
	}
	if policy.Delay != time.Duration(cfg.Retry.RetryDelayMs)*time.Millisecond {
		t.Errorf("delay = %v", policy.Delay)
	}
}

func TestResolveRetryPolicyEnvOverridesConfig(t *testing.T) {
	cfg := config.Default()
	env := fakeEnv(map[string]string{
		envMaxRetries:   "5",
		envRetryDelayMs: "250",
	})

	policy := resolveRetryPolicy(cfg, 0, false, 0, false, env)
	if policy.MaxRetries != 5 {
		t.Errorf("maxRetries = %d, want 5", policy.MaxRetries)
	}
	if policy.Delay != 250*time.Millisecond {
		t.Errorf("delay = %v", policy.Delay)
	}
}

func TestResolveRetryPolicyFlagsBeatEnv(t *testing.T) {
	cfg := config.Default()
	env := fakeEnv(map[string]string{
		envMaxRetries:   "5",
		envRetryDelayMs: "250",
	})

	policy := resolveRetryPolicy(cfg, 1, true, 100, true, env)
	if policy.MaxRetries != 1 {
		t.Errorf("maxRetries = %d, want 1", policy.MaxRetries)
	}
	if policy.Delay != 100*time.Millisecond {
		t.Errorf("delay = %v", policy.Delay)
	}
}

func TestResolveRetryPolicyIgnoresBadEnv(t *testing.T) {
	cfg := config.Default()
	env := fakeEnv(map[string]string{
		envMaxRetries:   "lots",
		envRetryDelayMs: "-9",
	})

	policy := resolveRetryPolicy(cfg, 0, false, 0, false, env)
	if policy.MaxRetries != cfg.Retry.MaxRetries {
		t.Errorf("maxRetries = %d, want config default", policy.MaxRetries)
	}
	if policy.Delay != time.Duration(cfg.Retry.RetryDelayMs)*time.Millisecond {
		t.Errorf("delay = %v, want config default", policy.Delay)
	}
}

func TestPrintRenderResult(t *testing.T) {
	var buf bytes.Buffer
	printRenderResult(&buf, pipeline.Result{
		RunID:               "run-abc",
		Quality:             "balanced",
		OutputPath:          "/data/p/renders/final.mp4",
		SourceClipCount:     3,
		OverlayClipCount:    2,
		OverlayAppliedCount: 1,
		SubtitlesBurned:     true,
		Warnings:            []string{"template clip tmpl-1 skipped"},
		StageDurationsMs:    map[string]int64{"segment-render": 1200},
	})

	out := buf.String()
	for _, want := range []string{"final.mp4", "3 source", "1 applied", "subtitles", "segment-render", "tmpl-1 skipped"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID = %q", got)
	}
}
