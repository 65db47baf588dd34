package module

import (
	"testing"
	"time"

	"marquee/internal/modkit"
	"marquee/internal/platform/config"
	perr "marquee/internal/platform/errors"
)

func TestFromConfig_DefaultsWithTargetDate(t *testing.T) {
	t.Setenv("API_KEY", "secret")
	t.Setenv("TARGET_DATE", "2023-01-05")

	o, err := FromConfig(config.New())
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if o.APIKey != "secret" || o.TargetDate != "2023-01-05" {
		t.Fatalf("options mismatch: %+v", o)
	}
	if o.Threshold != 15 || o.BatchSize != 10 {
		t.Fatalf("pipeline defaults mismatch: %+v", o)
	}
	if o.Retries != 3 || o.RetryBase != 500*time.Millisecond || o.Timezone != "UTC" {
		t.Fatalf("tuning defaults mismatch: %+v", o)
	}
}

func TestFromConfig_Overrides(t *testing.T) {
	t.Setenv("API_KEY", "secret")
	t.Setenv("BACKFILL_DAYS", "5")
	t.Setenv("POPULARITY_THRESHOLD", "22.5")
	t.Setenv("BATCH_SIZE", "50")
	t.Setenv("CORE_INGEST_RETRIES", "6")
	t.Setenv("CORE_INGEST_DELAY", "350ms")
	t.Setenv("CORE_INGEST_TIMEZONE", "America/New_York")

	o, err := FromConfig(config.New())
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if o.BackfillDays != 5 || o.Threshold != 22.5 || o.BatchSize != 50 {
		t.Fatalf("options mismatch: %+v", o)
	}
	if o.Retries != 6 || o.FetchDelay != 350*time.Millisecond || o.Timezone != "America/New_York" {
		t.Fatalf("tuning mismatch: %+v", o)
	}
}

func TestFromConfig_MissingAPIKey(t *testing.T) {
	t.Setenv("API_KEY", "")
	t.Setenv("TARGET_DATE", "2023-01-05")

	_, err := FromConfig(config.New())
	if perr.CodeOf(err) != perr.ErrorCodeConfig {
		t.Fatalf("expected config code, got %v (err=%v)", perr.CodeOf(err), err)
	}
}

func TestFromConfig_RequiresDateOrBackfill(t *testing.T) {
	t.Setenv("API_KEY", "secret")
	t.Setenv("TARGET_DATE", "")
	t.Setenv("BACKFILL_DAYS", "")

	_, err := FromConfig(config.New())
	if perr.CodeOf(err) != perr.ErrorCodeConfig {
		t.Fatalf("expected config code, got %v (err=%v)", perr.CodeOf(err), err)
	}
}

func TestFromConfig_RejectsBadTargetDate(t *testing.T) {
	t.Setenv("API_KEY", "secret")
	t.Setenv("TARGET_DATE", "01/05/2023")

	_, err := FromConfig(config.New())
	if perr.CodeOf(err) != perr.ErrorCodeConfig {
		t.Fatalf("expected config code, got %v (err=%v)", perr.CodeOf(err), err)
	}
}

func TestNew_WiresModule(t *testing.T) {
	t.Setenv("API_KEY", "secret")
	t.Setenv("TARGET_DATE", "2023-01-05")

	m, err := New(modkit.Deps{Cfg: config.New()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.Name() != "ingest" {
		t.Fatalf("name mismatch: %q", m.Name())
	}
	ports, ok := m.Ports().(Ports)
	if !ok || ports.Runner == nil {
		t.Fatalf("ports not wired: %#v", m.Ports())
	}
	if spec := m.Spec(); spec.Date != "2023-01-05" || spec.BackfillDays != 0 {
		t.Fatalf("spec mismatch: %+v", spec)
	}
}

func TestNew_RejectsUnknownTimezone(t *testing.T) {
	t.Setenv("API_KEY", "secret")
	t.Setenv("TARGET_DATE", "2023-01-05")
	t.Setenv("CORE_INGEST_TIMEZONE", "Mars/Olympus_Mons")

	_, err := New(modkit.Deps{Cfg: config.New()})
	if perr.CodeOf(err) != perr.ErrorCodeConfig {
		t.Fatalf("expected config code, got %v (err=%v)", perr.CodeOf(err), err)
	}
}
