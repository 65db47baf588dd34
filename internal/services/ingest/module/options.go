package module

import (
	"time"

	"github.com/go-playground/validator/v10"

	"marquee/internal/platform/config"
	perr "marquee/internal/platform/errors"
)

// Options holds the assembled ingest configuration.
// The run-shaping keys live at the env root; pipeline tuning under CORE_INGEST_
type Options struct {
	APIKey       string `validate:"required"`
	TargetDate   string `validate:"omitempty,datetime=2006-01-02"`
	BackfillDays int    `validate:"min=0"`
	Threshold    float64
	BatchSize    int `validate:"gt=0"`

	Retries      int `validate:"gt=0"`
	RetryBase    time.Duration
	FetchTimeout time.Duration
	FetchDelay   time.Duration
	BaseURL      string
	Language     string
	Timezone     string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// FromConfig reads and validates the ingest options.
// Violations surface as configuration errors before any network call
func FromConfig(cfg config.Conf) (Options, error) {
	o := Options{
		APIKey:       cfg.MayString("API_KEY", ""),
		TargetDate:   cfg.MayString("TARGET_DATE", ""),
		BackfillDays: cfg.MayInt("BACKFILL_DAYS", 0),
		Threshold:    cfg.MayFloat64("POPULARITY_THRESHOLD", 15),
		BatchSize:    cfg.MayInt("BATCH_SIZE", 10),
	}

	ing := cfg.Prefix("CORE_INGEST_")
	o.Retries = ing.MayInt("RETRIES", 3)
	o.RetryBase = ing.MayDuration("RETRY_BASE", 500*time.Millisecond)
	o.FetchTimeout = ing.MayDuration("FETCH_TIMEOUT", 10*time.Second)
	o.FetchDelay = ing.MayDuration("DELAY", 0)
	o.BaseURL = ing.MayString("BASE_URL", "")
	o.Language = ing.MayString("LANGUAGE", "")
	o.Timezone = ing.MayString("TIMEZONE", "UTC")

	if err := validate.Struct(o); err != nil {
		return Options{}, perr.Wrapf(err, perr.ErrorCodeConfig, "ingest options invalid")
	}
	if o.TargetDate == "" && o.BackfillDays <= 0 {
		return Options{}, perr.Configf("one of TARGET_DATE or BACKFILL_DAYS is required")
	}
	return o, nil
}
