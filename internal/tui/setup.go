package tui

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/theirongolddev/ocburn/internal/config"
	"github.com/theirongolddev/ocburn/internal/model"
	"github.com/theirongolddev/ocburn/internal/tui/theme"
)

// SetupValues holds the answers of the setup wizard as entered.
type SetupValues struct {
	BaseURL     string
	HistoryDir  string
	ProjectID   string
	DefaultDays string
	Daily       string
	Weekly      string
	Monthly     string
	Theme       string
	Save        bool
}

// NewSetupValues seeds the wizard with cfg.
func NewSetupValues(cfg config.Config) SetupValues {
	return SetupValues{
		BaseURL:     cfg.Opencode.BaseURL,
		HistoryDir:  cfg.General.HistoryDir,
		ProjectID:   cfg.General.ProjectID,
		DefaultDays: strconv.Itoa(cfg.General.DefaultDays),
		Daily:       formatLimit(cfg.Budget.Daily),
		Weekly:      formatLimit(cfg.Budget.Weekly),
		Monthly:     formatLimit(cfg.Budget.Monthly),
		Theme:       theme.ByName(cfg.Appearance.Theme).Name,
		Save:        true,
	}
}

func formatLimit(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// NewSetupForm builds the wizard writing its answers into v.
func NewSetupForm(v *SetupValues) *huh.Form {
	themeOpts := make([]huh.Option[string], len(theme.All))
	for i, t := range theme.All {
		themeOpts[i] = huh.NewOption(t.Name, t.Name)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("opencode server URL").
				Description("Where the opencode HTTP server listens.").
				Placeholder("http://127.0.0.1:4096").
				Value(&v.BaseURL).
				Validate(ValidateURL),
			huh.NewInput().
				Title("History directory").
				Description("Leave empty to use the first existing token-history directory.").
				Value(&v.HistoryDir),
			huh.NewInput().
				Title("Project ID").
				Description("Limit history views to one project. Leave empty for all.").
				Value(&v.ProjectID),
			huh.NewInput().
				Title("Default history days").
				Value(&v.DefaultDays).
				Validate(ValidateDays),
		).Title("General"),

		huh.NewGroup(
			huh.NewInput().
				Title("Daily budget (USD)").
				Description("Leave empty for no limit.").
				Value(&v.Daily).
				Validate(ValidateLimit),
			huh.NewInput().
				Title("Weekly budget (USD)").
				Value(&v.Weekly).
				Validate(ValidateLimit),
			huh.NewInput().
				Title("Monthly budget (USD)").
				Value(&v.Monthly).
				Validate(ValidateLimit),
		).Title("Budget"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Theme").
				Options(themeOpts...).
				Value(&v.Theme),
			huh.NewConfirm().
				Title("Save configuration?").
				Affirmative("Save").
				Negative("Discard").
				Value(&v.Save),
		).Title("Appearance"),
	).WithTheme(huh.ThemeCharm())
}

// ValidateURL accepts an absolute http or https URL.
func ValidateURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("URL must start with http:// or https://")
	}
	if u.Host == "" {
		return errors.New("URL must include a host")
	}
	return nil
}

// ValidateDays accepts a positive whole number of days.
func ValidateDays(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return errors.New("enter a positive number of days")
	}
	return nil
}

// ValidateLimit accepts an empty string or a non-negative amount.
func ValidateLimit(s string) error {
	_, err := parseLimit(s)
	return err
}

// parseLimit returns nil for an empty string. A leading "$" is allowed.
func parseLimit(s string) (*float64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return nil, errors.New("enter a non-negative amount in USD")
	}
	return &f, nil
}

// Apply returns cfg updated with the answers. Budget thresholds and every
// setting the wizard does not ask about are kept.
func (v SetupValues) Apply(cfg config.Config) (config.Config, error) {
	if err := ValidateURL(v.BaseURL); err != nil {
		return cfg, fmt.Errorf("opencode URL: %w", err)
	}
	days, err := strconv.Atoi(strings.TrimSpace(v.DefaultDays))
	if err != nil || days <= 0 {
		return cfg, fmt.Errorf("default days: invalid value %q", v.DefaultDays)
	}

	limits := make(map[model.Period]*float64, len(model.Periods))
	for p, raw := range map[model.Period]string{
		model.PeriodDaily:   v.Daily,
		model.PeriodWeekly:  v.Weekly,
		model.PeriodMonthly: v.Monthly,
	} {
		limit, err := parseLimit(raw)
		if err != nil {
			return cfg, fmt.Errorf("%s budget: %w", p, err)
		}
		limits[p] = limit
	}

	cfg.Opencode.BaseURL = strings.TrimRight(strings.TrimSpace(v.BaseURL), "/")
	cfg.General.HistoryDir = strings.TrimSpace(v.HistoryDir)
	cfg.General.ProjectID = strings.TrimSpace(v.ProjectID)
	cfg.General.DefaultDays = days
	cfg.Budget.Daily = limits[model.PeriodDaily]
	cfg.Budget.Weekly = limits[model.PeriodWeekly]
	cfg.Budget.Monthly = limits[model.PeriodMonthly]
	cfg.Appearance.Theme = theme.ByName(v.Theme).Name
	return cfg, nil
}

// RunSetup runs the wizard on the terminal and saves the result to path.
// It reports whether a file was written.
func RunSetup(cfg config.Config, path string) (bool, error) {
	v := NewSetupValues(cfg)
	if err := NewSetupForm(&v).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("running setup: %w", err)
	}
	if !v.Save {
		return false, nil
	}

	next, err := v.Apply(cfg)
	if err != nil {
		return false, err
	}
	if err := config.SaveFile(path, next); err != nil {
		return false, fmt.Errorf("saving config: %w", err)
	}
	return true, nil
}
