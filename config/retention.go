package config

// GfsPolicy layers Grandfather-Father-Son rotation on top of the
// simpler keep-last/keep-days rules: within each window, the first
// backup encountered per hour/day/week/month/year is kept and the
// rest fall through to the other rules.
type GfsPolicy struct {
	// KeepHourly keeps one backup per hour for this many hours. Zero
	// disables hourly retention.
	KeepHourly int `yaml:"keep_hourly" json:"keep_hourly"`
	// KeepDaily keeps one backup per day for this many days.
	KeepDaily int `yaml:"keep_daily" json:"keep_daily"`
	// KeepWeekly keeps one backup per ISO week for this many weeks.
	KeepWeekly int `yaml:"keep_weekly" json:"keep_weekly"`
	// KeepMonthly keeps one backup per calendar month for this many
	// months.
	KeepMonthly int `yaml:"keep_monthly" json:"keep_monthly"`
	// KeepYearly keeps one backup per calendar year for this many
	// years.
	KeepYearly int `yaml:"keep_yearly" json:"keep_yearly"`
}

// RetentionPolicy controls which backups survive a retention sweep
// (spec §3's "retention by count and age" extended to full GFS).
// KeepLast and KeepDays are independent "or" rules: a backup
// satisfying either is kept. GFS is an additional optional layer.
// MinimumKeep is a hard floor checked before any rule is applied.
type RetentionPolicy struct {
	// KeepLast keeps the most recent N backups regardless of age.
	// Zero disables this rule.
	KeepLast int `yaml:"keep_last" json:"keep_last"`
	// KeepDays keeps backups newer than this many days. Zero disables
	// this rule.
	KeepDays int `yaml:"keep_days" json:"keep_days"`
	// Gfs layers hourly/daily/weekly/monthly/yearly retention on top
	// of KeepLast/KeepDays. Nil disables GFS entirely.
	Gfs *GfsPolicy `yaml:"gfs,omitempty" json:"gfs,omitempty"`
	// MinimumKeep is always honored first: a sweep never drops below
	// this many backups no matter what the other rules say.
	MinimumKeep int `yaml:"minimum_keep" json:"minimum_keep"`
}

// DefaultRetentionPolicy keeps the last 30 backups or anything from
// the last 90 days, with no GFS layering, and never drops below 3
// backups.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		KeepLast:    30,
		KeepDays:    90,
		Gfs:         nil,
		MinimumKeep: 3,
	}
}

// GfsRetentionPolicy layers a year of GFS rotation (hourly for a day,
// daily for a month, weekly for a quarter, monthly for a year, yearly
// for seven years) on top of the default keep-last/keep-days rules.
func GfsRetentionPolicy() RetentionPolicy {
	p := DefaultRetentionPolicy()
	p.Gfs = &GfsPolicy{
		KeepHourly:  24,
		KeepDaily:   30,
		KeepWeekly:  13,
		KeepMonthly: 12,
		KeepYearly:  7,
	}
	return p
}

// MarshalYAML lets an external config loader persist a chosen preset
// alongside the rest of its own YAML document.
func (p RetentionPolicy) MarshalYAML() (interface{}, error) {
	type plain RetentionPolicy
	return plain(p), nil
}
