package format

import (
	"strings"
	"time"

	"github.com/Sternrassler/odata-export/pkg/dataset"
	"github.com/ncruces/go-strftime"
)

// DefaultDateLayout is the strftime pattern used when none is configured.
const DefaultDateLayout = "%Y-%m-%d %H:%M"

// inputLayouts are tried in order when parsing timestamps.
var inputLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// DateTime reformats timestamp columns to a fixed textual pattern.
// Values that cannot be parsed become nil.
type DateTime struct {
	Columns []string `yaml:"columns"`

	// Layout is a strftime pattern, e.g. "%d/%m/%Y %H:%M".
	Layout string `yaml:"layout"`

	// SourceTimezone applies to timestamps without an offset.
	SourceTimezone string `yaml:"source_timezone"`

	// TargetTimezone is the zone values are rendered in.
	TargetTimezone string `yaml:"target_timezone"`
}

// ApplyDefaults fills an empty layout and timezones.
func (d *DateTime) ApplyDefaults() {
	if d.Layout == "" {
		d.Layout = DefaultDateLayout
	}
	if d.SourceTimezone == "" {
		d.SourceTimezone = "UTC"
	}
	if d.TargetTimezone == "" {
		d.TargetTimezone = "UTC"
	}
}

// Process implements Processor. Unknown timezones fall back to UTC.
func (d DateTime) Process(ds *dataset.Dataset) {
	d.ApplyDefaults()
	src := loadLocation(d.SourceTimezone)
	dst := loadLocation(d.TargetTimezone)

	for _, col := range d.Columns {
		mapColumn(ds, col, func(v any) any {
			t, ok := ParseTime(v, src)
			if !ok {
				return nil
			}
			return strftime.Format(d.Layout, t.In(dst))
		})
	}
}

// ParseTime interprets v as a timestamp. Values without an offset are
// taken to be in loc.
func ParseTime(v any, loc *time.Location) (time.Time, bool) {
	if t, ok := v.(time.Time); ok {
		return t, true
	}
	s, ok := dataset.Stringify(v)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
