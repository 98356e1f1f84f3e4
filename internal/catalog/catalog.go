// Package catalog implements the read-only SKU store (component A). Rows
// are loaded once at construction from Postgres and held in memory for the
// remainder of the process lifetime; names() and series() are derived at
// load time and never recomputed.
package catalog

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/xrick/laptop-funnel-dialogue/internal/models"
)

// testModelPattern matches rows that must be filtered out at load time.
var testModelPattern = regexp.MustCompile(`(?i)^test[\s_-]`)

// leadingDigitRun returns the first run of at least 3 consecutive digits
// in name, scanning left to right; a later, longer run is not preferred.
// It returns "" when no run reaches 3 digits. This is the series-key
// derivation rule used for SPEC_FULL §6.
func leadingDigitRun(name string) string {
	best := ""
	cur := strings.Builder{}
	flush := func() {
		if cur.Len() >= 3 && best == "" {
			best = cur.String()
		}
		cur.Reset()
	}
	for _, r := range name {
		if r >= '0' && r <= '9' {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return best
}

// Store is the read-only catalog contract consumed by every other
// component. Implementations must never raise to callers: query-time
// failures return an empty result alongside a logged warning.
type Store interface {
	ByName(ctx context.Context, names []string) []models.SKU
	BySeries(ctx context.Context, keys []string) []models.SKU
	All(ctx context.Context) []models.SKU
	Names() map[string]struct{}
	Series() map[string]struct{}
}

// Catalog is the in-memory, Postgres-seeded implementation of Store.
type Catalog struct {
	byName map[string]models.SKU
	all    []models.SKU // stable alphabetic order
	names  map[string]struct{}
	series map[string]struct{}
	log    *logrus.Entry
}

// rawRow mirrors the skus table shape for scanning.
type rawRow struct {
	ModelName string
	SeriesKey string
	Fields    map[string]string
}

// Load connects to pool, reads every row of the skus table, filters test
// rows, and builds the immutable in-memory snapshot. A failure here is
// fatal per §4.A/§7 CatalogUnavailable-at-startup: callers should treat a
// non-nil error as "refuse to start".
func Load(ctx context.Context, pool *pgxpool.Pool, log *logrus.Entry) (*Catalog, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	rows, err := pool.Query(ctx, `SELECT model_name, series_key, fields FROM skus`)
	if err != nil {
		return nil, fmt.Errorf("catalog: query skus: %w", err)
	}
	defer rows.Close()

	var raw []rawRow
	for rows.Next() {
		var r rawRow
		r.Fields = map[string]string{}
		var fieldsJSON map[string]any
		if err := rows.Scan(&r.ModelName, &r.SeriesKey, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("catalog: scan sku row: %w", err)
		}
		for k, v := range fieldsJSON {
			if s, ok := v.(string); ok {
				r.Fields[k] = s
			}
		}
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate skus: %w", err)
	}

	return build(raw, log)
}

func build(raw []rawRow, log *logrus.Entry) (*Catalog, error) {
	byName := make(map[string]models.SKU)
	names := make(map[string]struct{})
	series := make(map[string]struct{})

	for _, r := range raw {
		name := strings.TrimSpace(r.ModelName)
		if name == "" || testModelPattern.MatchString(name) {
			log.WithField("model_name", r.ModelName).Debug("catalog: filtered test/empty row at load")
			continue
		}
		seriesKey := r.SeriesKey
		if seriesKey == "" {
			seriesKey = leadingDigitRun(name)
		}
		sku := models.SKU{Name: name, Series: seriesKey, Fields: r.Fields}
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("catalog: duplicate model name %q violates uniqueness invariant", name)
		}
		byName[name] = sku
		names[name] = struct{}{}
		if seriesKey != "" {
			series[seriesKey] = struct{}{}
		}
	}

	all := make([]models.SKU, 0, len(byName))
	for _, sku := range byName {
		all = append(all, sku)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	return &Catalog{byName: byName, all: all, names: names, series: series, log: log}, nil
}

// NewStatic builds a Catalog directly from rows, applying the same
// filtering/derivation rules as Load. Used by tests and by any future
// non-Postgres loader.
func NewStatic(rows []models.SKU) (*Catalog, error) {
	raw := make([]rawRow, 0, len(rows))
	for _, r := range rows {
		raw = append(raw, rawRow{ModelName: r.Name, SeriesKey: r.Series, Fields: r.Fields})
	}
	return build(raw, logrus.NewEntry(logrus.StandardLogger()))
}

func (c *Catalog) ByName(_ context.Context, names []string) []models.SKU {
	out := make([]models.SKU, 0, len(names))
	for _, n := range names {
		if sku, ok := c.byName[n]; ok {
			out = append(out, sku)
		}
	}
	return out
}

func (c *Catalog) BySeries(_ context.Context, keys []string) []models.SKU {
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}
	out := make([]models.SKU, 0)
	for _, sku := range c.all { // already alphabetic by model name
		if _, ok := want[sku.Series]; ok {
			out = append(out, sku)
		}
	}
	return out
}

func (c *Catalog) All(_ context.Context) []models.SKU {
	out := make([]models.SKU, len(c.all))
	copy(out, c.all)
	return out
}

func (c *Catalog) Names() map[string]struct{} {
	return c.names
}

func (c *Catalog) Series() map[string]struct{} {
	return c.series
}

// SortedSeries returns Series() as a sorted slice, used by the router (G)
// when it must name every series deterministically and by startup to pick
// the default series set.
func SortedSeries(c Store) []string {
	s := c.Series()
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SortedNames returns Names() as a sorted slice.
func SortedNames(c Store) []string {
	n := c.Names()
	out := make([]string, 0, len(n))
	for k := range n {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
