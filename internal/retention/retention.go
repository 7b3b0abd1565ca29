package retention

import (
	"fmt"
	"sort"
	"time"

	"github.com/thoreinstein/rsnap/internal/errors"
	"github.com/thoreinstein/rsnap/internal/snapshot"
)

// Period identifies a generational bucket size.
type Period string

// Supported bucket periods, smallest first.
const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// Valid reports whether p is a supported period.
func (p Period) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly:
		return true
	}
	return false
}

// Rule keeps the newest snapshot of each of the most recent Keep buckets
// of the given period.
type Rule struct {
	Period Period `yaml:"period" mapstructure:"period"`
	Keep   int    `yaml:"keep" mapstructure:"keep"`
}

// Validate checks a rule for a supported period and a sane keep count.
func (r Rule) Validate() error {
	if !r.Period.Valid() {
		return errors.Wrapf(errors.ErrInvalidConfig, "unknown retention period %q", r.Period)
	}
	if r.Keep < 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "retention keep count must be >= 0, got %d", r.Keep)
	}
	return nil
}

// Policy decides which complete snapshots are redundant under a set of
// generational rules. The computation is pure: given the same snapshot
// list, rules and reference time it always produces the same answer, and
// it never touches the filesystem.
type Policy struct {
	rules []Rule
}

// NewPolicy creates a policy from the given rules.
// An empty rule list yields a policy that keeps only the newest complete
// snapshot.
func NewPolicy(rules []Rule) *Policy {
	return &Policy{rules: rules}
}

// Rules returns the policy's rules.
func (p *Policy) Rules() []Rule {
	return p.rules
}

// bucketKey maps a snapshot creation time to its calendar-aligned bucket.
func bucketKey(period Period, t time.Time) string {
	switch period {
	case PeriodDaily:
		return t.Format("2006-01-02")
	case PeriodWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case PeriodMonthly:
		return t.Format("2006-01")
	case PeriodYearly:
		return t.Format("2006")
	default:
		return t.Format("2006-01-02")
	}
}

// Prune returns the complete snapshots eligible for deletion, oldest
// first. For each rule, snapshots are bucketed by calendar period; the
// newest snapshot of each of the newest Keep buckets survives. A snapshot
// surviving under any rule is kept (union of keeps). The globally newest
// complete snapshot is always kept regardless of rules, since it is the
// only possible baseline for the next run. Snapshots created after now
// are never offered for deletion.
//
// in_progress and failed snapshots are not this policy's concern; failed
// ones are removed explicitly through the repository.
func (p *Policy) Prune(snapshots []snapshot.Snapshot, now time.Time) []snapshot.Snapshot {
	var complete []snapshot.Snapshot
	for _, s := range snapshots {
		if s.Status == snapshot.StatusComplete {
			complete = append(complete, s)
		}
	}
	if len(complete) == 0 {
		return nil
	}

	sort.Slice(complete, func(i, j int) bool {
		return complete[i].ID < complete[j].ID
	})

	keep := make(map[string]bool)

	// The newest complete snapshot is the next run's baseline.
	keep[complete[len(complete)-1].ID] = true

	for _, rule := range p.rules {
		for _, id := range survivors(complete, rule) {
			keep[id] = true
		}
	}

	var prune []snapshot.Snapshot
	for _, s := range complete {
		if keep[s.ID] {
			continue
		}
		if s.CreatedAt.After(now) {
			// A clock that jumped backwards must not delete data.
			continue
		}
		prune = append(prune, s)
	}

	return prune
}

// survivors returns the IDs kept by a single rule: the newest snapshot of
// each of the newest Keep buckets. snapshots must be sorted ascending.
func survivors(snapshots []snapshot.Snapshot, rule Rule) []string {
	if rule.Keep <= 0 {
		return nil
	}

	// Newest snapshot per bucket. Ascending input means the last write to
	// a key wins, which is the newest member.
	newest := make(map[string]string)
	var order []string
	for _, s := range snapshots {
		key := bucketKey(rule.Period, s.CreatedAt)
		if _, seen := newest[key]; !seen {
			order = append(order, key)
		}
		newest[key] = s.ID
	}

	// Newest Keep buckets; ascending input means bucket keys appear in
	// chronological order.
	if len(order) > rule.Keep {
		order = order[len(order)-rule.Keep:]
	}

	ids := make([]string, 0, len(order))
	for _, key := range order {
		ids = append(ids, newest[key])
	}
	return ids
}
