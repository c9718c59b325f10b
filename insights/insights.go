// Package insights generates the canned usage notifications shown in the
// app. Everything here is a pure threshold check over data the CRM already
// returned; there is no I/O and no model behind it.
package insights

import (
	"fmt"
	"time"

	"github.com/ispkit/selfcare/subscriber"
)

// Severity orders insights for display.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

// Insight is one notification card.
type Insight struct {
	Severity Severity
	Title    string
	Body     string
}

// Quota thresholds.
const (
	quotaWarnFraction     = 0.80
	quotaCriticalFraction = 0.95
)

// Plan-expiry reminder windows, nearest first.
var expiryWindows = []struct {
	within   time.Duration
	severity Severity
}{
	{24 * time.Hour, SeverityCritical},
	{3 * 24 * time.Hour, SeverityWarning},
	{7 * 24 * time.Hour, SeverityInfo},
}

// QuotaInsight reports on data-quota consumption. Unlimited plans yield
// nothing.
func QuotaInsight(u subscriber.Usage) (Insight, bool) {
	frac := u.QuotaFraction()
	switch {
	case frac >= quotaCriticalFraction:
		return Insight{
			Severity: SeverityCritical,
			Title:    "Data almost exhausted",
			Body:     fmt.Sprintf("You have used %.0f%% of your data quota. Speeds may be reduced once the quota runs out.", frac*100),
		}, true
	case frac >= quotaWarnFraction:
		return Insight{
			Severity: SeverityWarning,
			Title:    "High data usage",
			Body:     fmt.Sprintf("You have used %.0f%% of your data quota this cycle.", frac*100),
		}, true
	}
	return Insight{}, false
}

// ExpiryInsight reminds about upcoming plan expiry.
func ExpiryInsight(p subscriber.Plan, now time.Time) (Insight, bool) {
	if p.ValidUpto.IsZero() || p.ValidUpto.Before(now) {
		return Insight{}, false
	}
	remaining := p.ValidUpto.Sub(now)
	for _, w := range expiryWindows {
		if remaining <= w.within {
			days := int(remaining.Hours()/24) + 1
			return Insight{
				Severity: w.severity,
				Title:    "Plan expiring soon",
				Body:     fmt.Sprintf("Your plan %s expires in %d day(s). Renew now to stay connected.", p.Name, days),
			}, true
		}
	}
	return Insight{}, false
}

// UsageDeltaInsight flags a cycle whose consumption is far above the given
// historical average.
func UsageDeltaInsight(u subscriber.Usage, averageBytes int64) (Insight, bool) {
	if averageBytes <= 0 || u.UsedBytes < averageBytes*2 {
		return Insight{}, false
	}
	return Insight{
		Severity: SeverityInfo,
		Title:    "Unusual usage",
		Body:     "Your usage this cycle is more than double your recent average.",
	}, true
}

// All evaluates every generator against the account snapshot.
func All(profile *subscriber.Profile, usage *subscriber.Usage, averageBytes int64, now time.Time) []Insight {
	var out []Insight
	if usage != nil {
		if in, ok := QuotaInsight(*usage); ok {
			out = append(out, in)
		}
		if in, ok := UsageDeltaInsight(*usage, averageBytes); ok {
			out = append(out, in)
		}
	}
	if profile != nil {
		if in, ok := ExpiryInsight(profile.CurrentPlan, now); ok {
			out = append(out, in)
		}
	}
	return out
}
