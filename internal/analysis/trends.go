// Package analysis derives trends, budget status and optimization hints from
// usage history.
package analysis

import (
	"math"
	"sort"

	"github.com/theirongolddev/ocburn/internal/model"
)

// DefaultSpikeThreshold is the z-score above which a day counts as a spike.
const DefaultSpikeThreshold = 2.0

// TrendStats summarizes daily spend over a history range.
type TrendStats struct {
	Buckets []model.DailyBucket `json:"buckets"`
	// WeekOverWeek is the fractional change of the last 7 buckets over the prior 7.
	WeekOverWeek float64  `json:"weekOverWeekDelta"`
	Spikes       []string `json:"spikes"`
}

// BucketByDay groups records by local calendar day, sorted by date.
func BucketByDay(records []model.SessionRecord) []model.DailyBucket {
	if len(records) == 0 {
		return []model.DailyBucket{}
	}

	byDate := make(map[string]*model.DailyBucket)
	for _, r := range records {
		key := r.Time().Format("2006-01-02")
		b, ok := byDate[key]
		if !ok {
			b = &model.DailyBucket{Date: key}
			byDate[key] = b
		}
		b.Cost += r.Cost
		b.Tokens += r.Totals.Total
		b.Sessions++
	}

	buckets := make([]model.DailyBucket, 0, len(byDate))
	for _, b := range byDate {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Date < buckets[j].Date
	})
	return buckets
}

// WeekOverWeek compares the cost of the last 7 buckets with the 7 before them.
// It is 0 with fewer than 14 buckets or when the prior week cost nothing.
func WeekOverWeek(buckets []model.DailyBucket) float64 {
	if len(buckets) < 14 {
		return 0
	}

	n := len(buckets)
	var current, prev float64
	for _, b := range buckets[n-7:] {
		current += b.Cost
	}
	for _, b := range buckets[n-14 : n-7] {
		prev += b.Cost
	}
	if prev == 0 {
		return 0
	}
	return (current - prev) / prev
}

// DetectSpikes returns the dates whose cost z-score (population stddev) exceeds threshold.
func DetectSpikes(buckets []model.DailyBucket, threshold float64) []string {
	spikes := []string{}
	if len(buckets) <= 1 {
		return spikes
	}

	var sum float64
	for _, b := range buckets {
		sum += b.Cost
	}
	mean := sum / float64(len(buckets))

	var variance float64
	for _, b := range buckets {
		variance += (b.Cost - mean) * (b.Cost - mean)
	}
	stddev := math.Sqrt(variance / float64(len(buckets)))
	if stddev == 0 {
		return spikes
	}

	for _, b := range buckets {
		if (b.Cost-mean)/stddev > threshold {
			spikes = append(spikes, b.Date)
		}
	}
	return spikes
}

// AnalyzeTrends buckets records by day and computes week-over-week change and spikes.
func AnalyzeTrends(records []model.SessionRecord) TrendStats {
	buckets := BucketByDay(records)
	return TrendStats{
		Buckets:      buckets,
		WeekOverWeek: WeekOverWeek(buckets),
		Spikes:       DetectSpikes(buckets, DefaultSpikeThreshold),
	}
}
