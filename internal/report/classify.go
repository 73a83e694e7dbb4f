package report

import (
	"strings"

	"github.com/kalambet/flowerdesk/internal/analysis"
)

type bucket int

const (
	bucketWeather bucket = iota
	bucketSocial
	bucketEvents
	bucketStrategy
	bucketLogistics
	bucketAnalysis
)

// classifiers in priority order. A block mentioning several topics lands
// in the first bucket whose marker it contains.
var classifiers = []struct {
	bucket  bucket
	markers []string
}{
	{bucketWeather, []string{"天气影响"}},
	{bucketSocial, []string{"社交媒体"}},
	{bucketEvents, []string{"节日", "节假日"}},
	{bucketStrategy, []string{"库存", "策略"}},
	{bucketLogistics, []string{"物流", "配送"}},
}

func classifyBlock(block string) bucket {
	for _, c := range classifiers {
		for _, m := range c.markers {
			if strings.Contains(block, m) {
				return c.bucket
			}
		}
	}
	return bucketAnalysis
}

// classify splits each result into its blocks and groups the blocks by
// bucket, keeping their order.
func classify(results []string) map[bucket][]string {
	out := make(map[bucket][]string)
	for _, r := range results {
		for _, block := range strings.Split(r, analysis.BlockDelimiter) {
			if block = strings.TrimSpace(block); block == "" {
				continue
			}
			b := classifyBlock(block)
			out[b] = append(out[b], block)
		}
	}
	return out
}
