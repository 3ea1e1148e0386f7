package storage

import (
	"strconv"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/rewrite"
)

// seedRuleRecords assigns sequential placeholder ids to the default rule
// set, for callers (like MemoryStore) that don't need globally unique ids.
func seedRuleRecords() []RuleRecord {
	return seedRuleRecordsWithIDs(func() func() string {
		n := 0
		return func() string {
			n++
			return "default-" + strconv.Itoa(n)
		}
	}())
}

func seedRuleRecordsWithIDs(idGen func() string) []RuleRecord {
	defaults := rewrite.DefaultRules()
	records := make([]RuleRecord, len(defaults))
	for i, r := range defaults {
		records[i] = RuleRecord{ID: idGen(), Rule: r}
	}
	return records
}
