package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// BuildReversal returns a posted mirror of entry with each line's debit
// and credit swapped. The mirror points back at the original through
// SourceReversal so the chain stays queryable. Callers persist both and
// flip the original to reversed in the same transaction.
func BuildReversal(entry *JournalEntry, lines []JournalLine, gen *snowflake.Node, now time.Time) (*JournalEntry, []*JournalLine) {
	reference := "REV-" + entry.ID.String()
	if entry.Reference != nil && *entry.Reference != "" {
		reference = "REV-" + *entry.Reference
	}
	description := fmt.Sprintf("Reversal of entry %s", entry.ID)
	sourceID := entry.ID

	mirror := &JournalEntry{
		ID:          gen.Generate(),
		OrgID:       entry.OrgID,
		EntryDate:   now,
		Reference:   &reference,
		Description: &description,
		Status:      StatusPosted,
		SourceType:  SourceReversal,
		SourceID:    &sourceID,
		PostedAt:    &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mirrorLines := make([]*JournalLine, 0, len(lines))
	for _, line := range lines {
		mirrorLines = append(mirrorLines, &JournalLine{
			ID:          gen.Generate(),
			OrgID:       entry.OrgID,
			EntryID:     mirror.ID,
			AccountID:   line.AccountID,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: line.Description,
			Position:    line.Position,
		})
	}
	return mirror, mirrorLines
}
