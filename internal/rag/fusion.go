package rag

import "sort"

// DefaultRRFConstant is the standard RRF smoothing constant.
const DefaultRRFConstant = 60

// ReciprocalRankFusion merges ranked lists into a single ranking.
// Each occurrence of a chunk contributes 1/(k+rank+1) with 0-based rank,
// so a first place in one list is worth 1/(k+1). Chunks are deduplicated
// by ID; the first occurrence supplies the chunk payload, every
// contributing modality is recorded in Sources, and the best 1-based
// rank per modality is kept on the fused chunk.
//
// The result is sorted by descending RRF score with chunk ID as the
// tie-break, making fusion fully deterministic.
func ReciprocalRankFusion(lists []RankedList, k int) []FusedChunk {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	fused := make(map[string]*FusedChunk)
	for _, list := range lists {
		for rank, result := range list.Results {
			entry, seen := fused[result.ID]
			if !seen {
				entry = &FusedChunk{ChunkResult: result}
				fused[result.ID] = entry
			}
			entry.RRFScore += 1.0 / float64(k+rank+1)
			if !hasSource(entry.Sources, list.Source) {
				entry.Sources = append(entry.Sources, list.Source)
			}
			switch pos := rank + 1; list.Source {
			case SourceVector:
				if entry.VectorRank == 0 || pos < entry.VectorRank {
					entry.VectorRank = pos
				}
			case SourceKeyword:
				if entry.KeywordRank == 0 || pos < entry.KeywordRank {
					entry.KeywordRank = pos
				}
			}
		}
	}

	results := make([]FusedChunk, 0, len(fused))
	for _, entry := range fused {
		results = append(results, *entry)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].RRFScore != results[j].RRFScore {
			return results[i].RRFScore > results[j].RRFScore
		}
		return results[i].ID < results[j].ID
	})
	return results
}

func hasSource(sources []Source, s Source) bool {
	for _, existing := range sources {
		if existing == s {
			return true
		}
	}
	return false
}
