package aggregate

import (
	"sort"

	"github.com/gourav-shinde/jlog/internal/model"
)

// Snapshot returns an immutable copy of the summary statistics. Nothing
// in the returned value aliases aggregator state, so it may cross
// goroutine boundaries freely.
func (a *Aggregator) Snapshot() model.AnalysisSummary {
	return model.AnalysisSummary{
		LinesRead:      a.linesRead,
		ParseFailures:  a.parseFailures,
		FilteredOut:    a.filteredOut,
		EntriesMatched: a.entriesMatched,
		ByPriority:     a.byPriority,
		TopServices:    a.topServices(a.cfg.TopN),
		TopSignatures:  a.topSignatures(a.cfg.TopN),
		FirstEntry:     a.first,
		LastEntry:      a.last,
		Format:         a.format,
	}
}

func (a *Aggregator) topServices(n int) []model.ServiceCount {
	out := make([]model.ServiceCount, 0, len(a.byService))
	for service, count := range a.byService {
		out = append(out, model.ServiceCount{Service: service, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Service < out[j].Service
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (a *Aggregator) topSignatures(n int) []model.SignatureCount {
	out := make([]model.SignatureCount, 0, len(a.signatures))
	for sig, stat := range a.signatures {
		out = append(out, model.SignatureCount{Signature: sig, Count: stat.Count, Example: stat.Example})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Signature < out[j].Signature
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
