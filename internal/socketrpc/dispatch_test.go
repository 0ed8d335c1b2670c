package socketrpc

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gourav-shinde/jlog/internal/logstore"
	"github.com/gourav-shinde/jlog/internal/model"
)

type fakeSnapshots struct {
	snap model.ResultSnapshot
	ok   bool
}

func (f *fakeSnapshots) LatestSnapshot() (model.ResultSnapshot, bool) { return f.snap, f.ok }

type fakeEntryStore struct {
	got     []interface{}
	entries []logstore.StoredEntry
}

func (f *fakeEntryStore) RecentEntries(limit, maxPriority int, service, pattern string) ([]logstore.StoredEntry, error) {
	f.got = []interface{}{limit, maxPriority, service, pattern}
	return f.entries, nil
}

type fakeProgress struct {
	p  model.Progress
	ok bool
}

func (f *fakeProgress) LatestProgress() (model.Progress, bool) { return f.p, f.ok }

func publishedSnapshot() model.ResultSnapshot {
	return model.ResultSnapshot{
		Summary:  model.AnalysisSummary{LinesRead: 42, EntriesMatched: 40},
		Patterns: []model.DetectedPattern{{Kind: model.PatternBurst, Severity: model.SeverityWarning, Count: 7}},
		Final:    false,
		At:       time.Now(),
	}
}

func request(method, params string) Request {
	return Request{JSONRPC: "2.0", ID: 1, Method: method, Params: json.RawMessage(params)}
}

func TestDispatch_Summary(t *testing.T) {
	t.Parallel()
	s := NewServer("", &fakeSnapshots{snap: publishedSnapshot(), ok: true}, nil, nil)

	resp := s.dispatch(request("Summary", ""))
	if resp.Error != nil {
		t.Fatalf("Summary error: %v", resp.Error)
	}
	var result SummaryResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Summary.LinesRead != 42 {
		t.Errorf("linesRead = %d, want 42", result.Summary.LinesRead)
	}
}

func TestDispatch_SummaryNoSnapshot(t *testing.T) {
	t.Parallel()
	s := NewServer("", &fakeSnapshots{}, nil, nil)

	resp := s.dispatch(request("Summary", ""))
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Fatalf("error = %v, want -32000 application error", resp.Error)
	}
}

func TestDispatch_Patterns(t *testing.T) {
	t.Parallel()
	s := NewServer("", &fakeSnapshots{snap: publishedSnapshot(), ok: true}, nil, nil)

	resp := s.dispatch(request("Patterns", ""))
	if resp.Error != nil {
		t.Fatalf("Patterns error: %v", resp.Error)
	}
	var result PatternsResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(result.Patterns) != 1 || result.Patterns[0].Kind != model.PatternBurst {
		t.Errorf("patterns = %+v", result.Patterns)
	}
}

func TestDispatch_RecentEntriesParamsAndDefaults(t *testing.T) {
	t.Parallel()
	store := &fakeEntryStore{entries: []logstore.StoredEntry{{ID: 9, Message: "stored"}}}
	s := NewServer("", &fakeSnapshots{}, store, nil)

	resp := s.dispatch(request("RecentEntries", `{"Limit": 5, "MaxPriority": 3, "Service": "sshd"}`))
	if resp.Error != nil {
		t.Fatalf("RecentEntries error: %v", resp.Error)
	}
	if store.got[0] != 5 || store.got[1] != 3 || store.got[2] != "sshd" {
		t.Errorf("forwarded params = %v", store.got)
	}

	// Missing params fall back to defaults.
	resp = s.dispatch(request("RecentEntries", ""))
	if resp.Error != nil {
		t.Fatalf("RecentEntries default params error: %v", resp.Error)
	}
	if store.got[0] != 100 || store.got[1] != model.PriorityDebug {
		t.Errorf("default params = %v", store.got)
	}
}

func TestDispatch_RecentEntriesNoStore(t *testing.T) {
	t.Parallel()
	s := NewServer("", &fakeSnapshots{}, nil, nil)

	resp := s.dispatch(request("RecentEntries", ""))
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Fatalf("error = %v, want -32000", resp.Error)
	}
}

func TestDispatch_Progress(t *testing.T) {
	t.Parallel()
	s := NewServer("", &fakeSnapshots{}, nil, &fakeProgress{p: model.Progress{Lines: 50_000, Percent: 12.5}, ok: true})

	resp := s.dispatch(request("Progress", ""))
	if resp.Error != nil {
		t.Fatalf("Progress error: %v", resp.Error)
	}
	var result model.Progress
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Lines != 50_000 || result.Percent != 12.5 {
		t.Errorf("progress = %+v", result)
	}
}

func TestDispatch_MethodNotFound(t *testing.T) {
	t.Parallel()
	s := NewServer("", &fakeSnapshots{}, nil, nil)

	resp := s.dispatch(request("NoSuchMethod", ""))
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Fatalf("error = %v, want -32601", resp.Error)
	}
}

func TestDispatch_InvalidParams(t *testing.T) {
	t.Parallel()
	s := NewServer("", &fakeSnapshots{}, &fakeEntryStore{}, nil)

	resp := s.dispatch(request("RecentEntries", `{"Limit": "not a number"}`))
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("error = %v, want -32602", resp.Error)
	}
}
