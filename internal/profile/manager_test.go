package profile

import (
	"errors"
	"testing"

	"github.com/kalambet/kaiwa/internal/chat"
)

// --- Mock store ---

type mockStore struct {
	attrs     []chat.ProfileAttribute
	replaceErr error

	replaceCalls int
	deleteCalls  int
}

func (m *mockStore) ReplaceProfile(attrs []chat.ProfileAttribute) error {
	m.replaceCalls++
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.attrs = attrs
	return nil
}

func (m *mockStore) GetProfile() ([]chat.ProfileAttribute, error) {
	return m.attrs, nil
}

func (m *mockStore) DeleteProfileKey(key string) error {
	m.deleteCalls++
	kept := m.attrs[:0]
	for _, a := range m.attrs {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	m.attrs = kept
	return nil
}

// --- Tests ---

func TestReplace_Total(t *testing.T) {
	m := NewManager()

	m.Replace([]chat.ProfileAttribute{
		{Key: "技術レベル", Value: "上級", Confidence: 0.8},
		{Key: "主要言語", Value: "TypeScript", Confidence: 0.7},
	})
	m.Replace([]chat.ProfileAttribute{
		{Key: "関心領域", Value: "フロントエンド開発", Confidence: 0.6},
	})

	got := m.List()
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 (replacement is total, not a merge)", len(got))
	}
	if got[0].Key != "関心領域" {
		t.Errorf("surviving key = %q", got[0].Key)
	}
}

func TestDelete_AllMatchingKeys(t *testing.T) {
	m := NewManager()
	m.Replace([]chat.ProfileAttribute{
		{Key: "主要言語", Value: "TypeScript", Confidence: 0.7},
		{Key: "技術レベル", Value: "上級", Confidence: 0.8},
		{Key: "主要言語", Value: "Python", Confidence: 0.5},
	})

	m.Delete("主要言語")

	got := m.List()
	if len(got) != 1 || got[0].Key != "技術レベル" {
		t.Errorf("profile after delete = %+v", got)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	m := NewManager()
	m.Replace([]chat.ProfileAttribute{
		{Key: "技術レベル", Value: "上級", Confidence: 0.8},
	})

	m.Delete("主要言語")
	once := m.List()
	m.Delete("主要言語")
	twice := m.List()

	if len(once) != len(twice) || len(once) != 1 {
		t.Errorf("delete not idempotent: once=%+v twice=%+v", once, twice)
	}
}

func TestList_ReturnsCopy(t *testing.T) {
	m := NewManager()
	m.Replace([]chat.ProfileAttribute{{Key: "k", Value: "v", Confidence: 0.5}})

	got := m.List()
	got[0].Value = "mutated"

	if m.List()[0].Value != "v" {
		t.Error("List returned a slice aliasing internal state")
	}
}

func TestNewManagerWithStore_SeedsFromStore(t *testing.T) {
	st := &mockStore{attrs: []chat.ProfileAttribute{{Key: "技術レベル", Value: "上級", Confidence: 0.8}}}

	m, err := NewManagerWithStore(st)
	if err != nil {
		t.Fatalf("NewManagerWithStore: %v", err)
	}
	if got := m.List(); len(got) != 1 || got[0].Key != "技術レベル" {
		t.Errorf("seeded profile = %+v, want the stored attribute", got)
	}
}

func TestSummary(t *testing.T) {
	m := NewManager()
	if got := m.Summary(); got != "" {
		t.Errorf("empty profile Summary = %q, want \"\"", got)
	}

	m.Replace([]chat.ProfileAttribute{
		{Key: "技術レベル", Value: "上級", Confidence: 0.8},
		{Key: "主要言語", Value: "Go", Confidence: 0.65},
	})

	want := "技術レベル: 上級 (80%)\n主要言語: Go (65%)"
	if got := m.Summary(); got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
}

func TestReplace_PersistsAndSurvivesStoreFailure(t *testing.T) {
	st := &mockStore{}
	m, err := NewManagerWithStore(st)
	if err != nil {
		t.Fatal(err)
	}

	m.Replace([]chat.ProfileAttribute{{Key: "k", Value: "v", Confidence: 0.5}})
	if st.replaceCalls != 1 {
		t.Errorf("replaceCalls = %d, want 1", st.replaceCalls)
	}

	// A failing store must not lose the in-memory profile.
	st.replaceErr = errors.New("disk full")
	m.Replace([]chat.ProfileAttribute{{Key: "k2", Value: "v2", Confidence: 0.6}})
	got := m.List()
	if len(got) != 1 || got[0].Key != "k2" {
		t.Errorf("in-memory profile = %+v, want the new set despite store failure", got)
	}
}

func TestDelete_Persists(t *testing.T) {
	st := &mockStore{attrs: []chat.ProfileAttribute{{Key: "k", Value: "v", Confidence: 0.5}}}
	m, err := NewManagerWithStore(st)
	if err != nil {
		t.Fatal(err)
	}

	m.Delete("k")
	if st.deleteCalls != 1 {
		t.Errorf("deleteCalls = %d, want 1", st.deleteCalls)
	}
	if len(st.attrs) != 0 {
		t.Errorf("store attrs = %+v, want empty", st.attrs)
	}
}
