package champion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testCatalog() []Champion {
	return []Champion{
		{ID: 266, Name: "Aatrox"},
		{ID: 103, Name: "Ahri"},
		{ID: 84, Name: "Akali"},
		{ID: 12, Name: "Alistar"},
		{ID: 32, Name: "Amumu"},
	}
}

func mustRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(testCatalog())
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return r
}

func TestRegistry_IndicesAreDenseAndSortedByID(t *testing.T) {
	r := mustRegistry(t)

	// ids sorted: 12, 32, 84, 103, 266
	wantOrder := []int{12, 32, 84, 103, 266}
	for i, id := range wantOrder {
		idx, err := r.IndexOf(id)
		if err != nil {
			t.Fatalf("IndexOf(%d) failed: %v", id, err)
		}
		if idx != i {
			t.Errorf("IndexOf(%d) = %d, want %d", id, idx, i)
		}
	}
}

func TestRegistry_RoundTripIDToName(t *testing.T) {
	r := mustRegistry(t)

	for _, c := range testCatalog() {
		idx, err := r.IndexOf(c.ID)
		if err != nil {
			t.Fatalf("IndexOf(%d) failed: %v", c.ID, err)
		}
		got, err := r.ByIndex(idx)
		if err != nil {
			t.Fatalf("ByIndex(%d) failed: %v", idx, err)
		}
		if got.ID != c.ID || got.Name != c.Name {
			t.Errorf("round trip for id %d: got %+v", c.ID, got)
		}
		nameIdx, err := r.IndexOfName(c.Name)
		if err != nil {
			t.Fatalf("IndexOfName(%q) failed: %v", c.Name, err)
		}
		if nameIdx != idx {
			t.Errorf("IndexOfName(%q) = %d, want %d", c.Name, nameIdx, idx)
		}
	}
}

func TestRegistry_UnknownLookups(t *testing.T) {
	r := mustRegistry(t)

	if _, err := r.IndexOf(9999); !errors.Is(err, ErrUnknownChampion) {
		t.Errorf("IndexOf(9999) error = %v, want ErrUnknownChampion", err)
	}
	if _, err := r.IndexOfName("Nobody"); !errors.Is(err, ErrUnknownChampion) {
		t.Errorf("IndexOfName error = %v, want ErrUnknownChampion", err)
	}
	if _, err := r.ByIndex(99); !errors.Is(err, ErrUnknownChampion) {
		t.Errorf("ByIndex(99) error = %v, want ErrUnknownChampion", err)
	}
}

func TestNewRegistry_RejectsEmptyAndDuplicates(t *testing.T) {
	if _, err := NewRegistry(nil); err == nil {
		t.Error("expected error for empty catalog")
	}
	dup := []Champion{{ID: 1, Name: "A"}, {ID: 1, Name: "B"}}
	if _, err := NewRegistry(dup); err == nil {
		t.Error("expected error for duplicate id")
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	r := mustRegistry(t)

	sets := [][]int{
		{},
		{266},
		{12, 32, 84},
		{12, 32, 84, 103, 266},
	}
	for _, ids := range sets {
		v, err := r.Encode(ids)
		if err != nil {
			t.Fatalf("Encode(%v) failed: %v", ids, err)
		}
		if len(v) != r.Size() {
			t.Fatalf("Encode(%v) vector length = %d, want %d", ids, len(v), r.Size())
		}
		got := r.Decode(v)
		if len(got) != len(ids) {
			t.Fatalf("Decode(Encode(%v)) = %v", ids, got)
		}
		want := make(map[int]bool, len(ids))
		for _, id := range ids {
			want[id] = true
		}
		for _, id := range got {
			if !want[id] {
				t.Errorf("Decode(Encode(%v)) contains unexpected id %d", ids, id)
			}
		}
	}
}

func TestEncode_UnknownIDNamesOffender(t *testing.T) {
	r := mustRegistry(t)

	_, err := r.Encode([]int{266, 4242})
	if !errors.Is(err, ErrUnknownChampion) {
		t.Fatalf("Encode error = %v, want ErrUnknownChampion", err)
	}
}

func TestLoader_Load(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/versions.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["15.1.1","14.24.1"]`))
	})
	mux.HandleFunc("/cdn/15.1.1/data/en_US/champion.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{
			"Aatrox":{"key":"266","name":"Aatrox"},
			"Ahri":{"key":"103","name":"Ahri"}
		}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	reg, err := NewLoaderURL(srv.Client(), srv.URL).Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if reg.Size() != 2 {
		t.Fatalf("Size = %d, want 2", reg.Size())
	}
	if idx, _ := reg.IndexOf(103); idx != 0 {
		t.Errorf("IndexOf(103) = %d, want 0", idx)
	}
	name, err := reg.NameOf(266)
	if err != nil || name != "Aatrox" {
		t.Errorf("NameOf(266) = %q, %v", name, err)
	}
}

func TestLoader_EmptyCatalogFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/versions.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["15.1.1"]`))
	})
	mux.HandleFunc("/cdn/15.1.1/data/en_US/champion.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	if _, err := NewLoaderURL(srv.Client(), srv.URL).Load(context.Background()); err == nil {
		t.Fatal("expected error for empty catalog")
	}
}

func TestNewComposition_DedupesAndBounds(t *testing.T) {
	c, err := NewComposition(103, 84, 103, 266)
	if err != nil {
		t.Fatalf("NewComposition: %v", err)
	}
	if len(c) != 3 {
		t.Errorf("composition = %v, want 3 distinct champions", c)
	}
	if !c.Contains(84) || c.Contains(32) {
		t.Errorf("membership wrong for %v", c)
	}

	if _, err := NewComposition(1, 2, 3, 4, 5, 6); err == nil {
		t.Error("NewComposition accepted six champions")
	}
	if _, err := NewComposition(1, 2, 3, 4, 5, 5); err != nil {
		t.Errorf("duplicate sixth id should collapse, got %v", err)
	}
}
