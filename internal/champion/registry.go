package champion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"
)

const defaultBaseURL = "https://ddragon.leagueoflegends.com"

// ErrUnknownChampion is returned when an id or name has no registry entry.
var ErrUnknownChampion = errors.New("unknown champion")

// Champion is one catalog entry. Index is the dense 0..N-1 position assigned
// by sorting the catalog by ID; it is stable for one registry load.
type Champion struct {
	ID    int
	Name  string
	Index int
}

// Registry holds the id/index/name bijections over the full champion catalog.
// It is read-only after construction and safe for concurrent use.
type Registry struct {
	champions   []Champion // ordered by Index
	idToIndex   map[int]int
	nameToIndex map[string]int
}

// championEntry matches one entry of Data Dragon's champion.json "data" map.
type championEntry struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Loader fetches the champion catalog from Data Dragon.
type Loader struct {
	client  *http.Client
	baseURL string
}

// NewLoader creates a catalog loader. A nil client gets a 10s-timeout default.
func NewLoader(client *http.Client) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Loader{client: client, baseURL: defaultBaseURL}
}

// NewLoaderURL creates a loader against a non-default base URL. Used by tests.
func NewLoaderURL(client *http.Client, baseURL string) *Loader {
	l := NewLoader(client)
	l.baseURL = baseURL
	return l
}

// Load fetches the latest game version and its champion catalog and builds a
// registry. An empty or malformed catalog is an error: without it no lookup
// or encoding is possible.
func (l *Loader) Load(ctx context.Context) (*Registry, error) {
	var versions []string
	if err := l.getJSON(ctx, l.baseURL+"/api/versions.json", &versions); err != nil {
		return nil, fmt.Errorf("fetch versions: %w", err)
	}
	if len(versions) == 0 {
		return nil, errors.New("no game versions available")
	}

	var catalog struct {
		Data map[string]championEntry `json:"data"`
	}
	url := fmt.Sprintf("%s/cdn/%s/data/en_US/champion.json", l.baseURL, versions[0])
	if err := l.getJSON(ctx, url, &catalog); err != nil {
		return nil, fmt.Errorf("fetch champion catalog: %w", err)
	}

	champs := make([]Champion, 0, len(catalog.Data))
	for _, entry := range catalog.Data {
		id, err := strconv.Atoi(entry.Key)
		if err != nil {
			return nil, fmt.Errorf("champion %q has non-numeric key %q", entry.Name, entry.Key)
		}
		champs = append(champs, Champion{ID: id, Name: entry.Name})
	}

	return NewRegistry(champs)
}

func (l *Loader) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// NewRegistry builds a registry from a raw catalog. Champions are sorted by
// id and assigned dense indices. Duplicate ids or names are rejected.
func NewRegistry(champs []Champion) (*Registry, error) {
	if len(champs) == 0 {
		return nil, errors.New("empty champion catalog")
	}

	sorted := make([]Champion, len(champs))
	copy(sorted, champs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	r := &Registry{
		champions:   sorted,
		idToIndex:   make(map[int]int, len(sorted)),
		nameToIndex: make(map[string]int, len(sorted)),
	}
	for i := range r.champions {
		c := &r.champions[i]
		c.Index = i
		if _, dup := r.idToIndex[c.ID]; dup {
			return nil, fmt.Errorf("duplicate champion id %d in catalog", c.ID)
		}
		if _, dup := r.nameToIndex[c.Name]; dup {
			return nil, fmt.Errorf("duplicate champion name %q in catalog", c.Name)
		}
		r.idToIndex[c.ID] = i
		r.nameToIndex[c.Name] = i
	}
	return r, nil
}

// Size returns the number of champions in the catalog.
func (r *Registry) Size() int { return len(r.champions) }

// IndexOf maps a champion id to its dense index.
func (r *Registry) IndexOf(id int) (int, error) {
	i, ok := r.idToIndex[id]
	if !ok {
		return 0, fmt.Errorf("%w: id %d", ErrUnknownChampion, id)
	}
	return i, nil
}

// IndexOfName maps a champion name to its dense index.
func (r *Registry) IndexOfName(name string) (int, error) {
	i, ok := r.nameToIndex[name]
	if !ok {
		return 0, fmt.Errorf("%w: name %q", ErrUnknownChampion, name)
	}
	return i, nil
}

// ByIndex returns the champion at a dense index.
func (r *Registry) ByIndex(index int) (Champion, error) {
	if index < 0 || index >= len(r.champions) {
		return Champion{}, fmt.Errorf("%w: index %d out of range [0,%d)", ErrUnknownChampion, index, len(r.champions))
	}
	return r.champions[index], nil
}

// NameOf maps a champion id to its display name.
func (r *Registry) NameOf(id int) (string, error) {
	i, err := r.IndexOf(id)
	if err != nil {
		return "", err
	}
	return r.champions[i].Name, nil
}
