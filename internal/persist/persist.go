// Package persist reads and writes world save files. A save is one
// human-readable JSON document plus the co-located SQLite event log; the
// JSON holds everything except the event history.
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xiaocai218/cultivation-world-simulator/internal/action"
	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/calendar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/config"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
	"github.com/xiaocai218/cultivation-world-simulator/internal/gamedata"
	"github.com/xiaocai218/cultivation-world-simulator/internal/llm"
	"github.com/xiaocai218/cultivation-world-simulator/internal/relation"
	"github.com/xiaocai218/cultivation-world-simulator/internal/sect"
	"github.com/xiaocai218/cultivation-world-simulator/internal/sim"
	"github.com/xiaocai218/cultivation-world-simulator/internal/world"
)

// saveVersion tags the JSON schema. Loads refuse other versions.
const saveVersion = 1

// SaveFile is the on-disk shape of a world snapshot.
type SaveFile struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`

	Clock calendar.MonthStamp `json:"clock"`

	Map        savedMap                       `json:"map"`
	Avatars    []*avatar.Avatar               `json:"avatars"`
	Mortals    []*avatar.Mortal               `json:"mortals"`
	Relations  []relation.Edge                `json:"relations"`
	Sects      []savedSect                    `json:"sects"`
	Phenomenon *world.Phenomenon              `json:"phenomenon,omitempty"`
	Plans      map[string][]action.Plan       `json:"plans,omitempty"`
	Schedule   map[string]calendar.MonthStamp `json:"gathering_schedule,omitempty"`
	Rankings   *sim.Rankings                  `json:"rankings,omitempty"`
}

// savedMap stores dimensions plus regions; tiles are re-stamped on load.
type savedMap struct {
	Width   int             `json:"width"`
	Height  int             `json:"height"`
	Regions []*world.Region `json:"regions"`
}

// savedSect flattens the roster, which the live type keeps unexported.
type savedSect struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	HQRegionID  int                  `json:"hq_region_id"`
	LeaderID    string               `json:"leader_id,omitempty"`
	Roster      map[string]sect.Rank `json:"roster"`
}

// JSONPath returns the save document path for a save name.
func JSONPath(dir, name string) string {
	return filepath.Join(dir, name+".json")
}

// EventLogPath returns the co-located event database path for a save name.
func EventLogPath(dir, name string) string {
	return filepath.Join(dir, name+".db")
}

// Save writes the world snapshot to dir/name.json, atomically via a
// temporary file. The event log is already durable in its own file.
func Save(w *sim.World, dir, name string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}

	regions := make([]*world.Region, 0, len(w.Map.Regions))
	for _, r := range w.Map.Regions {
		regions = append(regions, r)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].ID < regions[j].ID })

	var sects []savedSect
	for _, s := range w.Sects.All() {
		sects = append(sects, savedSect{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			HQRegionID:  s.HQRegionID,
			LeaderID:    s.LeaderID,
			Roster:      s.Roster(),
		})
	}

	doc := SaveFile{
		Version:    saveVersion,
		SavedAt:    time.Now().UTC(),
		Clock:      w.Clock,
		Map:        savedMap{Width: w.Map.Width, Height: w.Map.Height, Regions: regions},
		Avatars:    w.Avatars.All(),
		Mortals:    w.Avatars.Mortals(),
		Relations:  w.Graph.Snapshot(),
		Sects:      sects,
		Phenomenon: w.Phenomenon,
		Plans:      w.Runtime.PlanSnapshot(),
		Schedule:   w.Gatherings.Schedule(),
		Rankings:   w.Rankings,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("save %s: marshal: %w", name, err)
	}

	path := JSONPath(dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// Load reads a save document and rebuilds the world around the given
// services. Entities land first; relations wire in a second pass once
// every id resolves.
func Load(cfg *config.Config, data *gamedata.Store, log *event.Log, tasks *llm.Tasks, dir, name string, seed int64) (*sim.World, error) {
	raw, err := os.ReadFile(JSONPath(dir, name))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	var doc SaveFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("load %s: parse: %w", name, err)
	}
	if doc.Version != saveVersion {
		return nil, fmt.Errorf("load %s: unsupported save version %d (want %d)", name, doc.Version, saveVersion)
	}

	w := sim.NewWorld(cfg, data, log, tasks, seed)
	w.Clock = doc.Clock

	w.Map = world.NewMap(doc.Map.Width, doc.Map.Height)
	for _, r := range doc.Map.Regions {
		w.Map.AddRegion(r)
	}

	// Pass one: entities.
	for _, a := range doc.Avatars {
		restoreZeroMaps(a)
		w.Avatars.Restore(a)
	}
	for _, m := range doc.Mortals {
		w.Avatars.AddMortal(m)
	}

	// Pass two: relations, now that every id resolves.
	if err := w.Graph.Restore(doc.Relations); err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	for _, s := range doc.Sects {
		live := sect.New(s.ID, s.Name, s.Description, s.HQRegionID)
		live.LeaderID = s.LeaderID
		for id, rank := range s.Roster {
			live.RestoreMember(id, rank)
		}
		w.Sects.Add(live)
	}

	w.Phenomenon = doc.Phenomenon
	w.Runtime.RestorePlans(doc.Plans)
	w.Gatherings.RestoreSchedule(doc.Schedule)
	if doc.Rankings != nil {
		w.Rankings = doc.Rankings
	}
	return w, nil
}

// restoreZeroMaps re-allocates the maps JSON omits when empty, so loaded
// avatars behave like freshly constructed ones.
func restoreZeroMaps(a *avatar.Avatar) {
	if a.Elixirs == nil {
		a.Elixirs = make(map[string]int)
	}
	if a.Cooldowns == nil {
		a.Cooldowns = make(map[string]calendar.MonthStamp)
	}
	if a.KnownRegionIDs == nil {
		a.KnownRegionIDs = make(map[int]bool)
	}
	if a.Interactions == nil {
		a.Interactions = make(map[string]*avatar.InteractionCounter)
	}
}

// List returns the save names present in dir, sorted.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a save's JSON document and event database.
func Delete(dir, name string) error {
	if err := os.Remove(JSONPath(dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete save %s: %w", name, err)
	}
	if err := os.Remove(EventLogPath(dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete save %s: %w", name, err)
	}
	return nil
}
