package game

import (
	_ "embed"
	"fmt"
	"math/rand"

	"github.com/BurntSushi/toml"
)

//go:embed mapcatalog_data.toml
var embeddedCatalogData []byte

// MapKey identifies one of the three arena maps available for a match.
type MapKey string

const (
	MapForest MapKey = "forest"
	MapCanyon MapKey = "canyon"
	MapIsland MapKey = "island"
)

// AllMapKeys is the set startGame selects from, uniformly at random.
var AllMapKeys = []MapKey{MapForest, MapCanyon, MapIsland}

// Point is a static spawn location.
type Point struct {
	X, Y float64
}

// MapDef is one map's static geometry: its obstacle set and its fixed
// player/buff spawn point lists.
type MapDef struct {
	Key          MapKey
	DisplayName  string
	Obstacles    []Obstacle
	PlayerSpawns []Point
	BuffSpawns   []Point
}

// tomlCatalog and tomlMapDef mirror mapcatalog_data.toml's shape for
// decoding; MapDef (above) is the typed form the rest of the package uses.
type tomlCatalog struct {
	Maps []tomlMapDef `toml:"maps"`
}

type tomlMapDef struct {
	Key          string          `toml:"key"`
	DisplayName  string          `toml:"display_name"`
	Obstacles    []tomlObstacle  `toml:"obstacles"`
	PlayerSpawns []tomlPoint     `toml:"player_spawns"`
	BuffSpawns   []tomlPoint     `toml:"buff_spawns"`
}

type tomlObstacle struct {
	Type   string  `toml:"type"`
	X      float64 `toml:"x"`
	Y      float64 `toml:"y"`
	Width  float64 `toml:"width"`
	Height float64 `toml:"height"`
}

type tomlPoint struct {
	X float64 `toml:"x"`
	Y float64 `toml:"y"`
}

var obstacleTypeByName = map[string]ObstacleType{
	"tree":   ObstacleTree,
	"rock":   ObstacleRock,
	"cactus": ObstacleCactus,
	"lake":   ObstacleLake,
	"pond":   ObstaclePond,
	"chasm":  ObstacleChasm,
}

// Catalog holds the loaded, typed map definitions keyed by MapKey.
type Catalog struct {
	maps map[MapKey]*MapDef
}

// LoadEmbeddedCatalog parses the catalog baked into the binary via
// go:embed. This is what cmd/server/main.go wires in by default.
func LoadEmbeddedCatalog() (*Catalog, error) {
	return parseCatalog(embeddedCatalogData)
}

// LoadCatalogFile parses a catalog from an on-disk TOML file, letting an
// operator override the embedded map set without a rebuild.
func LoadCatalogFile(path string) (*Catalog, error) {
	var raw tomlCatalog
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("decode map catalog %s: %w", path, err)
	}
	return buildCatalog(raw)
}

func parseCatalog(data []byte) (*Catalog, error) {
	var raw tomlCatalog
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("decode embedded map catalog: %w", err)
	}
	return buildCatalog(raw)
}

func buildCatalog(raw tomlCatalog) (*Catalog, error) {
	cat := &Catalog{maps: make(map[MapKey]*MapDef, len(raw.Maps))}

	for _, m := range raw.Maps {
		def := &MapDef{
			Key:         MapKey(m.Key),
			DisplayName: m.DisplayName,
		}

		for _, o := range m.Obstacles {
			ot, ok := obstacleTypeByName[o.Type]
			if !ok {
				return nil, fmt.Errorf("map %s: unknown obstacle type %q", m.Key, o.Type)
			}
			def.Obstacles = append(def.Obstacles, Obstacle{
				Type: ot, X: o.X, Y: o.Y, Width: o.Width, Height: o.Height,
			})
		}
		for _, p := range m.PlayerSpawns {
			def.PlayerSpawns = append(def.PlayerSpawns, Point{X: p.X, Y: p.Y})
		}
		for _, p := range m.BuffSpawns {
			def.BuffSpawns = append(def.BuffSpawns, Point{X: p.X, Y: p.Y})
		}

		if len(def.PlayerSpawns) == 0 {
			return nil, fmt.Errorf("map %s: no player spawns defined", m.Key)
		}

		cat.maps[def.Key] = def
	}

	for _, key := range AllMapKeys {
		if _, ok := cat.maps[key]; !ok {
			return nil, fmt.Errorf("map catalog missing required map %q", key)
		}
	}

	return cat, nil
}

// Get returns the map definition for key, or nil if unknown.
func (c *Catalog) Get(key MapKey) *MapDef {
	return c.maps[key]
}

// RandomMapKey picks uniformly among AllMapKeys for a new match.
func RandomMapKey(rng *rand.Rand) MapKey {
	return AllMapKeys[rng.Intn(len(AllMapKeys))]
}

// SpawnPoint returns the player spawn at idx, wrapping round-robin style.
func (d *MapDef) SpawnPoint(idx int) Point {
	if len(d.PlayerSpawns) == 0 {
		return Point{}
	}
	return d.PlayerSpawns[idx%len(d.PlayerSpawns)]
}
