package document

import (
	"encoding/json"
	"fmt"
	"maps"

	"go.uber.org/multierr"
)

// GameConfig is the singleton tuning document shared by the editor UI and
// the game servers. Guns are keyed by weapon id; the rest are lists.
type GameConfig struct {
	Version        int               `json:"version"`
	Guns           map[string]Object `json:"guns"`
	Bullets        []Object          `json:"bullets"`
	Attachments    []Object          `json:"attachments"`
	Maps           []Object          `json:"maps"`
	Gamemodes      []Object          `json:"gamemodes"`
	RecoilPatterns []Object          `json:"recoilPatterns"`
}

func NewGameConfig() GameConfig {
	return GameConfig{
		Guns:           map[string]Object{},
		Bullets:        []Object{},
		Attachments:    []Object{},
		Maps:           []Object{},
		Gamemodes:      []Object{},
		RecoilPatterns: []Object{},
	}
}

type GameConfigPatch struct {
	Guns           *map[string]Object
	Bullets        *[]Object
	Attachments    *[]Object
	Maps           *[]Object
	Gamemodes      *[]Object
	RecoilPatterns *[]Object
}

func (p GameConfigPatch) Empty() bool {
	return p.Guns == nil && p.Bullets == nil && p.Attachments == nil &&
		p.Maps == nil && p.Gamemodes == nil && p.RecoilPatterns == nil
}

func (c *GameConfig) Apply(p GameConfigPatch) {
	if p.Empty() {
		return
	}
	if p.Guns != nil {
		c.Guns = *p.Guns
	}
	if p.Bullets != nil {
		c.Bullets = *p.Bullets
	}
	if p.Attachments != nil {
		c.Attachments = *p.Attachments
	}
	if p.Maps != nil {
		c.Maps = *p.Maps
	}
	if p.Gamemodes != nil {
		c.Gamemodes = *p.Gamemodes
	}
	if p.RecoilPatterns != nil {
		c.RecoilPatterns = *p.RecoilPatterns
	}
	c.Version++
}

func (c GameConfig) Clone() GameConfig {
	out := c
	out.Guns = maps.Clone(c.Guns)
	out.Bullets = cloneObjects(c.Bullets)
	out.Attachments = cloneObjects(c.Attachments)
	out.Maps = cloneObjects(c.Maps)
	out.Gamemodes = cloneObjects(c.Gamemodes)
	out.RecoilPatterns = cloneObjects(c.RecoilPatterns)
	return out
}

// ParseGameConfigPatch follows the same per-field rules as ParseBoardPatch.
func ParseGameConfigPatch(raw []byte) (GameConfigPatch, error) {
	fields, err := splitObject(raw)
	if err != nil {
		return GameConfigPatch{}, err
	}
	var p GameConfigPatch
	var errs error
	if v, ok := fields["guns"]; ok {
		guns, err := decodeGuns(v)
		if err != nil {
			errs = multierr.Append(errs, &FieldError{Field: "guns", Err: err})
		} else {
			p.Guns = &guns
		}
	}
	lists := []struct {
		name string
		dst  **[]Object
	}{
		{"bullets", &p.Bullets},
		{"attachments", &p.Attachments},
		{"maps", &p.Maps},
		{"gamemodes", &p.Gamemodes},
		{"recoilPatterns", &p.RecoilPatterns},
	}
	for _, l := range lists {
		v, ok := fields[l.name]
		if !ok {
			continue
		}
		list, err := decodeObjects(v)
		if err != nil {
			errs = multierr.Append(errs, &FieldError{Field: l.name, Err: err})
			continue
		}
		*l.dst = &list
	}
	return p, errs
}

func decodeGuns(v json.RawMessage) (map[string]Object, error) {
	if isNull(v) {
		return nil, ErrNull
	}
	var guns map[string]Object
	if err := json.Unmarshal(v, &guns); err != nil {
		return nil, fmt.Errorf("want an object keyed by weapon id: %w", err)
	}
	return guns, nil
}
