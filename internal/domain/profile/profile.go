// Package profile converts pad calibration to and from persisted documents.
package profile

import (
	"encoding/json"
	"fmt"
	"maps"
	"path/filepath"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/okian/padcal/internal/domain/release"
	"github.com/okian/padcal/internal/domain/threshold"
)

// Version is the document version written by Encode.
const Version = 1

// Format is a serialization format.
type Format int

const (
	JSON Format = iota
	YAML
)

func (f Format) String() string {
	if f == YAML {
		return "yaml"
	}
	return "json"
}

// FormatFromPath picks YAML for .yaml/.yml files and JSON otherwise.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	}
	return JSON
}

// Profile is a complete calibration: thresholds keyed by sensor index, the
// release policy and the button mapping.
type Profile struct {
	Version     int
	ReleaseMode release.Mode
	// GlobalRatio is only meaningful, and only kept, under release.Global.
	GlobalRatio float64
	Sensors     map[int]threshold.Pair
	Mapping     map[int]int
}

// Clone returns a deep copy.
func (p Profile) Clone() Profile {
	p.Sensors = maps.Clone(p.Sensors)
	p.Mapping = maps.Clone(p.Mapping)
	return p
}

// Validate reports the first constraint p violates, wrapped in
// ErrMalformedProfile.
func (p Profile) Validate() error {
	if !p.ReleaseMode.Valid() {
		return fmt.Errorf("%w: %w", ErrMalformedProfile, release.ErrUnknownMode)
	}
	if p.ReleaseMode == release.Global && !in01(p.GlobalRatio) {
		return fmt.Errorf("%w: globalRatio %v out of range", ErrMalformedProfile, p.GlobalRatio)
	}
	if p.Sensors == nil {
		return fmt.Errorf("%w: sensors missing", ErrMalformedProfile)
	}
	for i, t := range p.Sensors {
		if err := checkSensor(strconv.Itoa(i), i, t.Activation, t.Release); err != nil {
			return err
		}
	}
	for s, b := range p.Mapping {
		if s < 0 || b < 0 {
			return fmt.Errorf("%w: mapping %d -> %d", ErrMalformedProfile, s, b)
		}
	}
	return nil
}

func in01(v float64) bool { return v >= 0 && v <= 1 }

func checkSensor(key string, idx int, a, r float64) error {
	switch {
	case idx < 0:
		return fmt.Errorf("%w: sensor key %q", ErrMalformedProfile, key)
	case !in01(a):
		return fmt.Errorf("%w: sensor %s activation %v out of range", ErrMalformedProfile, key, a)
	case !in01(r):
		return fmt.Errorf("%w: sensor %s release %v out of range", ErrMalformedProfile, key, r)
	case r > a:
		return fmt.Errorf("%w: sensor %s release %v above activation %v", ErrMalformedProfile, key, r, a)
	}
	return nil
}

type document struct {
	Version     int                     `json:"version" yaml:"version"`
	ReleaseMode *string                 `json:"releaseMode" yaml:"releaseMode"`
	GlobalRatio *float64                `json:"globalRatio,omitempty" yaml:"globalRatio,omitempty"`
	Sensors     map[string]*sensorEntry `json:"sensors" yaml:"sensors"`
	Mapping     map[string]int          `json:"mapping,omitempty" yaml:"mapping,omitempty"`
}

type sensorEntry struct {
	Activation *float64 `json:"activation" yaml:"activation"`
	Release    *float64 `json:"release" yaml:"release"`
}

// Encode serializes p. Invalid profiles are refused so every encoded
// document decodes again.
func Encode(p Profile, f Format) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	mode := p.ReleaseMode.String()
	doc := document{
		Version:     Version,
		ReleaseMode: &mode,
		Sensors:     make(map[string]*sensorEntry, len(p.Sensors)),
	}
	if p.ReleaseMode == release.Global {
		ratio := p.GlobalRatio
		doc.GlobalRatio = &ratio
	}
	for i, t := range p.Sensors {
		a, r := t.Activation, t.Release
		doc.Sensors[strconv.Itoa(i)] = &sensorEntry{Activation: &a, Release: &r}
	}
	if len(p.Mapping) > 0 {
		doc.Mapping = make(map[string]int, len(p.Mapping))
		for s, b := range p.Mapping {
			doc.Mapping[strconv.Itoa(s)] = b
		}
	}
	if f == YAML {
		return yaml.Marshal(&doc)
	}
	return json.MarshalIndent(&doc, "", "  ")
}

// Decode parses and validates a document. Sensors and Mapping of the result
// are never nil. A missing version reads as Version.
func Decode(data []byte, f Format) (Profile, error) {
	var doc document
	var err error
	if f == YAML {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %w", ErrMalformedProfile, err)
	}

	out := Profile{
		Version: doc.Version,
		Sensors: make(map[int]threshold.Pair, len(doc.Sensors)),
		Mapping: make(map[int]int, len(doc.Mapping)),
	}
	if out.Version == 0 {
		out.Version = Version
	}
	if out.Version != Version {
		return Profile{}, fmt.Errorf("%w: unsupported version %d", ErrMalformedProfile, doc.Version)
	}
	if doc.ReleaseMode == nil {
		return Profile{}, fmt.Errorf("%w: releaseMode missing", ErrMalformedProfile)
	}
	if out.ReleaseMode, err = release.Parse(*doc.ReleaseMode); err != nil {
		return Profile{}, fmt.Errorf("%w: %w", ErrMalformedProfile, err)
	}
	if out.ReleaseMode == release.Global {
		if doc.GlobalRatio == nil || !in01(*doc.GlobalRatio) {
			return Profile{}, fmt.Errorf("%w: globalRatio missing or out of range", ErrMalformedProfile)
		}
		out.GlobalRatio = *doc.GlobalRatio
	}
	if doc.Sensors == nil {
		return Profile{}, fmt.Errorf("%w: sensors missing", ErrMalformedProfile)
	}
	for key, e := range doc.Sensors {
		idx, err := parseIndex(key)
		if err != nil {
			return Profile{}, err
		}
		if e == nil || e.Activation == nil || e.Release == nil {
			return Profile{}, fmt.Errorf("%w: sensor %s incomplete", ErrMalformedProfile, key)
		}
		if err := checkSensor(key, idx, *e.Activation, *e.Release); err != nil {
			return Profile{}, err
		}
		out.Sensors[idx] = threshold.Pair{Activation: *e.Activation, Release: *e.Release}
	}
	for key, b := range doc.Mapping {
		idx, err := parseIndex(key)
		if err != nil {
			return Profile{}, err
		}
		if b < 0 {
			return Profile{}, fmt.Errorf("%w: sensor %s button %d", ErrMalformedProfile, key, b)
		}
		out.Mapping[idx] = b
	}
	return out, nil
}

// parseIndex accepts only canonical non-negative decimal keys.
func parseIndex(key string) (int, error) {
	n, err := strconv.Atoi(key)
	if err != nil || n < 0 || strconv.Itoa(n) != key {
		return 0, fmt.Errorf("%w: index key %q", ErrMalformedProfile, key)
	}
	return n, nil
}
