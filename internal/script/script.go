// Package script loads reel and questionnaire tables from YAML and turns them
// into validated flow configuration.
package script

import (
	"fmt"
	"time"

	"github.com/BTreeMap/ReelPipe/internal/flow"
)

// Script is the on-disk description of one experience.
type Script struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	SettleMS    *int    `yaml:"settle_ms"`
	ReelSeconds int     `yaml:"reel_seconds"`
	Scenes      []Scene `yaml:"scenes"`
	Steps       []Step  `yaml:"steps"`
	Finish      Finish  `yaml:"finish"`
	Source      string  `yaml:"-"`
}

// Scene is one beat of the reel. A scene without an end is open-ended.
type Scene struct {
	ID       *int   `yaml:"id"`
	Tag      string `yaml:"tag"`
	Start    int    `yaml:"start"`
	End      *int   `yaml:"end"`
	Text     string `yaml:"text"`
	Subtitle string `yaml:"subtitle"`
	Button   string `yaml:"button"`
}

// Step is one questionnaire position.
type Step struct {
	ID        *int     `yaml:"id"`
	Kind      string   `yaml:"kind"`
	Prompt    string   `yaml:"prompt"`
	Subtitle  string   `yaml:"subtitle"`
	Options   []string `yaml:"options"`
	InputHint string   `yaml:"input_hint"`
	Button    string   `yaml:"button"`
}

// Finish is the copy shown once answers are submitted.
type Finish struct {
	Title string `yaml:"title" json:"title"`
	Body  string `yaml:"body" json:"body"`
}

// SceneDefinitions converts the reel table. Ids follow list position.
func (s *Script) SceneDefinitions() []flow.Definition {
	defs := make([]flow.Definition, 0, len(s.Scenes))
	for i, sc := range s.Scenes {
		end := flow.Forever
		if sc.End != nil {
			end = time.Duration(*sc.End) * time.Second
		}
		id := i
		if sc.ID != nil {
			id = *sc.ID
		}
		defs = append(defs, flow.Definition{
			ID:         id,
			Kind:       flow.KindScene,
			Tag:        sc.Tag,
			Prompt:     sc.Text,
			Subtitle:   sc.Subtitle,
			ButtonText: sc.Button,
			Window: &flow.Window{
				Start: time.Duration(sc.Start) * time.Second,
				End:   end,
			},
		})
	}
	return defs
}

// StepDefinitions converts the questionnaire table. Ids follow list position.
func (s *Script) StepDefinitions() []flow.Definition {
	defs := make([]flow.Definition, 0, len(s.Steps))
	for i, st := range s.Steps {
		id := i
		if st.ID != nil {
			id = *st.ID
		}
		defs = append(defs, flow.Definition{
			ID:         id,
			Kind:       flow.Kind(st.Kind),
			Prompt:     st.Prompt,
			Subtitle:   st.Subtitle,
			Options:    st.Options,
			InputHint:  st.InputHint,
			ButtonText: st.Button,
		})
	}
	return defs
}

// Config validates the tables and builds the shared flow configuration.
// Explicit options are applied after the script's own timing.
func (s *Script) Config(opts ...flow.ConfigOption) (*flow.Config, error) {
	base := []flow.ConfigOption{flow.WithName(s.Name)}
	if s.SettleMS != nil {
		base = append(base, flow.WithSettleDelay(time.Duration(*s.SettleMS)*time.Millisecond))
	}
	if s.ReelSeconds > 0 {
		base = append(base, flow.WithReelLength(time.Duration(s.ReelSeconds)*time.Second))
	}
	cfg, err := flow.NewConfig(s.SceneDefinitions(), s.StepDefinitions(), append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", s.Name, err)
	}
	return cfg, nil
}
