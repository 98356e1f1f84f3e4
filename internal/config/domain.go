package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/xrick/laptop-funnel-dialogue/internal/models"
)

// IntentKeyword is one entry of the intent-keywords artifact. Declaration
// order in the source file is authoritative for topic tie-break (§4.E);
// it is therefore decoded as a JSON array, never as a map.
type IntentKeyword struct {
	Topic       string   `json:"topic"`
	Keywords    []string `json:"keywords"`
	Description string   `json:"description"`
}

// EntityPattern is one entry of the entity-patterns artifact.
type EntityPattern struct {
	Patterns []string `mapstructure:"patterns"`
	Examples []string `mapstructure:"examples"`
}

// TriggerKeywords groups the funnel's vague/comparison trigger substrings.
type TriggerKeywords struct {
	Vague      []string `mapstructure:"vague"`
	Comparison []string `mapstructure:"comparison"`
}

// FunnelArtifact is the decoded shape of the funnel-features config file.
type FunnelArtifact struct {
	Features        map[string]models.Question `mapstructure:"features"`
	Priorities      map[string][]string         `mapstructure:"priorities"`
	TriggerKeywords TriggerKeywords             `mapstructure:"trigger_keywords"`
	ScenarioKeywords map[string][]string        `mapstructure:"scenario_keywords"`
}

// Domain bundles the four loaded artifacts plus their derived, read-only
// accessors. Schema drift in any artifact is fatal at load time, per
// SPEC_FULL §4.D/§7 ConfigInvalid.
type Domain struct {
	IntentKeywords  []IntentKeyword
	EntityPatterns  map[string]CompiledEntityPattern
	Funnel          FunnelArtifact
	PromptTemplate  string
}

// CompiledEntityPattern holds a pre-compiled regex set for one entity kind.
type CompiledEntityPattern struct {
	Regexes  []*regexp.Regexp
	Examples []string
}

// LoadDomain loads the four artifacts from dir:
//   - intent_keywords.json  (ordered array; decoded directly to preserve order)
//   - entity_patterns.json  (map; loaded via viper)
//   - funnel.json           (map; loaded via viper)
//   - prompt_template.txt   (raw string; must contain {context} and {query})
func LoadDomain(dir string) (*Domain, error) {
	kws, err := loadIntentKeywords(filepath.Join(dir, "intent_keywords.json"))
	if err != nil {
		return nil, err
	}

	patterns, err := loadEntityPatterns(filepath.Join(dir, "entity_patterns.json"))
	if err != nil {
		return nil, err
	}
	if _, ok := patterns["MODEL_NAME"]; !ok {
		return nil, fmt.Errorf("config: entity_patterns.json missing required kind MODEL_NAME")
	}
	if _, ok := patterns["SERIES_KEY"]; !ok {
		return nil, fmt.Errorf("config: entity_patterns.json missing required kind SERIES_KEY")
	}

	funnel, err := loadFunnel(filepath.Join(dir, "funnel.json"))
	if err != nil {
		return nil, err
	}

	tmpl, err := loadPromptTemplate(filepath.Join(dir, "prompt_template.txt"))
	if err != nil {
		return nil, err
	}

	return &Domain{
		IntentKeywords: kws,
		EntityPatterns: patterns,
		Funnel:         funnel,
		PromptTemplate: tmpl,
	}, nil
}

func loadIntentKeywords(path string) ([]IntentKeyword, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // a missing file is treated like an empty one; E degrades to topic=general
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var kws []IntentKeyword
	if err := json.Unmarshal(data, &kws); err != nil {
		return nil, fmt.Errorf("config: %s is not a valid intent-keywords array: %w", path, err)
	}
	return kws, nil
}

func loadEntityPatterns(path string) (map[string]CompiledEntityPattern, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return map[string]CompiledEntityPattern{}, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw map[string]EntityPattern
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("config: %s has invalid entity-pattern schema: %w", path, err)
	}

	out := make(map[string]CompiledEntityPattern, len(raw))
	for kind, ep := range raw {
		compiled := CompiledEntityPattern{Examples: ep.Examples}
		for _, p := range ep.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				// Invalid individual patterns are logged and dropped, not fatal,
				// per §4.D point 2 — the artifact as a whole may still be valid.
				logrus.WithError(err).WithFields(logrus.Fields{"kind": kind, "pattern": p}).Warn("config: dropping invalid entity pattern")
				continue
			}
			compiled.Regexes = append(compiled.Regexes, re)
		}
		// viper lowercases every key it reads; entity kinds are looked up
		// by their upper-case names (MODEL_NAME, SERIES_KEY).
		out[strings.ToUpper(kind)] = compiled
	}
	return out, nil
}

func loadFunnel(path string) (FunnelArtifact, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return FunnelArtifact{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var artifact FunnelArtifact
	if err := v.Unmarshal(&artifact); err != nil {
		return FunnelArtifact{}, fmt.Errorf("config: %s has invalid funnel schema: %w", path, err)
	}
	if len(artifact.Features) == 0 {
		return FunnelArtifact{}, fmt.Errorf("config: %s declares no funnel features", path)
	}
	for scenario, order := range artifact.Priorities {
		for _, fid := range order {
			if _, ok := artifact.Features[fid]; !ok {
				return FunnelArtifact{}, fmt.Errorf(
					"config: %s: priorities[%s] references unknown feature_id %q", path, scenario, fid)
			}
		}
	}
	return artifact, nil
}

func loadPromptTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: read %s: %w", path, err)
	}
	tmpl := string(data)
	if !strings.Contains(tmpl, "{context}") || !strings.Contains(tmpl, "{query}") {
		return "", fmt.Errorf("config: %s must contain both {context} and {query} placeholders", path)
	}
	return tmpl, nil
}
