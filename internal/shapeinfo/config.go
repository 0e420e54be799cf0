package shapeinfo

import (
	"os"

	"gopkg.in/yaml.v3"

	"shapematch/internal/matcherr"
)

// PersistedConfig is the on-disk document for a producer's configuration: a
// key-value record of the ranges, steps, eps, and the concrete list of
// produced (angle, scale) entries, for reproducibility and inspection.
type PersistedConfig struct {
	AngleRange []float64       `yaml:"angle_range"`
	ScaleRange []float64       `yaml:"scale_range"`
	AngleStep  float64         `yaml:"angle_step"`
	ScaleStep  float64         `yaml:"scale_step"`
	Eps        float64         `yaml:"eps"`
	Produced   []ProducedEntry `yaml:"produced"`
}

// ProducedEntry is one emitted (angle, scale) pair in the persisted document.
type ProducedEntry struct {
	Angle float64 `yaml:"angle"`
	Scale float64 `yaml:"scale"`
}

// SaveConfig writes cfg and the producer's emitted infos to path as YAML.
func SaveConfig(path string, cfg Config, infos []Info) error {
	const op = "shapeinfo.SaveConfig"
	doc := PersistedConfig{
		AngleRange: []float64{cfg.AngleRange.Lo, cfg.AngleRange.Hi},
		ScaleRange: []float64{cfg.ScaleRange.Lo, cfg.ScaleRange.Hi},
		AngleStep:  cfg.AngleRange.Step,
		ScaleStep:  cfg.ScaleRange.Step,
		Eps:        cfg.Eps,
	}
	for _, info := range infos {
		doc.Produced = append(doc.Produced, ProducedEntry{Angle: info.Angle, Scale: info.Scale})
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return matcherr.Wrap(matcherr.InvalidInput, op, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return matcherr.Wrap(matcherr.InvalidInput, op, err)
	}
	return nil
}

// LoadConfig reads a persisted config back into a Config, discarding the
// produced-entries list (it is reproducible from the ranges and is kept
// in the file purely for audit/inspection).
func LoadConfig(path string) (Config, error) {
	const op = "shapeinfo.LoadConfig"
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, matcherr.Wrap(matcherr.InvalidInput, op, err)
	}

	var doc PersistedConfig
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, matcherr.Wrap(matcherr.InvalidInput, op, err)
	}
	if len(doc.AngleRange) != 2 || len(doc.ScaleRange) != 2 {
		return Config{}, matcherr.New(matcherr.InvalidInput, op, "angle_range and scale_range must each have two elements")
	}

	return Config{
		AngleRange: Range{Lo: doc.AngleRange[0], Hi: doc.AngleRange[1], Step: doc.AngleStep},
		ScaleRange: Range{Lo: doc.ScaleRange[0], Hi: doc.ScaleRange[1], Step: doc.ScaleStep},
		Eps:        doc.Eps,
	}, nil
}
