package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// TargetsFile is the YAML document listing monitored sites.
//
//	check_interval_minutes: 5
//	timezone: Europe/Moscow
//	targets:
//	  - name: Shop
//	    url: https://shop.example.com
type TargetsFile struct {
	CheckIntervalMinutes int            `yaml:"check_interval_minutes" validate:"required,min=1"`
	Timezone             string         `yaml:"timezone"`
	Targets              []TargetConfig `yaml:"targets" validate:"dive"`

	Location *time.Location `yaml:"-"`
}

type TargetConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url" validate:"required,http_url"`
	ChatID string `yaml:"chat_id"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func LoadTargets(path string) (TargetsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TargetsFile{}, fmt.Errorf("read targets file: %w", err)
	}
	return ParseTargets(data)
}

func ParseTargets(data []byte) (TargetsFile, error) {
	var tf TargetsFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return TargetsFile{}, fmt.Errorf("parse targets yaml: %w", err)
	}
	if err := validate.Struct(tf); err != nil {
		return TargetsFile{}, fmt.Errorf("validate targets: %w", err)
	}

	if tf.Timezone == "" {
		tf.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(tf.Timezone)
	if err != nil {
		return TargetsFile{}, fmt.Errorf("timezone %q: %w", tf.Timezone, err)
	}
	tf.Location = loc

	seen := make(map[string]bool, len(tf.Targets))
	for i := range tf.Targets {
		t := &tf.Targets[i]
		norm, err := domain.NormalizeURL(t.URL)
		if err != nil {
			return TargetsFile{}, fmt.Errorf("target %d: %w", i, err)
		}
		if seen[norm] {
			return TargetsFile{}, fmt.Errorf("target %d: duplicate url %s", i, norm)
		}
		seen[norm] = true
		t.URL = norm
		if t.Name == "" {
			t.Name = domain.HostOf(norm)
		}
	}
	return tf, nil
}

func (tf TargetsFile) Interval() time.Duration {
	return time.Duration(tf.CheckIntervalMinutes) * time.Minute
}

func (tf TargetsFile) DomainTargets() []domain.Target {
	out := make([]domain.Target, 0, len(tf.Targets))
	for _, t := range tf.Targets {
		out = append(out, domain.Target{URL: t.URL, Name: t.Name, ChatID: t.ChatID})
	}
	return out
}
