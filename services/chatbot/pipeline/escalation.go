// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains escalation detection: keyword triggers and the
// low-confidence gate, with optional YAML-file tuning and hot reload.
package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Escalation triggers, used as the metric label and carried on the
// decision.
const (
	TriggerKeyword       = "keyword"
	TriggerLowConfidence = "low_confidence"
)

// defaultEscalationKeywords covers medical emergencies, complaints,
// and legal or clinical topics the bot must never handle alone.
// Order matters: detection reports the first keyword found.
var defaultEscalationKeywords = []string{
	"緊急", "危険", "死", "血", "痙攣", "呼吸困難",
	"クレーム", "苦情", "返金", "法的", "弁護士",
	"手術", "入院", "処方", "診断",
}

// defaultConfidenceThreshold gates low-confidence answers. Scores
// strictly below this escalate.
const defaultConfidenceThreshold = 0.6

// EscalationConfig is the tunable part of escalation detection,
// loadable from a YAML file.
type EscalationConfig struct {
	// Keywords trigger escalation when any appears in the question or
	// the generated answer. Matching is case-insensitive substring.
	Keywords []string `yaml:"keywords"`

	// ConfidenceThreshold escalates answers scoring strictly below it.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// DefaultEscalationConfig returns the built-in keyword list and
// threshold.
func DefaultEscalationConfig() EscalationConfig {
	keywords := make([]string, len(defaultEscalationKeywords))
	copy(keywords, defaultEscalationKeywords)
	return EscalationConfig{
		Keywords:            keywords,
		ConfidenceThreshold: defaultConfidenceThreshold,
	}
}

// Validate checks the config is usable.
func (c *EscalationConfig) Validate() error {
	if len(c.Keywords) == 0 {
		return fmt.Errorf("escalation config: keywords must not be empty")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("escalation config: confidence_threshold %.2f out of [0,1]", c.ConfidenceThreshold)
	}
	return nil
}

// Decision is the outcome of escalation detection for one response.
type Decision struct {
	Escalate bool
	Reason   string
	Trigger  string
}

// Detector decides whether a response should be handed to a human.
//
// # Description
//
// Two checks run in order. First the keyword scan over the question
// and the generated answer; the first keyword found wins and its
// reason names it. Second the confidence gate: a score strictly below
// the threshold escalates. Keyword escalation takes precedence, so a
// confident answer mentioning 返金 still escalates with the keyword
// reason.
//
// # Thread Safety
//
// Decide may be called concurrently with Reload; the config is guarded
// by a RWMutex.
type Detector struct {
	mu     sync.RWMutex
	config EscalationConfig

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewDetector returns a Detector with the given config. An empty
// keyword list falls back to the built-in defaults; the threshold is
// taken as-is, so an explicit 0 disables the low-confidence gate, the
// same as it does after a Reload.
func NewDetector(cfg EscalationConfig) *Detector {
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = DefaultEscalationConfig().Keywords
	}
	return &Detector{config: cfg}
}

// LoadEscalationConfig reads an EscalationConfig from a YAML file.
// Fields absent from the file keep their defaults.
func LoadEscalationConfig(path string) (EscalationConfig, error) {
	cfg := DefaultEscalationConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read escalation config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse escalation config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Decide runs the two escalation checks against one response.
func (d *Detector) Decide(question, answer string, confidence float64) Decision {
	d.mu.RLock()
	cfg := d.config
	d.mu.RUnlock()

	allText := strings.ToLower(question + " " + answer)
	for _, keyword := range cfg.Keywords {
		if strings.Contains(allText, strings.ToLower(keyword)) {
			return Decision{
				Escalate: true,
				Reason:   fmt.Sprintf("エスカレーションキーワード検出: %q", keyword),
				Trigger:  TriggerKeyword,
			}
		}
	}

	if confidence < cfg.ConfidenceThreshold {
		return Decision{
			Escalate: true,
			Reason:   fmt.Sprintf("信頼度が低い (%.0f%%)", confidence*100),
			Trigger:  TriggerLowConfidence,
		}
	}

	return Decision{}
}

// Reload swaps in a new config after validation.
func (d *Detector) Reload(cfg EscalationConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	d.config = cfg
	d.mu.Unlock()
	return nil
}

// Watch reloads the detector whenever the YAML file at path changes.
// Invalid edits are logged and skipped; the previous config stays
// active. Call Close to stop watching.
func (d *Detector) Watch(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", path, err)
	}
	d.watcher = watcher
	d.done = make(chan struct{})

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
					continue
				}
				cfg, err := LoadEscalationConfig(path)
				if err != nil {
					slog.Warn("Ignoring invalid escalation config update", "path", path, "error", err)
					continue
				}
				if err := d.Reload(cfg); err != nil {
					slog.Warn("Ignoring invalid escalation config update", "path", path, "error", err)
					continue
				}
				slog.Info("Reloaded escalation config", "path", path, "keywords", len(cfg.Keywords))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Escalation config watcher error", "error", err)
			case <-d.done:
				return
			}
		}
	}()
	return nil
}

// Close stops the config watcher, if one is running.
func (d *Detector) Close() error {
	if d.watcher == nil {
		return nil
	}
	close(d.done)
	return d.watcher.Close()
}
