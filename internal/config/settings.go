// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "strings"

// =============================================================================
// SETTINGS
// =============================================================================

// Numeric ranges enforced on every settings write.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinTopP        = 0.0
	MaxTopP        = 1.0
	MinMaxTokens   = 1
	MaxMaxTokens   = 8192

	MinFileSizeMB = 1
	MaxFileSizeMB = 100
	MinFontSize   = 10
	MaxFontSize   = 24

	MinCacheSize        = 10
	MaxCacheSize        = 1000
	MinConcurrencyLimit = 1
	MaxConcurrencyLimit = 8
)

// Settings is the user-editable preferences object. It is persisted as a
// whole under the "<namespace>-settings" key.
type Settings struct {
	AI          AISettings          `json:"ai" yaml:"ai"`
	Files       FileSettings        `json:"files" yaml:"files"`
	UI          UISettings          `json:"ui" yaml:"ui"`
	Performance PerformanceSettings `json:"performance" yaml:"performance"`
	Privacy     PrivacySettings     `json:"privacy" yaml:"privacy"`
}

// AISettings are the generation parameters passed to the local model.
type AISettings struct {
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	TopP        float64 `json:"topP" yaml:"topP"`
	MaxTokens   int     `json:"maxTokens" yaml:"maxTokens"`
}

// FileSettings controls document import.
type FileSettings struct {
	MaxSizeMB         int      `json:"maxSizeMB" yaml:"maxSizeMB"`
	AllowedExtensions []string `json:"allowedExtensions" yaml:"allowedExtensions"`
	EnableOCR         bool     `json:"enableOCR" yaml:"enableOCR"`
	EnableCompression bool     `json:"enableCompression" yaml:"enableCompression"`
}

// UISettings are presentation preferences.
type UISettings struct {
	Theme      string `json:"theme" yaml:"theme"`
	Language   string `json:"language" yaml:"language"`
	FontSize   int    `json:"fontSize" yaml:"fontSize"`
	Animations bool   `json:"animations" yaml:"animations"`
}

// PerformanceSettings tune caching and parallelism.
type PerformanceSettings struct {
	CacheEnabled     bool `json:"cacheEnabled" yaml:"cacheEnabled"`
	CacheSize        int  `json:"cacheSize" yaml:"cacheSize"`
	ConcurrencyLimit int  `json:"concurrencyLimit" yaml:"concurrencyLimit"`
}

// PrivacySettings are opt-in toggles. Both default to off.
type PrivacySettings struct {
	Telemetry bool `json:"telemetry" yaml:"telemetry"`
	Analytics bool `json:"analytics" yaml:"analytics"`
}

// DefaultSettings returns the settings used before the user changes anything.
func DefaultSettings() Settings {
	return Settings{
		AI: AISettings{
			Model:       "llama3.2:3b",
			Temperature: 0.7,
			TopP:        0.9,
			MaxTokens:   2048,
		},
		Files: FileSettings{
			MaxSizeMB:         10,
			AllowedExtensions: []string{".pdf", ".docx", ".pptx", ".txt"},
			EnableOCR:         false,
			EnableCompression: true,
		},
		UI: UISettings{
			Theme:      "dark",
			Language:   "en",
			FontSize:   14,
			Animations: true,
		},
		Performance: PerformanceSettings{
			CacheEnabled:     true,
			CacheSize:        100,
			ConcurrencyLimit: 2,
		},
	}
}

// Clamp forces every numeric field into its documented range and fills
// empty strings from the defaults.
func (s *Settings) Clamp() {
	d := DefaultSettings()

	s.AI.Temperature = clampFloat(s.AI.Temperature, MinTemperature, MaxTemperature)
	s.AI.TopP = clampFloat(s.AI.TopP, MinTopP, MaxTopP)
	s.AI.MaxTokens = clampInt(s.AI.MaxTokens, MinMaxTokens, MaxMaxTokens)
	if strings.TrimSpace(s.AI.Model) == "" {
		s.AI.Model = d.AI.Model
	}

	s.Files.MaxSizeMB = clampInt(s.Files.MaxSizeMB, MinFileSizeMB, MaxFileSizeMB)
	if len(s.Files.AllowedExtensions) == 0 {
		s.Files.AllowedExtensions = d.Files.AllowedExtensions
	}

	s.UI.FontSize = clampInt(s.UI.FontSize, MinFontSize, MaxFontSize)
	if s.UI.Theme == "" {
		s.UI.Theme = d.UI.Theme
	}
	if s.UI.Language == "" {
		s.UI.Language = d.UI.Language
	}

	s.Performance.CacheSize = clampInt(s.Performance.CacheSize, MinCacheSize, MaxCacheSize)
	s.Performance.ConcurrencyLimit = clampInt(s.Performance.ConcurrencyLimit, MinConcurrencyLimit, MaxConcurrencyLimit)
}

// SetTemperature stores t clamped to [0, 2].
func (s *Settings) SetTemperature(t float64) {
	s.AI.Temperature = clampFloat(t, MinTemperature, MaxTemperature)
}

// SetTopP stores p clamped to [0, 1].
func (s *Settings) SetTopP(p float64) {
	s.AI.TopP = clampFloat(p, MinTopP, MaxTopP)
}

// SetMaxTokens stores n clamped to [1, 8192].
func (s *Settings) SetMaxTokens(n int) {
	s.AI.MaxTokens = clampInt(n, MinMaxTokens, MaxMaxTokens)
}

// SetModel stores the preferred model. Empty names are ignored.
func (s *Settings) SetModel(name string) {
	if name = strings.TrimSpace(name); name != "" {
		s.AI.Model = name
	}
}

// SetMaxFileSize stores the import size cap in megabytes, clamped to [1, 100].
func (s *Settings) SetMaxFileSize(mb int) {
	s.Files.MaxSizeMB = clampInt(mb, MinFileSizeMB, MaxFileSizeMB)
}

// SetFontSize stores the font size clamped to [10, 24].
func (s *Settings) SetFontSize(px int) {
	s.UI.FontSize = clampInt(px, MinFontSize, MaxFontSize)
}

// SetCacheSize stores the response cache capacity clamped to [10, 1000].
func (s *Settings) SetCacheSize(n int) {
	s.Performance.CacheSize = clampInt(n, MinCacheSize, MaxCacheSize)
}

// SetConcurrencyLimit stores the parallel model call cap clamped to [1, 8].
func (s *Settings) SetConcurrencyLimit(n int) {
	s.Performance.ConcurrencyLimit = clampInt(n, MinConcurrencyLimit, MaxConcurrencyLimit)
}

// AllowsExtension reports whether ext (with or without the leading dot) is
// in the allowed list.
func (s *Settings) AllowsExtension(ext string) bool {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	for _, allowed := range s.Files.AllowedExtensions {
		if strings.ToLower(allowed) == ext {
			return true
		}
	}
	return false
}

// MaxFileBytes returns the import size cap in bytes.
func (s *Settings) MaxFileBytes() int64 {
	return int64(s.Files.MaxSizeMB) << 20
}

func clampFloat(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
