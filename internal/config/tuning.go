package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// knownColors are the colour labels the friend/foe gate understands.
var knownColors = map[string]bool{
	"red":   true,
	"green": true,
	"blue":  true,
}

// knownShapes are the silhouettes the shape/colour double check understands.
var knownShapes = map[string]bool{
	"circle":   true,
	"triangle": true,
	"square":   true,
}

// TuningConfig represents the root configuration for the range toolkit.
// Every field is optional; the Get* accessors supply the defaults so a
// partial JSON file is always safe to load.
type TuningConfig struct {
	// Tracker params
	IoUThreshold        *float64 `json:"iou_threshold,omitempty"`
	MaxAge              *int     `json:"max_age,omitempty"`
	MinStableHitsToFire *int     `json:"min_stable_hits_to_fire,omitempty"`

	// Classic detector params
	MinContourArea *float64 `json:"min_contour_area,omitempty"`
	SmallArea      *float64 `json:"small_area,omitempty"` // blobs below this pixel area are "small"

	// Scoring params
	StageDuration *string `json:"stage_duration,omitempty"` // duration string like "300s"

	// Friend/foe params
	FriendColor *string `json:"friend_color,omitempty"`
	FoeColor    *string `json:"foe_color,omitempty"`

	// Designated target for the shape+colour double check; an empty
	// target_shape disables it, an empty target_color means foe_color.
	TargetShape *string `json:"target_shape,omitempty"`
	TargetColor *string `json:"target_color,omitempty"`

	// Safety gate params
	NoFireMask  *string `json:"no_fire_mask,omitempty"`
	ImageWidth  *int    `json:"image_width,omitempty"`
	ImageHeight *int    `json:"image_height,omitempty"`

	// Fire-control link params
	FirePort     *string `json:"fire_port,omitempty"`
	FireBaudRate *int    `json:"fire_baud_rate,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults. It matches config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	c := EmptyTuningConfig()
	return &TuningConfig{
		IoUThreshold:        ptrFloat64(c.GetIoUThreshold()),
		MaxAge:              ptrInt(c.GetMaxAge()),
		MinStableHitsToFire: ptrInt(c.GetMinStableHitsToFire()),
		MinContourArea:      ptrFloat64(c.GetMinContourArea()),
		SmallArea:           ptrFloat64(c.GetSmallArea()),
		StageDuration:       ptrString("300s"),
		FriendColor:         ptrString(c.GetFriendColor()),
		FoeColor:            ptrString(c.GetFoeColor()),
		TargetShape:         ptrString(""),
		TargetColor:         ptrString(""),
		NoFireMask:          ptrString(""),
		ImageWidth:          ptrInt(c.GetImageWidth()),
		ImageHeight:         ptrInt(c.GetImageHeight()),
		FirePort:            ptrString(""),
		FireBaudRate:        ptrInt(c.GetFireBaudRate()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// LoadOrDefault loads path when it is non-empty and otherwise returns the
// built-in defaults.
func LoadOrDefault(path string) (*TuningConfig, error) {
	if path == "" {
		return DefaultTuningConfig(), nil
	}
	return LoadTuningConfig(path)
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.IoUThreshold != nil {
		if *c.IoUThreshold <= 0 || *c.IoUThreshold > 1 {
			return fmt.Errorf("iou_threshold must be in (0, 1], got %f", *c.IoUThreshold)
		}
	}

	if c.MaxAge != nil && *c.MaxAge < 1 {
		return fmt.Errorf("max_age must be at least 1, got %d", *c.MaxAge)
	}

	if c.MinStableHitsToFire != nil && *c.MinStableHitsToFire < 0 {
		return fmt.Errorf("min_stable_hits_to_fire must be non-negative, got %d", *c.MinStableHitsToFire)
	}

	if c.MinContourArea != nil && *c.MinContourArea < 0 {
		return fmt.Errorf("min_contour_area must be non-negative, got %f", *c.MinContourArea)
	}

	if c.SmallArea != nil && *c.SmallArea <= 0 {
		return fmt.Errorf("small_area must be positive, got %f", *c.SmallArea)
	}

	if c.StageDuration != nil && *c.StageDuration != "" {
		d, err := time.ParseDuration(*c.StageDuration)
		if err != nil {
			return fmt.Errorf("invalid stage_duration '%s': %w", *c.StageDuration, err)
		}
		if d <= 0 {
			return fmt.Errorf("stage_duration must be positive, got %s", d)
		}
	}

	if c.FriendColor != nil && !knownColors[*c.FriendColor] {
		return fmt.Errorf("unknown friend_color %q", *c.FriendColor)
	}
	if c.FoeColor != nil && !knownColors[*c.FoeColor] {
		return fmt.Errorf("unknown foe_color %q", *c.FoeColor)
	}
	if c.FriendColor != nil && c.FoeColor != nil && *c.FriendColor == *c.FoeColor {
		return fmt.Errorf("friend_color and foe_color must differ, both %q", *c.FoeColor)
	}

	if c.TargetShape != nil && *c.TargetShape != "" && !knownShapes[*c.TargetShape] {
		return fmt.Errorf("unknown target_shape %q", *c.TargetShape)
	}
	if c.TargetColor != nil && *c.TargetColor != "" && !knownColors[*c.TargetColor] {
		return fmt.Errorf("unknown target_color %q", *c.TargetColor)
	}

	if c.ImageWidth != nil && *c.ImageWidth <= 0 {
		return fmt.Errorf("image_width must be positive, got %d", *c.ImageWidth)
	}
	if c.ImageHeight != nil && *c.ImageHeight <= 0 {
		return fmt.Errorf("image_height must be positive, got %d", *c.ImageHeight)
	}

	if c.FireBaudRate != nil && *c.FireBaudRate < 0 {
		return fmt.Errorf("fire_baud_rate must be non-negative, got %d", *c.FireBaudRate)
	}

	return nil
}

// GetIoUThreshold returns the iou_threshold value or the default.
func (c *TuningConfig) GetIoUThreshold() float64 {
	if c.IoUThreshold == nil {
		return 0.3
	}
	return *c.IoUThreshold
}

// GetMaxAge returns the max_age value or the default.
func (c *TuningConfig) GetMaxAge() int {
	if c.MaxAge == nil {
		return 30
	}
	return *c.MaxAge
}

// GetMinStableHitsToFire returns the min_stable_hits_to_fire value or the default.
func (c *TuningConfig) GetMinStableHitsToFire() int {
	if c.MinStableHitsToFire == nil {
		return 3
	}
	return *c.MinStableHitsToFire
}

// GetMinContourArea returns the min_contour_area value or the default.
func (c *TuningConfig) GetMinContourArea() float64 {
	if c.MinContourArea == nil {
		return 150
	}
	return *c.MinContourArea
}

// GetSmallArea returns the small_area value or the default.
func (c *TuningConfig) GetSmallArea() float64 {
	if c.SmallArea == nil {
		return 1200
	}
	return *c.SmallArea
}

// GetStageDuration parses and returns the StageDuration as a time.Duration.
func (c *TuningConfig) GetStageDuration() time.Duration {
	if c.StageDuration == nil || *c.StageDuration == "" {
		return 300 * time.Second // default
	}
	d, err := time.ParseDuration(*c.StageDuration)
	if err != nil || d <= 0 {
		return 300 * time.Second // default on parse error
	}
	return d
}

// GetFriendColor returns the friend_color value or the default.
func (c *TuningConfig) GetFriendColor() string {
	if c.FriendColor == nil {
		return "green"
	}
	return *c.FriendColor
}

// GetFoeColor returns the foe_color value or the default.
func (c *TuningConfig) GetFoeColor() string {
	if c.FoeColor == nil {
		return "red"
	}
	return *c.FoeColor
}

// GetTargetShape returns the designated target shape, or "" when the
// shape+colour double check is off.
func (c *TuningConfig) GetTargetShape() string {
	if c.TargetShape == nil {
		return ""
	}
	return *c.TargetShape
}

// GetTargetColor returns the designated target colour, falling back to
// the foe colour.
func (c *TuningConfig) GetTargetColor() string {
	if c.TargetColor == nil || *c.TargetColor == "" {
		return c.GetFoeColor()
	}
	return *c.TargetColor
}

// GetNoFireMask returns the path of the no-fire polygon file, or "" when
// no mask is configured.
func (c *TuningConfig) GetNoFireMask() string {
	if c.NoFireMask == nil {
		return ""
	}
	return *c.NoFireMask
}

// GetImageWidth returns the image_width value or the default.
func (c *TuningConfig) GetImageWidth() int {
	if c.ImageWidth == nil {
		return 1280
	}
	return *c.ImageWidth
}

// GetImageHeight returns the image_height value or the default.
func (c *TuningConfig) GetImageHeight() int {
	if c.ImageHeight == nil {
		return 720
	}
	return *c.ImageHeight
}

// GetFirePort returns the fire-control serial port, or "" for a dry run.
func (c *TuningConfig) GetFirePort() string {
	if c.FirePort == nil {
		return ""
	}
	return *c.FirePort
}

// GetFireBaudRate returns the fire_baud_rate value or the default.
func (c *TuningConfig) GetFireBaudRate() int {
	if c.FireBaudRate == nil || *c.FireBaudRate == 0 {
		return 19200
	}
	return *c.FireBaudRate
}
