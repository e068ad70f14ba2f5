// Package config 加载签名编辑器的可调参数
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Settings 编辑器设置，所有百分比均相对于页面渲染尺寸
type Settings struct {
	SnapThreshold       float64 `toml:"snap_threshold"`       // 吸附阈值（百分点）
	DefaultWidth        float64 `toml:"default_width"`        // 新签名默认宽度
	DefaultX            float64 `toml:"default_x"`            // 新签名默认位置 X
	DefaultY            float64 `toml:"default_y"`            // 新签名默认位置 Y
	DuplicateOffset     float64 `toml:"duplicate_offset"`     // 复制时的偏移
	DuplicateMax        float64 `toml:"duplicate_max"`        // 复制后位置上限
	MinWidth            float64 `toml:"min_width"`            // 最小宽度
	MinHeight           float64 `toml:"min_height"`           // 自由缩放时的最小高度
	ExportScale         float64 `toml:"export_scale"`         // 栅格导出倍率
	HistoryLimit        int     `toml:"history_limit"`        // 撤销栈深度，0 表示不限
	AspectLocked        bool    `toml:"aspect_locked"`        // 缩放时是否锁定宽高比
	MaxImageWidth       int     `toml:"max_image_width"`      // 上传签名的最大像素宽度
	BackgroundThreshold uint8   `toml:"background_threshold"` // 去背景亮度阈值
	LogLevel            string  `toml:"log_level"`
}

// Default 返回默认设置
func Default() Settings {
	return Settings{
		SnapThreshold:       0.5,
		DefaultWidth:        20,
		DefaultX:            40,
		DefaultY:            40,
		DuplicateOffset:     2,
		DuplicateMax:        90,
		MinWidth:            1,
		MinHeight:           0.5,
		ExportScale:         2,
		HistoryLimit:        0,
		AspectLocked:        true,
		MaxImageWidth:       1200,
		BackgroundThreshold: 200,
		LogLevel:            "warn",
	}
}

// Load 从 TOML 文件读取设置，未出现的字段保留默认值
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse 解析 TOML 内容
func Parse(data []byte) (Settings, error) {
	s := Default()
	if err := toml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate 检查设置是否自洽
func (s Settings) Validate() error {
	switch {
	case s.SnapThreshold < 0:
		return fmt.Errorf("invalid snap_threshold: %g", s.SnapThreshold)
	case s.MinWidth <= 0 || s.MinWidth > 100:
		return fmt.Errorf("invalid min_width: %g", s.MinWidth)
	case s.MinHeight <= 0 || s.MinHeight > 100:
		return fmt.Errorf("invalid min_height: %g", s.MinHeight)
	case s.DefaultWidth < s.MinWidth || s.DefaultWidth > 100:
		return fmt.Errorf("invalid default_width: %g", s.DefaultWidth)
	case s.ExportScale <= 0:
		return fmt.Errorf("invalid export_scale: %g", s.ExportScale)
	case s.HistoryLimit < 0:
		return fmt.Errorf("invalid history_limit: %d", s.HistoryLimit)
	case s.MaxImageWidth < 0:
		return fmt.Errorf("invalid max_image_width: %d", s.MaxImageWidth)
	}
	return nil
}
