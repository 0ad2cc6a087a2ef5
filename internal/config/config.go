package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const envPrefix = "FMQ"

var (
	envReplacer = strings.NewReplacer(".", "_")
	decodeHook  = viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
)

type Config struct {
	// ContentType 信封默认格式：json 或 proto
	ContentType string `mapstructure:"content_type"`
	// MaxMessageSize 单帧上限，超过时 FrameCodec 拒绝读取
	MaxMessageSize datasize.ByteSize `mapstructure:"max_message_size"`
	// SendBlockSize 发送缓冲区的首块大小
	SendBlockSize datasize.ByteSize `mapstructure:"send_block_size"`
	// SchemaFiles 启动时额外加载的 schema 文件
	SchemaFiles []string `mapstructure:"schema_files"`
	Log         Log      `mapstructure:"log"`
}

type Log struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

func Default() Config {
	return Config{
		ContentType:    "json",
		MaxMessageSize: 16 * datasize.MB,
		SendBlockSize:  4 * datasize.KB,
		Log: Log{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// Load 读取配置：默认值 < 配置文件 < FMQ_* 环境变量。path 为空时只看环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("content_type", def.ContentType)
	v.SetDefault("max_message_size", def.MaxMessageSize.String())
	v.SetDefault("send_block_size", def.SendBlockSize.String())
	v.SetDefault("schema_files", []string{})
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("log.max_size_mb", def.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", def.Log.MaxBackups)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var ErrInvalid = errors.New("config: invalid")

func (c *Config) Validate() error {
	switch c.ContentType {
	case "json", "proto":
	default:
		return fmt.Errorf("%w: content_type %q", ErrInvalid, c.ContentType)
	}
	if c.MaxMessageSize == 0 {
		return fmt.Errorf("%w: max_message_size must be positive", ErrInvalid)
	}
	if c.SendBlockSize == 0 {
		c.SendBlockSize = Default().SendBlockSize
	}
	return nil
}
