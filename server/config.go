package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 服务端运行配置：先取默认值，再用可选的 YAML 文件覆盖
type Config struct {
	Addr      string `yaml:"addr"`       // 游戏 TCP 监听地址
	AdminAddr string `yaml:"admin_addr"` // 管理/监控 HTTP 地址，空则不启用
	LogFile   string `yaml:"log_file"`
	TickMs    int    `yaml:"tick_ms"` // 位置广播间隔（毫秒）
	Seed      int64  `yaml:"seed"`    // 驱动随机玩家名，0 表示按时间取种
}

func DefaultConfig() Config {
	return Config{
		Addr:    "localhost:9999",
		LogFile: "pycraft.log",
		TickMs:  100,
	}
}

// LoadConfig 读取 YAML 配置；path 为空时直接返回默认值
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Normalize 把空字段/非法值拉回默认值
func (c *Config) Normalize() {
	if c.Addr == "" {
		c.Addr = "localhost:9999"
	}
	if c.LogFile == "" {
		c.LogFile = "pycraft.log"
	}
	if c.TickMs <= 0 {
		c.TickMs = 100
	}
}

func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}
