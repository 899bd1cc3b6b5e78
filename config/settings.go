package config

import (
	"github.com/sofiworker/mpcap"
	"github.com/sofiworker/mpcap/logging"
)

// Settings 是进程级配置的完整模式。
type Settings struct {
	// TraceDir 是追踪文件的默认落盘目录。
	TraceDir string `json:"trace_dir" yaml:"trace_dir" mapstructure:"trace_dir"`
	// Listen 是控制接口的监听地址，如 ":8652"。为空则不启动。
	Listen string `json:"listen" yaml:"listen" mapstructure:"listen"`

	Logging  logging.Config `json:"logging" yaml:"logging" mapstructure:"logging"`
	Captures []CaptureSpec  `json:"captures" yaml:"captures" mapstructure:"captures"`
}

// CaptureSpec 描述一条启动时就要开启的追踪。
type CaptureSpec struct {
	Interface   string           `json:"interface" yaml:"interface" mapstructure:"interface"`
	Path        string           `json:"path" yaml:"path" mapstructure:"path"`
	MaxPackets  uint32           `json:"max_packets" yaml:"max_packets" mapstructure:"max_packets"`
	MaxFileSize uint64           `json:"max_file_size" yaml:"max_file_size" mapstructure:"max_file_size"`
	SnapLen     uint32           `json:"snap_len" yaml:"snap_len" mapstructure:"snap_len"`
	PacketType  mpcap.PacketType `json:"packet_type" yaml:"packet_type" mapstructure:"packet_type"`
	ThreadSafe  bool             `json:"thread_safe" yaml:"thread_safe" mapstructure:"thread_safe"`
	Manifest    bool             `json:"manifest" yaml:"manifest" mapstructure:"manifest"`
}

// LoadSettings 按默认查找路径加载 Settings。
func LoadSettings(opts ...Option) (*Settings, error) {
	c, err := New(opts...)
	if err != nil {
		return nil, err
	}
	var s Settings
	if err := c.Unmarshal(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
