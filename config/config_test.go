package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sofiworker/mpcap"
	"github.com/sofiworker/mpcap/logging"
)

// setupTestFile 创建一个临时的配置文件用于测试。
func setupTestFile(t *testing.T, dir, filename, content string) string {
	assert := assert.New(t)
	path := filepath.Join(dir, filename)
	err := os.WriteFile(path, []byte(content), 0644)
	assert.NoError(err)
	return path
}

const sampleConfig = `trace_dir: /var/lib/mpcap
listen: ":8652"
logging:
  level: debug
  encoding: json
captures:
  - interface: eth0
    path: /tmp/eth0.pcap
    max_packets: 1000
    max_file_size: 10MB
    snap_len: 256
    packet_type: ethernet
    thread_safe: true
    manifest: true
  - interface: eth1
    max_file_size: 4096
    packet_type: hdlc
`

func TestLoadSettings(t *testing.T) {
	assert := assert.New(t)
	tempDir := t.TempDir()

	t.Run("File With Decode Hooks", func(t *testing.T) {
		path := setupTestFile(t, tempDir, "mpcap.yaml", sampleConfig)

		s, err := LoadSettings(WithFile(path))
		assert.NoError(err)

		assert.Equal("/var/lib/mpcap", s.TraceDir)
		assert.Equal(":8652", s.Listen)
		assert.Equal(logging.DebugLevel, s.Logging.Level, "logging.level should decode from name")
		assert.Equal(logging.JSONEncoding, s.Logging.Encoding)

		assert.Len(s.Captures, 2)
		eth0 := s.Captures[0]
		assert.Equal("eth0", eth0.Interface)
		assert.Equal("/tmp/eth0.pcap", eth0.Path)
		assert.Equal(uint32(1000), eth0.MaxPackets)
		assert.Equal(uint64(10<<20), eth0.MaxFileSize, "max_file_size should decode from 10MB")
		assert.Equal(uint32(256), eth0.SnapLen)
		assert.Equal(mpcap.PacketTypeEthernet, eth0.PacketType)
		assert.True(eth0.ThreadSafe)
		assert.True(eth0.Manifest)

		eth1 := s.Captures[1]
		assert.Equal(uint64(4096), eth1.MaxFileSize, "plain numbers pass through")
		assert.Equal(mpcap.PacketTypeHDLC, eth1.PacketType)
	})

	t.Run("Env Overrides File", func(t *testing.T) {
		path := setupTestFile(t, tempDir, "override.yaml", sampleConfig)

		os.Setenv("MPCAP_TRACE_DIR", "/data/traces")
		os.Setenv("MPCAP_LISTEN", ":9000")
		defer func() {
			os.Unsetenv("MPCAP_TRACE_DIR")
			os.Unsetenv("MPCAP_LISTEN")
		}()

		s, err := LoadSettings(WithFile(path))
		assert.NoError(err)
		assert.Equal("/data/traces", s.TraceDir, "trace_dir should come from environment")
		assert.Equal(":9000", s.Listen)
	})

	t.Run("Missing File Is Tolerated", func(t *testing.T) {
		s, err := LoadSettings(WithName("definitely-missing"), WithPaths(t.TempDir()))
		assert.NoError(err)
		assert.Empty(s.TraceDir)
		assert.Empty(s.Captures)
	})

	t.Run("Bad Packet Type Fails", func(t *testing.T) {
		path := setupTestFile(t, tempDir, "bad.yaml", "captures:\n  - interface: eth0\n    packet_type: warp\n")
		_, err := LoadSettings(WithFile(path))
		assert.Error(err)
		assert.Contains(err.Error(), "warp")
	})
}

func TestUnmarshalDecoderOptions(t *testing.T) {
	assert := assert.New(t)
	tempDir := t.TempDir()

	path := setupTestFile(t, tempDir, "extra.yaml", "trace_dir: /tmp\nbogus_key: 1\n")

	loader, err := New(WithFile(path))
	assert.NoError(err)
	assert.NoError(loader.Load())

	var s Settings
	assert.NoError(loader.Unmarshal(&s), "unused keys are fine by default")
	assert.Equal("/tmp", s.TraceDir)

	var strict Settings
	err = loader.Unmarshal(&strict, WithErrorUnused(true))
	assert.Error(err, "ErrorUnused should reject bogus_key")
}

func TestSetDefault(t *testing.T) {
	assert := assert.New(t)

	loader, err := New(WithName("missing"), WithPaths(t.TempDir()))
	assert.NoError(err)
	loader.SetDefault("trace_dir", "/srv/traces")
	assert.NoError(loader.Load())

	assert.Equal("/srv/traces", loader.GetString("trace_dir"))

	var s Settings
	assert.NoError(loader.Unmarshal(&s))
	assert.Equal("/srv/traces", s.TraceDir)
}

func TestOnChangeCallback(t *testing.T) {
	assert := assert.New(t)
	tempDir := t.TempDir()

	path := setupTestFile(t, tempDir, "watch.yaml", "listen: \":8652\"\n")

	var fired atomic.Bool
	loader, err := New(
		WithFile(path),
		WithOnChangeCallback(func(c *Config) { fired.Store(true) }),
	)
	assert.NoError(err)
	assert.NoError(loader.Load())

	// 给 fsnotify 一点时间挂上 watch 再改文件。
	time.Sleep(100 * time.Millisecond)
	assert.NoError(os.WriteFile(path, []byte("listen: \":9000\"\n"), 0644))

	assert.Eventually(fired.Load, 3*time.Second, 50*time.Millisecond,
		"change callback should fire after rewrite")
	assert.Equal(":9000", loader.GetString("listen"))
}

func TestParseByteSize(t *testing.T) {
	assert := assert.New(t)

	cases := []struct {
		in   string
		want uint64
	}{
		{"4096", 4096},
		{"512B", 512},
		{"64KB", 64 << 10},
		{"10MB", 10 << 20},
		{"1GB", 1 << 30},
		{"2 kb", 2 << 10},
	}
	for _, tc := range cases {
		got, err := ParseByteSize(tc.in)
		assert.NoError(err, "size %q", tc.in)
		assert.Equal(tc.want, got, "size %q", tc.in)
	}

	for _, bad := range []string{"", "abcMB", "12TB", "MB"} {
		_, err := ParseByteSize(bad)
		assert.Error(err, "size %q should fail", bad)
	}
}
