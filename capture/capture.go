// Package capture 按网卡开关追踪：校验接口、托管 mpcap 会话、
// 在会话收尾时落清单并更新指标。
package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/sofiworker/mpcap"
	"github.com/sofiworker/mpcap/logging"
	"github.com/sofiworker/mpcap/packet"
)

// Config 单网卡追踪配置。零值字段取默认值。
type Config struct {
	Path        string           `json:"path"`
	MaxPackets  uint32           `json:"max_packets"`
	MaxFileSize uint64           `json:"max_file_size"`
	SnapLen     uint32           `json:"snap_len"`
	PacketType  mpcap.PacketType `json:"packet_type"`
	ThreadSafe  bool             `json:"thread_safe"`
	Manifest    bool             `json:"manifest"`
}

// Status 是一条追踪的运行时快照。
type Status struct {
	Interface       string    `json:"interface"`
	Path            string    `json:"path"`
	Active          bool      `json:"active"`
	PacketsCaptured uint32    `json:"packets_captured"`
	BytesWritten    uint64    `json:"bytes_written"`
	StartedAt       time.Time `json:"started_at"`
}

// Manager 维护每网卡至多一条追踪。
type Manager struct {
	mu       sync.RWMutex
	tracers  map[string]*Tracer
	log      *logging.Logger
	metrics  *metrics
	dir      string
	validate func(name string) error
}

type Option func(*Manager)

func WithLogger(log *logging.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithTraceDir 设置未显式给出 Path 时追踪文件的落盘目录。
func WithTraceDir(dir string) Option {
	return func(m *Manager) {
		m.dir = dir
	}
}

// WithMeter 注入指标 Meter，默认用全局 otel Meter。
func WithMeter(meter metric.Meter) Option {
	return func(m *Manager) {
		m.metrics = newMetrics(meter, m.log)
	}
}

// WithValidator 替换接口校验。宿主自带接口表（比如用户态转发面）时，
// 用它代替内核查询。
func WithValidator(fn func(name string) error) Option {
	return func(m *Manager) {
		if fn != nil {
			m.validate = fn
		}
	}
}

// validateIface 可在测试里替换。
var validateIface = validateInterface

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		tracers: make(map[string]*Tracer),
		log:     logging.Nop(),
		dir:     os.TempDir(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = newMetrics(defaultMeter(), m.log)
	}
	return m
}

func (m *Manager) normalizeConfig(iface string, cfg Config) Config {
	if cfg.Path == "" {
		cfg.Path = filepath.Join(m.dir, iface+".pcap")
	}
	if cfg.PacketType == mpcap.PacketTypeNull {
		// 网卡上抓到的是以太网帧，null 留给直接用引擎的场景。
		cfg.PacketType = mpcap.PacketTypeEthernet
	}
	if cfg.SnapLen == 0 {
		cfg.SnapLen = mpcap.DefaultSnapLen
	}
	return cfg
}

// Enable 在 iface 上开启追踪。接口必须存在；
// 同一网卡已有追踪时返回 ErrAlreadyEnabled。
func (m *Manager) Enable(iface string, cfg Config) (*Tracer, error) {
	if iface == "" {
		return nil, fmt.Errorf("capture: empty interface name: %w", ErrInvalidInterface)
	}
	check := m.validate
	if check == nil {
		check = validateIface
	}
	if err := check(iface); err != nil {
		return nil, err
	}
	cfg = m.normalizeConfig(iface, cfg)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tracers[iface]; ok {
		return nil, fmt.Errorf("capture: %s: %w", iface, ErrAlreadyEnabled)
	}

	sess, err := mpcap.Open(mpcap.Config{
		FileName:          cfg.Path,
		NPacketsToCapture: cfg.MaxPackets,
		MaxFileSize:       cfg.MaxFileSize,
		PacketType:        cfg.PacketType,
		SnapLen:           cfg.SnapLen,
		ThreadSafe:        cfg.ThreadSafe,
	})
	if err != nil {
		return nil, fmt.Errorf("capture: enable %s: %w", iface, err)
	}

	t := &Tracer{
		iface:     iface,
		cfg:       cfg,
		session:   sess,
		mgr:       m,
		startedAt: time.Now().UTC(),
	}
	m.tracers[iface] = t
	m.metrics.sessionOpened(iface)
	m.log.Infow("capture enabled", "interface", iface, "path", cfg.Path, "packet_type", cfg.PacketType.String())
	return t, nil
}

// Disable 停止 iface 上的追踪并收尾。
func (m *Manager) Disable(iface string) error {
	m.mu.Lock()
	t, ok := m.tracers[iface]
	if ok {
		delete(m.tracers, iface)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("capture: %s: %w", iface, ErrNotEnabled)
	}
	return t.finalize()
}

// Status 返回 iface 上追踪的快照。
func (m *Manager) Status(iface string) (Status, error) {
	m.mu.RLock()
	t, ok := m.tracers[iface]
	m.mu.RUnlock()

	if !ok {
		return Status{}, fmt.Errorf("capture: %s: %w", iface, ErrNotEnabled)
	}
	return t.Status(), nil
}

// List 返回全部追踪的快照，按网卡名排序。
func (m *Manager) List() []Status {
	m.mu.RLock()
	statuses := make([]Status, 0, len(m.tracers))
	for _, t := range m.tracers {
		statuses = append(statuses, t.Status())
	}
	m.mu.RUnlock()

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Interface < statuses[j].Interface
	})
	return statuses
}

// Close 收尾所有追踪。第一个错误胜出，但每条都会收尾。
func (m *Manager) Close() error {
	m.mu.Lock()
	tracers := make([]*Tracer, 0, len(m.tracers))
	for _, t := range m.tracers {
		tracers = append(tracers, t)
	}
	m.tracers = make(map[string]*Tracer)
	m.mu.Unlock()

	var firstErr error
	for _, t := range tracers {
		if err := t.finalize(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Tracer 是一条运行中的追踪。
type Tracer struct {
	iface     string
	cfg       Config
	session   *mpcap.Session
	mgr       *Manager
	startedAt time.Time
	once      sync.Once
}

// Capture 是逐包热路径：把一个分段帧写入追踪文件。
// snap 限制本条存储的字节数，0 表示用配置的截获长度。
// 会话在本条之后自动关闭时，就地收尾。
func (t *Tracer) Capture(ts time.Time, b *packet.Buffer, snap uint32) {
	if b == nil {
		return
	}
	if snap == 0 {
		snap = t.cfg.SnapLen
	}

	before := t.session.PacketsCaptured()
	now := float64(ts.UnixNano()) / float64(time.Second)
	t.session.AddBuffer(now, b, snap)

	if t.session.PacketsCaptured() > before {
		t.mgr.metrics.packetCaptured(t.iface, b.TotalLength())
	}
	if !t.session.Active() {
		_ = t.finalize()
	}
}

// Session 暴露底层会话，诊断用。
func (t *Tracer) Session() *mpcap.Session {
	return t.session
}

func (t *Tracer) Status() Status {
	return Status{
		Interface:       t.iface,
		Path:            t.cfg.Path,
		Active:          t.session.Active(),
		PacketsCaptured: t.session.PacketsCaptured(),
		BytesWritten:    t.session.BytesWritten(),
		StartedAt:       t.startedAt,
	}
}

// finalize 关会话、落清单、更新指标。只会执行一次。
func (t *Tracer) finalize() error {
	var err error
	t.once.Do(func() {
		err = t.session.Close()
		t.mgr.metrics.sessionClosed(t.iface)

		packets := t.session.PacketsCaptured()
		bytes := t.session.BytesWritten()

		if t.cfg.Manifest {
			man := Manifest{
				Interface:  t.iface,
				Path:       t.cfg.Path,
				PacketType: t.cfg.PacketType.String(),
				Packets:    packets,
				Bytes:      bytes,
				StartedAt:  t.startedAt,
				EndedAt:    time.Now().UTC(),
			}
			if merr := WriteManifest(ManifestPath(t.cfg.Path), man); merr != nil {
				t.mgr.log.Errorw("manifest write failed", "interface", t.iface, "error", merr)
				if err == nil {
					err = merr
				}
			}
		}

		t.mgr.log.Infow("capture finished",
			"interface", t.iface, "packets", packets, "bytes", bytes, "path", t.cfg.Path)
	})
	return err
}
