package capture

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sofiworker/mpcap"
	"github.com/sofiworker/mpcap/packet"
)

func stubValidate(t *testing.T) {
	t.Helper()
	orig := validateIface
	validateIface = func(name string) error { return nil }
	t.Cleanup(func() { validateIface = orig })
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	stubValidate(t)
	return NewManager(WithTraceDir(t.TempDir()))
}

func TestEnableValidatesInterface(t *testing.T) {
	orig := validateIface
	validateIface = func(name string) error {
		return ErrInvalidInterface
	}
	defer func() { validateIface = orig }()

	m := NewManager(WithTraceDir(t.TempDir()))

	if _, err := m.Enable("", Config{}); !errors.Is(err, ErrInvalidInterface) {
		t.Fatalf("empty name: got %v, want ErrInvalidInterface", err)
	}
	if _, err := m.Enable("nosuch0", Config{}); !errors.Is(err, ErrInvalidInterface) {
		t.Fatalf("unknown interface: got %v, want ErrInvalidInterface", err)
	}
	if got := len(m.List()); got != 0 {
		t.Fatalf("tracer count after failed enable = %d, want 0", got)
	}
}

func TestEnableDisableLifecycle(t *testing.T) {
	m := newTestManager(t)

	tr, err := m.Enable("eth0", Config{MaxFileSize: 4096, MaxPackets: 100})
	if err != nil {
		t.Fatalf("enable: %v", err)
	}

	st, err := m.Status("eth0")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st.Active {
		t.Fatalf("expected active tracer")
	}
	if st.Interface != "eth0" {
		t.Fatalf("status interface = %q, want eth0", st.Interface)
	}
	if filepath.Base(st.Path) != "eth0.pcap" {
		t.Fatalf("default path = %q, want <dir>/eth0.pcap", st.Path)
	}

	tr.Capture(time.Unix(5, 0), &packet.Buffer{Data: []byte("hello")}, 0)
	if got := tr.Status().PacketsCaptured; got != 1 {
		t.Fatalf("packets captured = %d, want 1", got)
	}

	if err := m.Disable("eth0"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if tr.Session().Active() {
		t.Fatalf("session still active after disable")
	}
	if err := m.Disable("eth0"); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("second disable: got %v, want ErrNotEnabled", err)
	}

	r, err := mpcap.Map(st.Path)
	if err != nil {
		t.Fatalf("map trace: %v", err)
	}
	defer r.Close()
	if got := r.Header().Network; got != uint32(mpcap.PacketTypeEthernet) {
		t.Fatalf("trace network = %d, want ethernet", got)
	}
	pkt, err := r.ReadPacket()
	if err != nil {
		t.Fatalf("read packet: %v", err)
	}
	if string(pkt.Data) != "hello" {
		t.Fatalf("payload = %q, want hello", pkt.Data)
	}
}

func TestEnableTwice(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Enable("eth0", Config{MaxFileSize: 4096}); err != nil {
		t.Fatalf("first enable: %v", err)
	}
	if _, err := m.Enable("eth0", Config{MaxFileSize: 4096}); !errors.Is(err, ErrAlreadyEnabled) {
		t.Fatalf("second enable: got %v, want ErrAlreadyEnabled", err)
	}
}

func TestCaptureAutoFinalize(t *testing.T) {
	m := newTestManager(t)

	tr, err := m.Enable("eth0", Config{
		MaxFileSize: 4096,
		MaxPackets:  2,
		Manifest:    true,
	})
	if err != nil {
		t.Fatalf("enable: %v", err)
	}

	for i := 0; i < 3; i++ {
		tr.Capture(time.Unix(int64(i), 0), &packet.Buffer{Data: []byte("pkt")}, 0)
	}

	st := tr.Status()
	if st.Active {
		t.Fatalf("tracer still active after packet limit")
	}
	if st.PacketsCaptured != 2 {
		t.Fatalf("packets captured = %d, want 2", st.PacketsCaptured)
	}

	// 第三包被丢弃后会话已自动收尾，清单应当就位。
	man, err := LoadManifest(ManifestPath(st.Path))
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if man.Packets != 2 {
		t.Fatalf("manifest packets = %d, want 2", man.Packets)
	}
	if man.PacketType != "ethernet" {
		t.Fatalf("manifest packet type = %q, want ethernet", man.PacketType)
	}
	if err := man.Verify(); err != nil {
		t.Fatalf("verify manifest: %v", err)
	}

	// 再 Disable 只做摘牌，不应报错。
	if err := m.Disable("eth0"); err != nil {
		t.Fatalf("disable after auto finalize: %v", err)
	}
}

func TestCaptureSegmentedBuffer(t *testing.T) {
	m := newTestManager(t)

	tr, err := m.Enable("eth0", Config{MaxFileSize: 4096, MaxPackets: 10})
	if err != nil {
		t.Fatalf("enable: %v", err)
	}

	b := &packet.Buffer{
		Data: []byte("head"),
		Next: &packet.Buffer{Data: []byte("tail")},
	}
	tr.Capture(time.Unix(1, 0), b, 0)

	if err := m.Disable("eth0"); err != nil {
		t.Fatalf("disable: %v", err)
	}

	r, err := mpcap.Map(tr.Status().Path)
	if err != nil {
		t.Fatalf("map trace: %v", err)
	}
	defer r.Close()
	pkt, err := r.ReadPacket()
	if err != nil {
		t.Fatalf("read packet: %v", err)
	}
	if string(pkt.Data) != "headtail" {
		t.Fatalf("payload = %q, want headtail", pkt.Data)
	}
	if pkt.Header.OrigLen != 8 {
		t.Fatalf("orig len = %d, want 8", pkt.Header.OrigLen)
	}
}

func TestManagerList(t *testing.T) {
	m := newTestManager(t)

	for _, iface := range []string{"veth1", "eth0", "lo"} {
		if _, err := m.Enable(iface, Config{MaxFileSize: 4096}); err != nil {
			t.Fatalf("enable %s: %v", iface, err)
		}
	}

	statuses := m.List()
	if len(statuses) != 3 {
		t.Fatalf("list len = %d, want 3", len(statuses))
	}
	want := []string{"eth0", "lo", "veth1"}
	for i, st := range statuses {
		if st.Interface != want[i] {
			t.Fatalf("list[%d] = %q, want %q", i, st.Interface, want[i])
		}
	}

	if _, err := m.Status("missing0"); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("status of missing interface: got %v, want ErrNotEnabled", err)
	}
}

func TestManagerClose(t *testing.T) {
	m := newTestManager(t)

	var tracers []*Tracer
	for _, iface := range []string{"eth0", "eth1"} {
		tr, err := m.Enable(iface, Config{MaxFileSize: 4096})
		if err != nil {
			t.Fatalf("enable %s: %v", iface, err)
		}
		tracers = append(tracers, tr)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := len(m.List()); got != 0 {
		t.Fatalf("tracer count after close = %d, want 0", got)
	}
	for _, tr := range tracers {
		if tr.Session().Active() {
			t.Fatalf("%s session still active after close", tr.iface)
		}
	}
}

func TestExplicitPathOverridesDir(t *testing.T) {
	m := newTestManager(t)

	path := filepath.Join(t.TempDir(), "custom.pcap")
	tr, err := m.Enable("eth0", Config{Path: path, MaxFileSize: 4096})
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if tr.Status().Path != path {
		t.Fatalf("path = %q, want %q", tr.Status().Path, path)
	}
	if err := m.Disable("eth0"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("trace file missing: %v", err)
	}
}
