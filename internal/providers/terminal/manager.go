package terminal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/GriffinCanCode/chanbridge/internal/domain/registry"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/logging"
)

// ErrNoDevice is returned for a channel without a device.
var ErrNoDevice = errors.New("no device for channel")

// Config describes where and how devices are exposed.
type Config struct {
	// Dir holds one symlink per device.
	Dir string
	// Prefix names the links: <Prefix><index>.
	Prefix    string
	HighWater int
	LowWater  int
	Retry     time.Duration
}

// DefaultConfig returns the stock device layout.
func DefaultConfig() Config {
	return Config{
		Dir:       filepath.Join(os.TempDir(), "chanbridge"),
		Prefix:    "smd",
		HighWater: 64 * 1024,
		LowWater:  16 * 1024,
		Retry:     50 * time.Millisecond,
	}
}

// Manager owns one pty-backed device per channel.
type Manager struct {
	cfg    Config
	bridge Bridge
	fs     afero.Fs
	logger *logging.Logger

	mu      sync.Mutex
	devices map[int]*managed
}

// managed is a device plus the pty resources behind it.
type managed struct {
	dev   *Device
	slave *os.File
	state *term.State
	link  string
}

// NewManager creates a manager that creates links on the host filesystem.
func NewManager(b Bridge, cfg Config) *Manager {
	return &Manager{
		cfg:     cfg,
		bridge:  b,
		fs:      afero.NewOsFs(),
		logger:  logging.NewNop(),
		devices: make(map[int]*managed),
	}
}

// WithLogger sets the logger
func (m *Manager) WithLogger(logger *logging.Logger) *Manager {
	m.logger = logger.Named("terminal")
	return m
}

// WithFs replaces the filesystem used for the device directory and links.
func (m *Manager) WithFs(fs afero.Fs) *Manager {
	m.fs = fs
	return m
}

// Start creates a pty per descriptor, links it under Dir and attaches it to
// the bridge. On error everything created so far is torn down.
func (m *Manager) Start(descs []registry.ChannelDescriptor) error {
	if err := m.fs.MkdirAll(m.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create device dir: %w", err)
	}

	for _, desc := range descs {
		if err := m.add(desc); err != nil {
			return multierr.Append(fmt.Errorf("start %s: %w", desc.Name, err), m.Close())
		}
	}
	return nil
}

func (m *Manager) add(desc registry.ChannelDescriptor) error {
	master, slave, err := pty.Open()
	if err != nil {
		return fmt.Errorf("open pty: %w", err)
	}

	// Raw 8-bit line: no echo, no canonical mode, no output processing.
	state, err := term.MakeRaw(int(slave.Fd()))
	if err != nil {
		master.Close()
		slave.Close()
		return fmt.Errorf("set raw mode: %w", err)
	}

	link := m.LinkPath(desc.Index)
	if err := m.link(slave.Name(), link); err != nil {
		master.Close()
		slave.Close()
		return err
	}

	dev := NewDevice(desc.Index, desc.Name, master, m.bridge, DeviceOptions{
		HighWater: m.cfg.HighWater,
		LowWater:  m.cfg.LowWater,
		Retry:     m.cfg.Retry,
		Logger:    m.logger,
	})
	mg := &managed{dev: dev, slave: slave, state: state, link: link}

	m.mu.Lock()
	m.devices[desc.Index] = mg
	m.mu.Unlock()

	if err := dev.Attach(); err != nil {
		return fmt.Errorf("attach: %w", err)
	}

	m.logger.Info("device ready",
		zap.Int("channel", desc.Index),
		zap.String("channel_name", desc.Name),
		zap.String("path", slave.Name()),
		zap.String("link", link))
	return nil
}

func (m *Manager) link(target, link string) error {
	linker, ok := m.fs.(afero.Linker)
	if !ok {
		return errors.New("filesystem cannot create links")
	}
	if err := m.fs.Remove(link); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale link %s: %w", link, err)
	}
	if err := linker.SymlinkIfPossible(target, link); err != nil {
		return fmt.Errorf("link %s: %w", link, err)
	}
	return nil
}

// LinkPath returns the link for a channel index.
func (m *Manager) LinkPath(index int) string {
	return filepath.Join(m.cfg.Dir, m.cfg.Prefix+strconv.Itoa(index))
}

// Device returns the device for index.
func (m *Manager) Device(index int) (*Device, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mg, ok := m.devices[index]
	if !ok {
		return nil, false
	}
	return mg.dev, true
}

// Reattach attaches a device again, typically after a peer hangup.
func (m *Manager) Reattach(index int) error {
	dev, ok := m.Device(index)
	if !ok {
		return fmt.Errorf("%w %d", ErrNoDevice, index)
	}
	return dev.Attach()
}

// Devices returns every device ordered by index.
func (m *Manager) Devices() []DeviceInfo {
	m.mu.Lock()
	list := make([]*managed, 0, len(m.devices))
	for _, mg := range m.devices {
		list = append(list, mg)
	}
	m.mu.Unlock()

	out := make([]DeviceInfo, 0, len(list))
	for _, mg := range list {
		info := mg.dev.Info()
		info.Path = mg.slave.Name()
		info.Link = mg.link
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Close detaches every device, closes the ptys and removes the links.
func (m *Manager) Close() error {
	m.mu.Lock()
	devices := m.devices
	m.devices = make(map[int]*managed)
	m.mu.Unlock()

	var errs error
	for _, mg := range devices {
		errs = multierr.Append(errs, mg.dev.Close())
		if mg.state != nil {
			_ = term.Restore(int(mg.slave.Fd()), mg.state)
		}
		errs = multierr.Append(errs, mg.slave.Close())
		if err := m.fs.Remove(mg.link); err != nil && !os.IsNotExist(err) {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
