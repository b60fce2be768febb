package guest

import (
	"sync"

	"github.com/wippyai/fsplugin/codec"
	"github.com/wippyai/fsplugin/errors"
	"github.com/wippyai/fsplugin/filesystem"
	"github.com/wippyai/fsplugin/handle"
)

// Dispatcher binds one plugin instance to the entry-point semantics:
// config decoding, the initialized gate, JSON result encoding, and
// handle routing. Filesystems that do not implement HandleFS get a
// handle table wrapped around them.
type Dispatcher struct {
	fs          filesystem.FileSystem
	handles     filesystem.HandleFS
	mu          sync.Mutex
	initialized bool
}

// NewDispatcher wires fs into a dispatcher.
func NewDispatcher(fs filesystem.FileSystem) *Dispatcher {
	d := &Dispatcher{fs: fs}
	if h, ok := fs.(filesystem.HandleFS); ok {
		d.handles = h
	} else {
		d.handles = handle.Wrap(fs)
	}
	return d
}

// ready gates every filesystem and handle operation: nothing but the
// lifecycle runs before a successful Initialize.
func (d *Dispatcher) ready() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return errors.Other("plugin not initialized")
	}
	return nil
}

func (d *Dispatcher) Name() string {
	return d.fs.Name()
}

func (d *Dispatcher) Readme() string {
	return d.fs.Readme()
}

// ConfigParams returns the declared parameters as wire JSON.
func (d *Dispatcher) ConfigParams() ([]byte, error) {
	return codec.EncodeConfigParams(d.fs.ConfigParams())
}

// Validate decodes raw config JSON and asks the plugin to check it.
func (d *Dispatcher) Validate(raw []byte) error {
	cfg, err := codec.DecodeConfig(raw)
	if err != nil {
		return err
	}
	return d.fs.Validate(cfg)
}

// Initialize decodes raw config JSON, hands it to the plugin, and opens
// the gate for filesystem operations. Initializing twice fails.
func (d *Dispatcher) Initialize(raw []byte) error {
	cfg, err := codec.DecodeConfig(raw)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initialized {
		return errors.Other("plugin already initialized")
	}
	if err := d.fs.Initialize(cfg); err != nil {
		return err
	}
	d.initialized = true
	return nil
}

// Shutdown closes the gate and releases plugin resources. Safe to call
// on an uninitialized instance.
func (d *Dispatcher) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return nil
	}
	d.initialized = false
	return d.fs.Shutdown()
}

func (d *Dispatcher) Read(path string, offset, size int64) ([]byte, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	return d.fs.Read(path, offset, size)
}

func (d *Dispatcher) Write(path string, data []byte, offset int64, flags filesystem.WriteFlag) (int64, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	return d.fs.Write(path, data, offset, flags)
}

func (d *Dispatcher) Create(path string) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.fs.Create(path)
}

func (d *Dispatcher) Mkdir(path string, mode uint32) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.fs.Mkdir(path, mode)
}

func (d *Dispatcher) Remove(path string) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.fs.Remove(path)
}

func (d *Dispatcher) RemoveAll(path string) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.fs.RemoveAll(path)
}

// Stat returns the path's file information as wire JSON.
func (d *Dispatcher) Stat(path string) ([]byte, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	fi, err := d.fs.Stat(path)
	if err != nil {
		return nil, err
	}
	return codec.EncodeFileInfo(fi)
}

// Readdir returns the directory listing as a wire JSON array.
func (d *Dispatcher) Readdir(path string) ([]byte, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	infos, err := d.fs.Readdir(path)
	if err != nil {
		return nil, err
	}
	return codec.EncodeFileInfos(infos)
}

func (d *Dispatcher) Rename(oldPath, newPath string) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.fs.Rename(oldPath, newPath)
}

func (d *Dispatcher) Chmod(path string, mode uint32) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.fs.Chmod(path, mode)
}

// Open issues a handle token for path.
func (d *Dispatcher) Open(path string, flags filesystem.OpenFlag, mode uint32) (string, error) {
	if err := d.ready(); err != nil {
		return "", err
	}
	return d.handles.Open(path, flags, mode)
}

func (d *Dispatcher) HandleRead(id string, buf []byte) (int, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	return d.handles.HandleRead(id, buf)
}

func (d *Dispatcher) HandleReadAt(id string, buf []byte, offset int64) (int, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	return d.handles.HandleReadAt(id, buf, offset)
}

func (d *Dispatcher) HandleWrite(id string, data []byte) (int, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	return d.handles.HandleWrite(id, data)
}

func (d *Dispatcher) HandleWriteAt(id string, data []byte, offset int64) (int, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	return d.handles.HandleWriteAt(id, data, offset)
}

func (d *Dispatcher) HandleSeek(id string, offset int64, whence int) (int64, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	return d.handles.HandleSeek(id, offset, whence)
}

func (d *Dispatcher) HandleSync(id string) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.handles.HandleSync(id)
}

// HandleStat returns the handle's file information as wire JSON.
func (d *Dispatcher) HandleStat(id string) ([]byte, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	fi, err := d.handles.HandleStat(id)
	if err != nil {
		return nil, err
	}
	return codec.EncodeFileInfo(fi)
}

// HandleInfo returns the handle's path and flags as wire JSON.
func (d *Dispatcher) HandleInfo(id string) ([]byte, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	path, flags, err := d.handles.HandleInfo(id)
	if err != nil {
		return nil, err
	}
	return codec.EncodeHandleInfo(path, flags)
}

func (d *Dispatcher) HandleClose(id string) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.handles.HandleClose(id)
}
