package guest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/fsplugin/codec"
	fserrors "github.com/wippyai/fsplugin/errors"
	"github.com/wippyai/fsplugin/filesystem"
	"github.com/wippyai/fsplugin/memfs"
)

// configurableFS records what the lifecycle hands it.
type configurableFS struct {
	*memfs.FS
	gotConfig filesystem.Config
	shutdowns int
}

func (c *configurableFS) ConfigParams() []filesystem.ConfigParam {
	return []filesystem.ConfigParam{
		{Name: "greeting", Type: "string", Required: true, Description: "text served at /hello.txt"},
	}
}

func (c *configurableFS) Validate(cfg filesystem.Config) error {
	if !cfg.Has("greeting") {
		return fserrors.InvalidInput("greeting is required")
	}
	return nil
}

func (c *configurableFS) Initialize(cfg filesystem.Config) error {
	c.gotConfig = cfg
	return nil
}

func (c *configurableFS) Shutdown() error {
	c.shutdowns++
	return nil
}

func initialized(t *testing.T) *Dispatcher {
	t.Helper()
	d := NewDispatcher(memfs.New())
	require.NoError(t, d.Initialize(nil))
	return d
}

func TestOperationsGatedOnInitialize(t *testing.T) {
	d := NewDispatcher(memfs.New())

	_, err := d.Read("/f", 0, -1)
	require.EqualError(t, err, "plugin not initialized")
	_, err = d.Stat("/")
	require.Error(t, err)
	_, err = d.Open("/f", filesystem.ReadOnly, 0)
	require.Error(t, err)

	require.NoError(t, d.Initialize(nil))
	_, err = d.Stat("/")
	require.NoError(t, err)
}

func TestInitializeTwiceFails(t *testing.T) {
	d := initialized(t)
	err := d.Initialize(nil)
	require.EqualError(t, err, "plugin already initialized")
}

func TestShutdownClosesGate(t *testing.T) {
	fs := &configurableFS{FS: memfs.New()}
	d := NewDispatcher(fs)
	require.NoError(t, d.Initialize([]byte(`{"greeting":"hi"}`)))
	require.NoError(t, d.Shutdown())
	require.Equal(t, 1, fs.shutdowns)

	_, err := d.Stat("/")
	require.EqualError(t, err, "plugin not initialized")

	// Shutdown on an already-stopped instance is a no-op.
	require.NoError(t, d.Shutdown())
	require.Equal(t, 1, fs.shutdowns)
}

func TestConfigFlow(t *testing.T) {
	fs := &configurableFS{FS: memfs.New()}
	d := NewDispatcher(fs)

	data, err := d.ConfigParams()
	require.NoError(t, err)
	params, err := codec.DecodeConfigParams(data)
	require.NoError(t, err)
	require.Len(t, params, 1)
	require.Equal(t, "greeting", params[0].Name)

	err = d.Validate([]byte(`{}`))
	require.Equal(t, fserrors.KindInvalidInput, fserrors.KindOf(err))
	require.NoError(t, d.Validate([]byte(`{"greeting":"hello"}`)))

	err = d.Validate([]byte(`{broken`))
	require.Equal(t, fserrors.KindInvalidInput, fserrors.KindOf(err))

	require.NoError(t, d.Initialize([]byte(`{"greeting":"hello"}`)))
	require.Equal(t, "hello", fs.gotConfig.GetString("greeting"))
}

func TestStatAndReaddirAreWireJSON(t *testing.T) {
	d := initialized(t)
	_, err := d.Write("/a.txt", []byte("abc"), 0, filesystem.WriteCreate)
	require.NoError(t, err)

	data, err := d.Stat("/a.txt")
	require.NoError(t, err)
	fi, err := codec.DecodeFileInfo(data)
	require.NoError(t, err)
	require.Equal(t, "a.txt", fi.Name)
	require.Equal(t, int64(3), fi.Size)

	data, err = d.Readdir("/")
	require.NoError(t, err)
	infos, err := codec.DecodeFileInfos(data)
	require.NoError(t, err)
	require.Len(t, infos, 1)

	_, err = d.Stat("/ghost")
	require.Equal(t, fserrors.KindNotFound, fserrors.KindOf(err))
}

func TestHandleFlow(t *testing.T) {
	d := initialized(t)

	id, err := d.Open("/notes.txt", filesystem.ReadWrite|filesystem.Create, 0o644)
	require.NoError(t, err)

	n, err := d.HandleWrite(id, []byte("first line"))
	require.NoError(t, err)
	require.Equal(t, 10, n)

	pos, err := d.HandleSeek(id, 0, 0)
	require.NoError(t, err)
	require.Zero(t, pos)

	buf := make([]byte, 5)
	n, err = d.HandleRead(id, buf)
	require.NoError(t, err)
	require.Equal(t, "first", string(buf[:n]))

	data, err := d.HandleInfo(id)
	require.NoError(t, err)
	path, flags, err := codec.DecodeHandleInfo(data)
	require.NoError(t, err)
	require.Equal(t, "/notes.txt", path)
	require.Equal(t, filesystem.ReadWrite|filesystem.Create, flags)

	data, err = d.HandleStat(id)
	require.NoError(t, err)
	fi, err := codec.DecodeFileInfo(data)
	require.NoError(t, err)
	require.Equal(t, int64(10), fi.Size)

	require.NoError(t, d.HandleClose(id))
	_, err = d.HandleRead(id, buf)
	require.Equal(t, fserrors.KindNotFound, fserrors.KindOf(err))
}

func TestRegister(t *testing.T) {
	current = nil
	_, err := dispatcher()
	require.EqualError(t, err, "no plugin registered")
	require.False(t, Registered())

	Register(memfs.New())
	require.True(t, Registered())
	d, err := dispatcher()
	require.NoError(t, err)
	require.Equal(t, "memfs", d.Name())
	current = nil
}
