package fsplugin

// Export names of the plugin entry points. Both the guest shims and the
// host loader resolve functions by these exact names.
const (
	ExportPluginNew          = "plugin_new"
	ExportPluginName         = "plugin_name"
	ExportPluginReadme       = "plugin_get_readme"
	ExportPluginConfigParams = "plugin_get_config_params"
	ExportPluginValidate     = "plugin_validate"
	ExportPluginInitialize   = "plugin_initialize"
	ExportPluginShutdown     = "plugin_shutdown"

	ExportFSRead      = "fs_read"
	ExportFSWrite     = "fs_write"
	ExportFSCreate    = "fs_create"
	ExportFSMkdir     = "fs_mkdir"
	ExportFSRemove    = "fs_remove"
	ExportFSRemoveAll = "fs_remove_all"
	ExportFSStat      = "fs_stat"
	ExportFSReaddir   = "fs_readdir"
	ExportFSRename    = "fs_rename"
	ExportFSChmod     = "fs_chmod"

	ExportOpen          = "fs_open"
	ExportHandleRead    = "fs_handle_read"
	ExportHandleReadAt  = "fs_handle_read_at"
	ExportHandleWrite   = "fs_handle_write"
	ExportHandleWriteAt = "fs_handle_write_at"
	ExportHandleSeek    = "fs_handle_seek"
	ExportHandleSync    = "fs_handle_sync"
	ExportHandleStat    = "fs_handle_stat"
	ExportHandleInfo    = "fs_handle_info"
	ExportHandleClose   = "fs_handle_close"

	ExportMalloc          = "malloc"
	ExportFree            = "free"
	ExportInputBufferPtr  = "get_input_buffer_ptr"
	ExportOutputBufferPtr = "get_output_buffer_ptr"
	ExportSharedBufSize   = "get_shared_buffer_size"
)

// SharedBufferSize is the capacity of each of the two preallocated scratch
// buffers (input: host to guest, output: guest to host). Payloads that fit
// go through the scratch buffers without a malloc/free round trip.
const SharedBufferSize = 64 * 1024

// HostModule is the import namespace for the optional host services
// (host filesystem passthrough, outbound HTTP).
const HostModule = "env"

// Host import names.
const (
	HostFSRead      = "host_fs_read"
	HostFSWrite     = "host_fs_write"
	HostFSStat      = "host_fs_stat"
	HostFSReaddir   = "host_fs_readdir"
	HostFSCreate    = "host_fs_create"
	HostFSMkdir     = "host_fs_mkdir"
	HostFSRemove    = "host_fs_remove"
	HostFSRemoveAll = "host_fs_remove_all"
	HostFSRename    = "host_fs_rename"
	HostHTTPRequest = "host_http_request"
)

// Memory is the host's view of guest linear memory.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// Allocator allocates and releases guest heap memory from the host side,
// through the plugin's exported malloc/free pair. Every pointer obtained
// from Alloc or received from the guest must be returned exactly once via
// Free with the same size.
type Allocator interface {
	Alloc(size uint32) (uint32, error)
	Free(ptr uint32, size uint32) error
}
