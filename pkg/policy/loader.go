package policy

import (
	"path/filepath"
	"plugin"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/mochi-hpc/mofka-sub001/internal/errext"
)

// LibraryDir is searched for a bare library filename given in a
// "key:lib" policy name, the way a dynamic-loader search path would
// be consulted. It defaults to the current directory. Set it from
// internal/config.Daemon.PluginLibraryDir at daemon startup.
var LibraryDir string

// PluginFS backs the existence check performed before attaching a
// shared library; tests substitute an afero.MemMapFs.
var PluginFS afero.Fs = afero.NewOsFs()

var loadOnce sync.Map // lib path -> *sync.Once

// resolve splits a policy name of the form "key" or "key:lib" and,
// when a library is given and key is not yet registered, attaches
// the library so its init-time registration can run (spec.md §6).
func resolve(name string, registered func(key string) bool) (string, error) {
	key, lib, hasLib := strings.Cut(name, ":")
	if !hasLib {
		return key, nil
	}
	if registered(key) {
		return key, nil
	}
	if err := attach(lib); err != nil {
		return "", errext.Wrap(errext.PluginLoadFailed, err)
	}
	if !registered(key) {
		return "", errext.New(errext.UnknownPlugin, "library %q loaded but did not register %q", lib, key)
	}
	return key, nil
}

// attach loads a shared library exactly once per process, via the
// stdlib plugin package (the only mechanism in the pack for runtime
// dlopen-style loading; see DESIGN.md).
func attach(lib string) error {
	path := lib
	if !filepath.IsAbs(path) && LibraryDir != "" {
		path = filepath.Join(LibraryDir, lib)
	}
	if exists, err := afero.Exists(PluginFS, path); err == nil && !exists {
		return errext.New(errext.PluginLoadFailed, "plugin library not found: %s", path)
	}

	onceVal, _ := loadOnce.LoadOrStore(path, &sync.Once{})
	once := onceVal.(*sync.Once)

	var loadErr error
	once.Do(func() {
		_, loadErr = plugin.Open(path)
	})
	return loadErr
}
