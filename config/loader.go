package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/golobby/cast"
)

// EnvPrefix is prepended to every field's toml tag, upper-cased, to form the
// environment variable name checked by applyEnvOverrides — e.g.
// SMARTX_MSTACK_AMOUNT overrides MStackAmount.
const EnvPrefix = "SMARTX"

// Load reads path as TOML into a copy of Default, applies any SMARTX_*
// environment overrides on top, and validates the result. A missing file is
// not an error: Load falls back to Default with environment overrides
// applied, matching a board that ships with no config file at all.
func Load(path string) (Options, error) {
	opts := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &opts); err != nil {
				return Options{}, fmt.Errorf("config: decode %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Options{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&opts); err != nil {
		return Options{}, fmt.Errorf("config: env override: %w", err)
	}

	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// applyEnvOverrides walks opts' fields by their toml tag and, for each one
// with a matching SMARTX_<TAG> environment variable set, coerces the string
// value onto the field with golobby/cast — the same per-field reflection
// and conversion the teacher's affixed environment feeder uses, simplified
// down to the flat, tag-keyed struct config.Options actually is.
func applyEnvOverrides(opts *Options) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("toml")
		if tag == "" {
			continue
		}
		envName := EnvPrefix + "_" + strings.ToUpper(tag)
		raw, ok := os.LookupEnv(envName)
		if !ok || raw == "" {
			continue
		}
		converted, err := cast.FromType(raw, field.Type)
		if err != nil {
			return fmt.Errorf("%s: cannot convert %q to %v: %w", envName, raw, field.Type, err)
		}
		v.Field(i).Set(reflect.ValueOf(converted))
	}
	return nil
}

// Watcher reloads Options from a TOML file whenever it changes on disk. It
// wraps fsnotify the way a hot-reloadable board configuration would: the
// runtime itself never picks up a changed pool size without a restart (the
// pools are already allocated), but the ticker period (TICKER), the one
// Options field with no allocation behind it, can. Callers that only need a
// one-shot load should use Load directly instead.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	onLoad  func(Options, error)
	done    chan struct{}
}

// NewWatcher starts watching path's directory for changes to path itself,
// calling onLoad with the freshly reloaded Options (or an error) every time
// the file is written. The directory, not the file, is watched because
// editors commonly replace a file via rename-over rather than an in-place
// write, which most filesystem watchers only see as an event on the
// containing directory.
func NewWatcher(path string, onLoad func(Options, error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: new watcher: %w", err)
	}
	dir := dirOf(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", dir, err)
	}

	w := &Watcher{path: path, watcher: fw, onLoad: onLoad, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			opts, err := Load(w.path)
			w.onLoad(opts, err)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.onLoad(Options{}, err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watch goroutine and releases the underlying fsnotify
// watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func dirOf(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "."
	}
	return path[:i]
}
