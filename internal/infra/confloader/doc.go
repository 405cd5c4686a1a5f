// Package confloader reads layered configuration with koanf and watches
// the configuration file with fsnotify.
//
// A Loader starts from the values already present in the target struct,
// then applies the YAML file, TOKSTASH_ environment variables and finally
// explicit key=value overrides. Environment names are resolved against the
// struct's koanf tags, so TOKSTASH_STORAGE_DATA_DIR reaches storage.data_dir
// rather than storage.data.dir.
//
// A Watcher reports debounced changes to individual files.
package confloader
