package confloader

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

type sample struct {
	Server struct {
		Addr    string        `koanf:"addr"`
		Timeout time.Duration `koanf:"timeout"`
		TLS     bool          `koanf:"tls"`
	} `koanf:"server"`
	Storage struct {
		DataDir string `koanf:"data_dir"`
		Shards  int    `koanf:"shards"`
	} `koanf:"storage"`
	Internal string
}

func defaults() *sample {
	s := &sample{}
	s.Server.Addr = "127.0.0.1:5080"
	s.Server.Timeout = 5 * time.Second
	s.Storage.Shards = 16
	return s
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokstash.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	got := defaults()
	if err := NewLoader().Load(got); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, defaults()) {
		t.Errorf("defaults changed: %+v", got)
	}
}

func TestLoad_Layering(t *testing.T) {
	path := writeYAML(t, "server:\n  addr: 0.0.0.0:9000\n  timeout: 2s\nstorage:\n  shards: 4\n")
	t.Setenv("TOKSTASH_SERVER_TIMEOUT", "9s")
	t.Setenv("TOKSTASH_STORAGE_DATA_DIR", "/srv/tokstash")

	got := defaults()
	l := NewLoader(WithConfigFile(path), WithOverrides("storage.shards=64"))
	if err := l.Load(got); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got.Server.Addr != "0.0.0.0:9000" {
		t.Errorf("Addr = %q, want file value", got.Server.Addr)
	}
	if got.Server.Timeout != 9*time.Second {
		t.Errorf("Timeout = %v, want env value", got.Server.Timeout)
	}
	if got.Storage.DataDir != "/srv/tokstash" {
		t.Errorf("DataDir = %q, want env value through underscore key", got.Storage.DataDir)
	}
	if got.Storage.Shards != 64 {
		t.Errorf("Shards = %d, want override", got.Storage.Shards)
	}
	if got.Server.TLS {
		t.Error("TLS should keep its zero default")
	}
}

func TestLoad_CustomEnvPrefix(t *testing.T) {
	t.Setenv("STASH_SERVER_TLS", "true")
	t.Setenv("TOKSTASH_SERVER_ADDR", "ignored:1")

	got := defaults()
	if err := NewLoader(WithEnvPrefix("STASH_")).Load(got); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got.Server.TLS {
		t.Error("TLS not read from STASH_ prefix")
	}
	if got.Server.Addr != "127.0.0.1:5080" {
		t.Errorf("Addr = %q, TOKSTASH_ should be ignored", got.Server.Addr)
	}
}

func TestLoad_Errors(t *testing.T) {
	bad := writeYAML(t, "server: [unclosed\n")

	tests := []struct {
		name   string
		loader *Loader
		target any
	}{
		{"missing file", NewLoader(WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))), defaults()},
		{"bad yaml", NewLoader(WithConfigFile(bad)), defaults()},
		{"non-pointer target", NewLoader(), sample{}},
		{"pointer to non-struct", NewLoader(), new(int)},
		{"override without value", NewLoader(WithOverrides("server.addr")), defaults()},
		{"override bad duration", NewLoader(WithOverrides("server.timeout=soon")), defaults()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.loader.Load(tt.target); err == nil {
				t.Error("Load() succeeded, want error")
			}
		})
	}
}

func TestLoad_UnknownOverride(t *testing.T) {
	err := NewLoader(WithOverrides("server.port=1")).Load(defaults())
	if !errors.Is(err, ErrUnknownKey) {
		t.Errorf("err = %v, want ErrUnknownKey", err)
	}
}

func TestWalkKeys(t *testing.T) {
	var keys []string
	walkKeys(reflect.TypeOf(sample{}), "", func(p string) { keys = append(keys, p) })

	want := []string{"server.addr", "server.timeout", "server.tls", "storage.data_dir", "storage.shards"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
}
