package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"syscall"
	"testing"

	"github.com/goliatone/go-cfgfilter/logger"
	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultErrorFilter(t *testing.T) {
	custom := errors.New("custom")

	tests := []struct {
		name    string
		filter  ErrorFilter
		err     error
		ignored bool
	}{
		{"nil error", DefaultErrorFilter(), nil, false},
		{"not exist", DefaultErrorFilter(), fs.ErrNotExist, true},
		{"path error", DefaultErrorFilter(), &fs.PathError{Op: "open", Path: "x", Err: syscall.ENOENT}, true},
		{"wrapped not exist", DefaultErrorFilter(), fmt.Errorf("load: %w", fs.ErrNotExist), true},
		{"other error", DefaultErrorFilter(), errors.New("boom"), false},
		{"allow listed", DefaultErrorFilter(custom), fmt.Errorf("load: %w", custom), true},
		{"not allow listed", DefaultErrorFilter(custom), errors.New("other"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ignored, tt.filter(tt.err))
		})
	}
}

func TestProviderPriorities(t *testing.T) {
	c := New(&testApp{}).WithLogger(logger.NopLogger{})

	tests := []struct {
		name     string
		builder  ProviderBuilder[*testApp]
		kind     ProviderType
		priority int
	}{
		{"defaults", DefaultValuesProvider[*testApp](nil), ProviderTypeDefault, 0},
		{"struct", StructProvider[*testApp](testApp{}), ProviderTypeStruct, 10},
		{"file", FileProvider[*testApp]("app.toml"), ProviderTypeLocalFile, 20},
		{"env", EnvProvider[*testApp]("APP_", "__"), ProviderTypeEnv, 30},
		{"offset", EnvProvider[*testApp]("APP_", "__", PriorityEnv.WithOffset(-35)), ProviderTypeEnv, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.builder(c)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, p.Type())
			assert.Equal(t, tt.priority, p.Priority())
			assert.NoError(t, p.Validate())
		})
	}
}

func TestStructProvider_Nil(t *testing.T) {
	c := New(&testApp{}).WithLogger(logger.NopLogger{})

	_, err := StructProvider[*testApp](nil)(c)
	assert.Error(t, err)
}

func TestEnvProviderFrom_KeyMapping(t *testing.T) {
	environ := func() []string {
		return []string{
			"APP_NAME=svc",
			"APP_DATABASE__DSN=postgres://db",
			"APP_PORT=8080",
			"OTHER_NAME=ignored",
		}
	}

	c := New(&testApp{}).WithLogger(logger.NopLogger{})
	p, err := EnvProviderFrom[*testApp](environ, "APP_", "__")(c)
	require.NoError(t, err)

	k := koanf.New(".")
	require.NoError(t, p.Load(context.Background(), k))

	assert.Equal(t, "svc", k.String("name"))
	assert.Equal(t, "postgres://db", k.String("database.dsn"))
	assert.Equal(t, 8080, k.Int("port"))
	assert.False(t, k.Exists("other_name"))
}

func TestLoad_RejectsUnknownProviderType(t *testing.T) {
	bogus := func(c *Container[*testApp]) (Provider, error) {
		return &Loader{providerType: "ftp"}, nil
	}

	err := New(&testApp{}).
		WithConfigPath("").
		WithLogger(logger.NopLogger{}).
		WithProvider(bogus).
		Load(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid provider source type")
}
