package chat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	conf, err := LoadConfig(filepath.Join(dir, "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), conf)

	p := filepath.Join(dir, "chat.yaml")
	require.NoError(t, os.WriteFile(p, []byte("identity: a@x.com\ndisplay_name: Andi\nquiet: true\n"), 0600))
	conf, err = LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", conf.Identity)
	assert.Equal(t, "Andi", conf.DisplayName)
	assert.True(t, conf.Quiet)
	assert.Equal(t, DefaultServer, conf.Server)
	assert.NoError(t, conf.Validate())

	require.NoError(t, os.WriteFile(p, []byte("identity: [\n"), 0600))
	_, err = LoadConfig(p)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	conf := DefaultConfig()
	assert.Error(t, conf.Validate())

	conf.Identity = "a@x.com"
	conf.Server = "http://x"
	assert.Error(t, conf.Validate())

	conf.Server = ""
	assert.NoError(t, conf.Validate())
}
