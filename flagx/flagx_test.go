package flagx

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probeOptions struct {
	Targets []string      `flag:"target,t" usage:"probe targets"`
	Workers int           `flag:"workers,w" usage:"worker count" default:"10"`
	Delay   time.Duration `flag:"delay" usage:"base delay" default:"500ms"`
	Rate    float64       `flag:"rate" usage:"requests per window" default:"2.5"`
	Debug   bool          `flag:"debug" usage:"verbose output"`

	ignored string // 未导出字段跳过
}

func TestBindAndParse(t *testing.T) {
	cmd := &cobra.Command{}
	var opts probeOptions
	require.NoError(t, Bind(cmd, &opts))

	require.NoError(t, cmd.Flags().Set("target", "a.example.com"))
	require.NoError(t, cmd.Flags().Set("target", "b.example.com"))
	require.NoError(t, cmd.Flags().Set("workers", "4"))
	require.NoError(t, cmd.Flags().Set("delay", "2s"))
	require.NoError(t, cmd.Flags().Set("debug", "true"))

	require.NoError(t, Parse(cmd, &opts))

	assert.Equal(t, []string{"a.example.com", "b.example.com"}, opts.Targets)
	assert.Equal(t, 4, opts.Workers)
	assert.Equal(t, 2*time.Second, opts.Delay)
	assert.Equal(t, 2.5, opts.Rate)
	assert.True(t, opts.Debug)
	assert.Empty(t, opts.ignored)
}

func TestBind_DefaultsApply(t *testing.T) {
	cmd := &cobra.Command{}
	var opts probeOptions
	require.NoError(t, Bind(cmd, &opts))
	require.NoError(t, Parse(cmd, &opts))

	assert.Equal(t, 10, opts.Workers)
	assert.Equal(t, 500*time.Millisecond, opts.Delay)
	assert.Equal(t, 2.5, opts.Rate)
	assert.False(t, opts.Debug)
}

func TestBind_ShortNames(t *testing.T) {
	cmd := &cobra.Command{}
	var opts probeOptions
	require.NoError(t, Bind(cmd, &opts))

	flag := cmd.Flags().ShorthandLookup("w")
	require.NotNil(t, flag)
	assert.Equal(t, "workers", flag.Name)
}

func TestBind_RejectsNonStruct(t *testing.T) {
	cmd := &cobra.Command{}
	assert.Error(t, Bind(cmd, 42))
	assert.Error(t, Parse(cmd, "nope"))

	var opts probeOptions
	assert.Error(t, Bind(cmd, opts), "必须传指针")
}

func TestBind_BadDefault(t *testing.T) {
	type badOptions struct {
		Timeout time.Duration `flag:"timeout" default:"not-a-duration"`
	}
	cmd := &cobra.Command{}
	var opts badOptions
	assert.Error(t, Bind(cmd, &opts))
}

func TestBind_UnsupportedType(t *testing.T) {
	type badOptions struct {
		Levels []int `flag:"levels"`
	}
	cmd := &cobra.Command{}
	var opts badOptions
	assert.Error(t, Bind(cmd, &opts), "非 string 切片不支持")
}

func TestBind_Required(t *testing.T) {
	type reqOptions struct {
		Target string `flag:"target" required:"true"`
	}
	cmd := &cobra.Command{RunE: func(*cobra.Command, []string) error { return nil }}
	var opts reqOptions
	require.NoError(t, Bind(cmd, &opts))

	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute(), "缺少必填 flag 应报错")
}
