package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"grimm.is/moraine/internal/eval"
	"grimm.is/moraine/internal/module"
	"grimm.is/moraine/internal/optpath"
	"grimm.is/moraine/internal/typesys"
)

func TestLoadBytes_Declarations(t *testing.T) {
	src := `
module {
  name     = "base"
  requires = ["core"]
}

option "services.proxy.enable" {
  type        = bool
  default     = false
  description = "Run the proxy service."
}

option "services.proxy.backends" {
  type     = list(string)
  additive = true
}
`
	m, err := LoadBytes("base.hcl", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, "base", m.Name)
	assert.Equal(t, []string{"core"}, m.Requires)
	require.Len(t, m.Declarations, 2)

	enable := m.Declarations[0]
	assert.Equal(t, "services.proxy.enable", enable.Path.String())
	assert.Equal(t, typesys.KindBool, enable.Type.Kind())
	assert.Equal(t, cty.False, enable.Default)
	assert.Equal(t, "Run the proxy service.", enable.Description)
	assert.Equal(t, "base", enable.Origin.Module)
	assert.Contains(t, enable.Origin.Source, "base.hcl")

	backends := m.Declarations[1]
	assert.Equal(t, typesys.KindList, backends.Type.Kind())
	assert.True(t, backends.Type.Additive())
	assert.Equal(t, cty.NilVal, backends.Default)
}

func TestLoadBytes_TypeExpressions(t *testing.T) {
	tests := []struct {
		name    string
		typ     string
		kind    typesys.Kind
		wantErr string
	}{
		{name: "bool", typ: "bool", kind: typesys.KindBool},
		{name: "int", typ: "int", kind: typesys.KindInt},
		{name: "string", typ: "string", kind: typesys.KindString},
		{name: "list", typ: "list(int)", kind: typesys.KindList},
		{name: "map", typ: "map(string)", kind: typesys.KindAttrs},
		{name: "enum", typ: `enum("debug", "info")`, kind: typesys.KindEnum},
		{name: "nested list", typ: "list(list(bool))", kind: typesys.KindList},
		{name: "unknown keyword", typ: "float", wantErr: `unknown type "float"`},
		{name: "unknown constructor", typ: "set(string)", wantErr: `unknown type constructor "set"`},
		{name: "list arity", typ: "list(string, int)", wantErr: "exactly one element type"},
		{name: "enum non-literal", typ: "enum(true)", wantErr: "string literals"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := `
option "x" {
  type = ` + tt.typ + `
}
`
			m, err := LoadBytes("m.hcl", []byte(src))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, m.Declarations, 1)
			assert.Equal(t, tt.kind, m.Declarations[0].Type.Kind())
		})
	}
}

func TestLoadBytes_StaticSet(t *testing.T) {
	src := `
option "net.mtu" {
  type = int
}

set "net.mtu" {
  value = 1500
}

set "net.mtu" {
  value    = 9000
  priority = 1000
}
`
	m, err := LoadBytes("net.hcl", []byte(src))
	require.NoError(t, err)
	require.Len(t, m.Definitions, 2)
	assert.Nil(t, m.Dynamic)

	assert.Equal(t, "net.mtu", m.Definitions[0].Path.String())
	assert.True(t, m.Definitions[0].Value.RawEquals(cty.NumberIntVal(1500)),
		"got %#v, want %#v", m.Definitions[0].Value, cty.NumberIntVal(1500))
	assert.Equal(t, module.PriorityNormal, m.Definitions[0].Priority)
	assert.Equal(t, module.PriorityDefault, m.Definitions[1].Priority)
}

func TestLoadBytes_ForceSet(t *testing.T) {
	src := `
set "net.mtu" {
  value = 1280
  force = true
}
`
	m, err := LoadBytes("m.hcl", []byte(src))
	require.NoError(t, err)
	require.Len(t, m.Definitions, 1)
	assert.Equal(t, module.PriorityForce, m.Definitions[0].Priority)
}

func TestLoadBytes_DefaultMustMatchType(t *testing.T) {
	src := `
option "net.mtu" {
  type    = int
  default = "fifteen hundred"
}
`
	_, err := LoadBytes("m.hcl", []byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default")
}

func TestLoadBytes_DefaultMustNotReferenceConfig(t *testing.T) {
	src := `
option "net.mtu" {
  type    = int
  default = config.net.mtu
}
`
	_, err := LoadBytes("m.hcl", []byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not reference config")
}

func TestLoadBytes_ConfigReferenceDefers(t *testing.T) {
	src := `
option "services.proxy.enable" {
  type    = bool
  default = false
}

option "services.proxy.workers" {
  type    = int
  default = 0
}

set "services.proxy.workers" {
  value = config.services.proxy.enable ? 4 : 1
}
`
	m, err := LoadBytes("proxy.hcl", []byte(src))
	require.NoError(t, err)
	assert.Empty(t, m.Definitions)
	require.NotNil(t, m.Dynamic)

	result, diags := eval.New(eval.Options{}).Run([]module.Module{m})
	require.False(t, diags.HasErrors(), "diags: %v", diags)

	workers, err := result.Int(optpath.MustParse("services.proxy.workers"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), workers)
}

func TestLoadBytes_AssertAndWarn(t *testing.T) {
	src := `
option "net.mtu" {
  type    = int
  default = 1500
}

assert "mtu-sane" {
  condition = config.net.mtu >= 576
  message   = "mtu below the IPv4 minimum"
}

warn "jumbo-frames" {
  condition = config.net.mtu > 1500
  message   = "jumbo frames need switch support"
}
`
	m, err := LoadBytes("net.hcl", []byte(src))
	require.NoError(t, err)
	require.Len(t, m.Assertions, 1)
	require.Len(t, m.Warnings, 1)
	assert.Equal(t, "mtu-sane", m.Assertions[0].Name)
	assert.Equal(t, "mtu below the IPv4 minimum", m.Assertions[0].Message)

	result, diags := eval.New(eval.Options{}).Run([]module.Module{m})
	require.False(t, diags.HasErrors(), "diags: %v", diags)
	assert.Empty(t, result.Warnings)
}

func TestLoadBytes_FailingAssertion(t *testing.T) {
	src := `
option "net.mtu" {
  type    = int
  default = 100
}

assert "mtu-sane" {
  condition = config.net.mtu >= 576
  message   = "mtu below the IPv4 minimum"
}
`
	m, err := LoadBytes("net.hcl", []byte(src))
	require.NoError(t, err)

	result, diags := eval.New(eval.Options{}).Run([]module.Module{m})
	assert.Nil(t, result)
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), "mtu below the IPv4 minimum")
}

func TestLoadBytes_Functions(t *testing.T) {
	src := `
option "host.name" {
  type    = string
  default = "node"
}

option "host.banner" {
  type = string
}

set "host.banner" {
  value = format("welcome to %s", upper(config.host.name))
}
`
	m, err := LoadBytes("host.hcl", []byte(src))
	require.NoError(t, err)

	result, diags := eval.New(eval.Options{}).Run([]module.Module{m})
	require.False(t, diags.HasErrors(), "diags: %v", diags)

	banner, err := result.String(optpath.MustParse("host.banner"))
	require.NoError(t, err)
	assert.Equal(t, "welcome to NODE", banner)
}

func TestLoadBytes_InvalidPathLabel(t *testing.T) {
	src := `
option "net..mtu" {
  type = int
}
`
	_, err := LoadBytes("m.hcl", []byte(src))
	require.Error(t, err)
}

func TestLoadBytes_ParseError(t *testing.T) {
	_, err := LoadBytes("m.hcl", []byte(`option "x" {`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestLoadDir_LexicographicOrder(t *testing.T) {
	dir := t.TempDir()

	write := func(name, src string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	write("10-base.hcl", `
option "motd.lines" {
  type     = list(string)
  additive = true
}

set "motd.lines" {
  value = ["base"]
}
`)
	write("20-site.hcl", `
set "motd.lines" {
  value = ["site"]
}
`)
	write("notes.txt", "not a module")

	mods, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, mods, 2)
	assert.Equal(t, "10-base", mods[0].Name)
	assert.Equal(t, "20-site", mods[1].Name)

	result, diags := eval.New(eval.Options{}).Run(mods)
	require.False(t, diags.HasErrors(), "diags: %v", diags)

	lines, err := result.Strings(optpath.MustParse("motd.lines"))
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "site"}, lines)
}

func TestLoadDir_Empty(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .hcl module files")
}
