package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/approvalgate/internal/core/config"
	"github.com/solatis/approvalgate/internal/types"
)

const rulesFile = `[
  {"name": "catch all", "priority": 1},
  {"name": "large", "priority": 10, "conditions": {"field": "amount", "operator": ">", "value": 1000}},
  {"name": "disabled", "priority": 99, "active": false},
  {"name": "other key", "priority": 50, "classification_key": "orders"}
]`

func TestDecodeRules(t *testing.T) {
	rs, err := decodeRules([]byte(rulesFile), "invoices")
	require.NoError(t, err)
	require.Len(t, rs, 4)

	assert.True(t, rs[0].Active)
	assert.Equal(t, types.ClassificationKey("invoices"), rs[0].ClassificationKey)
	assert.NotNil(t, rs[1].Condition)
	assert.False(t, rs[2].Active)
	assert.Equal(t, types.ClassificationKey("orders"), rs[3].ClassificationKey)

	_, err = decodeRules([]byte(`{"name": "not an array"}`), "invoices")
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	rs, err := decodeRules([]byte(rulesFile), "invoices")
	require.NoError(t, err)
	cfg := config.Default()

	result, err := check(context.Background(), cfg, rs, "invoices", types.Record{"amount": 5000.0})
	require.NoError(t, err)
	assert.True(t, result.NeedsApproval)
	assert.Equal(t, "large", result.Rule.Name)

	result, err = check(context.Background(), cfg, rs, "invoices", types.Record{"amount": 5.0})
	require.NoError(t, err)
	assert.Equal(t, "catch all", result.Rule.Name)

	result, err = check(context.Background(), cfg, rs, "payments", types.Record{})
	require.NoError(t, err)
	assert.False(t, result.NeedsApproval)
	assert.Nil(t, result.Rule)
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.json")
	require.NoError(t, os.WriteFile(rulesPath, []byte(rulesFile), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(bytes.NewBufferString(`{"amount": 2500}`))
	rootCmd.SetArgs([]string{"check", "--rules", rulesPath, "--key", "invoices", "--record", "-", "--log-level", "error"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	var result struct {
		NeedsApproval bool `json:"needs_approval"`
		Rule          struct {
			Name string `json:"name"`
		} `json:"rule"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.True(t, result.NeedsApproval)
	assert.Equal(t, "large", result.Rule.Name)
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		l, err := newLogger("debug", format)
		require.NoError(t, err)
		assert.NotNil(t, l)
	}

	_, err := newLogger("loud", "json")
	assert.Error(t, err)
	_, err = newLogger("info", "xml")
	assert.Error(t, err)
}

func TestSelectSecret(t *testing.T) {
	one := map[string][]byte{"a": []byte("x")}
	two := map[string][]byte{"a": []byte("x"), "b": []byte("y")}

	id, err := selectSecret(one, "")
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	_, err = selectSecret(two, "")
	assert.Error(t, err)

	id, err = selectSecret(two, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", id)

	_, err = selectSecret(two, "c")
	assert.Error(t, err)
	_, err = selectSecret(nil, "")
	assert.Error(t, err)
}

func TestParseConditionArg(t *testing.T) {
	cond, err := parseConditionArg("")
	require.NoError(t, err)
	assert.Nil(t, cond)

	cond, err = parseConditionArg(`{"field": "amount", "operator": ">", "value": 1}`)
	require.NoError(t, err)
	assert.Equal(t, "amount", cond.Field)

	path := filepath.Join(t.TempDir(), "cond.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"field": "a", "operator": "=", "value": 1}]`), 0o600))
	cond, err = parseConditionArg("@" + path)
	require.NoError(t, err)
	assert.Equal(t, types.LogicAnd, cond.Logic)

	_, err = parseConditionArg("@" + filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
