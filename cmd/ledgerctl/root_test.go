package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/events"
	"github.com/tolelom/tolledger/indexer"
	"github.com/tolelom/tolledger/internal/testutil"
	"github.com/tolelom/tolledger/journal"
	"github.com/tolelom/tolledger/rpc"
	"github.com/tolelom/tolledger/sequencer"
	"github.com/tolelom/tolledger/storage"
	"github.com/tolelom/tolledger/vm"

	_ "github.com/tolelom/tolledger/vm/modules/assets"
	_ "github.com/tolelom/tolledger/vm/modules/uniques"
)

func TestCommandPresence(t *testing.T) {
	cmd := newRootCommand()
	paths := [][]string{
		{"assets", "create"}, {"assets", "set-metadata"}, {"assets", "mint"}, {"assets", "burn"},
		{"assets", "transfer"}, {"assets", "info"}, {"assets", "balance"}, {"assets", "holders"},
		{"uniques", "mint"}, {"uniques", "burn"}, {"uniques", "transfer"}, {"uniques", "info"},
		{"uniques", "balance"}, {"uniques", "holders"},
		{"account"}, {"receipt"}, {"events"}, {"watch"}, {"pending"}, {"status"},
	}
	for _, p := range paths {
		t.Run(strings.Join(p, " "), func(t *testing.T) {
			sub, _, err := cmd.Find(p)
			require.NoError(t, err)
			assert.Equal(t, p[len(p)-1], sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := newRootCommand()
	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
	endpoint := cmd.PersistentFlags().Lookup("rpc")
	require.NotNil(t, endpoint)
	assert.Equal(t, "http://127.0.0.1:8545", endpoint.DefValue)

	cmd.SetArgs([]string{"status", "--format", "yaml"})
	cmd.SetOut(&bytes.Buffer{})
	assert.ErrorContains(t, cmd.Execute(), "invalid format")
}

func TestArgumentParsing(t *testing.T) {
	_, err := parseAssetID("-1")
	assert.Error(t, err)
	_, err = parseAmount("340282366920938463463374607431768211456")
	assert.Error(t, err, "above u128")
	id, amount, err := idAndAmount([]string{"7", "12"})
	require.NoError(t, err)
	assert.Equal(t, core.AssetID(7), id)
	assert.Equal(t, core.NewAmount(12), amount)
}

// startNode runs an in-process node sequencing every few milliseconds.
func startNode(t *testing.T) string {
	t.Helper()
	db := testutil.NewMemDB()
	state := storage.NewStateDB(db)
	bc := core.NewBlockchain(storage.NewBlockStore(db))
	require.NoError(t, bc.Init())
	mp := core.NewMempool(core.WithAdmission(vm.Admit))
	em := events.NewEmitter()
	idx := indexer.New(db, state, em)
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	j.Attach(em)
	seq := sequencer.New(bc, state, mp, vm.NewExecutor(state), em, 0)
	srv := rpc.NewServer("127.0.0.1:0", rpc.NewHandler(bc, mp, seq, idx, j), rpc.NewHub(em), "")
	ts := httptest.NewServer(srv.Router())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		seq.Run(ctx, 5*time.Millisecond)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		ts.Close()
		_ = j.Close()
	})
	return ts.URL
}

func run(t *testing.T, url string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--rpc", url, "--timeout", "5s"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestEndToEnd(t *testing.T) {
	url := startNode(t)

	out, err := run(t, url, "--format", "json", "assets", "create", "--from", "alice")
	require.NoError(t, err, out)
	var r core.Receipt
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	require.NotNil(t, r.AssetID)
	assert.Equal(t, core.AssetID(0), *r.AssetID)

	out, err = run(t, url, "assets", "set-metadata", "0", "Gold", "GLD", "--from", "alice")
	require.NoError(t, err, out)
	out, err = run(t, url, "assets", "mint", "0", "100", "bob", "--from", "alice")
	require.NoError(t, err, out)
	assert.Contains(t, out, "100")

	out, err = run(t, url, "assets", "mint", "0", "5", "mallory", "--from", "mallory")
	assert.ErrorContains(t, err, core.CodeNoPermission)
	assert.Contains(t, out, "failed")

	out, err = run(t, url, "assets", "transfer", "0", "40", "carol", "--from", "bob")
	require.NoError(t, err, out)

	out, err = run(t, url, "assets", "balance", "0", "bob")
	require.NoError(t, err)
	assert.Equal(t, "60\n", out)

	out, err = run(t, url, "assets", "info", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "GLD")
	assert.Contains(t, out, "alice")

	out, err = run(t, url, "assets", "holders", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "carol")

	out, err = run(t, url, "uniques", "mint", "3", "--metadata", "ticket", "--from", "carol")
	require.NoError(t, err, out)
	out, err = run(t, url, "--format", "json", "account", "carol")
	require.NoError(t, err)
	var held []rpc.AccountAsset
	require.NoError(t, json.Unmarshal([]byte(out), &held))
	assert.Equal(t, []rpc.AccountAsset{
		{Ledger: "assets", AssetID: 0, Balance: "40"},
		{Ledger: "uniques", AssetID: 0, Balance: "3"},
	}, held)

	out, err = run(t, url, "--format", "json", "events", "--ledger", "assets", "--asset", "0")
	require.NoError(t, err)
	var records []journal.Record
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	assert.Len(t, records, 4, "created, metadata, minted, transferred")

	out, err = run(t, url, "--format", "json", "pending", "alice")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out, "every submitted call has been sequenced")

	out, err = run(t, url, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "state_root")
}
