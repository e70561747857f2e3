package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"meridian/core"
)

func TestSubmitTxAdmitsValidTransaction(t *testing.T) {
	mp := core.NewMempool(10, nil)
	idx := core.NewIndexer()
	srv := NewServer(mp, idx, nil)

	tx := core.Transaction{From: "alice", To: "bob", Amount: 10, Kind: core.TxTransfer}
	body, _ := json.Marshal(tx)

	req := httptest.NewRequest(http.MethodPost, "/tx", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if mp.Stats().Count != 1 {
		t.Fatalf("want 1 pending tx, got %d", mp.Stats().Count)
	}
}

func TestSubmitTxRejectsMalformedBody(t *testing.T) {
	srv := NewServer(core.NewMempool(10, nil), core.NewIndexer(), nil)
	req := httptest.NewRequest(http.MethodPost, "/tx", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}

func TestGetBlockNotFound(t *testing.T) {
	srv := NewServer(core.NewMempool(10, nil), core.NewIndexer(), nil)
	req := httptest.NewRequest(http.MethodGet, "/block/5", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}
}

func TestGetBlockFound(t *testing.T) {
	idx := core.NewIndexer()
	block := &core.Block{Hash: "abc", Transactions: nil}
	idx.IndexBlock(block, 3, 100)

	srv := NewServer(core.NewMempool(10, nil), idx, nil)
	req := httptest.NewRequest(http.MethodGet, "/block/3", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetTxFoundAndNotFound(t *testing.T) {
	idx := core.NewIndexer()
	tx := &core.Transaction{From: "alice", To: "bob", Amount: 1, Kind: core.TxTransfer}
	block := &core.Block{Hash: "abc", Transactions: []*core.Transaction{tx}}
	idx.IndexBlock(block, 1, 100)

	srv := NewServer(core.NewMempool(10, nil), idx, nil)

	req := httptest.NewRequest(http.MethodGet, "/tx/"+tx.Hash().Hex(), nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}

	missing := "0000000000000000000000000000000000000000000000000000000000000000"[:64]
	req2 := httptest.NewRequest(http.MethodGet, "/tx/"+missing, nil)
	rec2 := httptest.NewRecorder()
	srv.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec2.Code)
	}
}

func TestGetTxRejectsMalformedHash(t *testing.T) {
	srv := NewServer(core.NewMempool(10, nil), core.NewIndexer(), nil)
	req := httptest.NewRequest(http.MethodGet, "/tx/not-hex", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}
