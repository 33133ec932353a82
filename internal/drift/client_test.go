package drift

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	solanago "github.com/gagliardetto/solana-go"

	chain "github.com/solpilot/solpilot/internal/solana"
)

func testSigner(t *testing.T) *chain.Signer {
	t.Helper()
	key := solanago.NewWallet().PrivateKey
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "signer.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := chain.LoadSigner(path)
	if err != nil {
		t.Fatalf("LoadSigner: %v", err)
	}
	return s
}

func TestRequestsSignedByBackendAuthority(t *testing.T) {
	signer := testSigner(t)

	var authority, timestamp, signature, uri string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authority = r.Header.Get("X-Authority")
		timestamp = r.Header.Get("X-Timestamp")
		signature = r.Header.Get("X-Signature")
		uri = r.URL.RequestURI()
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"orderId":1,"market":"SOL-PERP","direction":"long","status":"filled"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, signer)
	if _, err := c.PlacePerpOrder(context.Background(), "wallet123", "SOL-PERP", "long", 100, 2); err != nil {
		t.Fatalf("PlacePerpOrder: %v", err)
	}

	if authority != signer.PublicKey().String() {
		t.Errorf("X-Authority = %q, want signer pubkey %s", authority, signer.PublicKey())
	}
	sig, err := solanago.SignatureFromBase58(signature)
	if err != nil {
		t.Fatalf("signature not base58: %v", err)
	}
	msg := append([]byte(timestamp+"\n"+uri+"\n"), body...)
	if !ed25519.Verify(ed25519.PublicKey(signer.PublicKey().Bytes()), msg, sig[:]) {
		t.Error("signature does not verify over timestamp, uri and body")
	}
}

func TestUnsignedWithoutSigner(t *testing.T) {
	var sawAuthority bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuthority = r.Header.Get("X-Authority") != ""
		_, _ = w.Write([]byte(`{"accountValue":10}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	if _, err := c.GetBalance(context.Background(), "wallet123"); err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if sawAuthority {
		t.Error("client without a signer must not claim an authority")
	}
}
