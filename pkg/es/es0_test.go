package es

import (
	"testing"

	"github.com/CharellKing/ela-move/config"
)

func TestNewESVersionDispatch(t *testing.T) {
	esConfig := &config.ESConfig{
		Addresses: []string{"http://127.0.0.1:9200"},
	}

	esInstance, err := newES(esConfig, "7.10.2")
	if err != nil {
		t.Fatalf("7.10.2: %+v", err)
	}
	if _, ok := esInstance.(*V7); !ok {
		t.Errorf("7.10.2 should dispatch to V7, got %T", esInstance)
	}
	if esInstance.GetClusterVersion() != "7.10.2" {
		t.Errorf("cluster version: %s", esInstance.GetClusterVersion())
	}

	esInstance, err = newES(esConfig, "8.14.0")
	if err != nil {
		t.Fatalf("8.14.0: %+v", err)
	}
	if _, ok := esInstance.(*V8); !ok {
		t.Errorf("8.14.0 should dispatch to V8, got %T", esInstance)
	}

	if _, err = newES(esConfig, "6.8.10"); err == nil {
		t.Errorf("6.8.10 should be rejected")
	}

	if _, err = newES(esConfig, "not-a-version"); err == nil {
		t.Errorf("garbage version should be rejected")
	}
}
