package stove

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIsOn(t *testing.T) {
	tests := []struct {
		in   Status
		want bool
	}{
		{Status{Status: "WORK"}, true},
		{Status{Status: "modulation"}, true},
		{Status{Status: " START "}, true},
		{Status{Status: "IGNITION"}, true},
		{Status{Status: "ON"}, true},
		{Status{Status: "STANDBY"}, false},
		{Status{Status: "OFF"}, false},
		{Status{Status: "CLEANING"}, false},
		{Status{Status: "WORK", ErrorCode: 3}, false},
		{Status{}, false},
	}
	for _, tt := range tests {
		if got := IsOn(tt.in); got != tt.want {
			t.Errorf("IsOn(%+v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClient_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/devices/stove-1/status" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "k" {
			t.Errorf("missing api key")
		}
		_, _ = w.Write([]byte(`{"status":"WORK","errorCode":0}`))
	}))
	defer srv.Close()

	s, err := NewClient(srv.URL, "k", time.Second).Status(context.Background(), "stove-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if s.Status != "WORK" || !IsOn(s) {
		t.Fatalf("status = %+v", s)
	}
}

func TestClient_StatusFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).Status(context.Background(), "stove-1")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
