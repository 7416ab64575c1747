package devices

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestHTTPSourceGetAllStates(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/states" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"devices": [
			{"device_id": "fridge", "attributes": {"door": "open", "temp": "4"}},
			{"device_id": "dining_room_light", "attributes": {"power": "off"}}
		]}`))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, "secret-token", 5*time.Second, zerolog.Nop())
	states, err := src.GetAllStates(context.Background())
	if err != nil {
		t.Fatalf("GetAllStates: %v", err)
	}

	if gotAuth != "Bearer secret-token" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if len(states) != 2 {
		t.Fatalf("got %d devices, want 2", len(states))
	}
	if v, ok := states.Lookup("fridge", "door"); !ok || v != "open" {
		t.Fatalf("fridge.door = %q, %v", v, ok)
	}
	if v, ok := states.Lookup("dining_room_light", "power"); !ok || v != "off" {
		t.Fatalf("dining_room_light.power = %q, %v", v, ok)
	}
}

func TestHTTPSourceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "hub rebooting", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"devices": [{"device_id": "fridge", "attributes": {"door": "closed"}}]}`))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, "", 5*time.Second, zerolog.Nop())
	states, err := src.GetAllStates(context.Background())
	if err != nil {
		t.Fatalf("GetAllStates after retry: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("hub called %d times, want 2", got)
	}
	if v, _ := states.Lookup("fridge", "door"); v != "closed" {
		t.Fatalf("fridge.door = %q", v)
	}
}

func TestHTTPSourceClientErrorsArePermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such hub path", http.StatusNotFound)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, "", 5*time.Second, zerolog.Nop())
	if _, err := src.GetAllStates(context.Background()); err == nil {
		t.Fatal("expected error for 404")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("hub called %d times for a client error, want 1", got)
	}
}

func TestHTTPSourceGetState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/devices/fridge/states/door" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"value": "open"}`))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, "", 5*time.Second, zerolog.Nop())
	value, err := src.GetState(context.Background(), "fridge", "door")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if value != "open" {
		t.Fatalf("value = %q, want open", value)
	}
}

func TestHTTPSourceOutage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "hub down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, "", 5*time.Second, zerolog.Nop())
	if _, err := src.GetAllStates(context.Background()); err == nil {
		t.Fatal("expected error when every attempt fails")
	}
}
