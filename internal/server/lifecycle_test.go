package server

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jackzampolin/promptshelf/internal/home"
)

// TestServer_ContextCancellation tests that the server shuts down when its context ends.
func TestServer_ContextCancellation(t *testing.T) {
	srv, err := New(Config{Port: "0", Memory: true, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	if _, err := waitForReady(srv, 10*time.Second); err != nil {
		cancel()
		t.Fatalf("server did not start: %v", err)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error on cancel: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}

	if srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
}

func TestServer_PIDFile(t *testing.T) {
	dir, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}

	srv, err := New(Config{Port: "0", Memory: true, Home: dir, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	if _, err := waitForReady(srv, 10*time.Second); err != nil {
		cancel()
		t.Fatalf("server did not start: %v", err)
	}

	pid, err := dir.ReadPID()
	if err != nil {
		t.Fatalf("ReadPID() error = %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}

	cancel()
	<-done

	if _, err := os.Stat(dir.PIDPath()); !os.IsNotExist(err) {
		t.Errorf("pid file still present after shutdown: %v", err)
	}
}

func TestServer_RefusesLiveHome(t *testing.T) {
	dir, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}
	// The parent process is alive and is not us.
	if err := os.WriteFile(dir.PIDPath(), []byte(strconv.Itoa(os.Getppid())), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}

	srv, err := New(Config{Port: "0", Memory: true, Home: dir, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Error("Start() should refuse a home with a live server")
	}
}
