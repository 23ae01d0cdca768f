package geoip

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/TomasB/ip2country/internal/data"
)

func TestDatabaseAdapter_Enabled(t *testing.T) {
	o := &countingOpener{}

	if NewDatabaseAdapter("", "", "", o.open).Enabled() {
		t.Error("expected disabled without paths")
	}
	if !NewDatabaseAdapter("", "v4.mmdb", "", o.open).Enabled() {
		t.Error("expected enabled with IPv4 path")
	}
	if !NewDatabaseAdapter("", "", "v6.mmdb", o.open).Enabled() {
		t.Error("expected enabled with IPv6 path")
	}
}

func TestDatabaseAdapter_ResolvesPathsAgainstBaseDir(t *testing.T) {
	o := &countingOpener{}
	abs := filepath.Join(t.TempDir(), "v6.mmdb")
	a := NewDatabaseAdapter("/srv/app", "data/v4.mmdb", abs, o.open)

	p, ok := a.Path(V4)
	if !ok || p != filepath.Join("/srv/app", "data/v4.mmdb") {
		t.Errorf("unexpected IPv4 path %q", p)
	}
	p, ok = a.Path(V6)
	if !ok || p != abs {
		t.Errorf("expected absolute path kept, got %q", p)
	}
}

func TestDatabaseAdapter_NoPathForVersion(t *testing.T) {
	o := &countingOpener{}
	a := NewDatabaseAdapter("", "v4.mmdb", "", o.open)

	_, err := a.Lookup(V6, "2001:db8::1")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if o.opens.Load() != 0 {
		t.Error("expected no handle to be opened")
	}
}

func TestDatabaseAdapter_CachesHandlePerVersion(t *testing.T) {
	o := &countingOpener{codes: map[string]string{"1.2.3.4": "NZ", "2001:db8::1": "DE"}}
	a := NewDatabaseAdapter("", "v4.mmdb", "v6.mmdb", o.open)

	for i := 0; i < 3; i++ {
		code, err := a.Lookup(V4, "1.2.3.4")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != "NZ" {
			t.Errorf("expected NZ, got %s", code)
		}
	}
	if got := o.opens.Load(); got != 1 {
		t.Fatalf("expected 1 open, got %d", got)
	}

	if code, err := a.Lookup(V6, "2001:db8::1"); err != nil || code != "DE" {
		t.Fatalf("expected DE, got %s (%v)", code, err)
	}
	if got := o.opens.Load(); got != 2 {
		t.Errorf("expected 2 opens, got %d", got)
	}
}

func TestDatabaseAdapter_OpenFailureIsRetried(t *testing.T) {
	o := &countingOpener{err: errors.New("no such file")}
	a := NewDatabaseAdapter("", "v4.mmdb", "", o.open)

	if _, err := a.Lookup(V4, "1.2.3.4"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	o.err = nil
	if _, err := a.Lookup(V4, "1.2.3.4"); err != nil {
		t.Fatalf("unexpected error after recovery: %v", err)
	}
	if got := o.opens.Load(); got != 2 {
		t.Errorf("expected 2 open attempts, got %d", got)
	}
}

func TestDatabaseAdapter_HandleErrorIsUnavailable(t *testing.T) {
	h := &mockLookup{err: errors.New("corrupt tree")}
	a := NewDatabaseAdapter("", "v4.mmdb", "", func(string) (data.CountryLookup, error) { return h, nil })

	if _, err := a.Lookup(V4, "1.2.3.4"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestDatabaseAdapter_ConcurrentFirstUse(t *testing.T) {
	o := &countingOpener{
		delay: 10 * time.Millisecond,
		codes: map[string]string{"1.2.3.4": "NZ"},
	}
	a := NewDatabaseAdapter("", "v4.mmdb", "", o.open)

	const workers = 64
	var wg sync.WaitGroup
	results := make([]string, workers)
	errs := make([]error, workers)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = a.Lookup(V4, "1.2.3.4")
		}(i)
	}
	wg.Wait()

	if got := o.opens.Load(); got != 1 {
		t.Fatalf("expected exactly 1 handle construction, got %d", got)
	}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Errorf("worker %d: unexpected error: %v", i, errs[i])
		}
		if results[i] != "NZ" {
			t.Errorf("worker %d: expected NZ, got %s", i, results[i])
		}
	}
}

func TestDatabaseAdapter_SlowOpenDoesNotBlockOtherVersion(t *testing.T) {
	release := make(chan struct{})
	opening := make(chan struct{})
	v4 := &mockLookup{codes: map[string]string{"1.2.3.4": "NZ"}}
	v6 := &mockLookup{codes: map[string]string{"2001:db8::1": "DE"}}

	a := NewDatabaseAdapter("", "v4.mmdb", "v6.mmdb", func(path string) (data.CountryLookup, error) {
		if path == "v6.mmdb" {
			close(opening)
			<-release
			return v6, nil
		}
		return v4, nil
	})

	if _, err := a.Lookup(V4, "1.2.3.4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v6done := make(chan error, 1)
	go func() {
		_, err := a.Lookup(V6, "2001:db8::1")
		v6done <- err
	}()
	<-opening

	v4done := make(chan string, 1)
	go func() {
		code, _ := a.Lookup(V4, "1.2.3.4")
		v4done <- code
	}()

	select {
	case code := <-v4done:
		if code != "NZ" {
			t.Errorf("expected NZ, got %s", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("IPv4 lookup blocked behind IPv6 open")
	}

	close(release)
	if err := <-v6done; err != nil {
		t.Fatalf("unexpected IPv6 error: %v", err)
	}
}

func TestDatabaseAdapter_CloseReleasesHandles(t *testing.T) {
	o := &countingOpener{}
	a := NewDatabaseAdapter("", "v4.mmdb", "v6.mmdb", o.open)

	a.Lookup(V4, "1.2.3.4")
	a.Lookup(V6, "::1")

	if err := a.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for path, h := range o.handles {
		if !h.closed.Load() {
			t.Errorf("handle for %s not closed", path)
		}
	}
}
