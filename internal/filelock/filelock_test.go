package filelock

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "region.lock")

	lock := New(lockPath)
	if err := lock.Acquire(); err != nil {
		t.Fatalf("failed to acquire lock: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("failed to release lock: %v", err)
	}
}

func TestConcurrentLocking(t *testing.T) {
	tmpDir := t.TempDir()
	lockPath := filepath.Join(tmpDir, "counter.lock")
	counterPath := filepath.Join(tmpDir, "counter.txt")
	os.WriteFile(counterPath, []byte("0"), 0644)

	const goroutines = 5
	const iterations = 10

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				lock := New(lockPath)
				if err := lock.Acquire(); err != nil {
					t.Errorf("failed to acquire lock: %v", err)
					return
				}

				// Critical section: read, increment, write back.
				data, err := os.ReadFile(counterPath)
				if err != nil {
					t.Errorf("failed to read counter: %v", err)
					lock.Release()
					return
				}
				var counter int
				fmt.Sscanf(string(data), "%d", &counter)
				time.Sleep(time.Millisecond)
				counter++
				if err := os.WriteFile(counterPath, []byte(fmt.Sprintf("%d", counter)), 0644); err != nil {
					t.Errorf("failed to write counter: %v", err)
					lock.Release()
					return
				}

				if err := lock.Release(); err != nil {
					t.Errorf("failed to release lock: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(counterPath)
	if err != nil {
		t.Fatalf("failed to read final counter: %v", err)
	}
	var final int
	fmt.Sscanf(string(data), "%d", &final)
	if expected := goroutines * iterations; final != expected {
		t.Errorf("expected counter %d, got %d (lost update)", expected, final)
	}
}

func TestTryAcquire(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "region.lock")

	first := New(lockPath)
	second := New(lockPath)

	ok, err := first.TryAcquire()
	if err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}
	if !ok {
		t.Fatal("first TryAcquire should succeed")
	}

	ok, err = second.TryAcquire()
	if err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}
	if ok {
		t.Error("second TryAcquire should fail while lock is held")
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	ok, err = second.TryAcquire()
	if err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}
	if !ok {
		t.Error("TryAcquire should succeed after release")
	}
	second.Release()
}

func TestAtomicWrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "snapshot.bin")
	content := []byte("region snapshot v1")

	if err := AtomicWrite(target, content); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("expected %q, got %q", content, got)
	}
}

func TestAtomicWrite_Overwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "snapshot.bin")
	if err := os.WriteFile(target, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := AtomicWrite(target, []byte("new")); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}

	got, _ := os.ReadFile(target)
	if string(got) != "new" {
		t.Errorf("expected overwrite, got %q", got)
	}
}

func TestAtomicWrite_CreatesParentDirs(t *testing.T) {
	target := filepath.Join(t.TempDir(), "deep", "nested", "snapshot.bin")

	if err := AtomicWrite(target, []byte("x")); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Errorf("target missing: %v", err)
	}
}

func TestConcurrentAtomicWrites(t *testing.T) {
	target := filepath.Join(t.TempDir(), "snapshot.bin")

	const goroutines = 10
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			content := []byte(string(rune('A' + id)))
			if err := AtomicWrite(target, content); err != nil {
				t.Errorf("AtomicWrite failed for goroutine %d: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	// One complete write wins; partial content is never visible.
	content, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if len(content) != 1 {
		t.Errorf("expected 1 byte, got %d bytes: %q", len(content), content)
	}
}

func TestAtomicWrite_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "snapshot.bin")

	if err := AtomicWrite(target, []byte("x")); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("expected only the target file, found %v", names)
	}
}

func TestWriteLocked(t *testing.T) {
	target := filepath.Join(t.TempDir(), "plan.yaml")

	const writers = 8
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		payload := []byte(fmt.Sprintf("writer-%d", i))
		go func() {
			defer wg.Done()
			if err := WriteLocked(target, payload); err != nil {
				t.Errorf("WriteLocked failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if len(got) == 0 {
		t.Error("expected a complete payload, got empty file")
	}
}
