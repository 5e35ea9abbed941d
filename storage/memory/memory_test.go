package memory

import (
	"sync"
	"testing"

	"xdao.co/collapse/storage"
	"xdao.co/collapse/storage/testkit"
)

func TestMemory_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		t.Helper()
		return New()
	})
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	c := New()
	id, err := c.Put([]byte("abc"))
	if err != nil {
		t.Fatal(err)
	}
	b, _ := c.Get(id)
	b[0] = 'x'
	again, _ := c.Get(id)
	if string(again) != "abc" {
		t.Fatalf("stored block mutated through Get result")
	}
}

func TestMemory_ConcurrentPut(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := c.Put([]byte{byte(i % 4)}); err != nil {
				t.Errorf("Put: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() != 4 {
		t.Fatalf("Len = %d want 4", c.Len())
	}
	ids := c.CIDs()
	for i := 1; i < len(ids); i++ {
		if ids[i-1].String() >= ids[i].String() {
			t.Fatalf("CIDs not sorted")
		}
	}
}
