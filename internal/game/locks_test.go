package game

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("tictactoe:0")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("Lost updates under the keyed lock: %d", counter)
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.Lock("tictactoe:0")
	defer unlockA()

	// A different key must not block
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("connectfour:0")
		unlockB()
		close(done)
	}()
	<-done
}
