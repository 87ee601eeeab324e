package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kjstillabower/weather-gateway/internal/client"
	"github.com/kjstillabower/weather-gateway/internal/models"
)

func TestRequestCoalescer_ConcurrentCallsShareOneFetch(t *testing.T) {
	rc := newRequestCoalescer()
	var mu sync.Mutex
	calls := 0
	release := make(chan struct{})

	fn := func() (interface{}, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		return "london", nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]interface{}, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = rc.do(context.Background(), ResourceWeather, "weather:london", fn)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil || results[i] != "london" {
			t.Errorf("call %d = (%v, %v), want (london, nil)", i, results[i], errs[i])
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestRequestCoalescer_ErrorShared(t *testing.T) {
	rc := newRequestCoalescer()
	boom := errors.New("upstream down")

	_, err := rc.do(context.Background(), ResourceWeather, "weather:x", func() (interface{}, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("do() error = %v, want %v", err, boom)
	}
}

func TestRequestCoalescer_WaiterHonorsContext(t *testing.T) {
	rc := newRequestCoalescer()
	release := make(chan struct{})
	defer close(release)

	go func() {
		_, _ = rc.do(context.Background(), ResourceWeather, "weather:slow", func() (interface{}, error) {
			<-release
			return "late", nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := rc.do(ctx, ResourceWeather, "weather:slow", func() (interface{}, error) {
		t.Error("second fn must not run while the first is in flight")
		return nil, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("do() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestWeatherService_CoalesceWritesOnce(t *testing.T) {
	ctx := context.Background()
	mc := newMockClient()
	mc.delay = 50 * time.Millisecond
	store := newRecordingStore(nil)
	svc := NewWeatherService(mc, store, Options{Coalesce: true})

	var wg sync.WaitGroup
	results := make([]models.WeatherResponse, 8)
	for i := range results {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			r, err := svc.GetWeather(ctx, "London")
			if err != nil {
				t.Errorf("GetWeather() error = %v", err)
			}
			results[idx] = r
		}(i)
	}
	wg.Wait()

	if mc.count(client.OpWeather) != 1 {
		t.Errorf("provider calls = %d, want 1", mc.count(client.OpWeather))
	}
	if len(store.writes()) != 1 {
		t.Errorf("writes = %d, want 1", len(store.writes()))
	}
	for i, r := range results {
		if r.City != "London, GB" {
			t.Errorf("result %d City = %q", i, r.City)
		}
	}
}

func TestWeatherService_NoCoalesceByDefault(t *testing.T) {
	ctx := context.Background()
	mc := newMockClient()
	mc.delay = 50 * time.Millisecond
	svc := NewWeatherService(mc, newRecordingStore(nil), Options{})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.GetWeather(ctx, "London")
		}()
	}
	wg.Wait()

	if mc.count(client.OpWeather) != 3 {
		t.Errorf("provider calls = %d, want 3 (concurrent misses fetch independently)", mc.count(client.OpWeather))
	}
}

// TestWeatherService_CoalescedFetchOutlivesFirstCaller verifies that the caller
// which started a shared fetch leaving does not fail the others waiting on it.
func TestWeatherService_CoalescedFetchOutlivesFirstCaller(t *testing.T) {
	mc := newMockClient()
	mc.delay = 60 * time.Millisecond
	store := newRecordingStore(nil)
	svc := NewWeatherService(mc, store, Options{Coalesce: true, SharedFetchTimeout: time.Second})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.GetWeather(firstCtx, "London")
		firstErr <- err
	}()
	time.Sleep(10 * time.Millisecond)

	second := make(chan error, 1)
	var got models.WeatherResponse
	go func() {
		var err error
		got, err = svc.GetWeather(context.Background(), "London")
		second <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancelFirst()

	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("first caller error = %v, want context.Canceled", err)
	}
	if err := <-second; err != nil {
		t.Fatalf("second caller error = %v, want nil", err)
	}
	if got.City != "London, GB" {
		t.Errorf("City = %q, want London, GB", got.City)
	}
	if mc.count(client.OpWeather) != 1 {
		t.Errorf("provider calls = %d, want 1", mc.count(client.OpWeather))
	}
	if w := store.writes(); len(w) != 1 {
		t.Errorf("writes = %v, want one", w)
	}
}
