package availability

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/structable/pkg/api"
)

type fakeSource struct {
	mu      sync.Mutex
	calls   int32
	fail    bool
	release chan struct{}
	resp    api.AvailabilityResponse
}

func (f *fakeSource) Availability(ctx context.Context) (*api.AvailabilityResponse, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("availability fetch failed")
	}
	resp := f.resp
	return &resp, nil
}

func TestIndex_HasStructureNormalized(t *testing.T) {
	source := &fakeSource{resp: api.AvailabilityResponse{
		Structures: []string{"  7N2P ", "5hhm"},
		Motifs:     []string{"homosapiens|tra|mhci|a*02|gilgfvftl"},
	}}
	ix := NewIndex(source)

	ok, err := ix.HasStructure(context.Background(), "7n2p")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ix.HasStructure(context.Background(), " 5HHM ")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ix.HasStructure(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	// Empty id is unavailable without touching the source.
	ok, err = ix.HasStructure(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, int32(1), atomic.LoadInt32(&source.calls))
}

func TestIndex_HasMotifCompositeKey(t *testing.T) {
	source := &fakeSource{resp: api.AvailabilityResponse{
		Motifs: []string{"homosapiens|tra|mhci|a*02|gilgfvftl"},
	}}
	ix := NewIndex(source)

	ok, err := ix.HasMotif(context.Background(), "HomoSapiens", "TRA", "MHCI", "A*02", "GILGFVFTL")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ix.HasMotif(context.Background(), "HomoSapiens", "TRA", "MHCI", "A*02", "UNKNOWN")
	require.NoError(t, err)
	assert.False(t, ok)

	// One empty field short-circuits to unavailable.
	ok, err = ix.HasMotif(context.Background(), "HomoSapiens", "", "MHCI", "A*02", "GILGFVFTL")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndex_ConcurrentCallsShareOneFetch(t *testing.T) {
	source := &fakeSource{
		release: make(chan struct{}),
		resp:    api.AvailabilityResponse{Structures: []string{"7n2p"}},
	}
	ix := NewIndex(source)

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := ix.HasStructure(context.Background(), "7n2p")
			require.NoError(t, err)
			results[i] = ok
		}(i)
	}
	close(source.release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&source.calls))
	assert.True(t, results[0])
	assert.True(t, results[1])
}

func TestIndex_FailureIsNotCached(t *testing.T) {
	source := &fakeSource{fail: true, resp: api.AvailabilityResponse{Structures: []string{"7n2p"}}}
	ix := NewIndex(source)

	_, err := ix.HasStructure(context.Background(), "7n2p")
	require.Error(t, err)

	source.mu.Lock()
	source.fail = false
	source.mu.Unlock()

	ok, err := ix.HasStructure(context.Background(), "7n2p")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(2), atomic.LoadInt32(&source.calls))
}

func TestMotifKey(t *testing.T) {
	key, ok := MotifKey(" HomoSapiens ", "TRA", "MHCI", "A*02", "GILGFVFTL")
	require.True(t, ok)
	assert.Equal(t, "homosapiens|tra|mhci|a*02|gilgfvftl", key)

	_, ok = MotifKey("HomoSapiens", "TRA", "MHCI", "A*02", " ")
	assert.False(t, ok)
}
