package slidingwindow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWindow(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{name: "default size", size: DefaultSize},
		{name: "size one", size: 1},
		{name: "max size", size: MaxSize},
		{name: "zero", size: 0, wantErr: true},
		{name: "negative", size: -3, wantErr: true},
		{name: "above max", size: MaxSize + 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, err := NewWindow(tt.size)
			if tt.wantErr {
				require.ErrorContains(t, err, "invalid window size")
				require.Nil(t, w)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.size, w.Size())
			require.Zero(t, w.Len())
			require.Equal(t, []int64{}, w.Snapshot())
			require.Zero(t, w.Average())
		})
	}
}

func TestWindow_Merge(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		size        int
		initial     []int64
		batch       []int64
		want        []int64
		wantAdded   []int64
		wantEvicted []int64
	}{
		{
			name:      "append into empty window",
			size:      5,
			batch:     []int64{2, 3, 5, 7, 11},
			want:      []int64{2, 3, 5, 7, 11},
			wantAdded: []int64{2, 3, 5, 7, 11},
		},
		{
			name:        "fifo eviction keeps newest",
			size:        3,
			initial:     []int64{1, 2, 3},
			batch:       []int64{4, 5},
			want:        []int64{3, 4, 5},
			wantAdded:   []int64{4, 5},
			wantEvicted: []int64{1, 2},
		},
		{
			name:        "values already present are skipped",
			size:        5,
			initial:     []int64{2, 3, 5, 7, 11},
			batch:       []int64{2, 13},
			want:        []int64{3, 5, 7, 11, 13},
			wantAdded:   []int64{13},
			wantEvicted: []int64{2},
		},
		{
			name:      "duplicates inside a batch collapse to first occurrence",
			size:      10,
			batch:     []int64{4, 4, 8, 4, 8, 6},
			want:      []int64{4, 8, 6},
			wantAdded: []int64{4, 8, 6},
		},
		{
			name:    "subset of window is a no-op",
			size:    4,
			initial: []int64{1, 2, 3},
			batch:   []int64{3, 1},
			want:    []int64{1, 2, 3},
		},
		{
			name:    "empty batch is a no-op",
			size:    4,
			initial: []int64{9, 8},
			batch:   []int64{},
			want:    []int64{9, 8},
		},
		{
			name:        "batch larger than capacity keeps its tail",
			size:        2,
			batch:       []int64{1, 2, 3, 4},
			want:        []int64{3, 4},
			wantAdded:   []int64{1, 2, 3, 4},
			wantEvicted: []int64{1, 2},
		},
		{
			name:        "eviction is by insertion order not value",
			size:        3,
			initial:     []int64{50, 10, 30},
			batch:       []int64{1},
			want:        []int64{10, 30, 1},
			wantAdded:   []int64{1},
			wantEvicted: []int64{50},
		},
		{
			name:      "negative numbers are values like any other",
			size:      3,
			batch:     []int64{-1, 0, -1, 1},
			want:      []int64{-1, 0, 1},
			wantAdded: []int64{-1, 0, 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, err := NewWindow(tt.size)
			require.NoError(t, err)
			if len(tt.initial) > 0 {
				res := w.merge(tt.initial)
				require.Equal(t, tt.initial, res.added)
			}

			res := w.merge(tt.batch)
			require.Equal(t, tt.want, w.Snapshot())
			require.Equal(t, tt.wantAdded, res.added)
			require.Equal(t, tt.wantEvicted, res.evicted)
			for _, n := range tt.want {
				require.True(t, w.Contains(n), "Contains(%d)", n)
			}
			for _, n := range tt.wantEvicted {
				require.False(t, w.Contains(n), "evicted %d still a member", n)
			}
		})
	}
}

func TestWindow_Average(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		values []int64
		want   float64
	}{
		{name: "empty", want: 0},
		{name: "three four five", values: []int64{3, 4, 5}, want: 4.0},
		{name: "first primes", values: []int64{2, 3, 5, 7, 11}, want: 5.6},
		{name: "shifted primes", values: []int64{3, 5, 7, 11, 13}, want: 7.8},
		{name: "single", values: []int64{-7}, want: -7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, err := NewWindow(10)
			require.NoError(t, err)
			w.merge(tt.values)
			require.InDelta(t, tt.want, w.Average(), 1e-9)
		})
	}
}

func TestWindow_SetSizeAppliesOnNextMerge(t *testing.T) {
	t.Parallel()
	w, err := NewWindow(5)
	require.NoError(t, err)
	w.merge([]int64{1, 2, 3, 4, 5})

	// Shrinking does not truncate the live window.
	require.NoError(t, w.SetSize(2))
	require.Equal(t, 2, w.Size())
	require.Equal(t, []int64{1, 2, 3, 4, 5}, w.Snapshot())

	// The next merge applies the new capacity, even with nothing new.
	res := w.merge(nil)
	require.Equal(t, []int64{4, 5}, w.Snapshot())
	require.Equal(t, []int64{1, 2, 3}, res.evicted)

	// Growing keeps everything and lets the window fill up.
	require.NoError(t, w.SetSize(4))
	w.merge([]int64{6, 7, 8})
	require.Equal(t, []int64{5, 6, 7, 8}, w.Snapshot())

	require.ErrorContains(t, w.SetSize(0), "invalid window size")
	require.Equal(t, 4, w.Size())
}

func TestWindow_SnapshotIsACopy(t *testing.T) {
	t.Parallel()
	w, err := NewWindow(3)
	require.NoError(t, err)
	w.merge([]int64{1, 2, 3})

	snap := w.Snapshot()
	snap[0] = 100

	require.Equal(t, []int64{1, 2, 3}, w.Snapshot())
}

func TestWindow_State(t *testing.T) {
	t.Parallel()
	w, err := NewWindow(4)
	require.NoError(t, err)
	require.Equal(t, State{Values: []int64{}, Size: 4}, w.State())

	w.merge([]int64{3, 4, 5})
	st := w.State()
	require.Equal(t, []int64{3, 4, 5}, st.Values)
	require.Equal(t, 4, st.Size)
	require.InDelta(t, 4.0, st.Average, 1e-9)
}
