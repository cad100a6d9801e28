package aggregation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		name        string
		part, whole int64
		want        float64
	}{
		{name: "funnel step", part: 20, whole: 50, want: 40.0},
		{name: "rounds to one place", part: 1, whole: 3, want: 33.3},
		{name: "rounds half up", part: 1, whole: 8, want: 12.5},
		{name: "zero whole", part: 5, whole: 0, want: 0},
		{name: "zero part", part: 0, whole: 9, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Percentage(tc.part, tc.whole))
		})
	}
}

func TestClickThroughRate(t *testing.T) {
	require.Equal(t, 30.0, ClickThroughRate(3, 10))
	require.Equal(t, 66.67, ClickThroughRate(2, 3))
	require.Equal(t, 0.0, ClickThroughRate(4, 0))
	require.Equal(t, 150.0, ClickThroughRate(3, 2))
}

func TestRatio(t *testing.T) {
	require.Equal(t, 2.5, Ratio(5, 2, 2))
	require.Equal(t, 0.33, Ratio(1, 3, 2))
	require.Equal(t, 0.0, Ratio(1, 0, 2))
}
