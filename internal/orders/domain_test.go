package orders

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeOverallState(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"preparation", StateReadyToPrepare},
		{"Billing", StateInBilling},
		{"on_hold_stock", StateOnHoldStock},
		{"ON_HOLD_STOCK", StateOnHoldStock},
		{"in delivery", StateInDelivery},
		{"  Completed ", StateCompleted},
		{"garbage", "garbage"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, NormalizeOverallState(tc.in), "input %q", tc.in)
	}
}

func TestStateForStage(t *testing.T) {
	require.Equal(t, StateInSales, StateForStage(StageSales))
	require.Equal(t, StateCompleted, StateForStage(StageCompleted))
	require.Equal(t, "mystery", StateForStage(StageKey("mystery")))
}
