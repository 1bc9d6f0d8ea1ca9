package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.7.6", "1.7.6", 0},
		{"1.7", "1.7.0", 0},
		{"1.7.5", "1.7.6", -1},
		{"1.7.7", "1.7.6", 1},
		{"1.8.0", "1.7.6", 1},
		{"2.0", "1.99.99", 1},
		{"1.10.0", "1.9.0", 1},
		{"", "1.7.6", -1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CompareVersions(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestServerInfo_SupportsRefunds(t *testing.T) {
	assert.False(t, (&ServerInfo{Version: "1.7.5"}).SupportsRefunds())
	assert.True(t, (&ServerInfo{Version: "1.7.6"}).SupportsRefunds())
	assert.True(t, (&ServerInfo{Version: "2.0.0"}).SupportsRefunds())
}

func TestAPIKey_HasPermission(t *testing.T) {
	key := &APIKey{Permissions: []string{
		PermissionCreatePullPayments + ":store-1",
		"btcpay.store.canviewinvoices",
	}}

	assert.True(t, key.HasPermission(PermissionCreatePullPayments))
	assert.False(t, key.HasPermission(PermissionModifyWebhooks))

	bare := &APIKey{Permissions: []string{PermissionCreatePullPayments}}
	assert.True(t, bare.HasPermission(PermissionCreatePullPayments))
}

func TestAPIKey_StoreIDs(t *testing.T) {
	key := &APIKey{Permissions: []string{
		PermissionCreatePullPayments + ":store-1",
		PermissionModifyWebhooks + ":store-1",
		"btcpay.store.canviewinvoices:store-2",
		"btcpay.server.canviewusers",
	}}

	assert.ElementsMatch(t, []string{"store-1", "store-2"}, key.StoreIDs())
	assert.Empty(t, (&APIKey{Permissions: []string{"scope"}}).StoreIDs())
}
