package domain

import (
	"strconv"
	"strings"
)

// Processor permission scopes relevant to this service
const (
	PermissionCreatePullPayments = "btcpay.store.cancreatenonapprovedpullpayments"
	PermissionModifyWebhooks     = "btcpay.store.webhooks.canmodifywebhooks"
)

// MinRefundServerVersion is the first processor version with payout support
const MinRefundServerVersion = "1.7.6"

// ServerInfo describes the remote processor instance
type ServerInfo struct {
	Version      string
	FullySynched bool
}

// SupportsRefunds reports whether the processor version supports payouts
func (s *ServerInfo) SupportsRefunds() bool {
	return CompareVersions(s.Version, MinRefundServerVersion) >= 0
}

// APIKey describes the credential this service authenticates with.
// Permissions are either bare scopes or "scope:storeID" pairs.
type APIKey struct {
	Key         string
	Permissions []string
}

// HasPermission reports whether the key carries the given scope for any store
func (k *APIKey) HasPermission(scope string) bool {
	for _, p := range k.Permissions {
		if p == scope || strings.HasPrefix(p, scope+":") {
			return true
		}
	}
	return false
}

// StoreIDs returns the store IDs the key is scoped to, empty for
// unrestricted keys
func (k *APIKey) StoreIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, p := range k.Permissions {
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 || parts[1] == "" {
			continue
		}
		if !seen[parts[1]] {
			seen[parts[1]] = true
			ids = append(ids, parts[1])
		}
	}
	return ids
}

// CompareVersions compares two dotted numeric versions, returning -1, 0 or 1.
// Missing segments compare as zero, so "1.7" equals "1.7.0".
func CompareVersions(a, b string) int {
	as := strings.Split(strings.TrimSpace(a), ".")
	bs := strings.Split(strings.TrimSpace(b), ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

// WebhookRegistration is the processor-side webhook subscription that feeds
// this service
type WebhookRegistration struct {
	ID      string
	URL     string
	Secret  string
	Enabled bool
	Events  []WebhookEventType
}
