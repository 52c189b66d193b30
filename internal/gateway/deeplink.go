package gateway

import (
	"fmt"
	"strings"
)

// Deep-link payloads carry a referral into the join flow: ref_<campaign>_<referrer>.
const deepLinkPrefix = "ref_"

// DeepLink builds the referral payload an entrant shares.
func DeepLink(campaignID, referrerID string) string {
	return fmt.Sprintf("%s%s_%s", deepLinkPrefix, campaignID, referrerID)
}

// ParseDeepLink splits a referral payload into campaign and referrer ids.
// Campaign ids may themselves contain underscores (uuids do not, but ids are
// opaque here), so the referrer is taken from the last separator.
func ParseDeepLink(payload string) (campaignID, referrerID string, ok bool) {
	rest, found := strings.CutPrefix(payload, deepLinkPrefix)
	if !found {
		return "", "", false
	}
	i := strings.LastIndexByte(rest, '_')
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}
