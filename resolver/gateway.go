package resolver

import "strings"

// DefaultGateway is the public LUKSO IPFS gateway.
const DefaultGateway = "https://api.universalprofile.cloud/ipfs/"

const ipfsScheme = "ipfs://"

// ToFetchableURL rewrites an ipfs:// locator into a gateway URL. Other
// locators (https://, data:, already rewritten URLs) are returned unchanged,
// so applying it twice is the same as applying it once.
func ToFetchableURL(gateway, locator string) string {
	if !strings.HasPrefix(locator, ipfsScheme) {
		return locator
	}
	if gateway == "" {
		gateway = DefaultGateway
	}
	path := strings.TrimLeft(strings.TrimPrefix(locator, ipfsScheme), "/")
	return strings.TrimRight(gateway, "/") + "/" + path
}
