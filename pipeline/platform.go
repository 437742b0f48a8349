package pipeline

import "fmt"

// ============================================================================
// PLATFORM + GROUPING — closed variants for per-platform plan construction
// ============================================================================
// Each platform carries its own collection layout and raw field names.
// Adding a platform means adding a case to every switch below; the compiler
// flags the ones you miss.
// ============================================================================

// Platform identifies the ad/commerce source a plan is built for.
type Platform int

const (
	Meta Platform = iota
	Google
	Shopify
)

// ParsePlatform converts a request-level platform key into a Platform.
func ParsePlatform(s string) (Platform, error) {
	switch s {
	case "meta":
		return Meta, nil
	case "google":
		return Google, nil
	case "shopify":
		return Shopify, nil
	default:
		return 0, fmt.Errorf("unknown platform %q", s)
	}
}

func (p Platform) String() string {
	switch p {
	case Meta:
		return "meta"
	case Google:
		return "google"
	case Shopify:
		return "shopify"
	}
	return "unknown"
}

// GroupBy is the entity level at which metrics are summed.
type GroupBy int

const (
	GroupNone GroupBy = iota
	GroupCampaign
	GroupAdset
	GroupAd
	GroupDate
)

// ParseGroupBy converts a request-level group_by value into a GroupBy.
// The empty string means "no grouping" (a single aggregate total row).
func ParseGroupBy(s string) (GroupBy, error) {
	switch s {
	case "":
		return GroupNone, nil
	case "campaign":
		return GroupCampaign, nil
	case "adset":
		return GroupAdset, nil
	case "ad":
		return GroupAd, nil
	case "date":
		return GroupDate, nil
	default:
		return 0, fmt.Errorf("unknown group_by %q", s)
	}
}

func (g GroupBy) String() string {
	switch g {
	case GroupNone:
		return ""
	case GroupCampaign:
		return "campaign"
	case GroupAdset:
		return "adset"
	case GroupAd:
		return "ad"
	case GroupDate:
		return "date"
	}
	return "unknown"
}
