package azure

import (
	"fmt"
	"strings"
)

// ResourceID holds the parts of an ARM resource id that the audit needs
type ResourceID struct {
	SubscriptionID string
	ResourceGroup  string
	Name           string
}

// ParseResourceID extracts subscription, resource group and name from an id such as
// /subscriptions/<sub>/resourceGroups/<rg>/providers/Microsoft.Compute/disks/<name>
func ParseResourceID(id string) (ResourceID, error) {
	parts := strings.Split(strings.Trim(id, "/"), "/")
	if len(parts) < 2 {
		return ResourceID{}, fmt.Errorf("invalid resource id %q", id)
	}

	var rid ResourceID
	for i := 0; i+1 < len(parts); i += 2 {
		switch strings.ToLower(parts[i]) {
		case "subscriptions":
			rid.SubscriptionID = parts[i+1]
		case "resourcegroups":
			rid.ResourceGroup = parts[i+1]
		}
	}
	if rid.SubscriptionID == "" {
		return ResourceID{}, fmt.Errorf("invalid resource id %q: no subscription", id)
	}
	rid.Name = parts[len(parts)-1]
	return rid, nil
}
